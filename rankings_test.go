package main

import (
	"math"
	"testing"
)

// TestParseRankingFromText tests the ranking parser with various formats
func TestParseRankingFromText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name: "standard format with FINAL RANKING",
			input: `Response A is good but lacks detail.
Response B provides comprehensive coverage.
Response C is accurate but brief.

FINAL RANKING:
1. Response B
2. Response A
3. Response C`,
			expected: []string{"Response B", "Response A", "Response C"},
		},
		{
			name: "format without numbered list",
			input: `FINAL RANKING:
Response C
Response A
Response B`,
			expected: []string{"Response C", "Response A", "Response B"},
		},
		{
			name: "parenthesis numbering",
			input: `FINAL RANKING:
1) Response A
2) Response B`,
			expected: []string{"Response A", "Response B"},
		},
		{
			name: "bold markers stripped",
			input: `**FINAL RANKING:**
1. **Response B**
2. **Response A**`,
			expected: []string{"Response B", "Response A"},
		},
		{
			name: "lowercase mentions normalized",
			input: `FINAL RANKING:
1. response b
2. response a`,
			expected: []string{"Response B", "Response A"},
		},
		{
			name: "bare letters under header",
			input: `FINAL RANKING:
1. C
2. A
3. B`,
			expected: []string{"Response C", "Response A", "Response B"},
		},
		{
			name:     "no FINAL RANKING header - fallback",
			input:    `I think Response A is best, then Response C, then Response B.`,
			expected: []string{"Response A", "Response C", "Response B"},
		},
		{
			name: "duplicates collapsed, first mention wins",
			input: `FINAL RANKING:
Response A, Response B, Response A, Response C`,
			expected: []string{"Response A", "Response B", "Response C"},
		},
		{
			name:     "empty string",
			input:    "",
			expected: []string{},
		},
		{
			name: "FINAL RANKING with no responses",
			input: `FINAL RANKING:
No responses to rank.`,
			expected: []string{},
		},
		{
			name: "multiple occurrences - only from FINAL RANKING section",
			input: `Response A is mentioned here first.
Response B is also mentioned.

FINAL RANKING:
1. Response C
2. Response A`,
			expected: []string{"Response C", "Response A"},
		},
		{
			name: "responses with letters beyond C",
			input: `FINAL RANKING:
1. Response D
2. Response A
3. Response B
4. Response C`,
			expected: []string{"Response D", "Response A", "Response B", "Response C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseRankingFromText(tt.input)

			if len(result) != len(tt.expected) {
				t.Errorf("Length mismatch: got %d, want %d", len(result), len(tt.expected))
				t.Errorf("Got: %v", result)
				t.Errorf("Want: %v", tt.expected)
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("At index %d: got %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestLabelsInOrder(t *testing.T) {
	labels := []string{"Response A", "Response B", "Response C"}

	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "comma separated",
			content:  "Response C, Response A, Response B",
			expected: []string{"Response C", "Response A", "Response B"},
		},
		{
			name:     "embedded in prose",
			content:  "The best was Response B followed by Response A.",
			expected: []string{"Response B", "Response A"},
		},
		{
			name:     "unknown labels ignored",
			content:  "Response Z, Response A",
			expected: []string{"Response A"},
		},
		{
			name:     "nothing recognizable",
			content:  "I cannot rank these.",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := labelsInOrder(tt.content, labels)
			if len(result) != len(tt.expected) {
				t.Fatalf("Got %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("At index %d: got %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func review(reviewer string, labels ...string) PeerReview {
	return PeerReview{Model: reviewer, ParsedRanking: labels}
}

// TestAggregateRankingsMeans checks the mean-rank computation with three
// external reviewers: [[A,B,C],[B,A,C],[A,B,C]] must aggregate to A, B, C
// with means 1.33, 1.67, 3.0.
func TestAggregateRankingsMeans(t *testing.T) {
	anon := newFixedAnonymizer(map[string]string{
		"Response A": "m-a",
		"Response B": "m-b",
		"Response C": "m-c",
	})
	reviews := []PeerReview{
		review("r1", "Response A", "Response B", "Response C"),
		review("r2", "Response B", "Response A", "Response C"),
		review("r3", "Response A", "Response B", "Response C"),
	}

	aggregate := AggregateRankings(reviews, anon, []string{"m-a", "m-b", "m-c"})

	if len(aggregate) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(aggregate))
	}
	wantOrder := []string{"m-a", "m-b", "m-c"}
	wantMeans := []float64{4.0 / 3.0, 5.0 / 3.0, 3.0}
	for i := range wantOrder {
		if aggregate[i].Model != wantOrder[i] {
			t.Errorf("Position %d: got %s, want %s", i, aggregate[i].Model, wantOrder[i])
		}
		if math.Abs(aggregate[i].AverageRank-wantMeans[i]) > 1e-9 {
			t.Errorf("%s: average rank %.4f, want %.4f", aggregate[i].Model, aggregate[i].AverageRank, wantMeans[i])
		}
		if aggregate[i].RankingsCount != 3 {
			t.Errorf("%s: rankings count %d, want 3", aggregate[i].Model, aggregate[i].RankingsCount)
		}
	}
}

// TestAggregateRankingsSelfExclusion verifies that a reviewer's ranking of
// its own answer never contributes to its own score: a 2-member council
// where each reviewer ranks both answers yields exactly one contributing
// vote per answer.
func TestAggregateRankingsSelfExclusion(t *testing.T) {
	anon := newFixedAnonymizer(map[string]string{
		"Response A": "m1",
		"Response B": "m2",
	})
	reviews := []PeerReview{
		review("m1", "Response A", "Response B"), // ranks itself first
		review("m2", "Response B", "Response A"), // ranks itself first
	}

	aggregate := AggregateRankings(reviews, anon, []string{"m1", "m2"})

	if len(aggregate) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(aggregate))
	}
	for _, entry := range aggregate {
		if entry.RankingsCount != 1 {
			t.Errorf("%s: got %d contributing votes, want exactly 1", entry.Model, entry.RankingsCount)
		}
		// Each peer put the other second.
		if entry.AverageRank != 2.0 {
			t.Errorf("%s: average rank %.2f, want 2.00", entry.Model, entry.AverageRank)
		}
	}
}

// TestAggregateRankingsTieBreaks verifies the deterministic tie-break: equal
// means break on fewer abstentions, then on council input order.
func TestAggregateRankingsTieBreaks(t *testing.T) {
	anon := newFixedAnonymizer(map[string]string{
		"Response A": "m1",
		"Response B": "m2",
		"Response C": "m3",
	})

	t.Run("fewer abstentions wins", func(t *testing.T) {
		// m1 and m2 both end up with a mean rank of 2.0, but m2 was ranked
		// by every reviewer while two reviewers abstained on m1.
		reviews := []PeerReview{
			review("r1", "Response B", "Response A", "Response C"),
			review("r2", "Response C", "Response B"),
			review("r3", "Response C", "Response Z", "Response B"),
		}
		// m1: [2] -> 2.0, 2 abstentions. m2: [1,2,3] -> 2.0, 0 abstentions.
		// m3: [3,1,1] -> 1.67, 0 abstentions.
		aggregate := AggregateRankings(reviews, anon, []string{"m1", "m2", "m3"})
		if aggregate[0].Model != "m3" || aggregate[1].Model != "m2" || aggregate[2].Model != "m1" {
			t.Errorf("Unexpected order: %v", aggregate)
		}
		if aggregate[1].Abstentions != 0 {
			t.Errorf("m2 abstentions: got %d, want 0", aggregate[1].Abstentions)
		}
		if aggregate[2].Abstentions != 2 {
			t.Errorf("m1 abstentions: got %d, want 2", aggregate[2].Abstentions)
		}
	})

	t.Run("equal means and abstentions fall back to input order", func(t *testing.T) {
		reviews := []PeerReview{
			review("r1", "Response B", "Response A"), // m2 first
			review("r2", "Response A", "Response B"), // m1 first
		}
		// Both have mean 1.5, both 0 abstentions; m1 is listed first.
		aggregate := AggregateRankings(reviews, anon, []string{"m1", "m2"})
		if aggregate[0].Model != "m1" {
			t.Errorf("Tie should break to first-listed member, got %s", aggregate[0].Model)
		}

		// Reversing the council order flips the tie-break.
		aggregate = AggregateRankings(reviews, anon, []string{"m2", "m1"})
		if aggregate[0].Model != "m2" {
			t.Errorf("Tie should break to first-listed member, got %s", aggregate[0].Model)
		}
	})
}

// TestAggregateRankingsDegenerate covers single-answer and empty-review
// aggregates: every labeled answer still gets exactly one entry.
func TestAggregateRankingsDegenerate(t *testing.T) {
	anon := newFixedAnonymizer(map[string]string{"Response A": "m1"})

	aggregate := AggregateRankings(nil, anon, []string{"m1"})
	if len(aggregate) != 1 {
		t.Fatalf("Expected exactly 1 entry, got %d", len(aggregate))
	}
	if aggregate[0].Model != "m1" || aggregate[0].RankingsCount != 0 {
		t.Errorf("Unexpected degenerate entry: %+v", aggregate[0])
	}
}

// TestAggregateRankingsIgnoresNoise verifies that errored reviews and
// hallucinated labels contribute nothing.
func TestAggregateRankingsIgnoresNoise(t *testing.T) {
	anon := newFixedAnonymizer(map[string]string{
		"Response A": "m1",
		"Response B": "m2",
	})
	reviews := []PeerReview{
		{Model: "r1", ParsedRanking: []string{"Response A", "Response B"}, Err: "timed out"},
		review("r2", "Response Z", "Response B", "Response A"),
	}

	aggregate := AggregateRankings(reviews, anon, []string{"m1", "m2"})

	// Only r2 counts; Response Z is ignored but keeps its position weight.
	byModel := map[string]AggregateRanking{}
	for _, entry := range aggregate {
		byModel[entry.Model] = entry
	}
	if byModel["m2"].RankingsCount != 1 || byModel["m2"].AverageRank != 2.0 {
		t.Errorf("m2: got %+v", byModel["m2"])
	}
	if byModel["m1"].RankingsCount != 1 || byModel["m1"].AverageRank != 3.0 {
		t.Errorf("m1: got %+v", byModel["m1"])
	}
}
