package main

import (
	"regexp"
	"sort"
	"strings"
)

var (
	numberedLabelPattern  = regexp.MustCompile(`(?i)\d+[.)]\s*(Response\s+[A-Z])\b`)
	labelPattern          = regexp.MustCompile(`(?i)Response\s+([A-Z])\b`)
	numberedLetterPattern = regexp.MustCompile(`\d+[.)]\s*([A-Z])\b`)
)

// ParseRankingFromText extracts the ranked label list from a reviewer's free
// text. It prefers the numbered list under a "FINAL RANKING:" header, then
// falls back to bare "Response X" mentions in order, then to numbered single
// letters. Returns normalized labels ("Response A") best to worst.
func ParseRankingFromText(rankingText string) []string {
	// Models love to bold the ranking section, which breaks the patterns.
	text := strings.ReplaceAll(rankingText, "**", "")

	searchText := text
	hasHeader := strings.Contains(text, "FINAL RANKING:")
	if hasHeader {
		parts := strings.Split(text, "FINAL RANKING:")
		searchText = parts[len(parts)-1]
	}

	// Pattern 1: numbered "Response X" entries
	if matches := numberedLabelPattern.FindAllStringSubmatch(searchText, -1); len(matches) > 0 {
		return dedupeLabels(matches)
	}

	// Pattern 2: any "Response X" mentions, in order
	if matches := labelPattern.FindAllStringSubmatch(searchText, -1); len(matches) > 0 {
		return dedupeLabels(matches)
	}

	// Pattern 3: numbered bare letters, only trusted under the header
	if hasHeader {
		if matches := numberedLetterPattern.FindAllStringSubmatch(searchText, -1); len(matches) > 0 {
			return dedupeLabels(matches)
		}
	}

	return []string{}
}

// dedupeLabels normalizes regex submatches to canonical "Response X" form,
// dropping repeats while preserving first-seen order.
func dedupeLabels(matches [][]string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, m := range matches {
		letter := strings.ToUpper(m[1][len(m[1])-1:])
		label := "Response " + letter
		if !seen[label] {
			seen[label] = true
			result = append(result, label)
		}
	}
	return result
}

// labelsInOrder returns the known labels that appear in content, ordered by
// first occurrence. Used to read the comma-separated output of the fast-model
// ranking extraction, which is free text like "Response C, Response A".
func labelsInOrder(content string, labels []string) []string {
	type hit struct {
		label string
		pos   int
	}
	var hits []hit
	for _, label := range labels {
		if idx := strings.Index(content, label); idx >= 0 {
			hits = append(hits, hit{label: label, pos: idx})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.label
	}
	return out
}

// AggregateRankings reduces all peer reviews into the exchange's single
// authoritative ordering. For each labeled answer it takes the mean of its
// 1-based position across the reviews that ranked it; answers a reviewer
// never ranked are simply absent from that reviewer's contribution, never
// penalized with a worst-case score. A reviewer's ranking of its own
// (unlabeled to it) answer is excluded to avoid self-inflation.
//
// Ties in mean rank break deterministically: fewer abstentions first, then
// council input order. councilOrder lists the labeled models in their
// original seating order.
func AggregateRankings(reviews []PeerReview, anon *Anonymizer, councilOrder []string) []AggregateRanking {
	positions := make(map[string][]int)
	eligibleReviews := make(map[string]int) // reviews that could have ranked each model

	for _, review := range reviews {
		if review.Err != "" {
			continue
		}
		for _, model := range councilOrder {
			if model != review.Model {
				eligibleReviews[model]++
			}
		}
		for pos, label := range review.ParsedRanking {
			model, ok := anon.lookup(label)
			if !ok {
				continue // hallucinated label, ignore
			}
			if model == review.Model {
				continue // self-review never counts toward its own score
			}
			positions[model] = append(positions[model], pos+1)
		}
	}

	// Every labeled answer gets an entry, even with zero votes, so a
	// degenerate single-member exchange still produces one aggregate row.
	orderIndex := make(map[string]int, len(councilOrder))
	aggregate := make([]AggregateRanking, 0, len(councilOrder))
	for i, model := range councilOrder {
		orderIndex[model] = i
		votes := positions[model]
		entry := AggregateRanking{
			Model:         model,
			RankingsCount: len(votes),
			Abstentions:   eligibleReviews[model] - len(votes),
		}
		if len(votes) > 0 {
			sum := 0
			for _, pos := range votes {
				sum += pos
			}
			entry.AverageRank = float64(sum) / float64(len(votes))
		}
		aggregate = append(aggregate, entry)
	}

	sort.SliceStable(aggregate, func(i, j int) bool {
		a, b := aggregate[i], aggregate[j]
		// Ranked answers sort ahead of never-ranked ones.
		if (a.RankingsCount > 0) != (b.RankingsCount > 0) {
			return a.RankingsCount > 0
		}
		if a.RankingsCount > 0 && a.AverageRank != b.AverageRank {
			return a.AverageRank < b.AverageRank
		}
		if a.Abstentions != b.Abstentions {
			return a.Abstentions < b.Abstentions
		}
		return orderIndex[a.Model] < orderIndex[b.Model]
	})

	return aggregate
}
