package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
)

// tempDataDir points conversation storage at a per-test directory and
// restores the original afterwards.
func tempDataDir(t *testing.T) string {
	t.Helper()
	orig := DataDir
	DataDir = t.TempDir()
	t.Cleanup(func() { DataDir = orig })
	return DataDir
}

// fakeCall records one gateway invocation.
type fakeCall struct {
	Model  string
	Prompt string
}

// scriptedGateway is an in-memory gateway for orchestrator tests. The
// handler receives the model and the final prompt text and scripts the
// result; every call is recorded for later assertions.
type scriptedGateway struct {
	mu      sync.Mutex
	calls   []fakeCall
	handler func(model, prompt string) *ModelResult
}

func (g *scriptedGateway) query(ctx context.Context, model string, msgs []ChatMessage, opts QueryOptions) *ModelResult {
	prompt := ""
	if len(msgs) > 0 {
		prompt = msgs[len(msgs)-1].Content
	}
	g.mu.Lock()
	g.calls = append(g.calls, fakeCall{Model: model, Prompt: prompt})
	g.mu.Unlock()

	r := g.handler(model, prompt)
	if r.Model == "" {
		r.Model = model
	}
	return r
}

func (g *scriptedGateway) callsMatching(substr string) []fakeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []fakeCall
	for _, call := range g.calls {
		if strings.Contains(call.Prompt, substr) {
			out = append(out, call)
		}
	}
	return out
}

// Prompt markers used to tell stages apart in scripted gateways.
const (
	reviewMarker   = "FINAL RANKING"
	rebuttalMarker = "Revised Answer:"
	chairmanMarker = "Chairman of an LLM Council"
	titleMarker    = "Generate a very short title"
	extractMarker  = "data extraction assistant"
)

// happyGateway scripts a fully successful deliberation: Stage-1 answers,
// well-formed rankings echoing the labels found in the review bundle,
// rebuttals, and a chairman synthesis.
func happyGateway() *scriptedGateway {
	g := &scriptedGateway{}
	g.handler = func(model, prompt string) *ModelResult {
		usage := TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}
		switch {
		case strings.Contains(prompt, titleMarker):
			return &ModelResult{Response: "Test Title", Usage: usage}
		case strings.Contains(prompt, extractMarker):
			return &ModelResult{Response: extractionReplyFor(prompt), Usage: usage}
		case strings.Contains(prompt, chairmanMarker):
			return &ModelResult{Response: "Final synthesized answer", Usage: usage, Cost: 0.003}
		case strings.Contains(prompt, rebuttalMarker):
			return &ModelResult{Response: "Revised answer from " + model, Usage: usage, Cost: 0.002}
		case strings.Contains(prompt, reviewMarker):
			return &ModelResult{Response: rankingFor(prompt), Usage: usage, Cost: 0.001}
		default:
			return &ModelResult{Response: "Answer from " + model, Usage: usage, Cost: 0.001}
		}
	}
	return g
}

// rankingFor builds a well-formed FINAL RANKING section listing every label
// present in the review bundle, in the order they appear.
func rankingFor(prompt string) string {
	// The bundle shows labels in alphabetical order; the instructions above
	// it also contain example labels, so only scan below the bundle header.
	_, bundle, found := strings.Cut(prompt, "(anonymized):")
	if !found {
		bundle = prompt
	}
	bundle, _, _ = strings.Cut(bundle, "Your task:")

	seen := map[string]bool{}
	var labels []string
	for _, m := range labelPattern.FindAllString(bundle, -1) {
		if !seen[m] {
			seen[m] = true
			labels = append(labels, m)
		}
	}

	var b strings.Builder
	b.WriteString("Some critique of each answer.\n\nFINAL RANKING:\n")
	for i, label := range labels {
		fmt.Fprintf(&b, "%d. %s\n", i+1, label)
	}
	return b.String()
}

// extractionReplyFor answers a ranking-extraction prompt with the labels it
// mentions, comma separated, in first-mention order.
func extractionReplyFor(prompt string) string {
	seen := map[string]bool{}
	var labels []string
	for _, m := range labelPattern.FindAllString(prompt, -1) {
		if !seen[m] {
			seen[m] = true
			labels = append(labels, m)
		}
	}
	return strings.Join(labels, ", ")
}

// collectEvents drains an emitter's channel to a slice.
func collectEvents(em *Emitter) []Event {
	var events []Event
	for ev := range em.Events() {
		events = append(events, ev)
	}
	return events
}

// assertSubsequence checks that got's event types appear in an order
// consistent with the canonical full sequence.
func assertSubsequence(t *testing.T, got []Event, full []EventType) {
	t.Helper()
	idx := 0
	for _, ev := range got {
		found := false
		for i := idx; i < len(full); i++ {
			if full[i] == ev.Type {
				idx = i + 1
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Event %q out of order (or unexpected) in %v", ev.Type, eventTypes(got))
			return
		}
	}
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// fullEventSequence is the canonical ordering for one successful exchange.
var fullEventSequence = []EventType{
	EventResolvingPersonas,
	EventStage1Start,
	EventStage1Complete,
	EventStage2Start,
	EventStage2Complete,
	EventStage25Start,
	EventStage3Start,
	EventStage3Complete,
	EventTitleComplete,
	EventComplete,
}

// newFixedAnonymizer builds an anonymizer with a predetermined mapping, for
// aggregation tests that need stable labels.
func newFixedAnonymizer(labelToModel map[string]string) *Anonymizer {
	a := &Anonymizer{
		labelToModel: make(map[string]string, len(labelToModel)),
		modelToLabel: make(map[string]string, len(labelToModel)),
	}
	for label, model := range labelToModel {
		a.labelToModel[label] = model
		a.modelToLabel[model] = label
		a.labels = append(a.labels, label)
	}
	sort.Strings(a.labels)
	return a
}

// testCouncil assembles a council over the scripted gateway with no global
// concurrency ceiling.
func testCouncil(members []CouncilMember, chairman string, g *scriptedGateway) *Council {
	return NewCouncil(CouncilConfig{
		Members:    members,
		Chairman:   chairman,
		TitleModel: "test/title-model",
	}, g.query, NewBarrier(nil, 0))
}
