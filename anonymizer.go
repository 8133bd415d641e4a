package main

import (
	"fmt"
	"math/rand"
	"sort"
)

// Anonymizer owns the label-to-model bijection for one exchange. Labels are
// assigned as a uniformly random permutation so peer reviewers can infer
// nothing from label order, and the first-listed model is not always
// "Response A". The mapping is immutable once built and is never shared
// across exchanges.
type Anonymizer struct {
	labelToModel map[string]string
	modelToLabel map[string]string
	labels       []string // sorted label order, for building review bundles
}

// NewAnonymizer assigns a fresh random label to each model. The models slice
// must not contain duplicates.
func NewAnonymizer(models []string) *Anonymizer {
	a := &Anonymizer{
		labelToModel: make(map[string]string, len(models)),
		modelToLabel: make(map[string]string, len(models)),
		labels:       make([]string, 0, len(models)),
	}

	perm := rand.Perm(len(models))
	for i, model := range models {
		label := fmt.Sprintf("Response %c", rune('A'+perm[i]))
		a.labelToModel[label] = model
		a.modelToLabel[model] = label
		a.labels = append(a.labels, label)
	}
	sort.Strings(a.labels)
	return a
}

// Labels returns every label in alphabetical order. Iterating labels rather
// than council members keeps prompt bundles free of positional hints.
func (a *Anonymizer) Labels() []string {
	out := make([]string, len(a.labels))
	copy(out, a.labels)
	return out
}

// Len returns the number of labeled answers.
func (a *Anonymizer) Len() int {
	return len(a.labels)
}

// Reveal maps a label back to its model id. Calling it with an unknown label
// is a programming bug and panics.
func (a *Anonymizer) Reveal(label string) string {
	model, ok := a.labelToModel[label]
	if !ok {
		panic(fmt.Sprintf("anonymizer: unknown label %q", label))
	}
	return model
}

// Hide maps a model id to its label. Calling it with an unlabeled model is a
// programming bug and panics.
func (a *Anonymizer) Hide(model string) string {
	label, ok := a.modelToLabel[model]
	if !ok {
		panic(fmt.Sprintf("anonymizer: unknown model %q", model))
	}
	return label
}

// lookup is the tolerant form of Reveal for parser output, where a model may
// hallucinate labels that were never assigned.
func (a *Anonymizer) lookup(label string) (string, bool) {
	model, ok := a.labelToModel[label]
	return model, ok
}

// LabelToModel returns a copy of the full mapping for inclusion in exchange
// metadata once the blind-review stages are over.
func (a *Anonymizer) LabelToModel() map[string]string {
	out := make(map[string]string, len(a.labelToModel))
	for label, model := range a.labelToModel {
		out[label] = model
	}
	return out
}
