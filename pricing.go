package main

import (
	"fmt"
	"math"
)

// ModelPrice is the price of one model in USD per million tokens.
type ModelPrice struct {
	Prompt     float64 `json:"prompt" yaml:"prompt"`
	Completion float64 `json:"completion" yaml:"completion"`
}

// DefaultPrice is applied to models missing from the table so catalog drift
// never blocks an exchange.
var DefaultPrice = ModelPrice{Prompt: 1.00, Completion: 3.00}

// builtinPrices mirrors OpenRouter pricing as of late 2025. Overridable per
// deployment via the prices section of the council config file.
var builtinPrices = map[string]ModelPrice{
	"openai/gpt-5.2":                    {Prompt: 10.00, Completion: 30.00},
	"anthropic/claude-sonnet-4.5":       {Prompt: 3.00, Completion: 15.00},
	"anthropic/claude-opus-4.5":         {Prompt: 15.00, Completion: 75.00},
	"google/gemini-3-pro-preview":       {Prompt: 3.50, Completion: 10.50},
	"google/gemini-3-flash-preview":     {Prompt: 0.15, Completion: 0.60},
	"x-ai/grok-4.1-fast":                {Prompt: 0.50, Completion: 1.50},
	"x-ai/grok-4":                       {Prompt: 5.00, Completion: 15.00},
	"deepseek/deepseek-r1":              {Prompt: 0.55, Completion: 2.19},
	"nex-agi/deepseek-v3.1-nex-n1:free": {Prompt: 0, Completion: 0},
}

// PriceTable maps model ids to per-million-token prices. It is built once at
// startup and read-only afterwards, so it is safe to share across exchanges.
type PriceTable struct {
	prices map[string]ModelPrice
	def    ModelPrice
}

// NewPriceTable builds a price table from the builtin prices with optional
// per-deployment overrides layered on top.
func NewPriceTable(overrides map[string]ModelPrice) *PriceTable {
	prices := make(map[string]ModelPrice, len(builtinPrices)+len(overrides))
	for id, p := range builtinPrices {
		prices[id] = p
	}
	for id, p := range overrides {
		prices[id] = p
	}
	return &PriceTable{prices: prices, def: DefaultPrice}
}

// Price returns the pricing for a model, falling back to the default row.
func (t *PriceTable) Price(modelID string) ModelPrice {
	if p, ok := t.prices[modelID]; ok {
		return p
	}
	return t.def
}

// Cost computes the USD cost of one call, rounded to 6 decimal places.
func (t *PriceTable) Cost(modelID string, promptTokens, completionTokens int) float64 {
	p := t.Price(modelID)
	cost := float64(promptTokens)/1_000_000*p.Prompt +
		float64(completionTokens)/1_000_000*p.Completion
	return math.Round(cost*1e6) / 1e6
}

// EstimateTokens approximates the token count of a text. Rule of thumb:
// ~4 characters per token for English text.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// FormatCost renders a USD cost for display, with more precision the smaller
// the amount ("$0.0042", "$0.123", "$1.23").
func FormatCost(cost float64) string {
	switch {
	case cost == 0:
		return "$0.00"
	case cost < 0.01:
		return fmt.Sprintf("$%.4f", cost)
	case cost < 1:
		return fmt.Sprintf("$%.3f", cost)
	default:
		return fmt.Sprintf("$%.2f", cost)
	}
}

// CostCategory buckets a cost for client-side color coding.
func CostCategory(cost float64) string {
	switch {
	case cost < 0.10:
		return "low"
	case cost < 0.50:
		return "medium"
	case cost < 2.00:
		return "high"
	default:
		return "very-high"
	}
}

// CostEstimate is a pre-flight estimate for fanning one prompt out to a set
// of models. Computed purely from the price table, no network calls.
type CostEstimate struct {
	Total                   float64            `json:"total"`
	Category                string             `json:"category"`
	PromptTokens            int                `json:"prompt_tokens"`
	EstimatedResponseTokens int                `json:"estimated_response_tokens"`
	Models                  map[string]float64 `json:"models"`
}

// EstimateQueryCost estimates what one deliberation prompt would cost across
// the given models, assuming estimatedResponseTokens of output each.
func (t *PriceTable) EstimateQueryCost(modelIDs []string, prompt string, estimatedResponseTokens int) CostEstimate {
	promptTokens := EstimateTokens(prompt)

	estimate := CostEstimate{
		PromptTokens:            promptTokens,
		EstimatedResponseTokens: estimatedResponseTokens,
		Models:                  make(map[string]float64, len(modelIDs)),
	}
	for _, id := range modelIDs {
		cost := t.Cost(id, promptTokens, estimatedResponseTokens)
		estimate.Models[id] = cost
		estimate.Total += cost
	}
	estimate.Total = math.Round(estimate.Total*1e4) / 1e4
	estimate.Category = CostCategory(estimate.Total)
	return estimate
}
