package main

import (
	"regexp"
	"strings"
	"time"
)

// Timeouts per model class. Reasoning models routinely spend minutes thinking
// before the first completion token.
const (
	StandardTimeout  = 120 * time.Second
	ReasoningTimeout = 300 * time.Second
)

// reasoningModels are known extended-reasoning models that emit a thinking
// phase, either via <think> style tags or a separate reasoning channel.
var reasoningModels = map[string]bool{
	"openai/o1":                         true,
	"openai/o1-preview":                 true,
	"openai/o1-mini":                    true,
	"openai/o3":                         true,
	"openai/o3-mini":                    true,
	"deepseek/deepseek-r1":              true,
	"deepseek/deepseek-reasoner":        true,
	"nex-agi/deepseek-v3.1-nex-n1:free": true,
}

var reasoningKeywords = []string{"o1", "o3", "deepseek-r", "reasoner", "reasoning"}

// IsReasoningModel reports whether a model uses extended reasoning. Checks
// the known set first, then keyword heuristics for versioned variants.
func IsReasoningModel(modelID string) bool {
	if reasoningModels[modelID] {
		return true
	}
	lower := strings.ToLower(modelID)
	for _, kw := range reasoningKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ModelTimeout returns the per-call deadline appropriate for a model.
func ModelTimeout(modelID string) time.Duration {
	if IsReasoningModel(modelID) {
		return ReasoningTimeout
	}
	return StandardTimeout
}

// SupportsSystemMessage reports whether a model accepts a system role
// message. OpenAI o-series reasoning models reject them, so personas for
// those seats are folded into the user prompt instead.
func SupportsSystemMessage(modelID string) bool {
	return !IsReasoningModel(modelID)
}

var thinkingTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<think>(.*?)</think>(.*)`),
	regexp.MustCompile(`(?s)<reasoning>(.*?)</reasoning>(.*)`),
	regexp.MustCompile(`(?s)<thought>(.*?)</thought>(.*)`),
}

var blankRunPattern = regexp.MustCompile(`\n\s*\n\s*\n+`)

// ShouldShowThinking reports whether a seat's thinking phase is worth
// rendering: reasoning model, and enough content to mean something. A couple
// of stray characters from tag extraction don't qualify.
func ShouldShowThinking(modelID, thinking string) bool {
	return IsReasoningModel(modelID) && len(thinking) > 50
}

// FormatThinking tidies raw thinking content for display by collapsing runs
// of blank lines.
func FormatThinking(thinking string) string {
	return strings.TrimSpace(blankRunPattern.ReplaceAllString(thinking, "\n\n"))
}

// SplitThinking separates a reasoning model's thinking phase from its final
// answer. Content without recognized tags comes back unchanged as the answer.
func SplitThinking(content string) (thinking, answer string) {
	if content == "" {
		return "", ""
	}
	for _, pattern := range thinkingTagPatterns {
		if m := pattern.FindStringSubmatch(content); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		}
	}
	return "", content
}
