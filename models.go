package main

import "time"

// CouncilMember is one model seat on the council, with an optional persona
// injected as a system message in Stage 1 and Stage 2.5.
type CouncilMember struct {
	Model   string `json:"model" yaml:"model"`
	Persona string `json:"persona,omitempty" yaml:"persona,omitempty"`
}

// TokenUsage holds token counters for one or more API calls.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ModelResult is the outcome of one gateway call for one seat. Failures are
// carried in Err rather than as a Go error, so a failed seat is a value the
// pipeline keeps counting instead of a fault that aborts the exchange.
type ModelResult struct {
	Model            string     `json:"model"`
	Response         string     `json:"response"`
	Thinking         string     `json:"thinking,omitempty"`
	IsReasoningModel bool       `json:"is_reasoning_model,omitempty"`
	Usage            TokenUsage `json:"usage"`
	Cost             float64    `json:"cost"`
	Persona          string     `json:"persona,omitempty"`
	IsRebuttal       bool       `json:"is_rebuttal,omitempty"`
	Err              string     `json:"error,omitempty"`
}

// Failed reports whether this seat abstained (call errored or timed out).
func (r *ModelResult) Failed() bool {
	return r == nil || r.Err != ""
}

// PeerReview is one reviewer's Stage-2 submission: the full critique text and
// the parsed best-to-worst label ordering extracted from it.
type PeerReview struct {
	Model            string     `json:"model"`
	Ranking          string     `json:"ranking"`
	Thinking         string     `json:"thinking,omitempty"`
	IsReasoningModel bool       `json:"is_reasoning_model,omitempty"`
	ParsedRanking    []string   `json:"parsed_ranking"`
	Usage            TokenUsage `json:"usage"`
	Cost             float64    `json:"cost"`
	Err              string     `json:"error,omitempty"`
}

// AggregateRanking is the consensus position of one model's answer, derived
// from every peer review that ranked it.
type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
	Abstentions   int     `json:"abstentions"`
}

// Metadata carries the de-anonymized ranking data and the cost rollup for one
// completed exchange.
type Metadata struct {
	LabelToModel      map[string]string  `json:"label_to_model"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
	TotalCost         float64            `json:"total_cost"`
	TotalTokens       TokenUsage         `json:"total_tokens"`
}

// Attachment is a named blob of text included alongside the user query,
// typically produced by the fetch-url endpoint.
type Attachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// Message is a single entry in a conversation. User messages carry Content;
// assistant messages carry the full deliberation record: original answers
// (Stage1), peer reviews (Stage2), superseding rebuttal answers (Stage25),
// and the chairman synthesis (Stage3).
type Message struct {
	Role        string        `json:"role"`
	Content     string        `json:"content,omitempty"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	Stage1      []ModelResult `json:"stage1,omitempty"`
	Stage2      []PeerReview  `json:"stage2,omitempty"`
	Stage25     []ModelResult `json:"stage2_5,omitempty"`
	Stage3      *ModelResult  `json:"stage3,omitempty"`
	Metadata    *Metadata     `json:"metadata,omitempty"`
}

// Conversation is a full conversation with all messages plus the council
// composition that was active when it was created.
type Conversation struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Title     string          `json:"title"`
	Messages  []Message       `json:"messages"`
	Council   []CouncilMember `json:"council,omitempty"`
	Chairman  string          `json:"chairman,omitempty"`
}

// ConversationMetadata represents conversation list metadata
type ConversationMetadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

// ChatMessage is one message in an outbound chat-completions payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenRouterRequest represents a request to the OpenRouter API
type OpenRouterRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// OpenRouterAPIResponse represents the full API response structure
type OpenRouterAPIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// SendMessageRequest represents a request to send a message
type SendMessageRequest struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SendMessageResponse represents the response after sending a message
type SendMessageResponse struct {
	Stage1   []ModelResult `json:"stage1"`
	Stage2   []PeerReview  `json:"stage2"`
	Stage25  []ModelResult `json:"stage2_5"`
	Stage3   ModelResult   `json:"stage3"`
	Metadata Metadata      `json:"metadata"`
}

// ConfigUpdateRequest represents a request to replace the council composition
type ConfigUpdateRequest struct {
	Members  []CouncilMember `json:"members" binding:"required"`
	Chairman string          `json:"chairman" binding:"required"`
}

// CostEstimateRequest represents a pre-flight cost estimate request
type CostEstimateRequest struct {
	Content string `json:"content" binding:"required"`
}
