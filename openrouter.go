package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// QueryOptions tunes one gateway call.
type QueryOptions struct {
	// Timeout is the per-call deadline. Zero selects the model-class default.
	Timeout time.Duration
	// Retries is the number of extra attempts on transient failures
	// (network errors and 5xx responses).
	Retries int
}

// Client is the model gateway: a chat-completions client for OpenRouter that
// reports every failure as a ModelResult rather than a Go error, so one bad
// seat never takes down a stage.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	pricing *PriceTable
}

// NewClient creates a gateway client. The pricing table is used to attach a
// cost to every successful call.
func NewClient(apiKey, baseURL string, pricing *PriceTable) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{},
		pricing: pricing,
	}
}

// Query sends one chat-completions request to a model. The returned
// ModelResult is never nil: on any failure (network, timeout, non-2xx,
// malformed or empty completion) it carries Err and an empty response, which
// downstream stages treat as "this seat abstained".
func (c *Client) Query(ctx context.Context, model string, messages []ChatMessage, opts QueryOptions) *ModelResult {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = ModelTimeout(model)
	}

	result := &ModelResult{
		Model:            model,
		IsReasoningModel: IsReasoningModel(model),
	}

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				result.Err = fmt.Sprintf("request canceled: %v", ctx.Err())
				return result
			}
		}

		api, retryable, err := c.doRequest(ctx, model, messages, timeout)
		if err != nil {
			lastErr = err
			if retryable && attempt < opts.Retries {
				log.Printf("Transient error querying model %s (attempt %d): %v", model, attempt+1, err)
				continue
			}
			break
		}

		if len(api.Choices) == 0 {
			lastErr = fmt.Errorf("no choices in response")
			break
		}
		content := api.Choices[0].Message.Content
		if content == "" {
			lastErr = fmt.Errorf("empty completion")
			break
		}

		thinking, answer := "", content
		if result.IsReasoningModel {
			thinking, answer = SplitThinking(content)
		}

		result.Response = answer
		result.Thinking = thinking
		result.Usage = TokenUsage{
			PromptTokens:     api.Usage.PromptTokens,
			CompletionTokens: api.Usage.CompletionTokens,
			TotalTokens:      api.Usage.TotalTokens,
		}
		result.Cost = c.pricing.Cost(model, result.Usage.PromptTokens, result.Usage.CompletionTokens)
		return result
	}

	log.Printf("Error querying model %s: %v", model, lastErr)
	result.Err = lastErr.Error()
	return result
}

// doRequest performs one HTTP round trip. The second return value reports
// whether a failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, model string, messages []ChatMessage, timeout time.Duration) (*OpenRouterAPIResponse, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := OpenRouterRequest{
		Model:    model,
		Messages: messages,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, "POST", c.baseURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= 500, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var api OpenRouterAPIResponse
	if err := json.Unmarshal(bodyBytes, &api); err != nil {
		return nil, false, fmt.Errorf("failed to parse response: %w", err)
	}
	return &api, false, nil
}
