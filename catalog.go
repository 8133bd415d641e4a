package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// CatalogModel is one entry of the available-model catalog shown to clients.
type CatalogModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
}

// CatalogTimeout bounds the catalog fetch; this is a UI nicety, not part of
// a deliberation.
const CatalogTimeout = 10 * time.Second

// FetchAvailableModels fetches the model catalog from OpenRouter and
// normalizes it: provider derived from the id prefix, sorted by name.
func FetchAvailableModels(ctx context.Context, modelsURL string) ([]CatalogModel, error) {
	reqCtx, cancel := context.WithTimeout(ctx, CatalogTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", modelsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read models response: %w", err)
	}

	var payload struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	models := make([]CatalogModel, 0, len(payload.Data))
	for _, m := range payload.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, CatalogModel{
			ID:          m.ID,
			Name:        name,
			Provider:    providerFromID(m.ID),
			Description: m.Description,
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].Name < models[j].Name
	})
	return models, nil
}

// providerFromID derives a display provider from a model id prefix, e.g.
// "anthropic/claude-sonnet-4.5" -> "Anthropic".
func providerFromID(modelID string) string {
	prefix, _, found := strings.Cut(modelID, "/")
	if !found || prefix == "" {
		return "Unknown"
	}
	return strings.ToUpper(prefix[:1]) + prefix[1:]
}
