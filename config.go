package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Configuration constants
var (
	// OpenRouterAPIKey is the API key for OpenRouter
	OpenRouterAPIKey string

	// OpenRouterAPIURL is the chat-completions endpoint
	OpenRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"

	// OpenRouterModelsURL is the model-catalog endpoint
	OpenRouterModelsURL = "https://openrouter.ai/api/v1/models"

	// DataDir is the directory for conversation storage
	DataDir = "data/conversations"

	// TitleGenTimeout bounds background title generation
	TitleGenTimeout = 30 * time.Second

	// RankingExtractTimeout bounds the fast-model ranking extraction used
	// when a review's FINAL RANKING section resists regex parsing
	RankingExtractTimeout = 20 * time.Second

	// CORS allowed origins (configurable via environment)
	// In development (empty/default), allows any localhost port
	// In production, set CORS_ALLOWED_ORIGINS environment variable
	CORSAllowedOrigins = []string{}

	// MaxRequestBodySize is the maximum allowed request body size (1MB)
	MaxRequestBodySize int64 = 1 << 20

	// ModelCatalogTTL is the time-to-live for the model catalog cache
	ModelCatalogTTL = 5 * time.Minute
)

// CouncilConfig defines the council composition and operating limits. Loaded
// from a YAML file so deployments can swap seats, personas, and price
// overrides without a rebuild.
type CouncilConfig struct {
	Members    []CouncilMember `json:"members" yaml:"members"`
	Chairman   string          `json:"chairman" yaml:"chairman"`
	TitleModel string          `json:"title_model" yaml:"title_model"`
	// MaxInFlight caps total concurrent outbound calls across all exchanges.
	MaxInFlight int `json:"max_in_flight" yaml:"max_in_flight"`
	// AllowedModels, when non-empty, restricts which model ids may be seated.
	AllowedModels []string              `json:"allowed_models,omitempty" yaml:"allowed_models,omitempty"`
	Prices        map[string]ModelPrice `json:"prices,omitempty" yaml:"prices,omitempty"`
}

// DefaultCouncilConfig is used when no council config file is present.
func DefaultCouncilConfig() CouncilConfig {
	return CouncilConfig{
		Members: []CouncilMember{
			{Model: "openai/gpt-5.2"},
			{Model: "google/gemini-3-pro-preview"},
			{Model: "anthropic/claude-sonnet-4.5"},
			{Model: "x-ai/grok-4"},
		},
		Chairman:    "google/gemini-3-pro-preview",
		TitleModel:  "google/gemini-3-flash-preview",
		MaxInFlight: 16,
	}
}

// LoadCouncilConfig reads a council config YAML file, falling back to the
// defaults for anything unset.
func LoadCouncilConfig(path string) (CouncilConfig, error) {
	cfg := DefaultCouncilConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultCouncilConfig(), err
	}

	if cfg.Chairman == "" {
		cfg.Chairman = DefaultCouncilConfig().Chairman
	}
	if cfg.TitleModel == "" {
		cfg.TitleModel = DefaultCouncilConfig().TitleModel
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultCouncilConfig().MaxInFlight
	}
	return cfg, nil
}

// LoadConfig loads configuration from environment variables and the optional
// council config file. Returns the council configuration.
func LoadConfig() CouncilConfig {
	// Load .env file - try multiple locations
	envLocations := []string{
		".env",    // Current directory
		"../.env", // Parent directory
	}

	envLoaded := false
	for _, envPath := range envLocations {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			if err := godotenv.Load(absPath); err == nil {
				log.Printf("Loaded .env from: %s", absPath)
				envLoaded = true
				break
			}
		}
	}
	if !envLoaded {
		log.Printf("Warning: .env file not found in any expected location")
	}

	// Get OpenRouter API key
	OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	if OpenRouterAPIKey == "" {
		log.Fatal("OPENROUTER_API_KEY environment variable is required")
	}

	// Load CORS origins from environment if provided
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		CORSAllowedOrigins = []string{}
		for _, origin := range strings.Split(corsOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				CORSAllowedOrigins = append(CORSAllowedOrigins, origin)
			}
		}
	}

	if dir := os.Getenv("DATA_DIR"); dir != "" {
		DataDir = dir
	}

	// Council composition from YAML, if configured
	cfg := DefaultCouncilConfig()
	if path := os.Getenv("COUNCIL_CONFIG"); path != "" {
		loaded, err := LoadCouncilConfig(path)
		if err != nil {
			log.Printf("Warning: failed to load council config %s: %v (using defaults)", path, err)
		} else {
			cfg = loaded
			log.Printf("Loaded council config from: %s", path)
		}
	}

	log.Println("Configuration loaded successfully")
	return cfg
}
