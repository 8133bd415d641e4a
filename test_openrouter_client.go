//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/semaphore"
)

// Simple test program to verify the OpenRouter gateway works
// Run with: go run test_openrouter_client.go config.go models.go openrouter.go pricing.go reasoning.go barrier.go
func main() {
	fmt.Println("=== OpenRouter Gateway Test ===")

	// Load .env from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENROUTER_API_KEY environment variable is required")
	}

	client := NewClient(apiKey, OpenRouterAPIURL, NewPriceTable(nil))
	messages := []ChatMessage{
		{Role: "user", Content: "Say hello in exactly 5 words."},
	}
	ctx := context.Background()

	// Test 1: Single model query
	fmt.Println("Test 1: Querying single model (gemini-3-flash-preview)...")
	start := time.Now()
	result := client.Query(ctx, "google/gemini-3-flash-preview", messages, QueryOptions{Timeout: 30 * time.Second})
	elapsed := time.Since(start)

	if result.Failed() {
		log.Fatalf("Single query failed: %s", result.Err)
	}
	fmt.Printf("Success! (%.2fs, $%.6f)\n", elapsed.Seconds(), result.Cost)
	fmt.Printf("Response: %s\n\n", result.Response)

	// Test 2: Parallel fan-out through the barrier
	fmt.Println("Test 2: Fanning out to multiple models...")
	testModels := []string{
		"google/gemini-3-flash-preview",
		"anthropic/claude-sonnet-4.5",
		"x-ai/grok-4.1-fast",
	}

	b := NewBarrier(semaphore.NewWeighted(8), 0)
	start = time.Now()
	results := b.FanOut(ctx, testModels, func(tctx context.Context, seat int, model string) *ModelResult {
		return client.Query(tctx, model, messages, QueryOptions{})
	})
	elapsed = time.Since(start)

	fmt.Printf("Done in %.2fs\n\nResults:\n", elapsed.Seconds())
	successCount := 0
	for _, r := range results {
		if r.Failed() {
			fmt.Printf("  FAIL %s: %s\n", r.Model, r.Err)
			continue
		}
		fmt.Printf("  OK   %s: %s\n", r.Model, r.Response)
		successCount++
	}
	fmt.Printf("\n=== Test Complete: %d/%d models succeeded ===\n", successCount, len(testModels))
}
