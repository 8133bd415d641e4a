package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// FetcherTimeout is the HTTP timeout for attachment fetches
	FetcherTimeout = 30 * time.Second

	// FetcherUserAgent identifies attachment fetches upstream
	FetcherUserAgent = "LLM-Council-Fetcher/1.0"

	// MaxAttachmentLength caps extracted text so a single page cannot blow
	// up every council prompt
	MaxAttachmentLength = 50_000
)

var whitespacePattern = regexp.MustCompile(`[ \t]*\n[ \t\n]*`)

// FetchURLContent fetches a web page and extracts its readable text for use
// as a message attachment. Scripts, styles, and navigation chrome are
// stripped; whitespace is collapsed; output is length-capped.
func FetchURLContent(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	reqCtx, cancel := context.WithTimeout(ctx, FetcherTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", FetcherUserAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("URL returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Strip non-content elements before extracting text
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	// Prefer semantic content containers, fall back to the whole body
	var text string
	for _, selector := range []string{"main", "article", "body"} {
		selection := doc.Find(selector)
		if selection.Length() > 0 {
			text = selection.Text()
			break
		}
	}

	text = whitespacePattern.ReplaceAllString(strings.TrimSpace(text), "\n")
	if text == "" {
		return "", fmt.Errorf("no readable content found")
	}
	if len(text) > MaxAttachmentLength {
		text = text[:MaxAttachmentLength]
	}
	return text, nil
}
