package sites

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// Client is the shared HTTP layer for all site adapters. It rotates
// user agents and parses responses into goquery documents. Retries and
// pacing are not its concern; the fetch executor owns those.
type Client struct {
	http       *http.Client
	userAgents []string
}

func NewClient(userAgents []string) *Client {
	if len(userAgents) == 0 {
		userAgents = []string{
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		}
	}
	return &Client{
		// Per-attempt timeouts come from the request context.
		http:       &http.Client{},
		userAgents: userAgents,
	}
}

// GetDocument fetches a URL and parses the body. Any non-2xx status is an
// error so the executor's retry policy can treat it as transient.
func (c *Client) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgents[rand.Intn(len(c.userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response body: %w", err)
	}

	return doc, nil
}
