package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

const DefaultTavilyURL = "https://api.tavily.com/search"

var ErrMissingAPIKey = errors.New("tavily: API key is missing")

// Config describes a Tavily client.
type Config struct {
	APIKey  string
	BaseURL string
	// Depth is Tavily's search_depth parameter (basic or advanced).
	Depth    string
	Timeout  time.Duration
	CacheTTL time.Duration
	Client   *http.Client
}

// Tavily calls the Tavily search API. Failed calls are not retried.
type Tavily struct {
	apiKey   string
	baseURL  string
	depth    string
	client   *http.Client
	cache    *ristretto.Cache
	cacheTTL time.Duration
}

// NewTavily constructs a Tavily search provider. A positive CacheTTL enables
// an in-process cache of identical queries.
func NewTavily(cfg Config) (*Tavily, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	t := &Tavily{
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		depth:    cfg.Depth,
		client:   cfg.Client,
		cacheTTL: cfg.CacheTTL,
	}
	if t.baseURL == "" {
		t.baseURL = DefaultTavilyURL
	}
	if t.depth == "" {
		t.depth = "basic"
	}
	if t.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		t.client = &http.Client{Timeout: timeout}
	}

	if cfg.CacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e4,
			MaxCost:     1 << 20,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("tavily: create cache: %w", err)
		}
		t.cache = cache
	}

	return t, nil
}

// Search posts a query to Tavily and returns at most maxResults results in
// the order Tavily ranked them.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	key := fmt.Sprintf("%s|%d|%s", t.depth, maxResults, query)
	if t.cache != nil {
		if cached, ok := t.cache.Get(key); ok {
			log.Printf("[search] cache hit for query=%q", query)
			return append([]Result(nil), cached.([]Result)...), nil
		}
	}

	body := map[string]any{
		"query":        query,
		"api_key":      t.apiKey,
		"search_depth": t.depth,
		"max_results":  maxResults,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("tavily decode: %w", err)
	}

	results := make([]Result, 0, len(response.Results))
	for _, r := range response.Results {
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content})
	}

	if t.cache != nil {
		t.cache.SetWithTTL(key, results, int64(len(results))+1, t.cacheTTL)
		t.cache.Wait()
	}

	log.Printf("[search] query=%q returned %d results", query, len(results))
	return results, nil
}

// Close releases the result cache.
func (t *Tavily) Close() {
	if t.cache != nil {
		t.cache.Close()
	}
}
