// Package search adapts web search providers into a ranked list of text
// snippets.
package search

// Result is a single item returned by a search provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
