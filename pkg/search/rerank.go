package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/kittclouds/cogmem/pkg/provider"
)

type rerankReply struct {
	Order []string `json:"order"`
}

// rerank sends the current top-K plus the query to the LLM and accepts
// its returned ordering (§4.C step 7). Memories the model's reply omits
// or misnames keep their original relative order, appended after any it
// does name — a malformed or partial reply degrades gracefully instead
// of dropping results.
func (e *Engine) rerank(ctx context.Context, query string, results []Result) ([]Result, error) {
	byID := make(map[string]Result, len(results))
	var listing strings.Builder
	for i, r := range results {
		byID[r.Memory.ID] = r
		fmt.Fprintf(&listing, "%d. [%s] %s\n", i+1, r.Memory.ID, truncate(r.Memory.Content, 160))
	}

	prompt := fmt.Sprintf(
		"Query: %s\n\nCandidate memories:\n%s\nReturn the memory ids ordered from most to least relevant to the query as JSON: {\"order\": [\"id1\", \"id2\", ...]}",
		query, listing.String(),
	)

	resp, err := e.llm.Complete(ctx, provider.CompleteRequest{
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, err
	}

	var text string
	for _, b := range resp.Content {
		if b.Kind == provider.BlockText {
			text += b.Text
		}
	}

	reply, ok := provider.ParseJSONReply[rerankReply](text)
	if !ok {
		return nil, fmt.Errorf("search: rerank reply did not parse")
	}

	seen := make(map[string]bool, len(reply.Order))
	out := make([]Result, 0, len(results))
	for _, id := range reply.Order {
		if r, found := byID[id]; found && !seen[id] {
			out = append(out, r)
			seen[id] = true
		}
	}
	for _, r := range results {
		if !seen[r.Memory.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
