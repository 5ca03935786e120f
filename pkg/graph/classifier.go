package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/provider"
)

// Verdict is the classifier's per-fact outcome (§4.D).
type Verdict string

const (
	VerdictNew     Verdict = "NEW"
	VerdictUpdates Verdict = "UPDATES"
	VerdictExtends Verdict = "EXTENDS"
)

// Classification is the classifier's decision for one new fact.
type Classification struct {
	Verdict    Verdict
	TargetID   string
	Confidence float64
}

type classifyItem struct {
	Index      int     `json:"index"`
	Verdict    string  `json:"verdict"`
	TargetID   string  `json:"targetId,omitempty"`
	Confidence float64 `json:"confidence"`
}

type classifyReply struct {
	Items []classifyItem `json:"items"`
}

// Classifier calls an LLM once per batch to classify new facts against
// their candidate existing facts as NEW / UPDATES(target) / EXTENDS(target).
type Classifier struct {
	llm provider.LLM
}

// NewClassifier builds a Classifier. llm must not be nil; callers without
// an LLM configured should skip classification and treat every fact as NEW.
func NewClassifier(llm provider.LLM) *Classifier {
	return &Classifier{llm: llm}
}

// ClassifyBatch classifies each newFact against its own candidate set
// (assembled by the caller, typically via CandidateIndex.Candidates). On
// any parse or provider failure the whole batch defaults to NEW with
// confidence 0.5, per §4.D's documented fallback.
func (c *Classifier) ClassifyBatch(ctx context.Context, newFacts []string, candidates [][]store.Memory) ([]Classification, error) {
	if len(newFacts) != len(candidates) {
		return nil, fmt.Errorf("graph: newFacts and candidates length mismatch")
	}

	fallback := make([]Classification, len(newFacts))
	for i := range fallback {
		fallback[i] = Classification{Verdict: VerdictNew, Confidence: 0.5}
	}
	if len(newFacts) == 0 {
		return fallback, nil
	}

	var prompt strings.Builder
	prompt.WriteString("Classify each new fact against its candidate existing facts about the same entity.\n")
	prompt.WriteString("For each, decide NEW (unrelated to any candidate), UPDATES(targetId) (supersedes a candidate), or EXTENDS(targetId) (adds detail without superseding).\n\n")
	for i, fact := range newFacts {
		fmt.Fprintf(&prompt, "Fact %d: %s\n", i, fact)
		if len(candidates[i]) == 0 {
			prompt.WriteString("  Candidates: (none)\n")
			continue
		}
		prompt.WriteString("  Candidates:\n")
		for _, cand := range candidates[i] {
			fmt.Fprintf(&prompt, "    [%s] %s\n", cand.ID, truncate(cand.Content, 160))
		}
	}
	prompt.WriteString("\nReturn JSON: {\"items\": [{\"index\": 0, \"verdict\": \"NEW|UPDATES|EXTENDS\", \"targetId\": \"...\", \"confidence\": 0.0}, ...]}")

	resp, err := c.llm.Complete(ctx, provider.CompleteRequest{
		Messages:    []provider.Message{{Role: "user", Content: prompt.String()}},
		Temperature: 0,
		MaxTokens:   1024,
	})
	if err != nil {
		return fallback, nil
	}

	var text string
	for _, b := range resp.Content {
		if b.Kind == provider.BlockText {
			text += b.Text
		}
	}

	reply, ok := provider.ParseJSONReply[classifyReply](text)
	if !ok {
		return fallback, nil
	}

	out := make([]Classification, len(newFacts))
	copy(out, fallback)
	for _, item := range reply.Items {
		if item.Index < 0 || item.Index >= len(out) {
			continue
		}
		v := Verdict(strings.ToUpper(item.Verdict))
		switch v {
		case VerdictNew, VerdictUpdates, VerdictExtends:
		default:
			continue
		}
		if (v == VerdictUpdates || v == VerdictExtends) && item.TargetID == "" {
			continue
		}
		out[item.Index] = Classification{Verdict: v, TargetID: item.TargetID, Confidence: item.Confidence}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
