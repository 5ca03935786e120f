package gap

import (
	"context"
	"fmt"
	"strings"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/provider"
)

type triageItem struct {
	Index           int     `json:"index"`
	Actionable      bool    `json:"actionable"`
	Confidence      float64 `json:"confidence"`
	Diagnosis       string  `json:"diagnosis"`
	SuggestedAction string  `json:"suggestedAction"`
}

type triageReply struct {
	Items []triageItem `json:"items"`
}

// Triaged pairs a Signal with the LLM's verdict on it.
type Triaged struct {
	Signal          Signal
	Confidence      float64
	Diagnosis       string
	SuggestedAction string
}

// confidenceGate returns the minimum confidence required to act on a
// signal for the given proactiveness dial (§4.H).
func confidenceGate(dial store.ProactivenessDial) float64 {
	switch dial {
	case store.DialConservative:
		return 0.7
	case store.DialAggressive:
		return 0.3
	default: // moderate
		return 0.5
	}
}

// Triage sends all Stage 1 signals to the LLM in one call and keeps only
// those the model marks actionable at or above the dial's confidence
// gate. An empty signal set or a provider/parse failure returns no
// triaged signals rather than erroring — Stage 2 is best-effort.
func Triage(ctx context.Context, llm provider.LLM, signals []Signal, dial store.ProactivenessDial) []Triaged {
	if len(signals) == 0 || llm == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString("Review these detected gap signals about a user and decide which warrant a proactive nudge.\n\n")
	for i, s := range signals {
		fmt.Fprintf(&b, "%d. [%s/%s] %s\n", i, s.Type, s.Severity, s.Description)
	}
	b.WriteString("\nReturn JSON: {\"items\": [{\"index\": 0, \"actionable\": bool, \"confidence\": 0-1, \"diagnosis\": \"...\", \"suggestedAction\": \"...\"}, ...]}")

	resp, err := llm.Complete(ctx, provider.CompleteRequest{
		Messages:    []provider.Message{{Role: "user", Content: b.String()}},
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil
	}
	var text string
	for _, blk := range resp.Content {
		if blk.Kind == provider.BlockText {
			text += blk.Text
		}
	}
	reply, ok := provider.ParseJSONReply[triageReply](text)
	if !ok {
		return nil
	}

	gate := confidenceGate(dial)
	var out []Triaged
	for _, item := range reply.Items {
		if item.Index < 0 || item.Index >= len(signals) {
			continue
		}
		if !item.Actionable || item.Confidence < gate {
			continue
		}
		out = append(out, Triaged{
			Signal:          signals[item.Index],
			Confidence:      item.Confidence,
			Diagnosis:       item.Diagnosis,
			SuggestedAction: item.SuggestedAction,
		})
	}
	return out
}
