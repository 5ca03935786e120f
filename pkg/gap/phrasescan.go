package gap

import (
	"strings"

	"github.com/coregx/ahocorasick"
	"github.com/kittclouds/cogmem/internal/store"
)

// PhraseScanner is a supplemental soft-signal scanner (SPEC_FULL.md §4.H):
// an Aho-Corasick automaton over configured hedging/deferral phrases
// ("follow up", "circle back", "tbd", ...), additive to — never a
// replacement for — the "?" unresolved-threads rule. Grounded on the
// teacher's pkg/implicit-matcher dual-purpose automaton, here applied to
// session summary text instead of entity surface forms.
type PhraseScanner struct {
	ac      *ahocorasick.Automaton
	phrases []string
}

// NewPhraseScanner compiles the automaton once per configured phrase
// list; callers typically build one per gardener instance and reuse it.
func NewPhraseScanner(phrases []string) (*PhraseScanner, error) {
	if len(phrases) == 0 {
		return &PhraseScanner{}, nil
	}
	normalized := make([]string, len(phrases))
	for i, p := range phrases {
		normalized[i] = strings.ToLower(p)
	}
	ac, err := ahocorasick.NewBuilder().
		AddStrings(normalized).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	return &PhraseScanner{ac: ac, phrases: normalized}, nil
}

// Scan emits a low-severity signal per session summary whose text
// contains a configured deferral phrase, supplementing UnresolvedThreads.
func (p *PhraseScanner) Scan(summaries []store.SessionSummary) []Signal {
	if p.ac == nil {
		return nil
	}
	var out []Signal
	for _, s := range summaries {
		haystack := []byte(strings.ToLower(s.Summary))
		matches := p.ac.FindAllOverlapping(haystack)
		if len(matches) == 0 {
			continue
		}
		out = append(out, Signal{
			Type: SignalPhrase, Severity: SeverityLow,
			Description: "session summary contains a deferral phrase",
			Context:     map[string]any{"sessionId": s.SessionID, "matchCount": len(matches)},
			SourceID:    s.ID,
		})
	}
	return out
}
