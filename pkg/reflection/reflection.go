// Package reflection implements the self-reflection sub-step of §4.G:
// digesting recent session summaries into insight memories and an
// atomically-written persona document (SOUL.md).
package reflection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/provider"
	"github.com/rs/zerolog"
)

const DefaultPersonaFilename = "SOUL.md"

// Store is the slice of internal/store.SQLiteStore reflection needs.
type Store interface {
	SessionSummariesSince(userID string, cutoffMs int64) ([]store.SessionSummary, error)
	AddMemory(m store.Memory) (store.Memory, error)
}

type insightItem struct {
	Content string   `json:"content"`
	Topics  []string `json:"topics"`
}

type digestReply struct {
	Insights   []insightItem `json:"insights"`
	Principles []string      `json:"principles"`
}

// Engine runs one reflection pass for a user.
type Engine struct {
	store          Store
	llm            provider.LLM
	workspaceRoot  string
	personaFile    string
	log            zerolog.Logger
}

// New builds a reflection Engine. workspaceRoot empty disables the whole
// pass per §4.G ("run... when a workspace filesystem root is configured").
func New(st Store, llm provider.LLM, workspaceRoot string, log zerolog.Logger) *Engine {
	return &Engine{store: st, llm: llm, workspaceRoot: workspaceRoot, personaFile: DefaultPersonaFilename, log: log}
}

// Summary reports one pass's outcome.
type Summary struct {
	Ran            bool
	InsightsStored int
	PersonaWritten bool
}

// Run executes the reflection pass for userID as of nowMs. Per §4.G, it
// is a silent no-op (Ran=false) when no workspace root is configured or
// no session summaries exist in the last 24 hours; a parse failure on
// either LLM call also results in that half being skipped rather than
// surfacing an error.
func (e *Engine) Run(ctx context.Context, userID string, nowMs int64) Summary {
	var sum Summary
	if e.workspaceRoot == "" {
		return sum
	}

	cutoff := nowMs - 24*60*60*1000
	summaries, err := e.store.SessionSummariesSince(userID, cutoff)
	if err != nil {
		e.log.Error().Err(err).Msg("reflection: failed to load session summaries")
		return sum
	}
	if len(summaries) == 0 {
		return sum
	}
	if len(summaries) > 50 {
		summaries = summaries[:50]
	}
	sum.Ran = true

	persona := e.readPersona()

	digest, ok := e.digest(ctx, summaries, persona)
	if ok {
		sessionIDs := make([]string, len(summaries))
		for i, s := range summaries {
			sessionIDs[i] = s.SessionID
		}
		for _, insight := range digest.Insights {
			m := store.Memory{
				UserID:      userID,
				Content:     insight.Content,
				Category:    store.CategoryInsight,
				MemoryType:  store.MemoryTypeDerived,
				Importance:  7,
				Confidence:  0.85,
				IsLatest:    true,
				Source:      store.SourceSystem,
				LearnedFrom: store.LearnedFromSelfReflection,
				Prominence:  0.5,
				Metadata: map[string]any{
					"topics":     insight.Topics,
					"sessionIds": sessionIDs,
				},
			}
			if _, err := e.store.AddMemory(m); err != nil {
				e.log.Warn().Err(err).Msg("reflection: failed to store insight memory")
				continue
			}
			sum.InsightsStored++
		}
	}

	newPersona, ok := e.distillPersona(ctx, summaries, persona, digest)
	if ok {
		if err := e.writePersonaAtomic(newPersona); err != nil {
			e.log.Warn().Err(err).Msg("reflection: persona write failed")
		} else {
			sum.PersonaWritten = true
		}
	}

	return sum
}

func (e *Engine) readPersona() string {
	data, err := os.ReadFile(filepath.Join(e.workspaceRoot, e.personaFile))
	if err != nil {
		return ""
	}
	return string(data)
}

func (e *Engine) digest(ctx context.Context, summaries []store.SessionSummary, persona string) (digestReply, bool) {
	var b strings.Builder
	b.WriteString("Recent session summaries:\n")
	for i, s := range summaries {
		fmt.Fprintf(&b, "%d. (%s) %s\n", i+1, strings.Join(s.Topics, ", "), s.Summary)
	}
	if persona != "" {
		b.WriteString("\nCurrent persona notes:\n")
		b.WriteString(persona)
	}
	b.WriteString("\n\nIdentify durable insights worth remembering long-term and any behavioral principles to adopt. ")
	b.WriteString("Return JSON: {\"insights\": [{\"content\": \"...\", \"topics\": [\"...\"]}], \"principles\": [\"...\"]}")

	resp, err := e.llm.Complete(ctx, provider.CompleteRequest{
		Messages:    []provider.Message{{Role: "user", Content: b.String()}},
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("reflection: digest llm call failed")
		return digestReply{}, false
	}
	var text string
	for _, blk := range resp.Content {
		if blk.Kind == provider.BlockText {
			text += blk.Text
		}
	}
	return provider.ParseJSONReply[digestReply](text)
}

func (e *Engine) distillPersona(ctx context.Context, summaries []store.SessionSummary, persona string, digest digestReply) (string, bool) {
	var b strings.Builder
	b.WriteString("Current persona document:\n")
	if persona == "" {
		b.WriteString("(none yet)\n")
	} else {
		b.WriteString(persona)
		b.WriteString("\n")
	}
	if len(digest.Principles) > 0 {
		b.WriteString("\nNewly adopted principles:\n")
		for _, p := range digest.Principles {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	b.WriteString("\nWrite an updated persona document in markdown, preserving durable traits and folding in the new principles. Return only the markdown, no commentary.")

	resp, err := e.llm.Complete(ctx, provider.CompleteRequest{
		Messages:    []provider.Message{{Role: "user", Content: b.String()}},
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("reflection: persona distillation llm call failed")
		return "", false
	}
	var text string
	for _, blk := range resp.Content {
		if blk.Kind == provider.BlockText {
			text += blk.Text
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, true
}

// writePersonaAtomic writes to a temp file in the same directory then
// renames over the target, so readers never observe a partial write.
func (e *Engine) writePersonaAtomic(content string) error {
	target := filepath.Join(e.workspaceRoot, e.personaFile)
	tmp, err := os.CreateTemp(e.workspaceRoot, ".soul-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, target)
}
