// Package search implements the hybrid retrieval engine of §4.C: lexical
// BM25-style scoring, vector cosine similarity, prominence weighting, and
// an optional LLM rerank pass.
package search

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/cogmemerr"
	"github.com/kittclouds/cogmem/pkg/lexical"
	"github.com/kittclouds/cogmem/pkg/provider"
	"github.com/rs/zerolog"
)

// Profile selects the score-combination formula of §4.C step 4.
type Profile string

const (
	ProfileLexicalHeavy       Profile = "lexical-heavy"
	ProfileBalancedProminence Profile = "balanced+prominence"
	ProfilePureVector         Profile = "pure-vector"
)

// Store is the narrow slice of internal/store.SQLiteStore the engine
// needs: candidate retrieval plus the access-bump write-back of step 8.
type Store interface {
	GetMemoriesByUser(userID string, opts store.MemoryQueryOptions) ([]store.Memory, error)
	UpdateMemory(id string, patch store.MemoryPatch) error
}

// Options configures a single search call (§4.C "Inputs").
type Options struct {
	UserID            string
	TopK              int
	MinScore          float64
	IncludeSuperseded bool
	CategoryFilter    *store.Category
	EnableRerank      bool
	Profile           Profile
	LexicalWeight     float64 // used by ProfileLexicalHeavy's L_rank term (1-VectorWeight by default)
	VectorWeight      float64
}

// Result pairs a memory with its combined relevance score.
type Result struct {
	Memory store.Memory
	Score  float64
}

// Engine runs hybrid search over a Store, optionally backed by an
// Embedder and a reranking LLM.
type Engine struct {
	store    Store
	embedder provider.Embedder
	llm      provider.LLM
	log      zerolog.Logger
}

// New builds a search Engine. embedder and llm may be nil: without an
// embedder, search degrades to lexical-only (§4.B); without an llm,
// EnableRerank is a no-op.
func New(st Store, embedder provider.Embedder, llm provider.LLM, log zerolog.Logger) *Engine {
	return &Engine{store: st, embedder: embedder, llm: llm, log: log}
}

// Search executes the 8-step algorithm of §4.C exactly.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.Profile == "" {
		opts.Profile = ProfileBalancedProminence
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.VectorWeight == 0 && opts.LexicalWeight == 0 {
		opts.VectorWeight, opts.LexicalWeight = 0.7, 0.3
	}

	// Step 1: retrieve candidates.
	queryOpts := store.MemoryQueryOptions{}
	if !opts.IncludeSuperseded {
		isLatest := true
		queryOpts.IsLatest = &isLatest
	}
	if opts.CategoryFilter != nil {
		queryOpts.Category = opts.CategoryFilter
	}
	candidates, err := e.store.GetMemoriesByUser(opts.UserID, queryOpts)
	if err != nil {
		return nil, cogmemerr.NewStore("search.getMemoriesByUser", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Step 2: lexical score, rank-normalized.
	docs := make(map[string]string, len(candidates))
	for _, m := range candidates {
		docs[m.ID] = m.Content
	}
	corpus := lexical.BuildCorpus(docs)
	queryStems := lexical.Stems(query)

	rawLexical := make(map[string]float64, len(candidates))
	if len(queryStems) > 0 {
		for _, m := range candidates {
			rawLexical[m.ID] = corpus.Score(queryStems, lexical.StemCounts(m.Content))
		}
	}
	lexRank := lexical.RankNormalize(rawLexical)

	// Step 3: vector score.
	var queryVec []float32
	if e.embedder != nil && query != "" {
		v, err := e.embedder.Embed(ctx, query)
		if err == nil {
			queryVec = v
		} else {
			e.log.Warn().Err(err).Msg("search: query embed failed, degrading to lexical-only")
		}
	}

	type scored struct {
		m store.Memory
		s float64
	}
	out := make([]scored, 0, len(candidates))
	for _, m := range candidates {
		l := lexRank[m.ID]
		var v float64
		if queryVec != nil && len(m.Embedding) > 0 {
			v = cosine(queryVec, m.Embedding)
		}

		// Step 4: combine per profile.
		var combined float64
		switch opts.Profile {
		case ProfileLexicalHeavy:
			combined = opts.VectorWeight*v + opts.LexicalWeight*l
		case ProfilePureVector:
			combined = v
		default: // balanced+prominence
			combined = (0.5*l + 0.5*v) * clamp01(m.Prominence)
		}
		if math.IsNaN(combined) || combined < 0 {
			combined = 0
		}
		out = append(out, scored{m: m, s: combined})
	}

	// Step 5: drop below minScore.
	filtered := out[:0:0]
	for _, sc := range out {
		if sc.s >= opts.MinScore {
			filtered = append(filtered, sc)
		}
	}

	// Tie-break: importance desc, updatedAt desc, id asc.
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].s != filtered[j].s {
			return filtered[i].s > filtered[j].s
		}
		if filtered[i].m.Importance != filtered[j].m.Importance {
			return filtered[i].m.Importance > filtered[j].m.Importance
		}
		if filtered[i].m.UpdatedAt != filtered[j].m.UpdatedAt {
			return filtered[i].m.UpdatedAt > filtered[j].m.UpdatedAt
		}
		return filtered[i].m.ID < filtered[j].m.ID
	})

	// Step 6: truncate.
	if len(filtered) > opts.TopK {
		filtered = filtered[:opts.TopK]
	}

	results := make([]Result, len(filtered))
	for i, sc := range filtered {
		results[i] = Result{Memory: sc.m, Score: sc.s}
	}

	// Step 7: optional LLM rerank.
	if opts.EnableRerank && e.llm != nil && len(results) > 0 {
		reranked, err := e.rerank(ctx, query, results)
		if err != nil {
			e.log.Warn().Err(err).Msg("search: rerank failed, keeping original order")
		} else {
			results = reranked
		}
	}

	// Step 8: bump accessCount/lastAccessed.
	now := nowMs()
	for _, r := range results {
		count := r.Memory.AccessCount + 1
		if err := e.store.UpdateMemory(r.Memory.ID, store.MemoryPatch{
			AccessCount:  &count,
			LastAccessed: &now,
		}); err != nil {
			e.log.Warn().Err(err).Str("memoryId", r.Memory.ID).Msg("search: access bump failed")
		}
	}

	return results, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	v := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if v < 0 {
		return 0
	}
	return v
}

func nowMs() int64 { return time.Now().UnixMilli() }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
