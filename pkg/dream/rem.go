package dream

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/config"
	"github.com/kittclouds/cogmem/pkg/graph"
	"github.com/kittclouds/cogmem/pkg/provider"
)

// REMSummary reports one exploration pass's outcome.
type REMSummary struct {
	SeedsExplored int
	Connections   int
	Failures      int
}

type judgeReply struct {
	Novelty      int     `json:"novelty"`
	Plausibility int     `json:"plausibility"`
	Usefulness   int     `json:"usefulness"`
	Connection   string  `json:"connection"`
	Confidence   float64 `json:"confidence"`
	NoConnection bool    `json:"noConnection"`
}

// RunREM samples seeds, spreads activation from each, and for every
// survivor that isn't already directly connected, asks the LLM to judge
// whether a novel connection exists (§4.F REM). REM never creates
// memories and never supersedes; it only adds EXTENDS relations.
func (e *Engine) RunREM(ctx context.Context, userID string, llm provider.LLM, cfg config.REM, rng *rand.Rand) REMSummary {
	var sum REMSummary
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	memories, err := eligibleMemories(e.store, userID, 0.05, 0.8)
	if err != nil {
		e.log.Error().Err(err).Msg("rem: failed to list eligible memories")
		sum.Failures++
		return sum
	}
	if len(memories) == 0 {
		return sum
	}

	seeds := sampleSeeds(memories, cfg, rng)
	sum.SeedsExplored = len(seeds)

	byID := make(map[string]store.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	for _, seed := range seeds {
		activated, err := graph.Spread(e.store, seed.ID, graph.ActivationParams{
			DecayFactor:         cfg.DecayFactor,
			Sigma:               cfg.NoiseSigma,
			ActivationThreshold: cfg.ActivationThreshold,
			MaxSteps:            cfg.MaxSteps,
			MaxResults:          cfg.MaxCandidatesPerSeed,
			ResultThreshold:     cfg.ResultThreshold,
			Rand:                rng,
		})
		if err != nil {
			e.log.Warn().Err(err).Str("seedId", seed.ID).Msg("rem: spreading activation failed")
			sum.Failures++
			continue
		}

		directlyConnected, err := e.directNeighbors(seed.ID)
		if err != nil {
			sum.Failures++
			continue
		}

		for _, a := range activated {
			candidate, ok := byID[a.MemoryID]
			if !ok || directlyConnected[a.MemoryID] {
				continue
			}
			accepted, confidence, err := e.judgeConnection(ctx, llm, seed, candidate, cfg)
			if err != nil {
				sum.Failures++
				continue
			}
			if !accepted {
				continue
			}
			if _, err := e.store.AddRelation(store.Relation{
				SourceID:     seed.ID,
				TargetID:     candidate.ID,
				RelationType: store.RelationExtends,
				Confidence:   confidence,
			}); err != nil {
				sum.Failures++
				continue
			}
			sum.Connections++
		}
	}
	return sum
}

func (e *Engine) directNeighbors(seedID string) (map[string]bool, error) {
	rels, err := e.store.GetRelations(seedID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(rels))
	for _, r := range rels {
		if r.SourceID == seedID {
			out[r.TargetID] = true
		} else {
			out[r.SourceID] = true
		}
	}
	return out, nil
}

// sampleSeeds weights each memory by importance*prominence*(1+N(0,sigma^2)),
// sorts descending, and keeps the top MaxSeeds subject to a per-category cap.
func sampleSeeds(memories []store.Memory, cfg config.REM, rng *rand.Rand) []store.Memory {
	type weighted struct {
		m      store.Memory
		weight float64
	}
	ws := make([]weighted, len(memories))
	for i, m := range memories {
		noise := 1 + rng.NormFloat64()*cfg.SeedNoiseSigma
		ws[i] = weighted{m: m, weight: float64(m.Importance) * m.Prominence * noise}
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].weight > ws[j].weight })

	perCategory := make(map[store.Category]int)
	var out []store.Memory
	for _, w := range ws {
		if len(out) >= cfg.MaxSeeds {
			break
		}
		if perCategory[w.m.Category] >= cfg.MaxSeedsPerCategory {
			continue
		}
		perCategory[w.m.Category]++
		out = append(out, w.m)
	}
	return out
}

func (e *Engine) judgeConnection(ctx context.Context, llm provider.LLM, seed, candidate store.Memory, cfg config.REM) (bool, float64, error) {
	existingRelations, _ := e.store.GetRelations(seed.ID)
	var relSummary string
	for _, r := range existingRelations {
		relSummary += fmt.Sprintf("%s -> %s (%s)\n", r.SourceID, r.TargetID, r.RelationType)
	}
	if relSummary == "" {
		relSummary = "(none)"
	}

	prompt := fmt.Sprintf(
		"Seed memory: %s\nCandidate memory: %s\nExisting relations involving the seed:\n%s\n\n"+
			"Score novelty, plausibility, and usefulness of a connection between seed and candidate, each 1-5. "+
			"If there is a real connection, describe it in one sentence and give a confidence 0-1. "+
			"If there is no meaningful connection, set noConnection true. "+
			"Return JSON: {\"novelty\":1-5,\"plausibility\":1-5,\"usefulness\":1-5,\"connection\":\"...\",\"confidence\":0-1,\"noConnection\":bool}",
		seed.Content, candidate.Content, relSummary,
	)

	resp, err := llm.Complete(ctx, provider.CompleteRequest{
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Temperature: 0.4,
		MaxTokens:   256,
	})
	if err != nil {
		return false, 0, err
	}
	var text string
	for _, b := range resp.Content {
		if b.Kind == provider.BlockText {
			text += b.Text
		}
	}
	reply, ok := provider.ParseJSONReply[judgeReply](text)
	if !ok {
		return false, 0, fmt.Errorf("rem: judge reply did not parse")
	}
	if reply.NoConnection {
		return false, 0, nil
	}

	avg := float64(reply.Novelty+reply.Plausibility+reply.Usefulness) / 3
	if avg < cfg.MinJudgeScore {
		return false, 0, nil
	}
	confidence := reply.Confidence
	if confidence <= 0 {
		confidence = avg / 5
	}
	return true, confidence, nil
}
