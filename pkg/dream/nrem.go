package dream

import (
	"context"
	"fmt"
	"strings"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/config"
	"github.com/kittclouds/cogmem/pkg/provider"
)

// NREMSummary reports one consolidation pass's outcome.
type NREMSummary struct {
	ClustersFound     int
	ClustersConsolidated int
	Failures          int
}

type nremReply struct {
	Summary    string `json:"summary"`
	Importance int    `json:"importance"`
	Category   string `json:"category"`
}

// RunNREM clusters eligible memories on their EXTENDS/DERIVES subgraph and
// fuses clusters of sufficient size into derived insight memories (§4.F).
// A per-cluster LLM or storage failure increments Failures and continues
// with the next cluster — it never aborts the whole pass.
func (e *Engine) RunNREM(ctx context.Context, userID string, llm provider.LLM, cfg config.NREM) NREMSummary {
	var sum NREMSummary

	memories, err := eligibleMemories(e.store, userID, cfg.MinProminence, cfg.MaxProminence)
	if err != nil {
		e.log.Error().Err(err).Msg("nrem: failed to list eligible memories")
		sum.Failures++
		return sum
	}
	if len(memories) == 0 {
		return sum
	}

	clusters := clusterByRelations(e.store, memories)

	var kept [][]store.Memory
	for _, c := range clusters {
		if len(c) >= cfg.MinClusterSize {
			kept = append(kept, c)
		}
		if len(kept) >= cfg.MaxClusters {
			break
		}
	}
	sum.ClustersFound = len(kept)

	for _, cluster := range kept {
		if err := e.consolidateCluster(ctx, cluster, llm, cfg); err != nil {
			e.log.Warn().Err(err).Msg("nrem: cluster consolidation failed")
			sum.Failures++
			continue
		}
		sum.ClustersConsolidated++
	}
	return sum
}

// clusterByRelations groups eligible memories into connected components
// over their EXTENDS/DERIVES edges, restricted to the eligible set.
func clusterByRelations(st Store, memories []store.Memory) [][]store.Memory {
	byID := make(map[string]store.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	visited := make(map[string]bool, len(memories))
	var clusters [][]store.Memory

	for _, m := range memories {
		if visited[m.ID] {
			continue
		}
		var component []store.Memory
		queue := []string{m.ID}
		visited[m.ID] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			component = append(component, byID[id])

			rels, err := st.GetRelations(id)
			if err != nil {
				continue
			}
			for _, r := range rels {
				if r.RelationType != store.RelationExtends && r.RelationType != store.RelationDerives {
					continue
				}
				neighbor := r.TargetID
				if neighbor == id {
					neighbor = r.SourceID
				}
				if _, ok := byID[neighbor]; !ok || visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
		clusters = append(clusters, component)
	}
	return clusters
}

func (e *Engine) consolidateCluster(ctx context.Context, cluster []store.Memory, llm provider.LLM, cfg config.NREM) error {
	prompt := buildNREMPrompt(e.store, cluster, cfg)

	resp, err := llm.Complete(ctx, provider.CompleteRequest{
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   512,
	})
	if err != nil {
		return fmt.Errorf("nrem: llm completion: %w", err)
	}
	var text string
	for _, b := range resp.Content {
		if b.Kind == provider.BlockText {
			text += b.Text
		}
	}
	reply, ok := provider.ParseJSONReply[nremReply](text)
	if !ok {
		return fmt.Errorf("nrem: reply did not parse")
	}

	category := store.Category(reply.Category)
	if category == "" {
		category = store.CategoryInsight
	}
	if spansMultipleCategories(cluster) {
		category = store.CategoryInsight
	}

	avgProminence := 0.0
	sourceIDs := make([]string, len(cluster))
	for i, m := range cluster {
		avgProminence += m.Prominence
		sourceIDs[i] = m.ID
	}
	avgProminence /= float64(len(cluster))
	prominence := avgProminence + 0.15
	if prominence > 0.6 {
		prominence = 0.6
	}

	fused := store.Memory{
		UserID:      cluster[0].UserID,
		Content:     reply.Summary,
		Category:    category,
		MemoryType:  store.MemoryTypeDerived,
		Importance:  reply.Importance,
		Confidence:  0.7,
		IsLatest:    true,
		Source:      store.SourceSystem,
		Prominence:  prominence,
		LearnedFrom: store.LearnedFromNREMConsolidation,
		Metadata:    map[string]any{"nrem": true},
	}

	_, err = e.store.FuseCluster(sourceIDs, fused)
	if err != nil {
		return fmt.Errorf("nrem: fuse cluster: %w", err)
	}
	return nil
}

func spansMultipleCategories(cluster []store.Memory) bool {
	cats := make(map[store.Category]bool)
	for _, m := range cluster {
		cats[m.Category] = true
	}
	return len(cats) >= 2
}

// buildNREMPrompt builds the numbered-members + CONNECTIONS-block prompt
// of §4.F step 3.
func buildNREMPrompt(st Store, cluster []store.Memory, cfg config.NREM) string {
	var b strings.Builder
	b.WriteString("Consolidate the following related memories into one summary insight.\n\nMembers:\n")

	indexOf := make(map[string]int, len(cluster))
	for i, m := range cluster {
		indexOf[m.ID] = i
		fmt.Fprintf(&b, "%d. [%s, importance %d] %s\n", i+1, m.Category, m.Importance, m.Content)
	}

	b.WriteString("\nConnections:\n")
	type conn struct {
		from, to int
		relType  store.RelationType
		conf     float64
		content  string
	}
	var conns []conn
	perMemoryCount := make(map[int]int)
	for _, m := range cluster {
		rels, err := st.GetRelations(m.ID)
		if err != nil {
			continue
		}
		for _, r := range rels {
			if r.SourceID != m.ID {
				continue
			}
			ti, ok := indexOf[r.TargetID]
			if !ok {
				continue
			}
			fi := indexOf[m.ID]
			if perMemoryCount[fi] >= cfg.MaxRelationsPerMemory {
				continue
			}
			perMemoryCount[fi]++
			conns = append(conns, conn{from: fi, to: ti, relType: r.RelationType, conf: r.Confidence, content: truncate(cluster[ti].Content, 80)})
		}
	}
	if len(conns) == 0 {
		b.WriteString("(no intra-cluster connections)\n")
	} else {
		for _, c := range conns {
			fmt.Fprintf(&b, "%d --%s(%.2f)--> %d: %s\n", c.from+1, c.relType, c.conf, c.to+1, c.content)
		}
	}

	b.WriteString("\nReturn JSON: {\"summary\": \"...\", \"importance\": 1-10, \"category\": \"preference|fact|event|relationship|insight\"}")
	return b.String()
}
