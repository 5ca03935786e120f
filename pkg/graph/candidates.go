// Package graph implements the relation engine of §4.D: an LLM-backed
// NEW/UPDATES/EXTENDS classifier, the write-path policy that follows its
// verdict, and bounded-BFS spreading activation used by both targeted
// retrieval and REM exploration.
package graph

import (
	"github.com/derekparker/trie/v3"
	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/lexical"
)

// CandidateIndex is a lazily-built prefix index over normalized memory
// content, used to assemble "up to K existing facts about the same
// entity" for the classifier without a full table scan. Generalizes the
// teacher's implicit-matcher dictionary (entity-label lookup) to
// full-sentence candidate lookup keyed by content tokens.
type CandidateIndex struct {
	t         *trie.Trie
	byID      map[string]store.Memory
}

// BuildCandidateIndex indexes every token of every memory's content
// against that memory's id, so a query token can recover all memories
// that mention it (or share a token prefix with it).
func BuildCandidateIndex(memories []store.Memory) *CandidateIndex {
	idx := &CandidateIndex{t: trie.New(), byID: make(map[string]store.Memory, len(memories))}
	for _, m := range memories {
		idx.byID[m.ID] = m
		seen := make(map[string]bool)
		for _, tok := range lexical.Tokenize(m.Content) {
			if len(tok) < 3 || seen[tok] {
				continue
			}
			seen[tok] = true
			var list []string
			if node, ok := idx.t.Find(tok); ok {
				if v, ok := node.Meta().([]string); ok {
					list = v
				}
			}
			list = append(list, m.ID)
			idx.t.Add(tok, list)
		}
	}
	return idx
}

// Candidates returns up to k existing memories that share a token (or
// token prefix) with content, excluding excludeID, most-recently-updated
// first.
func (idx *CandidateIndex) Candidates(content string, excludeID string, k int) []store.Memory {
	seen := make(map[string]bool)
	var ids []string
	for _, tok := range lexical.Tokenize(content) {
		if len(tok) < 3 {
			continue
		}
		for _, matched := range idx.t.PrefixSearch(tok) {
			node, ok := idx.t.Find(matched)
			if !ok {
				continue
			}
			list, ok := node.Meta().([]string)
			if !ok {
				continue
			}
			for _, id := range list {
				if id == excludeID || seen[id] {
					continue
				}
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	out := make([]store.Memory, 0, len(ids))
	for _, id := range ids {
		if m, ok := idx.byID[id]; ok {
			out = append(out, m)
		}
	}
	sortByUpdatedAtDesc(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func sortByUpdatedAtDesc(ms []store.Memory) {
	for i := 1; i < len(ms); i++ {
		j := i
		for j > 0 && ms[j].UpdatedAt > ms[j-1].UpdatedAt {
			ms[j], ms[j-1] = ms[j-1], ms[j]
			j--
		}
	}
}
