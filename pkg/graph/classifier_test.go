package graph

import (
	"context"
	"testing"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	text string
	err  error
}

func (s *scriptedLLM) Complete(ctx context.Context, req provider.CompleteRequest) (provider.CompleteResponse, error) {
	if s.err != nil {
		return provider.CompleteResponse{}, s.err
	}
	return provider.CompleteResponse{Content: []provider.ContentBlock{{Kind: provider.BlockText, Text: s.text}}}, nil
}

func TestClassifyBatchAppliesLLMVerdicts(t *testing.T) {
	llm := &scriptedLLM{text: `{"items": [{"index": 0, "verdict": "UPDATES", "targetId": "old1", "confidence": 0.9}]}`}
	c := NewClassifier(llm)

	out, err := c.ClassifyBatch(context.Background(), []string{"new fact"}, [][]store.Memory{{{ID: "old1"}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, VerdictUpdates, out[0].Verdict)
	assert.Equal(t, "old1", out[0].TargetID)
	assert.Equal(t, 0.9, out[0].Confidence)
}

func TestClassifyBatchDefaultsToNewOnParseFailure(t *testing.T) {
	llm := &scriptedLLM{text: "not json"}
	c := NewClassifier(llm)

	out, err := c.ClassifyBatch(context.Background(), []string{"new fact"}, [][]store.Memory{nil})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, VerdictNew, out[0].Verdict)
	assert.Equal(t, 0.5, out[0].Confidence)
}

func TestClassifyBatchDefaultsToNewOnProviderError(t *testing.T) {
	llm := &scriptedLLM{err: assertErr{}}
	c := NewClassifier(llm)

	out, err := c.ClassifyBatch(context.Background(), []string{"new fact"}, [][]store.Memory{nil})
	require.NoError(t, err)
	assert.Equal(t, VerdictNew, out[0].Verdict)
}

func TestClassifyBatchEmptyInput(t *testing.T) {
	c := NewClassifier(&scriptedLLM{})
	out, err := c.ClassifyBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
