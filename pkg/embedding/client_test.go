package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	vec     []float32
	perText map[string][]float32
	err     error
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.perText[text]; ok {
		return v, nil
	}
	return f.vec, nil
}
func (f *fakeProvider) Dimension() int { return len(f.vec) }
func (f *fakeProvider) Name() string   { return f.name }

func TestEmbedUsesPrimary(t *testing.T) {
	primary := &fakeProvider{name: "p", vec: []float32{1, 2, 3}}
	c := New(primary, nil, 3, 4)

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestEmbedFallsBackOnPrimaryError(t *testing.T) {
	primary := &fakeProvider{name: "p", err: errors.New("boom")}
	fallback := &fakeProvider{name: "f", vec: []float32{4, 5, 6}}
	c := New(primary, fallback, 3, 4)

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, v)
}

func TestEmbedUnavailableWhenBothFail(t *testing.T) {
	primary := &fakeProvider{name: "p", err: errors.New("boom")}
	fallback := &fakeProvider{name: "f", err: errors.New("also boom")}
	c := New(primary, fallback, 3, 4)

	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestEmbedDimensionMismatchIsFatal(t *testing.T) {
	primary := &fakeProvider{name: "p", vec: []float32{1, 2}}
	c := New(primary, nil, 3, 4)

	_, err := c.Embed(context.Background(), "hello")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	primary := &fakeProvider{name: "p", perText: map[string][]float32{
		"a": {1}, "b": {2}, "c": {3}, "d": {4}, "e": {5},
	}}
	c := New(primary, nil, 1, 2)

	texts := []string{"a", "b", "c", "d", "e"}
	results, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, v := range results {
		assert.Equal(t, []float32{float32(i + 1)}, v)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	c := New(&fakeProvider{name: "p", vec: []float32{1}}, nil, 1, 4)
	results, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
