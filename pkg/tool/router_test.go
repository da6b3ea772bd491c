package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	info Info
	fn   func(ctx context.Context, args map[string]any) Result
}

func (s *stubTool) Info() Info { return s.info }
func (s *stubTool) Execute(ctx context.Context, args map[string]any) Result {
	return s.fn(ctx, args)
}

func TestRouterExecuteReturnsErrorResultForUnknownTool(t *testing.T) {
	rt := NewRouter(time.Second)
	result := rt.Execute(context.Background(), "nope", nil, 0)
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "unknown tool")
}

func TestRouterExecuteRejectsMissingRequiredParameter(t *testing.T) {
	rt := NewRouter(time.Second)
	require.NoError(t, rt.Register("echo", &stubTool{
		info: Info{Name: "echo", Parameters: []ParameterSchema{{Name: "text", Required: true}}},
		fn:   func(ctx context.Context, args map[string]any) Result { return Result{Status: StatusSuccess} },
	}))

	result := rt.Execute(context.Background(), "echo", map[string]any{}, 0)
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "missing required parameter")
}

func TestRouterExecuteDispatchesAndFillsTimestamps(t *testing.T) {
	rt := NewRouter(time.Second)
	require.NoError(t, rt.Register("echo", &stubTool{
		info: Info{Name: "echo"},
		fn: func(ctx context.Context, args map[string]any) Result {
			return Result{Status: StatusSuccess, Output: "hi"}
		},
	}))

	result := rt.Execute(context.Background(), "echo", map[string]any{}, 0)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "hi", result.Output)
	assert.False(t, result.StartedAt.IsZero())
	assert.False(t, result.CompletedAt.IsZero())
}

func TestRouterExecuteTimesOutSlowTool(t *testing.T) {
	rt := NewRouter(time.Second)
	require.NoError(t, rt.Register("slow", &stubTool{
		info: Info{Name: "slow"},
		fn: func(ctx context.Context, args map[string]any) Result {
			<-ctx.Done()
			return Result{Status: StatusSuccess}
		},
	}))

	result := rt.Execute(context.Background(), "slow", map[string]any{}, 10*time.Millisecond)
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "timed out")
}

func TestRouterRegisterDuplicateNameIsError(t *testing.T) {
	rt := NewRouter(time.Second)
	tool := &stubTool{info: Info{Name: "dup"}}
	require.NoError(t, rt.Register("dup", tool))
	err := rt.Register("dup", tool)
	assert.Error(t, err)
}

func TestRouterDescribeListsRegisteredToolInfo(t *testing.T) {
	rt := NewRouter(time.Second)
	require.NoError(t, rt.Register("a", &stubTool{info: Info{Name: "a"}}))
	require.NoError(t, rt.Register("b", &stubTool{info: Info{Name: "b"}}))

	infos := rt.Describe()
	assert.Len(t, infos, 2)
}
