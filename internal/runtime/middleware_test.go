package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
)

func analysisLimits(opTimeout, acquireTimeout time.Duration) Limits {
	limits := NewLimits(1, 20)
	limits.OperationTimeout = opTimeout
	limits.AcquireRequestTimeout = acquireTimeout
	return limits
}

func wrap(limits Limits, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	mw := NewMiddleware(NewController(limits))
	return mw.ToolMiddleware(next)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestToolMiddlewarePassesAnalysisThrough(t *testing.T) {
	wrapped := wrap(analysisLimits(200*time.Millisecond, 50*time.Millisecond),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("Dataset has 4 rows and 5 cols."), nil
		})

	res, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "Dataset has 4 rows and 5 cols.", resultText(t, res))
}

func TestToolMiddlewareBusyWhenSlotHeld(t *testing.T) {
	limits := analysisLimits(0, 10*time.Millisecond)
	ctrl := NewController(limits)

	// Another analysis holds the single request slot.
	require.NoError(t, ctrl.AcquireRequest(context.Background()))
	defer ctrl.ReleaseRequest()

	wrapped := NewMiddleware(ctrl).ToolMiddleware(
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			t.Fatal("handler must not run while the slot is held")
			return nil, nil
		})

	res, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, resultText(t, res), "BUSY_RESOURCE")
	require.Contains(t, resultText(t, res), "max=1")
}

func TestToolMiddlewareTimesOutSlowAnalysis(t *testing.T) {
	wrapped := wrap(analysisLimits(20*time.Millisecond, 20*time.Millisecond),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			// An analysis that only gives up when its deadline fires.
			<-ctx.Done()
			return nil, ctx.Err()
		})

	res, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, resultText(t, res), "TIMEOUT: operation exceeded configured time limit")
}

func TestToolMiddlewareReleasesSlotAfterCall(t *testing.T) {
	limits := analysisLimits(100*time.Millisecond, 20*time.Millisecond)
	ctrl := NewController(limits)
	wrapped := NewMiddleware(ctrl).ToolMiddleware(
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("ok"), nil
		})

	// Two sequential calls through a single-slot controller both succeed,
	// so the slot must be released when a call finishes.
	for i := 0; i < 2; i++ {
		res, err := wrapped(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)
		require.False(t, res.IsError)
	}
}
