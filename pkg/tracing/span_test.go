package tracing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansInheritTrace(t *testing.T) {
	Configure(true, 1)
	t.Cleanup(func() { Configure(false, 0) })

	ctx, root := StartSpan(context.Background(), "search", "trace-1")
	require.True(t, root.Sampled)

	var wg sync.WaitGroup
	for _, name := range []string{"totals", "suppliers", "institutions"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, child := StartChildSpan(ctx, name)
			child.SetAttr("rows", 3)
			child.End()
		}()
	}
	wg.Wait()
	root.End()

	children := root.Children()
	require.Len(t, children, 3)
	for _, c := range children {
		assert.Equal(t, "trace-1", c.TraceID)
		assert.True(t, c.Sampled)
		v, ok := c.Attr("rows")
		assert.True(t, ok)
		assert.Equal(t, 3, v)
	}
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestSamplingDisabled(t *testing.T) {
	Configure(false, 1)
	_, root := StartSpan(context.Background(), "search", "t")
	assert.False(t, root.Sampled)

	Configure(true, 0)
	_, root = StartSpan(context.Background(), "search", "t")
	assert.False(t, root.Sampled)
	Configure(false, 0)
}

func TestDetachedChild(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID)
	assert.False(t, span.Sampled)
	span.End()
	span.Log()
}
