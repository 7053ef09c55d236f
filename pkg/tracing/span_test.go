package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "trace-1")
	childCtx, child := StartChildSpan(ctx, "filter")
	child.SetAttr("matches", 3)
	child.End()

	assert.Same(t, child, SpanFromContext(childCtx))
	assert.Equal(t, "trace-1", child.TraceID)
	require.Len(t, root.Children(), 1)

	v, ok := child.Attr("matches")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	var buf bytes.Buffer
	root.Finish(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "span=filter")
	assert.Contains(t, out, "matches=3")
}

func TestChildWithoutParentGetsTraceID(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.NotEmpty(t, span.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}
