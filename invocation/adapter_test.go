package invocation

import (
	"testing"

	"github.com/flowmesh/agentcore/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterResolvesWriteFile(t *testing.T) {
	a := NewAdapter(nil)
	invs := a.Feed([]segment.Event{
		{Kind: segment.Start, SegmentID: "s1", SegType: segment.TypeWriteFile, Metadata: map[string]any{"path": "a.txt"}},
		{Kind: segment.Content, SegmentID: "s1", Delta: "hello"},
		{Kind: segment.Content, SegmentID: "s1", Delta: " world"},
		{Kind: segment.End, SegmentID: "s1"},
	})

	require.Len(t, invs, 1)
	assert.Equal(t, "s1", invs[0].ID)
	assert.Equal(t, "write_file", invs[0].ToolName)
	assert.JSONEq(t, `{"content":"hello world","path":"a.txt"}`, string(invs[0].Arguments))
}

func TestAdapterIgnoresTextSegments(t *testing.T) {
	a := NewAdapter(nil)
	invs := a.Feed([]segment.Event{
		{Kind: segment.Start, SegmentID: "t1", SegType: segment.TypeText},
		{Kind: segment.Content, SegmentID: "t1", Delta: "just prose"},
		{Kind: segment.End, SegmentID: "t1"},
	})
	assert.Empty(t, invs)
}

func TestAdapterResolvesGenericToolCallByName(t *testing.T) {
	a := NewAdapter(nil)
	invs := a.Feed([]segment.Event{
		{Kind: segment.Start, SegmentID: "c1", SegType: segment.TypeToolCall, Metadata: map[string]any{"tool_name": "search"}},
		{Kind: segment.End, SegmentID: "c1", Metadata: map[string]any{"arguments": []byte(`{"q":"go"}`)}},
	})

	require.Len(t, invs, 1)
	assert.Equal(t, "search", invs[0].ToolName)
	assert.JSONEq(t, `{"q":"go"}`, string(invs[0].Arguments))
}

func TestAdapterMarksTruncatedInvocation(t *testing.T) {
	a := NewAdapter(nil)
	invs := a.Feed([]segment.Event{
		{Kind: segment.Start, SegmentID: "s1", SegType: segment.TypeRunBash},
		{Kind: segment.Content, SegmentID: "s1", Delta: "ls -"},
		{Kind: segment.End, SegmentID: "s1", Metadata: map[string]any{"truncated": true}},
	})

	require.Len(t, invs, 1)
	assert.True(t, invs[0].Truncated)
}
