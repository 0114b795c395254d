package authcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestInMemoryTimeline_EmptyByDefault(t *testing.T) {
	tl := NewInMemoryTimeline()
	assert.Empty(t, tl.Snapshot())
}

func TestInMemoryTimeline_SetTokenClosesPreviousWindow(t *testing.T) {
	tl := NewInMemoryTimeline()
	t0 := time.Unix(0, 0)
	t1 := time.Unix(60, 0)
	t2 := time.Unix(120, 0)

	tl.SetToken(strPtr("t1"), t0)
	tl.SetToken(strPtr("t2"), t1)
	tl.SetToken(nil, t2)

	snap := tl.Snapshot()
	require.Len(t, snap, 3)

	assert.Equal(t, "t1", *snap[0].Token)
	assert.Equal(t, t0, snap[0].Start)
	assert.Equal(t, t1, snap[0].End)
	assert.False(t, snap[0].Unbounded())

	assert.Equal(t, "t2", *snap[1].Token)
	assert.Equal(t, t1, snap[1].Start)
	assert.Equal(t, t2, snap[1].End)

	assert.Nil(t, snap[2].Token)
	assert.True(t, snap[2].Unbounded())
}

func TestInMemoryTimeline_Clear(t *testing.T) {
	tl := NewInMemoryTimeline()
	tl.SetToken(strPtr("t1"), time.Unix(0, 0))
	require.NotEmpty(t, tl.Snapshot())

	tl.Clear()
	assert.Empty(t, tl.Snapshot())
}

func TestInMemoryTimeline_SnapshotIsACopy(t *testing.T) {
	tl := NewInMemoryTimeline()
	tl.SetToken(strPtr("t1"), time.Unix(0, 0))

	snap := tl.Snapshot()
	snap[0].Token = strPtr("mutated")

	snap2 := tl.Snapshot()
	assert.Equal(t, "t1", *snap2[0].Token)
}
