package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_StateCache(t *testing.T) {
	ctx := context.Background()
	c := New()

	_, ok, err := c.Get(ctx, "reader-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "reader-1", ReaderState{LastUID: "04AB", LastScanAt: 12}))
	require.NoError(t, c.Set(ctx, "reader-2", ReaderState{LastUID: "04CD", LastScanAt: 13}))

	state, ok, err := c.Get(ctx, "reader-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ReaderState{LastUID: "04AB", LastScanAt: 12}, state)

	require.NoError(t, c.Set(ctx, "reader-1", ReaderState{LastUID: "04EF", LastScanAt: 20}))
	state, _, _ = c.Get(ctx, "reader-1")
	assert.Equal(t, "04EF", state.LastUID)
}

func Test_StateKey(t *testing.T) {
	assert.Equal(t, "kiosk:reader:lobby:last", stateKey("lobby"))
}
