package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryAddressClaim(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	claims := NewInMemoryAddressClaim(store)

	ok, err := claims.TryMarkChanged(ctx, "PO1", 180*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = claims.TryMarkChanged(ctx, "PO1", 180*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	ok, err = claims.TryMarkChanged(ctx, "PO2", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "claims are per order")

	require.NoError(t, claims.Clear(ctx, "PO1"))
	ok, err = claims.TryMarkChanged(ctx, "PO1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "a cleared claim can be taken again")
}
