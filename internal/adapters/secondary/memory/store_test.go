package memory

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrKeyNotFound)

	value := []byte("hello")
	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'j'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got), "stored value must not alias the caller's slice")
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, store.Set(ctx, "forever", []byte("y"), 0))

	now = now.Add(59 * time.Second)
	_, err := store.Get(ctx, "short")
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, "short")
	assert.ErrorIs(t, err, apperrors.ErrKeyNotFound)

	assert.Equal(t, 1, store.Purge())
	_, err = store.Get(ctx, "forever")
	assert.NoError(t, err)
}
