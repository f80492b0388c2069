package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/store"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	var s model.Settings
	require.ErrorIs(t, kv.Get(ctx, store.KeySettings, &s), store.ErrNotFound)

	want := model.DefaultSettings()
	want.DailyLimit = 12
	require.NoError(t, kv.Set(ctx, store.KeySettings, want))
	require.NoError(t, kv.Get(ctx, store.KeySettings, &s))
	assert.Equal(t, want, s)

	require.NoError(t, kv.Delete(ctx, store.KeySettings))
	require.ErrorIs(t, kv.Get(ctx, store.KeySettings, &s), store.ErrNotFound)
}

func TestMemory_DecodeError(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, "n", "not a number"))
	var n int
	err := kv.Get(ctx, "n", &n)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}
