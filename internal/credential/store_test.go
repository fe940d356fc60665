package credential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"socialmonitor/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	require.NoError(t, db.AutoMigrateCookies(conn))
	return New(conn.Gorm, zap.NewNop())
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok := store.Get(ctx, "weibo")
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "weibo", "SUB=abc"))
	cookie, ok := store.Get(ctx, "weibo")
	require.True(t, ok)
	assert.Equal(t, "SUB=abc", cookie)
}

func TestSaveOverwritesPerPlatform(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "douyin", "old"))
	require.NoError(t, store.Save(ctx, "douyin", "new"))
	require.NoError(t, store.Save(ctx, "weibo", "other"))

	cookie, ok := store.Get(ctx, "douyin")
	require.True(t, ok)
	assert.Equal(t, "new", cookie)

	all := store.GetAll(ctx)
	assert.Len(t, all, 2)
	assert.Equal(t, "other", all["weibo"])
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "xiaohongshu", "tok"))
	require.NoError(t, store.Delete(ctx, "xiaohongshu"))
	_, ok := store.Get(ctx, "xiaohongshu")
	assert.False(t, ok)

	// Deleting a platform with no cookie is not an error.
	require.NoError(t, store.Delete(ctx, "xiaohongshu"))
}

func TestSaveRequiresPlatform(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Save(context.Background(), "  ", "cookie"))
}
