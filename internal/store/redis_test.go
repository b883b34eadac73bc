package store

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/quest-engine/pkg/objective"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	rs, err := NewRedisStore("redis://"+mr.Addr(), logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create redis store: %v", err)
	}

	return rs, mr
}

func TestSaveAndLoadProgress(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer mr.Close()
	defer rs.Close()

	ctx := context.Background()
	p := objective.Progress{Current: 7, Target: 10, Metadata: map[string]any{"title": "Collect iron ore"}}

	require.NoError(t, rs.SaveProgress(ctx, "p1", "collect_iron_ore", p))

	loaded, err := rs.LoadProgress(ctx, "p1", "collect_iron_ore")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 7, loaded.Current)
	assert.Equal(t, 10, loaded.Target)
	assert.Equal(t, "Collect iron ore", loaded.Metadata["title"])
}

func TestLoadProgressAbsent(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer mr.Close()
	defer rs.Close()

	loaded, err := rs.LoadProgress(context.Background(), "p1", "collect_iron_ore")
	require.NoError(t, err, "absence is not an error")
	assert.Nil(t, loaded)
}

func TestLoadAll(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer mr.Close()
	defer rs.Close()

	ctx := context.Background()
	require.NoError(t, rs.SaveProgress(ctx, "p1", "collect_iron_ore", objective.Progress{Current: 3, Target: 10}))
	require.NoError(t, rs.SaveProgress(ctx, "p2", "collect_iron_ore", objective.Progress{Current: 10, Target: 10}))
	require.NoError(t, rs.SaveProgress(ctx, "p1", "mine_coal", objective.Progress{Current: 1, Target: 5}))

	all, err := rs.LoadAll(ctx, "collect_iron_ore")
	require.NoError(t, err)
	require.Len(t, all, 2, "only snapshots for the requested objective")
	assert.Equal(t, 3, all["p1"].Current)
	assert.Equal(t, 10, all["p2"].Current)
}

func TestDeleteProgress(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer mr.Close()
	defer rs.Close()

	ctx := context.Background()
	require.NoError(t, rs.SaveProgress(ctx, "p1", "collect_iron_ore", objective.Progress{Current: 3, Target: 10}))
	require.NoError(t, rs.DeleteProgress(ctx, "p1", "collect_iron_ore"))

	loaded, err := rs.LoadProgress(ctx, "p1", "collect_iron_ore")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadAllSkipsMalformed(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer mr.Close()
	defer rs.Close()

	ctx := context.Background()
	require.NoError(t, rs.SaveProgress(ctx, "p1", "collect_iron_ore", objective.Progress{Current: 3, Target: 10}))
	mr.Set("progress:collect_iron_ore:corrupt", "not json")

	all, err := rs.LoadAll(ctx, "collect_iron_ore")
	require.NoError(t, err, "one bad snapshot must not fail the whole load")
	require.Len(t, all, 1)
	assert.Equal(t, 3, all["p1"].Current)
}

func TestPing(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer rs.Close()

	require.NoError(t, rs.Ping(context.Background()))
	mr.Close()
	assert.Error(t, rs.Ping(context.Background()))
}
