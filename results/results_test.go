package results

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glosings0n/Vut-Elimu/toolcall"
)

func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, opts...), mr
}

func sampleScore(session string, correct bool) toolcall.ScoreEvent {
	return toolcall.ScoreEvent{
		SessionID: session,
		Tool:      toolcall.EvaluateAttemptName,
		CallID:    "c1",
		Correct:   correct,
		Feedback:  toolcall.FeedbackPronunciation,
		Tip:       "Say it slowly.",
		At:        time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}
}

func TestRedisStore_RecordAndList(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleScore("s1", false)))
	require.NoError(t, store.Record(ctx, sampleScore("s1", true)))
	require.NoError(t, store.Record(ctx, sampleScore("s2", true)))

	got, err := store.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sampleScore("s1", false), got[0])
	assert.True(t, got[1].Correct)

	assert.True(t, mr.Exists("vutelimu:results:s1"))
	assert.Equal(t, defaultTTL, mr.TTL("vutelimu:results:s1"))
}

func TestRedisStore_TTLExpires(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleScore("s1", true)))
	mr.FastForward(2 * time.Minute)

	got, err := store.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStore_NoTTL(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(0))
	require.NoError(t, store.Record(context.Background(), sampleScore("s1", true)))
	assert.Equal(t, time.Duration(0), mr.TTL("vutelimu:results:s1"))
}

func TestRedisStore_CustomPrefix(t *testing.T) {
	store, mr := setupRedisStore(t, WithPrefix("school42"))
	require.NoError(t, store.Record(context.Background(), sampleScore("s1", true)))
	assert.True(t, mr.Exists("school42:results:s1"))
}

func TestRedisStore_InvalidID(t *testing.T) {
	store, _ := setupRedisStore(t)
	assert.ErrorIs(t, store.Record(context.Background(), toolcall.ScoreEvent{}), ErrInvalidID)
	_, err := store.List(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()
	assert.Error(t, store.Record(context.Background(), sampleScore("s1", true)))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleScore("s1", true)))
	assert.ErrorIs(t, store.Record(ctx, toolcall.ScoreEvent{}), ErrInvalidID)

	got, err := store.List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = store.List(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, got)
}

type slowStore struct {
	*MemoryStore
	delay time.Duration
}

func (s *slowStore) Record(ctx context.Context, ev toolcall.ScoreEvent) error {
	time.Sleep(s.delay)
	return s.MemoryStore.Record(ctx, ev)
}

func TestRecorder_StoresScores(t *testing.T) {
	store, _ := setupRedisStore(t)
	rec := NewRecorder(store, 0)

	rec.OnScore(sampleScore("sess-9", true))
	rec.OnScore(sampleScore("sess-9", false))
	rec.Close()

	written, failed, dropped := rec.Stats()
	assert.Equal(t, uint64(2), written)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)

	got, err := store.List(context.Background(), "sess-9")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Correct)
	assert.False(t, got[1].Correct)
}

func TestRecorder_SlowStoreKeepsEveryScore(t *testing.T) {
	store := &slowStore{MemoryStore: NewMemoryStore(), delay: time.Millisecond}
	rec := NewRecorder(store, time.Second)

	total := DefaultQueueSize + 20
	for i := 0; i < total; i++ {
		rec.OnScore(sampleScore("sess-slow", i%2 == 0))
	}
	rec.Close()

	written, failed, dropped := rec.Stats()
	assert.Equal(t, uint64(total), written)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)

	got, err := store.List(context.Background(), "sess-slow")
	require.NoError(t, err)
	assert.Len(t, got, total)
}

func TestRecorder_CountsFailures(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()
	rec := NewRecorder(store, 100*time.Millisecond)

	rec.OnScore(sampleScore("s", true))
	rec.Close()

	_, failed, _ := rec.Stats()
	assert.Equal(t, uint64(1), failed)
}

func TestRecorder_DropsAfterClose(t *testing.T) {
	rec := NewRecorder(NewMemoryStore(), 0)
	rec.Close()
	rec.Close()

	rec.OnScore(sampleScore("late", true))
	written, _, dropped := rec.Stats()
	assert.Zero(t, written)
	assert.Equal(t, uint64(1), dropped)
}
