package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testRedisCache(t *testing.T, ttl time.Duration) (*RedisAnswerCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAnswerCache(client, ttl, 0.8, zerolog.Nop()), mr
}

func testCacheKey() CacheKey {
	return CacheKey{
		SubjectID:        "sv-001",
		Fingerprint:      "abc123",
		FrameworkVersion: "v1",
		ModelID:          "gpt-4o-mini",
		QuestionID:       7,
	}
}

func TestRedisAnswerCacheRoundTrip(t *testing.T) {
	cache, _ := testRedisCache(t, 0)
	key := testCacheKey()

	stored := QuestionAnswer{
		QuestionID: key.QuestionID,
		Verdict:    VerdictPartial,
		Rationale:  "strong math, weaker physics",
		Confidence: 0.72,
	}
	require.NoError(t, cache.Put(context.Background(), key, stored))

	got, ok, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, stored.Verdict, got.Verdict)
	require.Equal(t, stored.Rationale, got.Rationale)
	require.InDelta(t, stored.Confidence, got.Confidence, 1e-9)
	require.Equal(t, key.QuestionID, got.QuestionID)
}

func TestRedisAnswerCacheMiss(t *testing.T) {
	cache, _ := testRedisCache(t, 0)

	_, ok, err := cache.Get(context.Background(), testCacheKey())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisAnswerCacheLegacyEntryGetsDefaultConfidence(t *testing.T) {
	cache, mr := testRedisCache(t, 0)
	key := testCacheKey()

	// Entry written before confidence existed.
	require.NoError(t, mr.Set(key.String(), `{"verdict":"Yes","rationale":"older deployment"}`))

	got, ok, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, VerdictYes, got.Verdict)
	require.InDelta(t, 0.8, got.Confidence, 1e-9)
}

func TestRedisAnswerCacheLegacyErrorStaysZero(t *testing.T) {
	cache, mr := testRedisCache(t, 0)
	key := testCacheKey()

	require.NoError(t, mr.Set(key.String(), `{"verdict":"Error","rationale":"failed back then"}`))

	got, ok, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, VerdictError, got.Verdict)
	require.Zero(t, got.Confidence, "error verdicts never inherit the default confidence")
}

func TestRedisAnswerCacheCorruptEntryIsMiss(t *testing.T) {
	cache, mr := testRedisCache(t, 0)
	key := testCacheKey()

	require.NoError(t, mr.Set(key.String(), "{{{not json"))

	_, ok, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	require.False(t, ok, "corrupt entries read as misses so the next put repairs them")
}

func TestRedisAnswerCacheTTL(t *testing.T) {
	cache, mr := testRedisCache(t, time.Hour)
	key := testCacheKey()

	answer := QuestionAnswer{QuestionID: key.QuestionID, Verdict: VerdictYes, Confidence: 0.9}
	require.NoError(t, cache.Put(context.Background(), key, answer))

	_, ok, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Hour)

	_, ok, err = cache.Get(context.Background(), key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheKeyDistinguishesEveryField(t *testing.T) {
	base := testCacheKey()

	variants := []CacheKey{
		{SubjectID: "sv-002", Fingerprint: base.Fingerprint, FrameworkVersion: base.FrameworkVersion, ModelID: base.ModelID, QuestionID: base.QuestionID},
		{SubjectID: base.SubjectID, Fingerprint: "other", FrameworkVersion: base.FrameworkVersion, ModelID: base.ModelID, QuestionID: base.QuestionID},
		{SubjectID: base.SubjectID, Fingerprint: base.Fingerprint, FrameworkVersion: "v2", ModelID: base.ModelID, QuestionID: base.QuestionID},
		{SubjectID: base.SubjectID, Fingerprint: base.Fingerprint, FrameworkVersion: base.FrameworkVersion, ModelID: "gpt-4o", QuestionID: base.QuestionID},
		{SubjectID: base.SubjectID, Fingerprint: base.Fingerprint, FrameworkVersion: base.FrameworkVersion, ModelID: base.ModelID, QuestionID: 8},
	}

	for _, variant := range variants {
		require.NotEqual(t, base.String(), variant.String())
	}
}
