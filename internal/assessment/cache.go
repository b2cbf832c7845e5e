package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerCache stores terminal answers keyed by the full evaluation identity.
// Implementations must treat unavailability as a soft failure; the evaluator
// degrades to a miss and keeps going.
type AnswerCache interface {
	Get(ctx context.Context, key CacheKey) (QuestionAnswer, bool, error)
	Put(ctx context.Context, key CacheKey, answer QuestionAnswer) error
}

// cachedAnswer is the stored JSON shape. Confidence is a pointer so entries
// written before confidence existed can be told apart from a genuine zero.
type cachedAnswer struct {
	Verdict    string   `json:"verdict"`
	Rationale  string   `json:"rationale"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// RedisAnswerCache keeps answers in Redis with an optional TTL.
type RedisAnswerCache struct {
	client            *redis.Client
	ttl               time.Duration
	defaultConfidence float64
	logger            zerolog.Logger
}

// NewRedisAnswerCache builds a cache around an existing Redis client.
// Entries missing a confidence value are resurfaced with defaultConfidence
// unless their verdict is Error, which always reads back as zero.
func NewRedisAnswerCache(client *redis.Client, ttl time.Duration, defaultConfidence float64, logger zerolog.Logger) *RedisAnswerCache {
	return &RedisAnswerCache{
		client:            client,
		ttl:               ttl,
		defaultConfidence: defaultConfidence,
		logger:            logger.With().Str("component", "answer_cache").Logger(),
	}
}

// Get looks up one answer. A corrupt entry counts as a miss so the next Put
// overwrites it.
func (c *RedisAnswerCache) Get(ctx context.Context, key CacheKey) (QuestionAnswer, bool, error) {
	payload, err := c.client.Get(ctx, key.String()).Result()
	if errors.Is(err, redis.Nil) {
		return QuestionAnswer{}, false, nil
	}
	if err != nil {
		return QuestionAnswer{}, false, err
	}

	var entry cachedAnswer
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("discarding corrupt cache entry")
		return QuestionAnswer{}, false, nil
	}

	answer := QuestionAnswer{
		QuestionID: key.QuestionID,
		Verdict:    Verdict(entry.Verdict),
		Rationale:  entry.Rationale,
	}
	switch {
	case answer.Verdict == VerdictError:
		answer.Confidence = 0
	case entry.Confidence != nil:
		answer.Confidence = *entry.Confidence
	default:
		answer.Confidence = c.defaultConfidence
	}

	return answer, true, nil
}

// Put stores one terminal answer.
func (c *RedisAnswerCache) Put(ctx context.Context, key CacheKey, answer QuestionAnswer) error {
	confidence := answer.Confidence
	entry := cachedAnswer{
		Verdict:    string(answer.Verdict),
		Rationale:  answer.Rationale,
		Confidence: &confidence,
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key.String(), payload, c.ttl).Err()
}
