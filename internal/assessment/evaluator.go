package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/kompas-go-api/pkg/ai"
)

// questionReplySchema rejects any reply whose verdict falls outside the
// three legal values or whose confidence leaves [0,1]. Rejection surfaces as
// a malformed reply, never as a coerced verdict.
var questionReplySchema = ai.MustCompileSchema("question_reply", `{
	"type": "object",
	"required": ["verdict", "rationale", "confidence"],
	"properties": {
		"verdict": {"type": "string", "enum": ["Yes", "Partial", "No"]},
		"rationale": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

// EvaluatorConfig tunes the per-question reasoning calls.
type EvaluatorConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Attempts    int
	Backoff     time.Duration
	CallTimeout time.Duration
}

// Evaluator resolves single questions to terminal answers: cache first, then
// the reasoning model with a bounded retry budget.
type Evaluator struct {
	asker  ai.Asker
	cache  AnswerCache
	cfg    EvaluatorConfig
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewEvaluator builds an evaluator around a reasoning backend and a cache.
func NewEvaluator(asker ai.Asker, cache AnswerCache, cfg EvaluatorConfig, logger zerolog.Logger) *Evaluator {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 30 * time.Second
	}

	return &Evaluator{
		asker:  asker,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With().Str("component", "assessment_evaluator").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/kompas-go-api/internal/assessment/evaluator"),
	}
}

// Model returns the default model id stamped into cache keys and results
// when a run carries no override.
func (e *Evaluator) Model() string {
	return e.cfg.Model
}

func (e *Evaluator) resolveModel(model string) string {
	if model == "" {
		return e.cfg.Model
	}
	return model
}

// Evaluate resolves one question to a terminal answer. It never returns an
// error: evaluation failures come back as Error verdicts so one bad question
// cannot sink a run.
func (e *Evaluator) Evaluate(ctx context.Context, ectx *EvaluationContext, q Question) QuestionAnswer {
	return e.evaluate(ctx, ectx, q, "", nil)
}

// evaluate is the slot-aware variant used by the orchestrator. model overrides
// the configured question model for this run; it is part of cache identity, so
// answers from different models never shadow each other. The slot is taken
// only when the answer has to come from the model; cache hits bypass the
// limiter entirely.
func (e *Evaluator) evaluate(ctx context.Context, ectx *EvaluationContext, q Question, model string, slots chan struct{}) QuestionAnswer {
	model = e.resolveModel(model)
	key := CacheKey{
		SubjectID:        ectx.SubjectID(),
		Fingerprint:      ectx.Fingerprint(),
		FrameworkVersion: q.FrameworkVersion,
		ModelID:          model,
		QuestionID:       q.ID,
	}

	if answer, ok := e.lookup(ctx, key); ok {
		return e.finish(answer)
	}

	if slots != nil {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
		case <-ctx.Done():
			return e.finish(errorAnswer(q, fmt.Errorf("run ended before evaluation started: %w", ctx.Err())))
		}
	}

	answer := e.evaluateRemote(ctx, ectx, q, model)
	e.store(ctx, key, answer)
	return e.finish(answer)
}

func (e *Evaluator) lookup(ctx context.Context, key CacheKey) (QuestionAnswer, bool) {
	answer, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		cacheEvents.WithLabelValues("error").Inc()
		e.logger.Warn().Err(err).Str("key", key.String()).Msg("answer cache unavailable, treating as miss")
		return QuestionAnswer{}, false
	}
	if !ok {
		cacheEvents.WithLabelValues("miss").Inc()
		return QuestionAnswer{}, false
	}
	cacheEvents.WithLabelValues("hit").Inc()
	answer.Cached = true
	return answer, true
}

// store writes the terminal answer back to the cache. Error verdicts earned
// by exhausting the retry budget are cached too, so a poisoned question does
// not burn its budget again on every rerun. Answers abandoned because the
// run's context died are the exception: those questions never really ran.
func (e *Evaluator) store(ctx context.Context, key CacheKey, answer QuestionAnswer) {
	if answer.Verdict == VerdictError && ctx.Err() != nil {
		return
	}

	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.cache.Put(putCtx, key, answer); err != nil {
		cacheEvents.WithLabelValues("error").Inc()
		e.logger.Warn().Err(err).Str("key", key.String()).Msg("failed to cache answer")
	}
}

func (e *Evaluator) finish(answer QuestionAnswer) QuestionAnswer {
	questionVerdicts.WithLabelValues(string(answer.Verdict)).Inc()
	return answer
}

func (e *Evaluator) evaluateRemote(parent context.Context, ectx *EvaluationContext, q Question, model string) QuestionAnswer {
	ctx, span := e.tracer.Start(parent, "assessment.evaluate_question", trace.WithAttributes(
		attribute.Int64("question_id", int64(q.ID)),
		attribute.String("category", string(q.Category)),
	))
	defer span.End()

	req := ai.Request{
		System:      questionSystemPrompt(),
		Prompt:      questionUserPrompt(ectx, q),
		Model:       model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Schema:      questionReplySchema,
	}

	raw, err := askWithRetry(ctx, e.asker, req, e.cfg.Attempts, e.cfg.Backoff, e.cfg.CallTimeout)
	if err != nil {
		span.RecordError(err)
		e.logger.Warn().Err(err).Uint("question_id", q.ID).Str("category", string(q.Category)).
			Msg("question evaluation failed")
		return errorAnswer(q, err)
	}

	var reply struct {
		Verdict    string  `json:"verdict"`
		Rationale  string  `json:"rationale"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return errorAnswer(q, fmt.Errorf("%w: %v", ai.ErrMalformedReply, err))
	}

	verdict := Verdict(reply.Verdict)
	switch verdict {
	case VerdictYes, VerdictPartial, VerdictNo:
	default:
		return errorAnswer(q, fmt.Errorf("%w: verdict %q", ai.ErrMalformedReply, reply.Verdict))
	}
	if reply.Confidence < 0 || reply.Confidence > 1 {
		return errorAnswer(q, fmt.Errorf("%w: confidence %v out of range", ai.ErrMalformedReply, reply.Confidence))
	}

	return QuestionAnswer{
		QuestionID: q.ID,
		Verdict:    verdict,
		Rationale:  reply.Rationale,
		Confidence: reply.Confidence,
	}
}

// errorAnswer is the terminal answer for a question that could not be
// evaluated. Confidence zero keeps its score contribution at zero while its
// weight still counts against the category.
func errorAnswer(q Question, err error) QuestionAnswer {
	return QuestionAnswer{
		QuestionID: q.ID,
		Verdict:    VerdictError,
		Rationale:  fmt.Sprintf("evaluation failed: %v", err),
		Confidence: 0,
	}
}
