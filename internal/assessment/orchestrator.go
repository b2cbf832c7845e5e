package assessment

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds simultaneous reasoning calls when no limit is
// configured.
const DefaultConcurrency = 5

// Orchestrator fans question evaluation out across goroutines while keeping
// the number of in-flight reasoning calls bounded.
type Orchestrator struct {
	evaluator *Evaluator
	limit     int
	logger    zerolog.Logger
}

// NewOrchestrator builds an orchestrator around an evaluator. limit bounds
// concurrent remote calls, not goroutines; cache hits resolve without
// touching the limiter.
func NewOrchestrator(evaluator *Evaluator, limit int, logger zerolog.Logger) *Orchestrator {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Orchestrator{
		evaluator: evaluator,
		limit:     limit,
		logger:    logger.With().Str("component", "assessment_orchestrator").Logger(),
	}
}

// EvaluateAll resolves every question to a terminal answer and returns them
// in framework order. model overrides the evaluator's configured model for
// this run; empty keeps the default. It always joins on all questions: a run
// that times out still comes back with a full answer slice, the abandoned
// questions carrying Error verdicts. onAnswer, when set, fires once per
// terminal answer from the evaluating goroutine.
func (o *Orchestrator) EvaluateAll(ctx context.Context, ectx *EvaluationContext, questions []Question, model string, onAnswer func(QuestionAnswer)) []QuestionAnswer {
	answers := make([]QuestionAnswer, len(questions))
	slots := make(chan struct{}, o.limit)

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			answers[i] = o.evaluator.evaluate(gctx, ectx, q, model, slots)
			if onAnswer != nil {
				onAnswer(answers[i])
			}
			return nil
		})
	}
	// Workers never return errors, so Wait is purely a join.
	_ = g.Wait()

	stats := Stats(answers)
	o.logger.Debug().
		Str("subject_id", ectx.SubjectID()).
		Int("questions", len(questions)).
		Int("cache_hits", stats.CacheHits).
		Int("failed", stats.Failed).
		Msg("question evaluation complete")

	return answers
}

// EvalStats summarizes where a run's answers came from.
type EvalStats struct {
	CacheHits   int
	CacheMisses int
	Failed      int
}

// Stats derives cache and failure counts from a terminal answer set.
func Stats(answers []QuestionAnswer) EvalStats {
	var stats EvalStats
	for _, answer := range answers {
		if answer.Cached {
			stats.CacheHits++
		} else {
			stats.CacheMisses++
		}
		if answer.Verdict == VerdictError {
			stats.Failed++
		}
	}
	return stats
}
