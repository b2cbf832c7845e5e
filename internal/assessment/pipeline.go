package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrEmptyFramework means the requested framework version resolves to zero
// questions. Running an assessment against nothing is a caller mistake, not
// a degradable condition.
var ErrEmptyFramework = errors.New("assessment: framework version has no questions")

// FrameworkLoader supplies the question set for one framework version. The
// returned questions must all carry that version; mixing versions inside a
// run breaks cache identity and scoring.
type FrameworkLoader interface {
	LoadFramework(ctx context.Context, version string) ([]Question, error)
}

// SubjectLoader supplies everything the context builder needs for a subject.
type SubjectLoader interface {
	LoadSubject(ctx context.Context, subjectID string) (ContextInput, error)
}

// RunInput identifies what to assess. ModelID overrides the configured
// question model for this run; empty keeps the default. The model identity
// is part of cache identity, so an override re-evaluates rather than reusing
// another model's answers.
type RunInput struct {
	SubjectID        string
	FrameworkVersion string
	ModelID          string
}

// RunResult is the complete outcome of one assessment run.
type RunResult struct {
	RunID            string
	SubjectID        string
	FrameworkVersion string
	ModelID          string
	Fingerprint      string
	Scores           []CategoryScore
	Recommendation   Recommendation
	Transcript       []TranscriptEntry
	Stats            EvalStats
	StartedAt        time.Time
	CompletedAt      time.Time
}

// PipelineConfig tunes run-level behaviour.
type PipelineConfig struct {
	// RunTimeout bounds the evaluation phase. Questions still open when it
	// fires become Error answers instead of hanging the run. Zero disables
	// the bound.
	RunTimeout time.Duration
}

// Pipeline drives one assessment run through its stages: build the shared
// context, evaluate every question, score, synthesize. Once evaluation has
// begun the run always reaches Complete; only context building can fail it.
type Pipeline struct {
	frameworks   FrameworkLoader
	subjects     SubjectLoader
	orchestrator *Orchestrator
	synthesizer  *Synthesizer
	observer     RunObserver
	cfg          PipelineConfig
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewPipeline wires a pipeline. observer may be nil.
func NewPipeline(frameworks FrameworkLoader, subjects SubjectLoader, orchestrator *Orchestrator, synthesizer *Synthesizer, observer RunObserver, cfg PipelineConfig, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		frameworks:   frameworks,
		subjects:     subjects,
		orchestrator: orchestrator,
		synthesizer:  synthesizer,
		observer:     observer,
		cfg:          cfg,
		logger:       logger.With().Str("component", "assessment_pipeline").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/kompas-go-api/internal/assessment/pipeline"),
	}
}

// Run executes one assessment run to completion. The returned error is
// non-nil only for context-building failures; everything after that degrades
// inside the result instead of failing the run.
func (p *Pipeline) Run(parent context.Context, input RunInput) (*RunResult, error) {
	runID := uuid.NewString()
	startedAt := time.Now().UTC()

	modelID := input.ModelID
	if modelID == "" {
		modelID = p.orchestrator.Model()
	}

	ctx, span := p.tracer.Start(parent, "assessment.run", trace.WithAttributes(
		attribute.String("subject_id", input.SubjectID),
		attribute.String("framework_version", input.FrameworkVersion),
		attribute.String("model_id", modelID),
	))
	defer span.End()

	logger := p.logger.With().Str("run_id", runID).Str("subject_id", input.SubjectID).Logger()
	run := runState{pipeline: p, runID: runID, subjectID: input.SubjectID, logger: logger, span: span}

	run.stage(StageBuildingContext)
	questions, err := p.frameworks.LoadFramework(ctx, input.FrameworkVersion)
	if err != nil {
		return run.fail(fmt.Errorf("load framework %s: %w", input.FrameworkVersion, err))
	}
	if len(questions) == 0 {
		return run.fail(fmt.Errorf("framework %s: %w", input.FrameworkVersion, ErrEmptyFramework))
	}
	subjectInput, err := p.subjects.LoadSubject(ctx, input.SubjectID)
	if err != nil {
		return run.fail(fmt.Errorf("load subject %s: %w", input.SubjectID, err))
	}
	ectx, err := BuildContext(subjectInput)
	if err != nil {
		return run.fail(fmt.Errorf("build context for %s: %w", input.SubjectID, err))
	}
	span.SetAttributes(attribute.String("fingerprint", ectx.Fingerprint()))

	run.stage(StageEvaluating)
	evalCtx := ctx
	cancel := context.CancelFunc(func() {})
	if p.cfg.RunTimeout > 0 {
		evalCtx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
	}
	total := len(questions)
	var completed atomic.Int64
	answers := p.orchestrator.EvaluateAll(evalCtx, ectx, questions, input.ModelID, func(answer QuestionAnswer) {
		run.emit(Event{
			Kind:      EventQuestion,
			Stage:     StageEvaluating,
			Question:  &answer,
			Completed: int(completed.Add(1)),
			Total:     total,
		})
	})
	cancel()

	run.stage(StageScoring)
	scores := Score(questions, answers)
	transcript := buildTranscript(questions, answers)

	run.stage(StageSynthesizing)
	recommendation := p.synthesizer.Synthesize(ctx, ectx, transcript, scores)

	stats := Stats(answers)
	result := &RunResult{
		RunID:            runID,
		SubjectID:        input.SubjectID,
		FrameworkVersion: input.FrameworkVersion,
		ModelID:          modelID,
		Fingerprint:      ectx.Fingerprint(),
		Scores:           scores,
		Recommendation:   recommendation,
		Transcript:       transcript,
		Stats:            stats,
		StartedAt:        startedAt,
		CompletedAt:      time.Now().UTC(),
	}

	runsTotal.WithLabelValues("complete").Inc()
	runDuration.Observe(result.CompletedAt.Sub(startedAt).Seconds())
	run.emit(Event{Kind: EventCompleted, Stage: StageComplete, Completed: total, Total: total})
	logger.Info().
		Str("profile_code", recommendation.ProfileCode).
		Int("cache_hits", stats.CacheHits).
		Int("cache_misses", stats.CacheMisses).
		Int("failed", stats.Failed).
		Dur("duration", result.CompletedAt.Sub(startedAt)).
		Msg("assessment run complete")

	return result, nil
}

// Model returns the question-model id used for cache keys and results.
func (o *Orchestrator) Model() string {
	return o.evaluator.Model()
}

// runState carries the per-run identifiers every event and failure needs.
type runState struct {
	pipeline  *Pipeline
	runID     string
	subjectID string
	logger    zerolog.Logger
	span      trace.Span
}

func (r runState) emit(event Event) {
	if r.pipeline.observer == nil {
		return
	}
	event.RunID = r.runID
	event.SubjectID = r.subjectID
	event.At = time.Now().UTC()
	r.pipeline.observer.ObserveRun(event)
}

func (r runState) stage(stage Stage) {
	r.span.AddEvent("stage", trace.WithAttributes(attribute.String("stage", string(stage))))
	r.emit(Event{Kind: EventStage, Stage: stage})
}

func (r runState) fail(err error) (*RunResult, error) {
	runsTotal.WithLabelValues("failed").Inc()
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
	r.emit(Event{Kind: EventFailed, Stage: StageFailed, Reason: err.Error()})
	r.logger.Error().Err(err).Msg("assessment run failed")
	return nil, err
}

func buildTranscript(questions []Question, answers []QuestionAnswer) []TranscriptEntry {
	transcript := make([]TranscriptEntry, 0, len(questions))
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		transcript = append(transcript, TranscriptEntry{Question: q, Answer: answers[i]})
	}
	return transcript
}
