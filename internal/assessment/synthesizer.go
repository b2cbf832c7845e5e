package assessment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/kompas-go-api/pkg/ai"
)

var recommendationSchema = ai.MustCompileSchema("recommendation", `{
	"type": "object",
	"required": ["career_paths", "summary", "confidence"],
	"properties": {
		"career_paths": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 1,
			"maxItems": 3
		},
		"summary": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

// SynthesizerConfig tunes the single synthesis call per run.
type SynthesizerConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Attempts    int
	Backoff     time.Duration
	CallTimeout time.Duration
}

// Synthesizer turns a completed answer set and its scores into the final
// career recommendation.
type Synthesizer struct {
	asker  ai.Asker
	cfg    SynthesizerConfig
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewSynthesizer builds a synthesizer. Synthesis uses a stronger model at a
// higher temperature than question evaluation; judging a single question
// wants rigour, writing guidance wants range.
func NewSynthesizer(asker ai.Asker, cfg SynthesizerConfig, logger zerolog.Logger) *Synthesizer {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.5
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 60 * time.Second
	}

	return &Synthesizer{
		asker:  asker,
		cfg:    cfg,
		logger: logger.With().Str("component", "assessment_synthesizer").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/kompas-go-api/internal/assessment/synthesizer"),
	}
}

// Synthesize produces the run's recommendation. It never fails the run: when
// the call budget is exhausted the result carries the profile code and a
// summary that states synthesis was unavailable, with zero confidence and no
// ranked paths.
func (s *Synthesizer) Synthesize(parent context.Context, ectx *EvaluationContext, transcript []TranscriptEntry, scores []CategoryScore) Recommendation {
	ctx, span := s.tracer.Start(parent, "assessment.synthesize", trace.WithAttributes(
		attribute.String("model", s.cfg.Model),
	))
	defer span.End()

	profileCode := TopProfile(scores)

	req := ai.Request{
		System:      synthesisSystemPrompt(),
		Prompt:      synthesisUserPrompt(ectx, transcript, scores, profileCode),
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Schema:      recommendationSchema,
	}

	raw, err := askWithRetry(ctx, s.asker, req, s.cfg.Attempts, s.cfg.Backoff, s.cfg.CallTimeout)
	if err != nil {
		return s.degraded(span, ectx, profileCode, err)
	}

	var reply struct {
		CareerPaths []string `json:"career_paths"`
		Summary     string   `json:"summary"`
		Confidence  float64  `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return s.degraded(span, ectx, profileCode, err)
	}

	return Recommendation{
		ProfileCode:       profileCode,
		RankedPaths:       reply.CareerPaths,
		Summary:           reply.Summary,
		OverallConfidence: reply.Confidence,
	}
}

func (s *Synthesizer) degraded(span trace.Span, ectx *EvaluationContext, profileCode string, err error) Recommendation {
	synthesisFailures.Inc()
	span.RecordError(err)
	s.logger.Warn().Err(err).Str("subject_id", ectx.SubjectID()).Msg("synthesis failed, returning degraded recommendation")

	return Recommendation{
		ProfileCode:       profileCode,
		RankedPaths:       []string{},
		Summary:           "Career synthesis was unavailable for this run. Category scores and per-question findings are still valid.",
		OverallConfidence: 0,
	}
}
