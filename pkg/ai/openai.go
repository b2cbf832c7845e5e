package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	askDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kompas",
		Subsystem: "ai",
		Name:      "ask_duration_seconds",
		Help:      "Duration of reasoning model requests",
	}, []string{"model"})

	askFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kompas",
		Subsystem: "ai",
		Name:      "ask_failures_total",
		Help:      "Number of failed reasoning model requests",
	}, []string{"model", "kind"})
)

// OpenAIConfig defines configuration options for the OpenAI asker.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAsker implements Asker against the OpenAI chat completion API.
type OpenAIAsker struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAsker builds a new asker using the provided configuration.
func NewOpenAIAsker(cfg OpenAIConfig) (*OpenAIAsker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	tracer := otel.Tracer("github.com/noah-isme/kompas-go-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIAsker{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Ask sends the request to OpenAI and returns the validated JSON reply.
func (a *OpenAIAsker) Ask(parent context.Context, req Request) (json.RawMessage, error) {
	model := req.Model
	if model == "" {
		model = a.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = a.cfg.Temperature
	}

	ctx, span := a.tracer.Start(parent, "openai.ask", trace.WithAttributes(
		attribute.String("model", model),
	))
	defer span.End()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	request := openai.ChatCompletionRequest{
		Model:          model,
		MaxTokens:      maxTokens,
		Temperature:    temperature,
		Messages:       messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, request)
	askDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		classified := classifyCallError(err)
		a.fail(span, model, classified)
		return nil, fmt.Errorf("openai ask: %w", classified)
	}

	if len(resp.Choices) == 0 {
		classified := fmt.Errorf("%w: no choices returned", ErrMalformedReply)
		a.fail(span, model, classified)
		return nil, classified
	}

	raw, err := extractJSON(resp.Choices[0].Message.Content)
	if err != nil {
		classified := fmt.Errorf("%w: %v", ErrMalformedReply, err)
		a.fail(span, model, classified)
		return nil, classified
	}

	if req.Schema != nil {
		if err := req.Schema.Validate(raw); err != nil {
			classified := fmt.Errorf("%w: %v", ErrMalformedReply, err)
			a.fail(span, model, classified)
			return nil, classified
		}
	}

	span.SetAttributes(attribute.Int("completion_tokens", resp.Usage.CompletionTokens))
	return raw, nil
}

func (a *OpenAIAsker) fail(span trace.Span, model string, err error) {
	askFailures.WithLabelValues(model, failureKind(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	a.logger.Warn().Err(err).Str("model", model).Msg("reasoning request failed")
}

// classifyCallError folds provider and network errors into the sentinel
// failure classes. Context expiry counts as a timeout regardless of where in
// the HTTP stack it surfaced.
func classifyCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedReply):
		return "malformed"
	default:
		return "transport"
	}
}

// extractJSON pulls the JSON object out of a model reply, tolerating markdown
// code fences and surrounding prose but nothing looser than that.
func extractJSON(content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no json object in reply")
	}
	candidate := trimmed[start : end+1]

	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("invalid json in reply")
	}
	return json.RawMessage(candidate), nil
}
