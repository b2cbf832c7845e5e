package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/dto"
	"github.com/noah-isme/kompas-go-api/internal/observability"
	"github.com/noah-isme/kompas-go-api/internal/repository"
	"github.com/noah-isme/kompas-go-api/pkg/ai"
)

const (
	advisorSendBufferSize = 8
	advisorHistoryLimit   = 10
	advisorCallTimeout    = 45 * time.Second
)

var advisorReplySchema = ai.MustCompileSchema("advisor_reply", `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message": {"type": "string", "minLength": 1},
		"suggestions": {"type": "array", "items": {"type": "string"}},
		"related_topics": {"type": "array", "items": {"type": "string"}},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

// AdvisorConnectionOptions wraps metadata extracted during the HTTP upgrade.
type AdvisorConnectionOptions struct {
	StudentID     string
	CorrelationID string
	Context       context.Context
}

// AdvisorService runs websocket career-advice conversations grounded in the
// student's record and their persisted assessment.
type AdvisorService interface {
	ServeConnection(conn *websocket.Conn, opts AdvisorConnectionOptions)
}

type advisorService struct {
	students  repository.StudentRepository
	grades    repository.GradeRepository
	forecasts repository.ForecastRepository
	results   repository.AssessmentRepository
	asker     ai.Asker
	model     string
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewAdvisorService constructs the advisor chat service.
func NewAdvisorService(students repository.StudentRepository, grades repository.GradeRepository, forecasts repository.ForecastRepository, results repository.AssessmentRepository, asker ai.Asker, model string, validate *validator.Validate, logger zerolog.Logger) AdvisorService {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &advisorService{
		students:  students,
		grades:    grades,
		forecasts: forecasts,
		results:   results,
		asker:     asker,
		model:     model,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "advisor_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/kompas-go-api/internal/service/advisor"),
	}
}

// advisorSession is one live conversation. History lives only for the
// lifetime of the connection, like the original single-session chat.
type advisorSession struct {
	conn    *websocket.Conn
	send    chan dto.AdvisorReplyResponse
	options AdvisorConnectionOptions
	service *advisorService
	closed  chan struct{}
	once    sync.Once
	history []advisorTurn
	baseCtx context.Context
}

type advisorTurn struct {
	role    string
	content string
}

func (s *advisorService) ServeConnection(conn *websocket.Conn, opts AdvisorConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	session := &advisorSession{
		conn:    conn,
		send:    make(chan dto.AdvisorReplyResponse, advisorSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	observability.AdvisorSessions().Inc()
	s.logger.Debug().Str("student_id", opts.StudentID).Msg("advisor session opened")

	go session.writer()
	session.reader()
}

func (s *advisorService) process(ctx context.Context, session *advisorSession, payload dto.AdvisorAskRequest) dto.AdvisorReplyResponse {
	if err := s.validator.Struct(payload); err != nil {
		return s.failedReply("Your question could not be processed. Please send a short text message.", "invalid")
	}
	question := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if question == "" {
		return s.failedReply("Your question was empty after removing markup. Please rephrase it as plain text.", "invalid")
	}

	attrs := []attribute.KeyValue{
		attribute.String("advisor.student_id", session.options.StudentID),
	}
	if session.options.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation_id", session.options.CorrelationID))
	}
	spanCtx, span := s.tracer.Start(ctx, "advisor.reply", trace.WithAttributes(attrs...))
	defer span.End()

	grounding, err := s.buildGrounding(spanCtx, session.options.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.failedReply("I could not find your records. Please make sure your profile and assessment exist first.", "no_student")
		}
		span.RecordError(err)
		s.logger.Error().Err(err).Str("student_id", session.options.StudentID).Msg("failed to load advisor grounding")
		return s.failedReply("Something went wrong while loading your records. Please try again later.", "error")
	}

	callCtx, cancel := context.WithTimeout(spanCtx, advisorCallTimeout)
	defer cancel()

	raw, err := s.asker.Ask(callCtx, ai.Request{
		System:      advisorSystemPrompt(grounding),
		Prompt:      advisorUserPrompt(session.history, question),
		Model:       s.model,
		Temperature: 0.7,
		Schema:      advisorReplySchema,
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("student_id", session.options.StudentID).Msg("advisor reply failed")
		return s.failedReply("Something went wrong while answering your question. Please try again.", "error")
	}

	var reply dto.AdvisorReplyResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		span.RecordError(err)
		return s.failedReply("Something went wrong while answering your question. Please try again.", "error")
	}
	reply.At = time.Now().UTC()

	session.remember(advisorTurn{role: "student", content: question})
	session.remember(advisorTurn{role: "advisor", content: reply.Message})
	observability.AdvisorReplies().WithLabelValues("ok").Inc()
	return reply
}

func (s *advisorService) failedReply(message, outcome string) dto.AdvisorReplyResponse {
	observability.AdvisorReplies().WithLabelValues(outcome).Inc()
	return dto.AdvisorReplyResponse{
		Message:    message,
		Confidence: 0,
		At:         time.Now().UTC(),
	}
}

// advisorGrounding is the student snapshot rendered into the system prompt.
type advisorGrounding struct {
	student    dto.StudentResponse
	grades     []dto.GradeResponse
	forecasts  []dto.ForecastResponse
	assessment *dto.AssessmentResultResponse
}

func (s *advisorService) buildGrounding(ctx context.Context, studentID string) (advisorGrounding, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return advisorGrounding{}, err
	}
	grades, err := s.grades.ListByStudent(ctx, studentID)
	if err != nil {
		return advisorGrounding{}, err
	}
	forecasts, err := s.forecasts.ListByStudent(ctx, studentID)
	if err != nil {
		return advisorGrounding{}, err
	}

	grounding := advisorGrounding{
		student:   dto.NewStudentResponse(student),
		grades:    dto.NewGradeResponseSlice(grades),
		forecasts: dto.NewForecastResponseSlice(forecasts),
	}

	// A missing assessment narrows the advice, it does not block the chat.
	row, err := s.results.LatestByStudent(ctx, studentID)
	if err == nil {
		answers, answersErr := s.results.AnswersByRun(ctx, row.RunID)
		if answersErr != nil {
			return advisorGrounding{}, answersErr
		}
		result, convErr := dto.NewAssessmentResultResponse(row, answers)
		if convErr != nil {
			return advisorGrounding{}, convErr
		}
		grounding.assessment = &result
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return advisorGrounding{}, err
	}

	return grounding, nil
}

func advisorSystemPrompt(g advisorGrounding) string {
	var b strings.Builder
	b.WriteString("You are a friendly career advisor helping a student interpret their Holland Code (RIASEC) assessment and plan next steps.\n\n")

	b.WriteString("STUDENT:\n")
	fmt.Fprintf(&b, "- Name: %s\n- Age: %d\n- School: %s\n", g.student.Name, g.student.Age, g.student.School)
	if g.student.Notes != "" {
		fmt.Fprintf(&b, "- Notes: %s\n", g.student.Notes)
	}

	if len(g.grades) > 0 {
		b.WriteString("\nSCORE HISTORY (grade level: score, 0-10 scale):\n")
		for _, grade := range g.grades {
			fmt.Fprintf(&b, "- %s, grade %d: %.1f\n", grade.Subject, grade.GradeLevel, grade.Score)
		}
	}
	if len(g.forecasts) > 0 {
		b.WriteString("\nPROJECTED GRADE-12 SCORES:\n")
		for _, forecast := range g.forecasts {
			fmt.Fprintf(&b, "- %s: %.1f (range %.1f to %.1f)\n", forecast.Subject, forecast.PredictedScore, forecast.ConfidenceLower, forecast.ConfidenceUpper)
		}
	}

	if g.assessment != nil {
		b.WriteString("\nASSESSMENT RESULT:\n")
		fmt.Fprintf(&b, "- Holland profile: %s\n", g.assessment.ProfileCode)
		for _, score := range g.assessment.Scores {
			if score.Score == nil {
				fmt.Fprintf(&b, "- %s (%s): no data\n", score.Name, score.Category)
				continue
			}
			fmt.Fprintf(&b, "- %s (%s): %.1f/100\n", score.Name, score.Category, *score.Score)
		}
		if len(g.assessment.RankedPaths) > 0 {
			fmt.Fprintf(&b, "- Recommended paths: %s\n", strings.Join(g.assessment.RankedPaths, ", "))
		}
		if g.assessment.Summary != "" {
			fmt.Fprintf(&b, "- Summary: %s\n", g.assessment.Summary)
		}
	} else {
		b.WriteString("\nASSESSMENT RESULT: none yet. Encourage the student to complete an assessment for sharper guidance.\n")
	}

	b.WriteString("\nGuidelines: ground every answer in the record above, give concrete career and study examples, " +
		"suggest practical next steps, and answer in the language the student writes in. " +
		"Respond with a JSON object: {\"message\": string, \"suggestions\": [string], \"related_topics\": [string], \"confidence\": number between 0 and 1}.")
	return b.String()
}

// advisorUserPrompt folds the recent conversation into the prompt, oldest
// first, so follow-up questions keep their antecedents.
func advisorUserPrompt(history []advisorTurn, question string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("CONVERSATION SO FAR:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turn.role, turn.content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "NEW QUESTION: %s\n\nAnswer as the career advisor. Return JSON.", question)
	return b.String()
}

func (c *advisorSession) remember(turn advisorTurn) {
	c.history = append(c.history, turn)
	if len(c.history) > advisorHistoryLimit {
		c.history = c.history[len(c.history)-advisorHistoryLimit:]
	}
}

func (c *advisorSession) reader() {
	defer c.close()

	for {
		var payload dto.AdvisorAskRequest
		if err := c.conn.ReadJSON(&payload); err != nil {
			c.service.logger.Debug().Err(err).Msg("advisor read loop ended")
			return
		}

		reply := c.service.process(c.baseCtx, c, payload)

		select {
		case <-c.closed:
			return
		default:
		}

		select {
		case c.send <- reply:
		default:
			c.service.logger.Warn().Msg("advisor send queue full, dropping reply")
		}
	}
}

func (c *advisorSession) writer() {
	defer c.close()

	for {
		select {
		case reply, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(reply); err != nil {
				c.service.logger.Debug().Err(err).Msg("advisor write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("advisor ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *advisorSession) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
