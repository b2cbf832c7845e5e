package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/assessment"
	"github.com/noah-isme/kompas-go-api/internal/dto"
	"github.com/noah-isme/kompas-go-api/internal/models"
	"github.com/noah-isme/kompas-go-api/internal/repository"
)

// ErrNoAssessment indicates the student has no completed run on record.
var ErrNoAssessment = errors.New("no assessment result for student")

// frameworkLoader adapts the framework repository to the engine's loader
// contract.
type frameworkLoader struct {
	repo repository.FrameworkRepository
}

// NewFrameworkLoader exposes stored framework versions to the pipeline.
func NewFrameworkLoader(repo repository.FrameworkRepository) assessment.FrameworkLoader {
	return frameworkLoader{repo: repo}
}

func (l frameworkLoader) LoadFramework(ctx context.Context, version string) ([]assessment.Question, error) {
	rows, err := l.repo.ListByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	questions := make([]assessment.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, assessment.Question{
			ID:               row.ID,
			FrameworkVersion: row.Version,
			Category:         assessment.Category(row.CategoryCode),
			CategoryName:     row.CareerCategory,
			Text:             row.Question,
			KeySubjects:      splitList(row.KeySubjects),
			ThresholdExpr:    row.RequiredGrades,
			Weight:           row.Weight,
			Description:      row.Description,
		})
	}
	return questions, nil
}

// subjectLoader adapts the student, grade and forecast repositories to the
// engine's context input.
type subjectLoader struct {
	students  repository.StudentRepository
	grades    repository.GradeRepository
	forecasts repository.ForecastRepository
}

// NewSubjectLoader exposes stored student records to the pipeline.
func NewSubjectLoader(students repository.StudentRepository, grades repository.GradeRepository, forecasts repository.ForecastRepository) assessment.SubjectLoader {
	return subjectLoader{students: students, grades: grades, forecasts: forecasts}
}

func (l subjectLoader) LoadSubject(ctx context.Context, subjectID string) (assessment.ContextInput, error) {
	student, err := l.students.GetByID(ctx, subjectID)
	if err != nil {
		return assessment.ContextInput{}, err
	}
	grades, err := l.grades.ListByStudent(ctx, subjectID)
	if err != nil {
		return assessment.ContextInput{}, err
	}
	forecasts, err := l.forecasts.ListByStudent(ctx, subjectID)
	if err != nil {
		return assessment.ContextInput{}, err
	}

	input := assessment.ContextInput{
		Profile: assessment.SubjectProfile{
			ID:     student.ID,
			Name:   student.Name,
			Age:    student.Age,
			School: student.School,
			Notes:  student.Notes,
		},
		Scores:    make([]assessment.ScoreRecord, 0, len(grades)),
		Forecasts: make([]assessment.ForecastValue, 0, len(forecasts)),
	}
	for _, g := range grades {
		input.Scores = append(input.Scores, assessment.ScoreRecord{
			Field: g.Subject,
			Level: g.GradeLevel,
			Value: g.Score,
		})
	}
	for _, f := range forecasts {
		input.Forecasts = append(input.Forecasts, assessment.ForecastValue{
			Field: f.Subject,
			Value: f.PredictedScore,
			Lower: f.ConfidenceLower,
			Upper: f.ConfidenceUpper,
		})
	}
	return input, nil
}

// AssessmentService runs career assessments and serves persisted results.
type AssessmentService interface {
	Run(ctx context.Context, studentID string, req dto.RunAssessmentRequest) (dto.AssessmentResultResponse, error)
	Latest(ctx context.Context, studentID string) (dto.AssessmentResultResponse, error)
}

type assessmentService struct {
	pipeline       *assessment.Pipeline
	students       repository.StudentRepository
	results        repository.AssessmentRepository
	validator      *validator.Validate
	defaultVersion string
	logger         zerolog.Logger
}

// NewAssessmentService constructs the assessment application service.
func NewAssessmentService(pipeline *assessment.Pipeline, students repository.StudentRepository, results repository.AssessmentRepository, validate *validator.Validate, defaultVersion string, logger zerolog.Logger) AssessmentService {
	return &assessmentService{
		pipeline:       pipeline,
		students:       students,
		results:        results,
		validator:      validate,
		defaultVersion: defaultVersion,
		logger:         logger.With().Str("component", "assessment_service").Logger(),
	}
}

// Run executes a full assessment and persists it as the student's current
// result. A persistence failure fails the request, but a retried run replays
// almost entirely from the answer cache, so the rerun costs one synthesis
// call rather than a full evaluation pass.
func (s *assessmentService) Run(ctx context.Context, studentID string, req dto.RunAssessmentRequest) (dto.AssessmentResultResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssessmentResultResponse{}, err
	}
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResultResponse{}, ErrStudentNotFound
		}
		return dto.AssessmentResultResponse{}, err
	}

	version := strings.TrimSpace(req.FrameworkVersion)
	if version == "" {
		version = s.defaultVersion
	}

	result, err := s.pipeline.Run(ctx, assessment.RunInput{
		SubjectID:        studentID,
		FrameworkVersion: version,
		ModelID:          strings.TrimSpace(req.ModelID),
	})
	if err != nil {
		return dto.AssessmentResultResponse{}, err
	}

	response := dto.NewAssessmentRunResponse(*result)
	if err := s.persist(ctx, result, response); err != nil {
		s.logger.Error().Err(err).Str("run_id", result.RunID).Msg("failed to persist assessment result")
		return dto.AssessmentResultResponse{}, err
	}
	return response, nil
}

func (s *assessmentService) Latest(ctx context.Context, studentID string) (dto.AssessmentResultResponse, error) {
	row, err := s.results.LatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResultResponse{}, ErrNoAssessment
		}
		return dto.AssessmentResultResponse{}, err
	}
	answers, err := s.results.AnswersByRun(ctx, row.RunID)
	if err != nil {
		return dto.AssessmentResultResponse{}, err
	}
	return dto.NewAssessmentResultResponse(row, answers)
}

// persist stores the run as the student's sole result. Scores and ranked
// paths are saved in their response serialization, so reading them back is
// a plain decode with no re-derivation.
func (s *assessmentService) persist(ctx context.Context, result *assessment.RunResult, response dto.AssessmentResultResponse) error {
	scoresJSON, err := json.Marshal(response.Scores)
	if err != nil {
		return err
	}
	pathsJSON, err := json.Marshal(response.RankedPaths)
	if err != nil {
		return err
	}

	failedByCategory := datatypes.JSONMap{}
	for _, score := range result.Scores {
		if score.Failed > 0 {
			failedByCategory[string(score.Category)] = score.Failed
		}
	}

	row := models.AssessmentResult{
		RunID:              result.RunID,
		StudentID:          result.SubjectID,
		FrameworkVersion:   result.FrameworkVersion,
		ModelID:            result.ModelID,
		ContextFingerprint: result.Fingerprint,
		ProfileCode:        result.Recommendation.ProfileCode,
		RankedPaths:        datatypes.JSON(pathsJSON),
		Summary:            result.Recommendation.Summary,
		OverallConfidence:  result.Recommendation.OverallConfidence,
		Scores:             datatypes.JSON(scoresJSON),
		FailedByCategory:   failedByCategory,
		CacheHits:          result.Stats.CacheHits,
		CacheMisses:        result.Stats.CacheMisses,
		StartedAt:          result.StartedAt,
		CompletedAt:        result.CompletedAt,
	}

	answers := make([]models.AssessmentAnswer, 0, len(result.Transcript))
	for _, entry := range result.Transcript {
		answers = append(answers, models.AssessmentAnswer{
			RunID:            result.RunID,
			StudentID:        result.SubjectID,
			QuestionID:       entry.Question.ID,
			FrameworkVersion: entry.Question.FrameworkVersion,
			CategoryCode:     string(entry.Question.Category),
			Verdict:          string(entry.Answer.Verdict),
			Rationale:        entry.Answer.Rationale,
			Confidence:       entry.Answer.Confidence,
			Cached:           entry.Answer.Cached,
		})
	}

	return s.results.SaveRun(ctx, &row, answers)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
