package service

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/models"
	"github.com/noah-isme/kompas-go-api/internal/repository"
)

// ErrInsufficientHistory indicates no subject has enough grades to fit a trend.
var ErrInsufficientHistory = errors.New("not enough grade history to forecast")

// ForecastService fits per-subject score trends and projects grade-12 results.
type ForecastService interface {
	Generate(ctx context.Context, studentID string) ([]models.Forecast, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Forecast, error)
}

type forecastService struct {
	students  repository.StudentRepository
	grades    repository.GradeRepository
	forecasts repository.ForecastRepository
	logger    zerolog.Logger
}

// NewForecastService constructs the grade forecaster.
func NewForecastService(students repository.StudentRepository, grades repository.GradeRepository, forecasts repository.ForecastRepository, logger zerolog.Logger) ForecastService {
	return &forecastService{
		students:  students,
		grades:    grades,
		forecasts: forecasts,
		logger:    logger.With().Str("component", "forecast_service").Logger(),
	}
}

// Generate refits every subject trend from the student's current grades and
// replaces the stored forecasts. Subjects with fewer than two data points are
// skipped; if nothing is forecastable the call fails with
// ErrInsufficientHistory and stored forecasts are left untouched.
func (s *forecastService) Generate(ctx context.Context, studentID string) ([]models.Forecast, error) {
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	grades, err := s.grades.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	forecasts := make([]models.Forecast, 0)
	for _, series := range groupBySubject(grades) {
		if len(series.points) < 2 {
			s.logger.Debug().
				Str("student_id", studentID).
				Str("subject", series.subject).
				Int("points", len(series.points)).
				Msg("subject skipped, not enough data to fit")
			continue
		}
		forecasts = append(forecasts, fitForecast(studentID, series))
	}
	if len(forecasts) == 0 {
		return nil, ErrInsufficientHistory
	}

	if err := s.forecasts.ReplaceForStudent(ctx, studentID, forecasts); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("student_id", studentID).
		Int("subjects", len(forecasts)).
		Msg("forecasts regenerated")
	return forecasts, nil
}

func (s *forecastService) ListByStudent(ctx context.Context, studentID string) ([]models.Forecast, error) {
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return s.forecasts.ListByStudent(ctx, studentID)
}

type gradePoint struct {
	level int
	score float64
}

type subjectSeries struct {
	subject string
	points  []gradePoint
}

// groupBySubject preserves the repository's subject ordering so regenerated
// forecasts come out in a stable order.
func groupBySubject(grades []models.Grade) []subjectSeries {
	var out []subjectSeries
	index := make(map[string]int)
	for _, g := range grades {
		i, ok := index[g.Subject]
		if !ok {
			i = len(out)
			index[g.Subject] = i
			out = append(out, subjectSeries{subject: g.Subject})
		}
		out[i].points = append(out[i].points, gradePoint{level: g.GradeLevel, score: g.Score})
	}
	return out
}

// fitForecast runs an ordinary least-squares fit over (grade level, score)
// and projects grade 12, clamped to the valid score range. The confidence
// band is one sample standard deviation of the observed scores.
func fitForecast(studentID string, series subjectSeries) models.Forecast {
	n := float64(len(series.points))
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range series.points {
		x := float64(p.level)
		sumX += x
		sumY += p.score
		sumXY += x * p.score
		sumXX += x * x
	}

	// All observations at the same grade level leave the slope undefined;
	// fall back to a flat trend through the mean.
	var slope, intercept float64
	denom := n*sumXX - sumX*sumX
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
		intercept = (sumY - slope*sumX) / n
	} else {
		intercept = sumY / n
	}

	predicted := clampScore(intercept + slope*12)

	mean := sumY / n
	var ss float64
	for _, p := range series.points {
		d := p.score - mean
		ss += d * d
	}
	std := math.Sqrt(ss / (n - 1))

	return models.Forecast{
		StudentID:       studentID,
		Subject:         series.subject,
		PredictedScore:  predicted,
		ConfidenceLower: clampScore(predicted - std),
		ConfidenceUpper: clampScore(predicted + std),
		ModelVersion:    models.ForecastModelLinearV1,
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > models.GradeScoreMax {
		return models.GradeScoreMax
	}
	return v
}
