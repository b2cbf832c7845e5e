package service

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/models"
	"github.com/noah-isme/kompas-go-api/internal/repository"
)

func newForecastFixture(t *testing.T) (*gorm.DB, ForecastService) {
	t.Helper()
	db := setupServiceDB(t)
	svc := NewForecastService(
		repository.NewStudentRepository(db),
		repository.NewGradeRepository(db),
		repository.NewForecastRepository(db),
		zerolog.Nop(),
	)
	return db, svc
}

func seedGrades(t *testing.T, db *gorm.DB, studentID string, grades []models.Grade) {
	t.Helper()
	require.NoError(t, db.Create(&models.Student{ID: studentID, Name: "Linh Tran", Age: 16}).Error)
	for i := range grades {
		grades[i].StudentID = studentID
	}
	require.NoError(t, repository.NewGradeRepository(db).CreateBatch(context.Background(), grades))
}

func TestForecastGenerateFitsLinearTrend(t *testing.T) {
	db, svc := newForecastFixture(t)
	seedGrades(t, db, "sv-001", []models.Grade{
		{Subject: "Mathematics", GradeLevel: 9, Score: 8.2},
		{Subject: "Mathematics", GradeLevel: 10, Score: 8.6},
	})

	forecasts, err := svc.Generate(context.Background(), "sv-001")
	require.NoError(t, err)
	require.Len(t, forecasts, 1)

	// Slope 0.4 per level, intercept 4.6, so grade 12 projects to 9.4 with a
	// band of one sample standard deviation (sqrt(0.08)).
	f := forecasts[0]
	require.Equal(t, "Mathematics", f.Subject)
	require.InDelta(t, 9.4, f.PredictedScore, 1e-9)
	std := math.Sqrt(0.08)
	require.InDelta(t, 9.4-std, f.ConfidenceLower, 1e-9)
	require.InDelta(t, 9.4+std, f.ConfidenceUpper, 1e-9)
	require.Equal(t, models.ForecastModelLinearV1, f.ModelVersion)
}

func TestForecastGenerateClampsToScoreRange(t *testing.T) {
	db, svc := newForecastFixture(t)
	seedGrades(t, db, "sv-001", []models.Grade{
		{Subject: "Physics", GradeLevel: 9, Score: 9.6},
		{Subject: "Physics", GradeLevel: 10, Score: 9.8},
		{Subject: "History", GradeLevel: 9, Score: 1.0},
		{Subject: "History", GradeLevel: 10, Score: 0.2},
	})

	forecasts, err := svc.Generate(context.Background(), "sv-001")
	require.NoError(t, err)
	require.Len(t, forecasts, 2)

	byID := make(map[string]models.Forecast, len(forecasts))
	for _, f := range forecasts {
		byID[f.Subject] = f
	}

	// Physics trends above the scale: prediction and upper bound pin at 10.
	phys := byID["Physics"]
	require.InDelta(t, 10.0, phys.PredictedScore, 1e-9)
	require.InDelta(t, 10.0, phys.ConfidenceUpper, 1e-9)
	require.InDelta(t, 10.0-math.Sqrt(0.02), phys.ConfidenceLower, 1e-9)

	// History trends below zero: prediction and lower bound pin at 0.
	hist := byID["History"]
	require.InDelta(t, 0.0, hist.PredictedScore, 1e-9)
	require.InDelta(t, 0.0, hist.ConfidenceLower, 1e-9)
	require.InDelta(t, math.Sqrt(0.32), hist.ConfidenceUpper, 1e-9)
}

func TestForecastGenerateFlatTrendWhenSingleLevel(t *testing.T) {
	db, svc := newForecastFixture(t)
	sem1, sem2 := 1, 2
	seedGrades(t, db, "sv-001", []models.Grade{
		{Subject: "Literature", GradeLevel: 10, Score: 7.0, Semester: &sem1},
		{Subject: "Literature", GradeLevel: 10, Score: 8.0, Semester: &sem2},
	})

	forecasts, err := svc.Generate(context.Background(), "sv-001")
	require.NoError(t, err)
	require.Len(t, forecasts, 1)

	// Both points share one grade level, so the fit degrades to the mean.
	require.InDelta(t, 7.5, forecasts[0].PredictedScore, 1e-9)
	require.InDelta(t, 7.5-math.Sqrt(0.5), forecasts[0].ConfidenceLower, 1e-9)
	require.InDelta(t, 7.5+math.Sqrt(0.5), forecasts[0].ConfidenceUpper, 1e-9)
}

func TestForecastGenerateSkipsThinSubjects(t *testing.T) {
	db, svc := newForecastFixture(t)
	seedGrades(t, db, "sv-001", []models.Grade{
		{Subject: "Biology", GradeLevel: 10, Score: 6.5},
		{Subject: "Chemistry", GradeLevel: 9, Score: 7.0},
		{Subject: "Chemistry", GradeLevel: 10, Score: 7.4},
	})

	forecasts, err := svc.Generate(context.Background(), "sv-001")
	require.NoError(t, err)
	require.Len(t, forecasts, 1)
	require.Equal(t, "Chemistry", forecasts[0].Subject)
}

func TestForecastGenerateInsufficientHistory(t *testing.T) {
	db, svc := newForecastFixture(t)
	seedGrades(t, db, "sv-001", []models.Grade{
		{Subject: "Biology", GradeLevel: 10, Score: 6.5},
	})

	_, err := svc.Generate(context.Background(), "sv-001")
	require.ErrorIs(t, err, ErrInsufficientHistory)

	// The failed run must not disturb stored forecasts.
	stored, err := svc.ListByStudent(context.Background(), "sv-001")
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestForecastGenerateReplacesStaleForecasts(t *testing.T) {
	db, svc := newForecastFixture(t)
	seedGrades(t, db, "sv-001", []models.Grade{
		{Subject: "Mathematics", GradeLevel: 9, Score: 8.0},
		{Subject: "Mathematics", GradeLevel: 10, Score: 8.4},
	})
	require.NoError(t, db.Create(&models.Forecast{
		StudentID:      "sv-001",
		Subject:        "Retired Subject",
		PredictedScore: 5.0,
		ModelVersion:   models.ForecastModelLinearV1,
	}).Error)

	_, err := svc.Generate(context.Background(), "sv-001")
	require.NoError(t, err)

	stored, err := svc.ListByStudent(context.Background(), "sv-001")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "Mathematics", stored[0].Subject)
}

func TestForecastStudentNotFound(t *testing.T) {
	_, svc := newForecastFixture(t)

	_, err := svc.Generate(context.Background(), "missing")
	require.ErrorIs(t, err, ErrStudentNotFound)

	_, err = svc.ListByStudent(context.Background(), "missing")
	require.ErrorIs(t, err, ErrStudentNotFound)
}
