package service

import (
	"context"
	"crypto/subtle"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kompas-go-api/internal/assessment"
	"github.com/noah-isme/kompas-go-api/internal/dto"
	"github.com/noah-isme/kompas-go-api/internal/models"
	"github.com/noah-isme/kompas-go-api/internal/repository"
)

var (
	// ErrFrameworkUnauthorized indicates the provided admin token is invalid.
	ErrFrameworkUnauthorized = errors.New("invalid framework admin token")
	// ErrFrameworkVersionNotFound indicates no questions exist for the version.
	ErrFrameworkVersionNotFound = errors.New("framework version not found")
	// ErrFrameworkHeader indicates the framework CSV is missing required columns.
	ErrFrameworkHeader = errors.New("framework csv missing required columns")
	// ErrFrameworkCSV indicates the framework CSV failed row validation.
	ErrFrameworkCSV = errors.New("invalid framework csv")
)

var frameworkColumns = []string{"riasec_code", "career_category", "question"}

// FrameworkService manages versioned question frameworks. Imports replace a
// whole version atomically; versions referenced by past runs stay untouched.
type FrameworkService interface {
	Import(ctx context.Context, token, version string, r io.Reader) (dto.FrameworkImportResponse, error)
	Export(ctx context.Context, token, version string, w io.Writer) error
	List(ctx context.Context, version string) ([]dto.FrameworkQuestionResponse, error)
	Versions(ctx context.Context) (dto.FrameworkVersionsResponse, error)
}

type frameworkService struct {
	frameworks    repository.FrameworkRepository
	adminToken    string
	activeVersion string
	logger        zerolog.Logger
}

// NewFrameworkService constructs the framework administration service.
func NewFrameworkService(frameworks repository.FrameworkRepository, adminToken, activeVersion string, logger zerolog.Logger) FrameworkService {
	return &frameworkService{
		frameworks:    frameworks,
		adminToken:    adminToken,
		activeVersion: activeVersion,
		logger:        logger.With().Str("component", "framework_service").Logger(),
	}
}

// Import parses and validates the question CSV, then replaces the version in
// one transaction. Any malformed row rejects the whole file; a framework with
// a silently dropped question would skew every score computed from it.
func (s *frameworkService) Import(ctx context.Context, token, version string, r io.Reader) (dto.FrameworkImportResponse, error) {
	if !s.validToken(token) {
		return dto.FrameworkImportResponse{}, ErrFrameworkUnauthorized
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return dto.FrameworkImportResponse{}, fmt.Errorf("framework version is required")
	}

	questions, err := parseFrameworkCSV(version, r)
	if err != nil {
		return dto.FrameworkImportResponse{}, err
	}

	if err := s.frameworks.ReplaceVersion(ctx, version, questions); err != nil {
		return dto.FrameworkImportResponse{}, err
	}
	s.logger.Info().Str("version", version).Int("questions", len(questions)).Msg("framework version imported")
	return dto.FrameworkImportResponse{Version: version, Questions: len(questions)}, nil
}

// Export writes a version back out in the import column layout, so an
// exported file can be re-imported as-is.
func (s *frameworkService) Export(ctx context.Context, token, version string, w io.Writer) error {
	if !s.validToken(token) {
		return ErrFrameworkUnauthorized
	}
	questions, err := s.frameworks.ListByVersion(ctx, version)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return ErrFrameworkVersionNotFound
	}

	writer := csv.NewWriter(w)
	header := []string{"riasec_code", "career_category", "question", "key_subjects", "required_grades", "weight", "description"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, q := range questions {
		row := []string{
			q.CategoryCode,
			q.CareerCategory,
			q.Question,
			q.KeySubjects,
			q.RequiredGrades,
			strconv.FormatFloat(q.Weight, 'g', -1, 64),
			q.Description,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (s *frameworkService) List(ctx context.Context, version string) ([]dto.FrameworkQuestionResponse, error) {
	questions, err := s.frameworks.ListByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrFrameworkVersionNotFound
	}
	return dto.NewFrameworkQuestionResponseSlice(questions), nil
}

func (s *frameworkService) Versions(ctx context.Context) (dto.FrameworkVersionsResponse, error) {
	versions, err := s.frameworks.Versions(ctx)
	if err != nil {
		return dto.FrameworkVersionsResponse{}, err
	}
	return dto.FrameworkVersionsResponse{Versions: versions, Active: s.activeVersion}, nil
}

func (s *frameworkService) validToken(token string) bool {
	expected := strings.TrimSpace(s.adminToken)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

func parseFrameworkCSV(version string, r io.Reader) ([]models.FrameworkQuestion, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameworkHeader, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range frameworkColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrFrameworkHeader, required)
		}
	}

	var questions []models.FrameworkQuestion
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrFrameworkCSV, row, err)
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		code := field("riasec_code")
		if !assessment.Category(code).Valid() {
			return nil, fmt.Errorf("%w: row %d: invalid riasec_code %q", ErrFrameworkCSV, row, code)
		}
		text := field("question")
		if text == "" {
			return nil, fmt.Errorf("%w: row %d: empty question", ErrFrameworkCSV, row)
		}

		weight := 1.0
		if raw := field("weight"); raw != "" {
			weight, err = strconv.ParseFloat(raw, 64)
			if err != nil || weight <= 0 {
				return nil, fmt.Errorf("%w: row %d: invalid weight %q", ErrFrameworkCSV, row, raw)
			}
		}

		questions = append(questions, models.FrameworkQuestion{
			Version:        version,
			CategoryCode:   code,
			CareerCategory: field("career_category"),
			Question:       text,
			KeySubjects:    field("key_subjects"),
			RequiredGrades: field("required_grades"),
			Weight:         weight,
			Description:    field("description"),
		})
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no question rows", ErrFrameworkCSV)
	}
	return questions, nil
}
