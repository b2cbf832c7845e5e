package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/dto"
	"github.com/noah-isme/kompas-go-api/internal/models"
	"github.com/noah-isme/kompas-go-api/internal/repository"
)

var (
	// ErrStudentNotFound indicates the student ID is unknown.
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentExists indicates a create collided with an existing ID.
	ErrStudentExists = errors.New("student already exists")
	// ErrRosterHeader indicates the roster CSV is missing required columns.
	ErrRosterHeader = errors.New("roster csv missing required columns")
)

const (
	studentListDefaultPageSize = 50
	studentListMaxPageSize     = 100
)

// rosterColumns are the required roster CSV columns; age, school, notes and
// semester are optional.
var rosterColumns = []string{"student_id", "student_name", "subject", "grade_level", "score"}

// StudentService manages student profiles and their score histories.
type StudentService interface {
	Create(ctx context.Context, req dto.CreateStudentRequest) (dto.StudentResponse, error)
	Get(ctx context.Context, id string) (dto.StudentDetailResponse, error)
	List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error)
	Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (dto.StudentResponse, error)
	Delete(ctx context.Context, id string) error
	AddGrades(ctx context.Context, id string, req dto.AddGradesRequest) ([]dto.GradeResponse, error)
	ImportRoster(ctx context.Context, r io.Reader) (dto.RosterImportResponse, error)
	ExportRoster(ctx context.Context, id string, w io.Writer) error
}

type studentService struct {
	students  repository.StudentRepository
	grades    repository.GradeRepository
	forecasts repository.ForecastRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewStudentService constructs the student profile service. Free-text notes
// pass through a strict HTML sanitizer before they reach storage, because
// notes are later embedded verbatim into evaluation prompts.
func NewStudentService(students repository.StudentRepository, grades repository.GradeRepository, forecasts repository.ForecastRepository, validate *validator.Validate, logger zerolog.Logger) StudentService {
	return &studentService{
		students:  students,
		grades:    grades,
		forecasts: forecasts,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) Create(ctx context.Context, req dto.CreateStudentRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	if _, err := s.students.GetByID(ctx, req.ID); err == nil {
		return dto.StudentResponse{}, ErrStudentExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		ID:     strings.TrimSpace(req.ID),
		Name:   strings.TrimSpace(req.Name),
		Age:    req.Age,
		School: strings.TrimSpace(req.School),
		Notes:  s.cleanNotes(req.Notes),
	}
	if err := s.students.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}
	s.logger.Info().Str("student_id", student.ID).Msg("student created")
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Get(ctx context.Context, id string) (dto.StudentDetailResponse, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentDetailResponse{}, ErrStudentNotFound
		}
		return dto.StudentDetailResponse{}, err
	}

	grades, err := s.grades.ListByStudent(ctx, id)
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}
	forecasts, err := s.forecasts.ListByStudent(ctx, id)
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}

	return dto.StudentDetailResponse{
		StudentResponse: dto.NewStudentResponse(student),
		Grades:          dto.NewGradeResponseSlice(grades),
		Forecasts:       dto.NewForecastResponseSlice(forecasts),
	}, nil
}

func (s *studentService) List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = studentListDefaultPageSize
	}
	if pageSize > studentListMaxPageSize {
		pageSize = studentListMaxPageSize
	}

	students, total, err := s.students.List(ctx, strings.TrimSpace(req.Search), pageSize, (page-1)*pageSize)
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return dto.StudentListResponse{
		Items: dto.NewStudentResponseSlice(students),
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *studentService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}

	if req.Name != nil {
		student.Name = strings.TrimSpace(*req.Name)
	}
	if req.Age != nil {
		student.Age = *req.Age
	}
	if req.School != nil {
		student.School = strings.TrimSpace(*req.School)
	}
	if req.Notes != nil {
		student.Notes = s.cleanNotes(*req.Notes)
	}

	if err := s.students.Update(ctx, &student); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Delete(ctx context.Context, id string) error {
	if err := s.students.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}
	s.logger.Info().Str("student_id", id).Msg("student deleted")
	return nil
}

func (s *studentService) AddGrades(ctx context.Context, id string, req dto.AddGradesRequest) ([]dto.GradeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.students.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	grades := make([]models.Grade, 0, len(req.Grades))
	for _, g := range req.Grades {
		grades = append(grades, models.Grade{
			StudentID:  id,
			Subject:    strings.TrimSpace(g.Subject),
			GradeLevel: g.GradeLevel,
			Score:      g.Score,
			Semester:   g.Semester,
		})
	}
	if err := s.grades.CreateBatch(ctx, grades); err != nil {
		return nil, err
	}
	s.logger.Info().Str("student_id", id).Int("grades", len(grades)).Msg("grades recorded")
	return dto.NewGradeResponseSlice(grades), nil
}

// ImportRoster ingests the flat roster CSV: one row per grade, student
// columns repeated. Students are upserted once per file, grades appended.
// Malformed rows are skipped and counted rather than failing the upload.
func (s *studentService) ImportRoster(ctx context.Context, r io.Reader) (dto.RosterImportResponse, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return dto.RosterImportResponse{}, fmt.Errorf("%w: %v", ErrRosterHeader, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range rosterColumns {
		if _, ok := cols[required]; !ok {
			return dto.RosterImportResponse{}, fmt.Errorf("%w: %s", ErrRosterHeader, required)
		}
	}

	var stats dto.RosterImportResponse
	seen := make(map[string]struct{})
	var grades []models.Grade

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stats.RowsSkipped++
			continue
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		studentID := field("student_id")
		if studentID == "" {
			stats.RowsSkipped++
			continue
		}

		if _, ok := seen[studentID]; !ok {
			age, _ := strconv.Atoi(field("age"))
			student := models.Student{
				ID:     studentID,
				Name:   field("student_name"),
				Age:    age,
				School: field("school"),
				Notes:  s.cleanNotes(field("notes")),
			}
			if student.Name == "" {
				stats.RowsSkipped++
				continue
			}
			if err := s.students.Upsert(ctx, &student); err != nil {
				return stats, err
			}
			seen[studentID] = struct{}{}
			stats.StudentsCreated++
		}

		grade, ok := parseRosterGrade(studentID, field)
		if !ok {
			stats.RowsSkipped++
			continue
		}
		grades = append(grades, grade)
		stats.GradesCreated++
	}

	if len(grades) > 0 {
		if err := s.grades.CreateBatch(ctx, grades); err != nil {
			return stats, err
		}
	}

	s.logger.Info().
		Int("students", stats.StudentsCreated).
		Int("grades", stats.GradesCreated).
		Int("skipped", stats.RowsSkipped).
		Msg("roster imported")
	return stats, nil
}

// ExportRoster writes the student's record in the same CSV shape the import
// accepts, so an export can be re-imported unchanged.
func (s *studentService) ExportRoster(ctx context.Context, id string, w io.Writer) error {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}
	grades, err := s.grades.ListByStudent(ctx, id)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	header := []string{"student_id", "student_name", "age", "school", "notes", "subject", "grade_level", "score", "semester"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, g := range grades {
		semester := ""
		if g.Semester != nil {
			semester = strconv.Itoa(*g.Semester)
		}
		row := []string{
			student.ID,
			student.Name,
			strconv.Itoa(student.Age),
			student.School,
			student.Notes,
			g.Subject,
			strconv.Itoa(g.GradeLevel),
			strconv.FormatFloat(g.Score, 'f', -1, 64),
			semester,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (s *studentService) cleanNotes(notes string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(notes))
}

func parseRosterGrade(studentID string, field func(string) string) (models.Grade, bool) {
	level, err := strconv.Atoi(field("grade_level"))
	if err != nil {
		return models.Grade{}, false
	}
	score, err := strconv.ParseFloat(field("score"), 64)
	if err != nil {
		return models.Grade{}, false
	}

	grade := models.Grade{
		StudentID:  studentID,
		Subject:    field("subject"),
		GradeLevel: level,
		Score:      score,
	}
	if grade.Subject == "" || !grade.ValidLevel() || score < 0 || score > models.GradeScoreMax {
		return models.Grade{}, false
	}
	if raw := field("semester"); raw != "" {
		if semester, err := strconv.Atoi(raw); err == nil {
			grade.Semester = &semester
		}
	}
	return grade, true
}
