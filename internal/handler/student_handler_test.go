package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kompas-go-api/internal/dto"
	"github.com/noah-isme/kompas-go-api/internal/handler"
	"github.com/noah-isme/kompas-go-api/internal/service"
)

type stubStudentService struct {
	create       func(ctx context.Context, req dto.CreateStudentRequest) (dto.StudentResponse, error)
	get          func(ctx context.Context, id string) (dto.StudentDetailResponse, error)
	list         func(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error)
	update       func(ctx context.Context, id string, req dto.UpdateStudentRequest) (dto.StudentResponse, error)
	remove       func(ctx context.Context, id string) error
	addGrades    func(ctx context.Context, id string, req dto.AddGradesRequest) ([]dto.GradeResponse, error)
	importRoster func(ctx context.Context, r io.Reader) (dto.RosterImportResponse, error)
	exportRoster func(ctx context.Context, id string, w io.Writer) error
}

func (s *stubStudentService) Create(ctx context.Context, req dto.CreateStudentRequest) (dto.StudentResponse, error) {
	return s.create(ctx, req)
}

func (s *stubStudentService) Get(ctx context.Context, id string) (dto.StudentDetailResponse, error) {
	return s.get(ctx, id)
}

func (s *stubStudentService) List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	return s.list(ctx, req)
}

func (s *stubStudentService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (dto.StudentResponse, error) {
	return s.update(ctx, id, req)
}

func (s *stubStudentService) Delete(ctx context.Context, id string) error {
	return s.remove(ctx, id)
}

func (s *stubStudentService) AddGrades(ctx context.Context, id string, req dto.AddGradesRequest) ([]dto.GradeResponse, error) {
	return s.addGrades(ctx, id, req)
}

func (s *stubStudentService) ImportRoster(ctx context.Context, r io.Reader) (dto.RosterImportResponse, error) {
	return s.importRoster(ctx, r)
}

func (s *stubStudentService) ExportRoster(ctx context.Context, id string, w io.Writer) error {
	return s.exportRoster(ctx, id, w)
}

func newStudentApp(svc service.StudentService) *fiber.App {
	app := fiber.New()
	handler.NewStudentHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v2/students"))
	return app
}

func TestStudentHandlerCreate(t *testing.T) {
	var captured dto.CreateStudentRequest
	svc := &stubStudentService{
		create: func(_ context.Context, req dto.CreateStudentRequest) (dto.StudentResponse, error) {
			captured = req
			return dto.StudentResponse{ID: req.ID, Name: req.Name}, nil
		},
	}
	app := newStudentApp(svc)

	body, err := json.Marshal(dto.CreateStudentRequest{ID: "sv-001", Name: "Linh Tran", Age: 16})
	require.NoError(t, err)

	resp := performRequest(t, app, http.MethodPost, "/api/v2/students", bytes.NewReader(body), jsonHeaders())
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Data    dto.StudentResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "student created", payload.Message)
	require.Equal(t, "sv-001", payload.Data.ID)
	require.Equal(t, "Linh Tran", captured.Name)
}

func TestStudentHandlerCreateConflict(t *testing.T) {
	svc := &stubStudentService{
		create: func(context.Context, dto.CreateStudentRequest) (dto.StudentResponse, error) {
			return dto.StudentResponse{}, service.ErrStudentExists
		},
	}
	app := newStudentApp(svc)

	resp := performRequest(t, app, http.MethodPost, "/api/v2/students", bytes.NewReader([]byte(`{"id":"sv-001","name":"Linh"}`)), jsonHeaders())
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestStudentHandlerCreateValidation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	verr := validate.Struct(dto.CreateStudentRequest{})
	require.Error(t, verr)

	svc := &stubStudentService{
		create: func(context.Context, dto.CreateStudentRequest) (dto.StudentResponse, error) {
			return dto.StudentResponse{}, verr
		},
	}
	app := newStudentApp(svc)

	resp := performRequest(t, app, http.MethodPost, "/api/v2/students", bytes.NewReader([]byte(`{}`)), jsonHeaders())
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &payload)
	require.False(t, payload.Success)
	require.Contains(t, payload.Message, "required")
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	svc := &stubStudentService{
		get: func(context.Context, string) (dto.StudentDetailResponse, error) {
			return dto.StudentDetailResponse{}, service.ErrStudentNotFound
		},
	}
	app := newStudentApp(svc)

	resp := performRequest(t, app, http.MethodGet, "/api/v2/students/sv-404", nil, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestStudentHandlerListClampsPage(t *testing.T) {
	var captured dto.StudentListRequest
	svc := &stubStudentService{
		list: func(_ context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
			captured = req
			return dto.StudentListResponse{Items: []dto.StudentResponse{}}, nil
		},
	}
	app := newStudentApp(svc)

	resp := performRequest(t, app, http.MethodGet, "/api/v2/students?page=-3&page_size=10&search=Linh", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 1, captured.Page)
	require.Equal(t, 10, captured.PageSize)
	require.Equal(t, "Linh", captured.Search)

	resp = performRequest(t, app, http.MethodGet, "/api/v2/students?page=abc", nil, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStudentHandlerImportRoster(t *testing.T) {
	var uploaded []byte
	var readErr error
	svc := &stubStudentService{
		importRoster: func(_ context.Context, r io.Reader) (dto.RosterImportResponse, error) {
			uploaded, readErr = io.ReadAll(r)
			return dto.RosterImportResponse{StudentsCreated: 2, GradesCreated: 3, RowsSkipped: 1}, nil
		},
	}
	app := newStudentApp(svc)

	csvBody := "student_id,student_name,subject,grade_level,score\nsv-001,Linh Tran,Mathematics,10,8.5\n"
	body, contentType := multipartUpload(t, "file", "roster.csv", []byte(csvBody), nil)

	resp := performRequest(t, app, http.MethodPost, "/api/v2/students/import", body, map[string]string{"Content-Type": contentType})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data dto.RosterImportResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, 2, payload.Data.StudentsCreated)
	require.NoError(t, readErr)
	require.Equal(t, csvBody, string(uploaded))
}

func TestStudentHandlerImportRejectsBinary(t *testing.T) {
	var called bool
	svc := &stubStudentService{
		importRoster: func(context.Context, io.Reader) (dto.RosterImportResponse, error) {
			called = true
			return dto.RosterImportResponse{}, nil
		},
	}
	app := newStudentApp(svc)

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0}, 64)...)
	body, contentType := multipartUpload(t, "file", "roster.csv", png, nil)

	resp := performRequest(t, app, http.MethodPost, "/api/v2/students/import", body, map[string]string{"Content-Type": contentType})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.False(t, called)

	resp = performRequest(t, app, http.MethodPost, "/api/v2/students/import", bytes.NewReader(nil), nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStudentHandlerExportGrades(t *testing.T) {
	var exportedID string
	svc := &stubStudentService{
		exportRoster: func(_ context.Context, id string, w io.Writer) error {
			exportedID = id
			_, err := io.WriteString(w, "student_id,subject\nsv-001,Mathematics\n")
			return err
		},
	}
	app := newStudentApp(svc)

	resp := performRequest(t, app, http.MethodGet, "/api/v2/students/sv-001/grades/export", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "sv-001", exportedID)
	require.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/csv")
	require.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "sv-001-grades.csv")

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(data), "sv-001,Mathematics")
}

func TestStudentHandlerDelete(t *testing.T) {
	var deletedID string
	svc := &stubStudentService{
		remove: func(_ context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	app := newStudentApp(svc)

	resp := performRequest(t, app, http.MethodDelete, "/api/v2/students/sv-001", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "sv-001", deletedID)
}

func jsonHeaders() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func multipartUpload(t *testing.T, field, filename string, content []byte, extraFields map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for key, value := range extraFields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
