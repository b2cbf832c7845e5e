package handler_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kompas-go-api/internal/dto"
	"github.com/noah-isme/kompas-go-api/internal/handler"
	"github.com/noah-isme/kompas-go-api/internal/service"
)

type stubFrameworkService struct {
	importCSV func(ctx context.Context, token, version string, r io.Reader) (dto.FrameworkImportResponse, error)
	exportCSV func(ctx context.Context, token, version string, w io.Writer) error
	list      func(ctx context.Context, version string) ([]dto.FrameworkQuestionResponse, error)
	versions  func(ctx context.Context) (dto.FrameworkVersionsResponse, error)
}

func (s *stubFrameworkService) Import(ctx context.Context, token, version string, r io.Reader) (dto.FrameworkImportResponse, error) {
	return s.importCSV(ctx, token, version, r)
}

func (s *stubFrameworkService) Export(ctx context.Context, token, version string, w io.Writer) error {
	return s.exportCSV(ctx, token, version, w)
}

func (s *stubFrameworkService) List(ctx context.Context, version string) ([]dto.FrameworkQuestionResponse, error) {
	return s.list(ctx, version)
}

func (s *stubFrameworkService) Versions(ctx context.Context) (dto.FrameworkVersionsResponse, error) {
	return s.versions(ctx)
}

func newFrameworkApp(svc service.FrameworkService) *fiber.App {
	app := fiber.New()
	h := handler.NewFrameworkHandler(svc, zerolog.New(io.Discard))
	h.Register(app.Group("/api/v2/framework"))
	h.RegisterAdmin(app.Group("/api/v2/admin/framework"))
	return app
}

func TestFrameworkHandlerListDefaultsToActiveVersion(t *testing.T) {
	var listedVersion string
	svc := &stubFrameworkService{
		versions: func(context.Context) (dto.FrameworkVersionsResponse, error) {
			return dto.FrameworkVersionsResponse{Versions: []string{"v1", "v2"}, Active: "v2"}, nil
		},
		list: func(_ context.Context, version string) ([]dto.FrameworkQuestionResponse, error) {
			listedVersion = version
			return []dto.FrameworkQuestionResponse{{Version: version, CategoryCode: "R", Question: "Enjoys building things"}}, nil
		},
	}
	app := newFrameworkApp(svc)

	resp := performRequest(t, app, http.MethodGet, "/api/v2/framework", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "v2", listedVersion)

	var payload struct {
		Success bool                            `json:"success"`
		Data    []dto.FrameworkQuestionResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.True(t, payload.Success)
	require.Len(t, payload.Data, 1)
	require.Equal(t, "R", payload.Data[0].CategoryCode)
}

func TestFrameworkHandlerListUnknownVersion(t *testing.T) {
	svc := &stubFrameworkService{
		list: func(context.Context, string) ([]dto.FrameworkQuestionResponse, error) {
			return nil, service.ErrFrameworkVersionNotFound
		},
	}
	app := newFrameworkApp(svc)

	resp := performRequest(t, app, http.MethodGet, "/api/v2/framework?version=v9", nil, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestFrameworkHandlerVersions(t *testing.T) {
	svc := &stubFrameworkService{
		versions: func(context.Context) (dto.FrameworkVersionsResponse, error) {
			return dto.FrameworkVersionsResponse{Versions: []string{"v1"}, Active: "v1"}, nil
		},
	}
	app := newFrameworkApp(svc)

	resp := performRequest(t, app, http.MethodGet, "/api/v2/framework/versions", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data dto.FrameworkVersionsResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "v1", payload.Data.Active)
}

func TestFrameworkHandlerImport(t *testing.T) {
	var gotToken, gotVersion string
	var gotCSV []byte
	var readErr error
	svc := &stubFrameworkService{
		importCSV: func(_ context.Context, token, version string, r io.Reader) (dto.FrameworkImportResponse, error) {
			gotToken, gotVersion = token, version
			gotCSV, readErr = io.ReadAll(r)
			return dto.FrameworkImportResponse{Version: version, Questions: 1}, nil
		},
	}
	app := newFrameworkApp(svc)

	csvBody := "riasec_code,career_category,question,key_subjects,required_grades,weight\nR,Engineering,Enjoys building things,Physics,8.0,1.5\n"
	body, contentType := multipartUpload(t, "file", "framework.csv", []byte(csvBody), map[string]string{"version": "v3"})

	resp := performRequest(t, app, http.MethodPost, "/api/v2/admin/framework/import", body, map[string]string{
		"Content-Type":  contentType,
		"X-Admin-Token": "s3cret",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "s3cret", gotToken)
	require.Equal(t, "v3", gotVersion)
	require.NoError(t, readErr)
	require.Equal(t, csvBody, string(gotCSV))

	var payload struct {
		Message string                      `json:"message"`
		Data    dto.FrameworkImportResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "framework imported", payload.Message)
	require.Equal(t, 1, payload.Data.Questions)
}

func TestFrameworkHandlerImportRequiresVersion(t *testing.T) {
	var called bool
	svc := &stubFrameworkService{
		importCSV: func(context.Context, string, string, io.Reader) (dto.FrameworkImportResponse, error) {
			called = true
			return dto.FrameworkImportResponse{}, nil
		},
	}
	app := newFrameworkApp(svc)

	body, contentType := multipartUpload(t, "file", "framework.csv", []byte("riasec_code\nR\n"), nil)
	resp := performRequest(t, app, http.MethodPost, "/api/v2/admin/framework/import", body, map[string]string{"Content-Type": contentType})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.False(t, called)
}

func TestFrameworkHandlerImportErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "bad token", err: service.ErrFrameworkUnauthorized, status: fiber.StatusForbidden},
		{name: "bad header", err: service.ErrFrameworkHeader, status: fiber.StatusBadRequest},
		{name: "bad row", err: fmt.Errorf("%w: row 2: invalid weight \"abc\"", service.ErrFrameworkCSV), status: fiber.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubFrameworkService{
				importCSV: func(context.Context, string, string, io.Reader) (dto.FrameworkImportResponse, error) {
					return dto.FrameworkImportResponse{}, tc.err
				},
			}
			app := newFrameworkApp(svc)

			body, contentType := multipartUpload(t, "file", "framework.csv", []byte("riasec_code,question\nR,test\n"), map[string]string{"version": "v1"})
			resp := performRequest(t, app, http.MethodPost, "/api/v2/admin/framework/import", body, map[string]string{"Content-Type": contentType})
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestFrameworkHandlerExport(t *testing.T) {
	svc := &stubFrameworkService{
		exportCSV: func(_ context.Context, token, version string, w io.Writer) error {
			if token != "s3cret" {
				return service.ErrFrameworkUnauthorized
			}
			_, err := fmt.Fprintf(w, "riasec_code,career_category\nR,Engineering\n")
			return err
		},
	}
	app := newFrameworkApp(svc)

	resp := performRequest(t, app, http.MethodGet, "/api/v2/admin/framework/export?version=v1", nil, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = performRequest(t, app, http.MethodGet, "/api/v2/admin/framework/export?version=v1", nil, map[string]string{"X-Admin-Token": "s3cret"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/csv")
	require.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "framework-v1.csv")

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(data), "R,Engineering")

	resp = performRequest(t, app, http.MethodGet, "/api/v2/admin/framework/export", nil, map[string]string{"X-Admin-Token": "s3cret"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
