package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kompas-go-api/internal/middleware"
)

// maxCSVUploadBytes bounds roster and framework uploads.
const maxCSVUploadBytes = 10 << 20

var (
	errCSVTooLarge = errors.New("csv upload exceeds the 10 MB limit")
	errCSVNotText  = errors.New("upload must be a csv file")
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// requestContext derives the context passed to services: the request's user
// context with the correlation identifier attached.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// csvUploadReader buffers a multipart upload and rejects anything that does
// not sniff as CSV or plain text. Column structure is enforced downstream by
// the importing service.
func csvUploadReader(file *multipart.FileHeader) (io.Reader, error) {
	if file.Size > maxCSVUploadBytes {
		return nil, errCSVTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxCSVUploadBytes+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > maxCSVUploadBytes {
		return nil, errCSVTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	if !mime.Is("text/csv") && !mime.Is("text/plain") {
		return nil, errCSVNotText
	}

	return bytes.NewReader(buf.Bytes()), nil
}
