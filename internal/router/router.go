package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/kompas-go-api/internal/config"
	"github.com/noah-isme/kompas-go-api/internal/handler"
	"github.com/noah-isme/kompas-go-api/internal/middleware"
	"github.com/noah-isme/kompas-go-api/internal/observability"
)

// assessmentRunsPerMinute caps pipeline runs per caller; every run fans out
// one reasoning call per framework question.
const assessmentRunsPerMinute = 5

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	StudentHandler    *handler.StudentHandler
	ForecastHandler   *handler.ForecastHandler
	FrameworkHandler  *handler.FrameworkHandler
	AssessmentHandler *handler.AssessmentHandler
	AdvisorHandler    *handler.AdvisorHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Students: profiles, grades, roster, forecasts and assessments
	if deps.StudentHandler != nil {
		students := app.Group("/api/v2/students", jwtMiddleware)
		deps.StudentHandler.Register(students)

		if deps.ForecastHandler != nil {
			deps.ForecastHandler.Register(students)
		}
		if deps.AssessmentHandler != nil {
			runLimiter := middleware.RateLimit("assessment_run", assessmentRunsPerMinute, time.Minute)
			deps.AssessmentHandler.Register(students, runLimiter)
		}
	}

	// Framework questions: open reads plus token-guarded administration
	if deps.FrameworkHandler != nil {
		framework := app.Group("/api/v2/framework", jwtMiddleware)
		deps.FrameworkHandler.Register(framework)

		admin := app.Group("/api/v2/admin/framework", jwtMiddleware)
		deps.FrameworkHandler.RegisterAdmin(admin)
	}

	// Advisor chat
	if deps.AdvisorHandler != nil {
		advisor := app.Group("/api/v2/advisor", jwtMiddleware)
		deps.AdvisorHandler.Register(advisor)
	}
}
