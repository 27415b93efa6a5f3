package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"adaptive-backend/internal/handlers"
	"adaptive-backend/internal/logger"
	"adaptive-backend/internal/middleware"
)

type Deps struct {
	JWTAuth            *middleware.JWTAuth
	PerformanceHandler *handlers.PerformanceHandler
	CatalogHandler     *handlers.CatalogHandler
	HealthHandler      *handlers.HealthHandler
	AttemptLimiter     *middleware.RateLimiter
	WebSocket          http.HandlerFunc
	FrontendURL        string
	Log                *logger.Logger
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.FrontendURL))

	r.Get("/health", d.HealthHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", d.HealthHandler.Health)

		// ──── WebSocket (token in query) ────
		if d.WebSocket != nil {
			r.Get("/ws", d.WebSocket)
		}

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(15 * time.Second))
			r.Use(d.JWTAuth.Middleware)

			// ──── Attempts ────
			r.Group(func(r chi.Router) {
				if d.AttemptLimiter != nil {
					r.Use(d.AttemptLimiter.Middleware)
				}
				r.Post("/quiz-attempts", d.PerformanceHandler.SubmitAttempt)
			})

			// ──── Progress ────
			r.Post("/enrollments", d.PerformanceHandler.Enroll)
			r.Get("/performance/{courseId}", d.PerformanceHandler.CourseProgress)
			r.Get("/overall-progress", d.PerformanceHandler.OverallProgress)

			r.Route("/courses/{courseId}", func(r chi.Router) {
				r.Get("/recommendation", d.PerformanceHandler.Recommendation)
				r.Get("/topics/{topic}/attempts", d.PerformanceHandler.TopicHistory)
			})

			// ──── Catalog ────
			r.Get("/catalog/{courseId}", d.CatalogHandler.Get)
			r.With(middleware.RequireRole(middleware.RoleInstructor, middleware.RoleAdmin)).
				Put("/catalog/{courseId}", d.CatalogHandler.Put)
		})
	})

	return r
}
