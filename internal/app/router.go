// Package app assembles the HTTP router shared by the server binary and end-to-end tests.
package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-api/internal/auth"
	"github.com/BuzzLyutic/todo-api/internal/handler"
	"github.com/BuzzLyutic/todo-api/internal/identity"
	"github.com/BuzzLyutic/todo-api/internal/ratelimit"
	"github.com/BuzzLyutic/todo-api/internal/repo"
	"github.com/BuzzLyutic/todo-api/internal/service"
	"github.com/BuzzLyutic/todo-api/pkg/respond"
)

type Deps struct {
	Logger   *zap.Logger
	Provider identity.Provider
	Tasks    repo.TaskRepository
	// Limiter throttles the public auth endpoints; nil disables rate limiting.
	Limiter ratelimit.Allower

	MaxTasksPerUser int
	AllowedOrigins  []string
	FrontendURL     string
	DevMode         bool
	AccessLog       bool
}

func NewRouter(d Deps) http.Handler {
	errs := handler.NewErrorWriter(d.Logger, d.DevMode)
	authn := auth.NewAuthenticator(d.Provider, d.Logger)

	taskService := service.NewTaskService(d.Tasks, d.MaxTasksPerUser)
	tasks := handler.NewTaskHandler(taskService, errs, d.Logger)
	users := handler.NewAuthHandler(d.Provider, errs, d.Logger, d.FrontendURL)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if d.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", auth.HeaderRefreshToken},
		// клиент должен видеть обновленные токены
		ExposedHeaders: []string{auth.HeaderNewToken, auth.HeaderNewRefreshToken, "Retry-After"},
		MaxAge:         300,
	}))

	// до Route, чтобы подроутеры унаследовали обработчики
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api-docs", serveAPIDocs)

	requireAuth := authn.Middleware(errs.Write)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if d.Limiter != nil {
					r.Use(ratelimit.Middleware(d.Limiter, errs.Write, d.Logger))
				}
				r.Post("/register", users.Register)
				r.Post("/login", users.Login)
				r.Post("/forgot-password", users.ForgotPassword)
				r.Post("/refresh", users.Refresh)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", users.Logout)
				r.Get("/session", users.Session)
				r.Post("/reset-password", users.ResetPassword)
			})
		})

		r.With(requireAuth).Get("/user", users.User)

		r.Route("/todos", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", tasks.List)
			r.Post("/", tasks.Create)
			r.Get("/{id}", tasks.Get)
			r.Put("/{id}", tasks.Update)
			r.Delete("/{id}", tasks.Delete)
		})
	})

	return r
}
