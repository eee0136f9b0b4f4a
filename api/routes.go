package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if app.config.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(app.logRequest)
	r.Use(app.recoverPanic)
	if len(app.config.cors.trustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: app.config.cors.trustedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	if app.config.limiter.enabled {
		r.Use(app.rateLimit)
	}
	r.Use(lowercasePath)

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthcheck", app.healthCheckHandler)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", app.loginHandler)
			r.Post("/register", app.registerHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.requireAuthenticatedUser)
				r.Get("/profile", app.profileHandler)
				r.Post("/change-password", app.changePasswordHandler)
				r.Get("/validate-token", app.validateTokenHandler)
				r.Post("/logout", app.logoutHandler)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(app.requireAuthenticatedUser)
			r.Get("/", app.listTasksHandler)
			r.Post("/", app.createTaskHandler)
			r.Get("/stats", app.taskStatsHandler)
			r.Get("/{id}", app.getTaskHandler)
			r.Put("/{id}", app.updateTaskHandler)
			r.Delete("/{id}", app.deleteTaskHandler)
		})
	})

	return r
}
