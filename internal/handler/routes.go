package handler

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/msomdec/revtrack/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux. The auth limiter
// guards register and login; pass nil to disable it.
func RegisterRoutes(mux *http.ServeMux, auth *service.AuthService, questions *service.QuestionService, authLimiter *service.TokenBucket) {
	authHandler := NewAuthHandler(auth)
	questionHandler := NewQuestionHandler(questions)

	limited := func(h http.HandlerFunc) http.Handler {
		if authLimiter == nil {
			return h
		}
		return RateLimit(authLimiter, h)
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(auth, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz)

	mux.Handle("POST /api/auth/register", limited(authHandler.HandleRegister))
	mux.Handle("POST /api/auth/login", limited(authHandler.HandleLogin))
	mux.Handle("GET /api/auth/me", protected(authHandler.HandleMe))

	mux.Handle("POST /api/questions", protected(questionHandler.HandleCreate))
	mux.Handle("GET /api/questions", protected(questionHandler.HandleList))
	mux.Handle("GET /api/questions/stats", protected(questionHandler.HandleStats))
	mux.Handle("GET /api/questions/export", protected(questionHandler.HandleExport))
	mux.Handle("GET /api/questions/{id}", protected(questionHandler.HandleGet))
	mux.Handle("PATCH /api/questions/{id}", protected(questionHandler.HandleUpdate))
	mux.Handle("POST /api/questions/{id}/revise", protected(questionHandler.HandleRevise))
	mux.Handle("DELETE /api/questions/{id}", protected(questionHandler.HandleDelete))
}

// Wrap applies the outer middleware chain: security headers, CORS for the
// given origins (all origins when empty), and the request body cap.
func Wrap(h http.Handler, corsOrigins []string, maxBodyBytes int64) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         600,
	})
	return SecurityHeaders(c.Handler(MaxBodySize(maxBodyBytes, h)))
}
