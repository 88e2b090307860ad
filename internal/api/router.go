package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger, uploadDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// Canonical image URLs referenced by messages.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Post("/users/register", apiHandler.RegisterHandler)
		r.Post("/users/verify-email", apiHandler.VerifyEmailHandler)
		r.Post("/users/login", apiHandler.LoginHandler)

		r.Get("/auth/google", apiHandler.GoogleLoginHandler)
		r.Get("/auth/google/callback", apiHandler.GoogleCallbackHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Profile routes
			r.Get("/users/{userID}", apiHandler.GetUserHandler)
			r.Patch("/users/{userID}", apiHandler.UpdateUserHandler)
			r.Post("/users/{userID}/set-password", apiHandler.SetPasswordHandler)

			// Classification and chat routes
			r.Post("/ml/predict", apiHandler.PredictHandler)
			r.Post("/ml/chat", apiHandler.ChatHandler)
			r.Get("/ml/conversations", apiHandler.ListConversationsHandler)
			r.Get("/ml/conversations/{convoID}", apiHandler.GetConversationHandler)
			r.Delete("/ml/conversation/{convoID}", apiHandler.DeleteConversationHandler)
			r.Patch("/ml/conversation/{convoID}/archive", apiHandler.ArchiveConversationHandler)
		})
	})

	return r
}
