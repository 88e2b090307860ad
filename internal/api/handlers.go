package api

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/AlvinLimo/GrowFrika/internal/auth"
	"github.com/AlvinLimo/GrowFrika/internal/core"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserIDFromContext returns the authenticated user id stored by the JWT middleware.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

type APIHandler struct {
	users  *core.UserService
	convos *core.ConversationService
	logger *zap.Logger

	uploadDir     string
	maxUploadSize int64
	frontendURL   string

	googleOAuth *oauth2.Config
}

func NewAPIHandler(users *core.UserService, convos *core.ConversationService, logger *zap.Logger,
	uploadDir string, maxUploadSize int64, frontendURL string, googleOAuth *oauth2.Config) *APIHandler {
	return &APIHandler{
		users:         users,
		convos:        convos,
		logger:        logger,
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
		frontendURL:   frontendURL,
		googleOAuth:   googleOAuth,
	}
}

// JWTAuthMiddleware authenticates the bearer token and stores the user id in
// the request context.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Access token required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid or expired token"})
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs each request with zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}
