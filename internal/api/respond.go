package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/AlvinLimo/GrowFrika/internal/errs"
	"github.com/AlvinLimo/GrowFrika/internal/ml"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// writeError maps sentinel errors to status codes and always emits the
// structured {"error": ...} body the client banner rendering consumes.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError

	var adapterErr *ml.AdapterError
	switch {
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		status = http.StatusUnauthorized
		body.Error = "invalid credentials"
	case errors.Is(err, errs.ErrEmailNotVerified):
		status = http.StatusForbidden
		body.Error = "Please verify your email before logging in"
		body.Reason = "EMAIL_NOT_VERIFIED"
	case errors.Is(err, errs.ErrGoogleNoPassword):
		status = http.StatusForbidden
		body.Error = "This account was created with Google. Please sign in with Google first, then set a password in your profile."
		body.Reason = "GOOGLE_ACCOUNT_NO_PASSWORD"
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
		body.Error = "not found"
	case errors.Is(err, errs.ErrAlreadyExists):
		status = http.StatusBadRequest
		body.Error = "already exists"
	case errors.As(err, &adapterErr):
		body.Error = "external model invocation failed"
		body.Details = adapterErr.Stderr
	default:
		body.Error = "internal server error"
	}

	if status >= 500 {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}
