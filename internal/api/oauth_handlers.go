package api

import (
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/AlvinLimo/GrowFrika/internal/core"
)

// GoogleLoginHandler redirects the browser to Google's consent screen.
func (h *APIHandler) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	if h.googleOAuth == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Google login is not configured"})
		return
	}
	// State is not persisted server-side; the JWT issued on callback is the
	// only credential the client keeps.
	url := h.googleOAuth.AuthCodeURL("state", oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallbackHandler exchanges the authorization code, fetches the Google
// profile, resolves it to a local account and redirects to the frontend with
// a session token.
func (h *APIHandler) GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if h.googleOAuth == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Google login is not configured"})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing authorization code"})
		return
	}

	ctx := r.Context()
	token, err := h.googleOAuth.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("google code exchange failed", zap.Error(err))
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Google sign-in failed"})
		return
	}

	svc, err := googleoauth.NewService(ctx, option.WithTokenSource(h.googleOAuth.TokenSource(ctx, token)))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		h.logger.Error("google userinfo fetch failed", zap.Error(err))
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Google sign-in failed"})
		return
	}

	user, jwtToken, err := h.users.GoogleLogin(core.GoogleProfile{
		GoogleID: info.Id,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	redirect := fmt.Sprintf("%sgoogle/success?token=%s&user_id=%s",
		h.frontendURL, url.QueryEscape(jwtToken), url.QueryEscape(user.ID))
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}
