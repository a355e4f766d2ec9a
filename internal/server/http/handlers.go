package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
	"github.com/dmitrijs2005/ronnia/internal/server/models"
	"github.com/dmitrijs2005/ronnia/internal/server/services"
)

type profileResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type accountResponse struct {
	ID            string          `json:"id"`
	Osu           profileResponse `json:"osu"`
	Twitch        profileResponse `json:"twitch"`
	ExcludedUsers []string        `json:"excluded_users"`
	Settings      json.RawMessage `json:"settings"`
	IsLive        bool            `json:"is_live"`
}

func newAccountResponse(a *models.LinkedAccount) accountResponse {
	settings := a.Settings
	if len(settings) == 0 {
		settings = models.DefaultSettings
	}
	peers := a.ExcludedPeers
	if peers == nil {
		peers = []string{}
	}
	return accountResponse{
		ID:            a.ID,
		Osu:           profileResponse{ID: a.Osu.ExternalID, Username: a.Osu.DisplayName, AvatarURL: a.Osu.AvatarURL},
		Twitch:        profileResponse{ID: a.Twitch.ExternalID, Username: a.Twitch.DisplayName, AvatarURL: a.Twitch.AvatarURL},
		ExcludedUsers: peers,
		Settings:      settings,
		IsLive:        a.IsLive,
	}
}

func (s *HTTPServer) beginLogin(w http.ResponseWriter, r *http.Request) {
	target, err := s.sessions.BeginLogin(r.PathValue("provider"), r.Header.Get("Referer"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *HTTPServer) finishLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var pending string
	if c, err := r.Cookie(common.SignupDetailsCookieName); err == nil {
		pending = c.Value
	}

	result, err := s.sessions.FinishLogin(r.Context(), r.PathValue("provider"), q.Get("code"), q.Get("state"), pending)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	for _, c := range result.Cookies {
		http.SetCookie(w, s.cookie(c))
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

func (s *HTTPServer) whoami(w http.ResponseWriter, r *http.Request) {
	account, err := s.sessions.Whoami(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, newAccountResponse(account))
}

func (s *HTTPServer) logout(w http.ResponseWriter, r *http.Request) {
	_ = s.sessions.Logout(sessionToken(r))
	http.SetCookie(w, s.cookie(services.CookieChange{Name: common.SessionCookieName, Clear: true}))
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) removeAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RemoveAccount(r.Context(), tokenFromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, s.cookie(services.CookieChange{Name: common.SessionCookieName, Clear: true}))
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) addExcludedPeer(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.AddExcludedPeer(r.Context(), tokenFromContext(r.Context()), r.PathValue("peer")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) removeExcludedPeer(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RemoveExcludedPeer(r.Context(), tokenFromContext(r.Context()), r.PathValue("peer")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) listLive(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	names, err := s.sessions.ListLive(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, names)
}

// intParam reads an optional integer query parameter; absent means zero.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrorValidation, name)
	}
	return n, nil
}

func (s *HTTPServer) cookie(c services.CookieChange) *http.Cookie {
	cookie := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case c.Clear:
		cookie.Value = ""
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	case !c.Expires.IsZero():
		cookie.Expires = c.Expires
	}
	return cookie
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrOAuthExchange), errors.Is(err, common.ErrProfileFetch):
		return http.StatusBadGateway
	case errors.Is(err, common.ErrCrossProviderMismatch),
		errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Info(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
		if status == http.StatusBadRequest {
			msg = err.Error()
		}
	}
	s.writeJSON(w, r, status, errorResponse{Error: msg})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), "write response", "error", err)
	}
}
