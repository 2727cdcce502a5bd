package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dreschagin/dbops-agent/internal/interfaces/http/middleware"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

const authCookieMaxAge = 12 * 60 * 60

// AuthAPIHandler выдает cookie дашборду, чтобы браузер не передавал токен в каждом запросе
type AuthAPIHandler struct {
	authConfig middleware.AuthConfig
	logger     *logger.Logger
}

func NewAuthAPIHandler(authConfig middleware.AuthConfig, log *logger.Logger) *AuthAPIHandler {
	return &AuthAPIHandler{
		authConfig: authConfig,
		logger:     log,
	}
}

// Login POST /api/auth/login, токен из JSON {"token": "..."} или формы
func (h *AuthAPIHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.authConfig.Enabled {
		middleware.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "auth_enabled": false})
		return
	}

	token, err := readToken(r)
	if err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
		return
	}

	candidate := r.Clone(r.Context())
	candidate.Header.Set("Authorization", "Bearer "+token)
	if token == "" || middleware.ValidateRequestAuth(candidate, h.authConfig) != nil {
		h.logger.Warn("Auth login failed", "remote_addr", r.RemoteAddr)
		if h.authConfig.OnFailure != nil {
			h.authConfig.OnFailure()
		}
		middleware.WriteJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid token"})
		return
	}

	middleware.WriteAuthCookie(w, token, r.TLS != nil, authCookieMaxAge)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "auth_enabled": true})
}

// Logout POST /api/auth/logout
func (h *AuthAPIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearAuthCookie(w, r.TLS != nil)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Status GET /api/auth/status
func (h *AuthAPIHandler) Status(w http.ResponseWriter, r *http.Request) {
	err := middleware.ValidateRequestAuth(r, h.authConfig)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"auth_enabled":  h.authConfig.Enabled,
		"authenticated": err == nil,
	})
}

func readToken(r *http.Request) (string, error) {
	defer r.Body.Close()

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 4096)).Decode(&req); err != nil {
			return "", err
		}
		return strings.TrimSpace(req.Token), nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, 4096)
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.PostForm.Get("token")), nil
}
