package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/debridui/debridui/internal/config"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (wb *Web) loginHandler(w http.ResponseWriter, r *http.Request) {
	cfg := config.Get()
	if !cfg.UseAuth {
		wb.sendJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
		return
	}
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		wb.sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !config.VerifyAuth(creds.Username, creds.Password) {
		wb.sendJSONError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}
	session, _ := wb.cookie.Get(r, "auth-session")
	session.Values["authenticated"] = true
	session.Values["username"] = creds.Username
	if err := session.Save(r, w); err != nil {
		wb.sendJSONError(w, "failed to save session", http.StatusInternalServerError)
		return
	}
	wb.sendJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

func (wb *Web) logoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := wb.cookie.Get(r, "auth-session")
	session.Values["authenticated"] = false
	session.Options.MaxAge = -1
	_ = session.Save(r, w)
	wb.sendJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}

// registerHandler creates the initial credential set; it only works while
// no username is configured yet.
func (wb *Web) registerHandler(w http.ResponseWriter, r *http.Request) {
	cfg := config.Get()
	if !cfg.NeedsAuth() {
		wb.sendJSONError(w, "registration is closed", http.StatusForbidden)
		return
	}
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		wb.sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if creds.Username == "" || creds.Password == "" {
		wb.sendJSONError(w, "username and password are required", http.StatusBadRequest)
		return
	}
	hashed, err := config.HashPassword(creds.Password)
	if err != nil {
		wb.sendJSONError(w, "failed to hash password", http.StatusInternalServerError)
		return
	}
	token, err := config.GenerateAPIToken()
	if err != nil {
		wb.sendJSONError(w, "failed to generate API token", http.StatusInternalServerError)
		return
	}
	auth := &config.Auth{Username: creds.Username, Password: hashed, APIToken: token}
	if err := cfg.SaveAuth(auth); err != nil {
		wb.sendJSONError(w, "failed to save credentials", http.StatusInternalServerError)
		return
	}
	wb.sendJSON(w, http.StatusCreated, map[string]string{"api_token": token})
}

func (wb *Web) handleRefreshAPIToken(w http.ResponseWriter, r *http.Request) {
	cfg := config.Get()
	auth := cfg.GetAuth()
	if auth == nil {
		wb.sendJSONError(w, "auth is disabled", http.StatusBadRequest)
		return
	}
	token, err := config.GenerateAPIToken()
	if err != nil {
		wb.sendJSONError(w, "failed to generate API token", http.StatusInternalServerError)
		return
	}
	auth.APIToken = token
	if err := cfg.SaveAuth(auth); err != nil {
		wb.sendJSONError(w, "failed to save credentials", http.StatusInternalServerError)
		return
	}
	wb.sendJSON(w, http.StatusOK, map[string]string{"api_token": token})
}

// isValidAPIToken checks the Authorization header against the configured
// API token. Both "Bearer <token>" and "Token <token>" are accepted.
func (wb *Web) isValidAPIToken(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return false
	}
	var token string
	switch {
	case strings.HasPrefix(authHeader, "Bearer "):
		token = strings.TrimPrefix(authHeader, "Bearer ")
	case strings.HasPrefix(authHeader, "Token "):
		token = strings.TrimPrefix(authHeader, "Token ")
	default:
		return false
	}
	if token == "" {
		return false
	}
	auth := config.Get().GetAuth()
	return auth != nil && auth.APIToken != "" && token == auth.APIToken
}
