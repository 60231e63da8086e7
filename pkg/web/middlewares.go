package web

import (
	"net/http"

	"github.com/debridui/debridui/internal/config"
)

func (wb *Web) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := config.Get()
		if !cfg.UseAuth {
			next.ServeHTTP(w, r)
			return
		}
		if cfg.NeedsAuth() {
			wb.sendJSONError(w, "authentication setup required", http.StatusUnauthorized)
			return
		}
		if wb.isValidAPIToken(r) {
			next.ServeHTTP(w, r)
			return
		}
		session, _ := wb.cookie.Get(r, "auth-session")
		auth, ok := session.Values["authenticated"].(bool)
		if !ok || !auth {
			wb.sendJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
