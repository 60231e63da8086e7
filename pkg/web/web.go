// Package web exposes the debrid store over a JSON API consumed by the UI:
// session login, per-account torrent operations, link resolution and the
// local download queue.
package web

import (
	"cmp"
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"

	"github.com/debridui/debridui/internal/logger"
	"github.com/debridui/debridui/pkg/debrid/store"
	"github.com/debridui/debridui/pkg/downloader"
)

type Web struct {
	logger     zerolog.Logger
	cookie     *sessions.CookieStore
	store      *store.Store
	downloader *downloader.Downloader
}

func New(s *store.Store, dl *downloader.Downloader) *Web {
	secretKey := cmp.Or(os.Getenv("DEBRIDUI_SECRET_KEY"), "e63f0a7cfe5c4a6db0a1f9b2c83d541e")
	cookieStore := sessions.NewCookieStore([]byte(secretKey))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
	}
	return &Web{
		logger:     logger.New("web"),
		cookie:     cookieStore,
		store:      s,
		downloader: dl,
	}
}

func (wb *Web) Routes() http.Handler {
	r := chi.NewRouter()

	// Public routes - no auth needed
	r.Post("/login", wb.loginHandler)
	r.Post("/logout", wb.logoutHandler)
	r.Post("/register", wb.registerHandler)

	// Protected routes - require auth
	r.Group(func(r chi.Router) {
		r.Use(wb.authMiddleware)

		r.Route("/api", func(r chi.Router) {
			r.Get("/accounts", wb.handleGetAccounts)

			r.Route("/accounts/{account}", func(r chi.Router) {
				r.Get("/torrents", wb.handleListTorrents)
				r.Post("/torrents", wb.handleAddTorrents)
				r.Post("/torrents/upload", wb.handleUploadTorrents)
				r.Post("/torrents/restart", wb.handleRestartTorrents)
				r.Get("/torrents/{id}", wb.handleGetTorrent)
				r.Delete("/torrents/{id}", wb.handleDeleteTorrent)
				r.Get("/torrents/{id}/files", wb.handleGetTorrentFiles)
				r.Post("/link", wb.handleResolveLink)

				r.Get("/webdownloads", wb.handleListWebDownloads)
				r.Post("/webdownloads", wb.handleAddWebDownloads)
				r.Delete("/webdownloads/{id}", wb.handleDeleteWebDownload)
			})

			r.Get("/downloads", wb.handleListDownloads)
			r.Post("/downloads", wb.handleAddDownload)
			r.Post("/downloads/{id}/cancel", wb.handleCancelDownload)
			r.Delete("/downloads/{id}", wb.handleRemoveDownload)

			r.Post("/refresh-token", wb.handleRefreshAPIToken)
		})
	})

	return r
}

func (wb *Web) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		wb.logger.Debug().Err(err).Msg("failed to encode response")
	}
}

func (wb *Web) sendJSONError(w http.ResponseWriter, message string, status int) {
	wb.sendJSON(w, status, map[string]string{"error": message})
}
