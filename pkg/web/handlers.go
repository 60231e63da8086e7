package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/debridui/debridui/pkg/debrid"
	"github.com/debridui/debridui/pkg/debrid/types"
)

// accountInfo is the capability surface the UI reads per account.
type accountInfo struct {
	Name                   string         `json:"name"`
	Provider               string         `json:"provider"`
	RefreshIntervalMs      int64          `json:"refresh_interval_ms"` // 0 disables polling
	SupportsEphemeralLinks bool           `json:"supports_ephemeral_links"`
	SupportsWebDownloads   bool           `json:"supports_web_downloads"`
	Profile                *types.Profile `json:"profile,omitempty"`
}

func (wb *Web) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := make([]accountInfo, 0)
	for _, name := range wb.store.Accounts() {
		client, _ := wb.store.Client(name)
		_, webDL := client.(types.WebDownloader)
		info := accountInfo{
			Name:                   name,
			Provider:               client.Name(),
			RefreshIntervalMs:      client.RefreshInterval().Milliseconds(),
			SupportsEphemeralLinks: client.SupportsEphemeralLinks(),
			SupportsWebDownloads:   webDL,
		}
		if profile, ok := wb.store.Profile(name); ok {
			info.Profile = profile
		}
		accounts = append(accounts, info)
	}
	wb.sendJSON(w, http.StatusOK, accounts)
}

// client resolves the {account} URL parameter; a nil return means the
// response has already been written.
func (wb *Web) client(w http.ResponseWriter, r *http.Request) types.Client {
	name := chi.URLParam(r, "account")
	client, ok := wb.store.Client(name)
	if !ok {
		wb.sendJSONError(w, "unknown account "+name, http.StatusNotFound)
		return nil
	}
	return client
}

func (wb *Web) handleListTorrents(w http.ResponseWriter, r *http.Request) {
	client := wb.client(w, r)
	if client == nil {
		return
	}
	if query := r.URL.Query().Get("query"); query != "" {
		torrents, err := client.SearchTorrents(r.Context(), query)
		if err != nil {
			wb.sendClientError(w, err)
			return
		}
		wb.sendJSON(w, http.StatusOK, torrents)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	torrents, err := client.ListTorrents(r.Context(), offset, limit)
	if err != nil {
		wb.sendClientError(w, err)
		return
	}
	wb.sendJSON(w, http.StatusOK, torrents)
}

func (wb *Web) handleAddTorrents(w http.ResponseWriter, r *http.Request) {
	client := wb.client(w, r)
	if client == nil {
		return
	}
	var body struct {
		URIs []string `json:"uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.URIs) == 0 {
		wb.sendJSONError(w, "uris are required", http.StatusBadRequest)
		return
	}
	wb.sendJSON(w, http.StatusOK, debrid.AddTorrents(r.Context(), client, body.URIs))
}

func (wb *Web) handleUploadTorrents(w http.ResponseWriter, r *http.Request) {
	client := wb.client(w, r)
	if client == nil {
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		wb.sendJSONError(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	var files []*types.TorrentFile
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				continue
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				continue
			}
			files = append(files, &types.TorrentFile{Name: header.Filename, Data: data})
		}
	}
	if len(files) == 0 {
		wb.sendJSONError(w, "no torrent files provided", http.StatusBadRequest)
		return
	}
	wb.sendJSON(w, http.StatusOK, client.UploadTorrents(r.Context(), files))
}

func (wb *Web) handleRestartTorrents(w http.ResponseWriter, r *http.Request) {
	client := wb.client(w, r)
	if client == nil {
		return
	}
	var body struct {
		Ids []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Ids) == 0 {
		wb.sendJSONError(w, "ids are required", http.StatusBadRequest)
		return
	}
	wb.sendJSON(w, http.StatusOK, client.RestartTorrents(r.Context(), body.Ids))
}

func (wb *Web) handleGetTorrent(w http.ResponseWriter, r *http.Request) {
	client := wb.client(w, r)
	if client == nil {
		return
	}
	torrent, err := client.GetTorrent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		wb.sendClientError(w, err)
		return
	}
	if torrent == nil {
		wb.sendJSONError(w, "torrent not found", http.StatusNotFound)
		return
	}
	wb.sendJSON(w, http.StatusOK, torrent)
}

func (wb *Web) handleDeleteTorrent(w http.ResponseWriter, r *http.Request) {
	client := wb.client(w, r)
	if client == nil {
		return
	}
	if err := client.DeleteTorrent(r.Context(), chi.URLParam(r, "id")); err != nil {
		wb.sendClientError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (wb *Web) handleGetTorrentFiles(w http.ResponseWriter, r *http.Request) {
	client := wb.client(w, r)
	if client == nil {
		return
	}
	files, err := client.GetTorrentFiles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		wb.sendClientError(w, err)
		return
	}
	wb.sendJSON(w, http.StatusOK, files)
}

func (wb *Web) handleResolveLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Id      string `json:"id"`
		Name    string `json:"name"`
		Link    string `json:"link"`
		Size    int64  `json:"size"`
		Resolve bool   `json:"resolve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		wb.sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	node := &types.FileNode{Name: body.Name, ID: body.Id, Size: body.Size, Link: body.Link}
	link, err := wb.store.ResolveLink(r.Context(), chi.URLParam(r, "account"), node, body.Resolve)
	if err != nil {
		wb.sendClientError(w, err)
		return
	}
	wb.sendJSON(w, http.StatusOK, link)
}

// webDownloader narrows the account's client; not every provider manages
// web downloads server-side.
func (wb *Web) webDownloader(w http.ResponseWriter, r *http.Request) types.WebDownloader {
	client := wb.client(w, r)
	if client == nil {
		return nil
	}
	downloader, ok := client.(types.WebDownloader)
	if !ok {
		wb.sendJSONError(w, "account does not support web downloads", http.StatusNotImplemented)
		return nil
	}
	return downloader
}

func (wb *Web) handleListWebDownloads(w http.ResponseWriter, r *http.Request) {
	downloader := wb.webDownloader(w, r)
	if downloader == nil {
		return
	}
	downloads, err := downloader.ListWebDownloads(r.Context())
	if err != nil {
		wb.sendClientError(w, err)
		return
	}
	wb.sendJSON(w, http.StatusOK, downloads)
}

func (wb *Web) handleAddWebDownloads(w http.ResponseWriter, r *http.Request) {
	downloader := wb.webDownloader(w, r)
	if downloader == nil {
		return
	}
	var body struct {
		Links []string `json:"links"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Links) == 0 {
		wb.sendJSONError(w, "links are required", http.StatusBadRequest)
		return
	}
	wb.sendJSON(w, http.StatusOK, downloader.AddWebDownloads(r.Context(), body.Links))
}

func (wb *Web) handleDeleteWebDownload(w http.ResponseWriter, r *http.Request) {
	downloader := wb.webDownloader(w, r)
	if downloader == nil {
		return
	}
	if err := downloader.DeleteWebDownload(r.Context(), chi.URLParam(r, "id")); err != nil {
		wb.sendClientError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (wb *Web) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	wb.sendJSON(w, http.StatusOK, wb.downloader.List())
}

// handleAddDownload resolves a file node through the account's client and
// queues the result on the local downloader.
func (wb *Web) handleAddDownload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Account string `json:"account"`
		Id      string `json:"id"`
		Name    string `json:"name"`
		Link    string `json:"link"`
		Size    int64  `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		wb.sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	node := &types.FileNode{Name: body.Name, ID: body.Id, Size: body.Size, Link: body.Link}
	link, err := wb.store.ResolveLink(r.Context(), body.Account, node, true)
	if err != nil {
		wb.sendClientError(w, err)
		return
	}
	id, err := wb.downloader.Add(link)
	if err != nil {
		wb.sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	wb.sendJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (wb *Web) handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	if err := wb.downloader.Cancel(chi.URLParam(r, "id")); err != nil {
		wb.sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (wb *Web) handleRemoveDownload(w http.ResponseWriter, r *http.Request) {
	if err := wb.downloader.Remove(chi.URLParam(r, "id")); err != nil {
		wb.sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendClientError maps the typed error taxonomy onto HTTP statuses so the
// UI can distinguish re-auth prompts from cooldowns.
func (wb *Web) sendClientError(w http.ResponseWriter, err error) {
	if e, ok := types.AsError(err); ok {
		status := http.StatusBadGateway
		switch e.Kind {
		case types.ErrAuth:
			status = http.StatusUnauthorized
		case types.ErrRateLimit:
			status = http.StatusTooManyRequests
			if e.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(e.RetryAfter.Seconds())))
			}
		}
		wb.sendJSON(w, status, e)
		return
	}
	wb.sendJSONError(w, err.Error(), http.StatusInternalServerError)
}
