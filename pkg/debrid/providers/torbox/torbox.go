package torbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	gourl "net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/internal/logger"
	"github.com/debridui/debridui/internal/request"
	"github.com/debridui/debridui/pkg/debrid/types"
)

const defaultRateLimit = "5/second"

type TorBox struct {
	name   string
	host   string
	apiKey string

	client *request.Client
	logger zerolog.Logger
}

func New(dc config.Debrid) (*TorBox, error) {
	rateLimit := dc.RateLimit
	if rateLimit == "" {
		rateLimit = defaultRateLimit
	}
	_log := logger.New(dc.Name)
	headers := map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", dc.APIKey),
	}
	return &TorBox{
		name:   "torbox",
		host:   "https://api.torbox.app/v1/api",
		apiKey: dc.APIKey,
		client: request.New(
			request.WithHeaders(headers),
			request.WithRateLimiter(request.ParseRateLimit(rateLimit)),
			request.WithLogger(_log),
			request.WithMaxRetries(5),
			request.WithRetryableStatus(502, 503),
			request.WithProxy(dc.Proxy),
		),
		logger: _log,
	}, nil
}

func (tb *TorBox) Name() string {
	return tb.name
}

func (tb *TorBox) Logger() zerolog.Logger {
	return tb.logger
}

func (tb *TorBox) RefreshInterval() time.Duration {
	return 10 * time.Second
}

func (tb *TorBox) SupportsEphemeralLinks() bool {
	return false
}

func (tb *TorBox) doRequest(req *http.Request) ([]byte, error) {
	resp, err := tb.client.Do(req)
	if err != nil {
		return nil, types.NewTransportError(tb.name, err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewTransportError(tb.name, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, tb.parseError(resp.StatusCode, body)
	}
	return body, nil
}

// parseError normalizes the provider's {success, error, detail} envelope.
func (tb *TorBox) parseError(status int, body []byte) error {
	var envelope APIResponse[json.RawMessage]
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == "" {
		return types.NewTransportError(tb.name, fmt.Sprintf("HTTP %d: %s", status, string(body)))
	}
	message := envelope.Detail
	if message == "" {
		message = envelope.Error
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		strings.Contains(envelope.Error, "AUTH") || strings.Contains(envelope.Error, "TOKEN"):
		return &types.Error{Provider: tb.name, Kind: types.ErrAuth, Code: envelope.Error, Message: message}
	case status == http.StatusTooManyRequests:
		return types.NewRateLimitError(tb.name, message, 0)
	default:
		return types.NewProviderError(tb.name, envelope.Error, message)
	}
}

// decodeResponse unwraps a successful envelope; success=false bodies arrive
// with 2xx statuses on some endpoints and are normalized here.
func decodeResponse[T any](tb *TorBox, body []byte) (T, error) {
	var envelope APIResponse[T]
	if err := json.Unmarshal(body, &envelope); err != nil {
		var zero T
		return zero, types.NewTransportError(tb.name, fmt.Sprintf("decoding response: %v", err))
	}
	if !envelope.Success {
		var zero T
		message := envelope.Detail
		if message == "" {
			message = envelope.Error
		}
		return zero, types.NewProviderError(tb.name, envelope.Error, message)
	}
	return envelope.Data, nil
}

// getStatus folds download_state, the finished/present flags and activity
// into the normalized vocabulary. A finished inactive torrent is completed
// even when the state string still says seeding; a finished torrent whose
// download is not yet present is still being processed server-side.
func (tb *TorBox) getStatus(t torrentInfo) types.TorrentStatus {
	if t.DownloadFinished {
		if !t.DownloadPresent {
			if t.Active {
				return types.StatusProcessing
			}
			return types.StatusFailed
		}
		if !t.Active {
			return types.StatusCompleted
		}
		switch t.DownloadState {
		case "uploading", "uploading (no peers)":
			return types.StatusUploading
		case "seeding":
			return types.StatusSeeding
		default:
			return types.StatusCompleted
		}
	}
	switch t.DownloadState {
	case "downloading", "metaDL", "checkingDL":
		return types.StatusDownloading
	case "queued", "allocating", "stalled (no seeds)", "stalledDL":
		return types.StatusWaiting
	case "paused", "pausedDL":
		return types.StatusPaused
	case "cached", "completed":
		return types.StatusCompleted
	case "error", "failed", "missingFiles":
		return types.StatusFailed
	case "inactive":
		return types.StatusInactive
	default:
		return types.StatusUnknown
	}
}

func (tb *TorBox) toTorrent(info torrentInfo) *types.Torrent {
	t := &types.Torrent{
		Id:       strconv.Itoa(info.Id),
		Name:     info.Name,
		InfoHash: strings.ToLower(info.Hash),
		Size:     info.Size,
		Status:   tb.getStatus(info),
		Progress: info.Progress * 100,
		Speed:    info.DownloadSpeed,
		Seeders:  info.Seeds,
		Provider: tb.name,
	}
	if added, err := time.Parse(time.RFC3339, info.CreatedAt); err == nil {
		t.Added = added
	}
	if t.Status == types.StatusCompleted {
		if updated, err := time.Parse(time.RFC3339, info.UpdatedAt); err == nil {
			t.CompletedAt = updated
		}
	}
	if len(info.Files) > 0 {
		t.Files = buildFileTree(info)
	}
	return t
}

func (tb *TorBox) ListTorrents(ctx context.Context, offset, limit int) ([]*types.Torrent, error) {
	if limit <= 0 {
		limit = 50
	}
	url := fmt.Sprintf("%s/torrents/mylist?offset=%d&limit=%d", tb.host, offset, limit)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	body, err := tb.doRequest(req)
	if err != nil {
		return nil, err
	}
	infos, err := decodeResponse[[]torrentInfo](tb, body)
	if err != nil {
		return nil, err
	}
	torrents := make([]*types.Torrent, 0, len(infos))
	for _, info := range infos {
		torrents = append(torrents, tb.toTorrent(info))
	}
	return torrents, nil
}

// SearchTorrents pages through the full list; a page shorter than the limit
// means there is no further page.
func (tb *TorBox) SearchTorrents(ctx context.Context, query string) ([]*types.Torrent, error) {
	const pageSize = 100
	if query == "" {
		return tb.ListTorrents(ctx, 0, pageSize)
	}
	query = strings.ToLower(query)
	var matches []*types.Torrent
	for offset := 0; ; offset += pageSize {
		page, err := tb.ListTorrents(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, t := range page {
			if strings.Contains(strings.ToLower(t.Name), query) {
				matches = append(matches, t)
			}
		}
		hasMore := len(page) == pageSize
		if !hasMore {
			return matches, nil
		}
	}
}

func (tb *TorBox) getTorrentInfo(ctx context.Context, id string) (*torrentInfo, error) {
	url := fmt.Sprintf("%s/torrents/mylist?id=%s", tb.host, gourl.QueryEscape(id))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	body, err := tb.doRequest(req)
	if err != nil {
		return nil, err
	}
	info, err := decodeResponse[*torrentInfo](tb, body)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (tb *TorBox) GetTorrent(ctx context.Context, id string) (*types.Torrent, error) {
	info, err := tb.getTorrentInfo(ctx, id)
	if err != nil {
		if e, ok := types.AsError(err); ok && e.Kind == types.ErrProvider {
			return nil, nil
		}
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return tb.toTorrent(*info), nil
}

func (tb *TorBox) GetTorrentFiles(ctx context.Context, id string) ([]*types.FileNode, error) {
	info, err := tb.getTorrentInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, types.NewProviderError(tb.name, "", fmt.Sprintf("torrent %s not found", id))
	}
	return buildFileTree(*info), nil
}

// buildFileTree splits each file's slash-separated name into folder
// segments, deduplicating folders through a prefix map. Leaf ids are
// composite "torrentId:fileId" strings.
func buildFileTree(info torrentInfo) []*types.FileNode {
	root := &types.FileNode{Children: []*types.FileNode{}}
	folders := map[string]*types.FileNode{"": root}

	for _, f := range info.Files {
		segments := strings.Split(strings.Trim(f.Name, "/"), "/")
		parent := root
		prefix := ""
		for _, segment := range segments[:len(segments)-1] {
			prefix += "/" + segment
			folder, ok := folders[prefix]
			if !ok {
				folder = &types.FileNode{Name: segment, Path: prefix, Children: []*types.FileNode{}}
				folders[prefix] = folder
				parent.Children = append(parent.Children, folder)
			}
			parent = folder
		}
		parent.Children = append(parent.Children, &types.FileNode{
			Name: segments[len(segments)-1],
			ID:   fmt.Sprintf("%d:%d", info.Id, f.Id),
			Size: f.Size,
			Path: "/" + strings.Join(segments, "/"),
		})
	}
	return root.Children
}

// GetDownloadLink builds the download URL by string templating from the
// composite node id; no network round trip happens unless an eagerly
// resolved URL is requested.
func (tb *TorBox) GetDownloadLink(ctx context.Context, node *types.FileNode, resolve bool) (*types.DownloadLink, error) {
	if node == nil {
		return nil, types.NewProviderError(tb.name, "", "file node is nil")
	}
	torrentId, fileId, ok := strings.Cut(node.ID, ":")
	if !ok {
		return nil, types.NewProviderError(tb.name, "", fmt.Sprintf("malformed file id %q: want torrentId:fileId", node.ID))
	}
	templated := fmt.Sprintf("%s/torrents/requestdl?token=%s&torrent_id=%s&file_id=%s",
		tb.host, tb.apiKey, torrentId, fileId)
	link := &types.DownloadLink{
		Filename:     node.Name,
		Link:         node.ID,
		DownloadLink: templated,
		Size:         node.Size,
		Id:           node.ID,
		Generated:    time.Now(),
	}
	if !resolve {
		return link, nil
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, templated+"&redirect=false", nil)
	body, err := tb.doRequest(req)
	if err != nil {
		return nil, err
	}
	resolved, err := decodeResponse[string](tb, body)
	if err != nil {
		return nil, err
	}
	link.DownloadLink = resolved
	return link, nil
}

// AddMagnets adds all URIs in parallel; the provider tolerates concurrent
// creates and one bad URI never cancels its siblings.
func (tb *TorBox) AddMagnets(ctx context.Context, uris []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(uris))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, uri := range uris {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := tb.createTorrent(ctx, map[string]string{"magnet": uri}, nil, "")
			mu.Lock()
			results[uri] = status
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (tb *TorBox) UploadTorrents(ctx context.Context, files []*types.TorrentFile) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(files))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := tb.createTorrent(ctx, nil, file.Data, file.Name)
			mu.Lock()
			results[file.Name] = status
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// createTorrent POSTs multipart form data to torrents/createtorrent, with
// either a magnet field or a raw .torrent file part.
func (tb *TorBox) createTorrent(ctx context.Context, fields map[string]string, fileData []byte, fileName string) *types.AddStatus {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return &types.AddStatus{Success: false, Message: err.Error()}
		}
	}
	if fileData != nil {
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			return &types.AddStatus{Success: false, Message: err.Error()}
		}
		if _, err := part.Write(fileData); err != nil {
			return &types.AddStatus{Success: false, Message: err.Error()}
		}
	}
	if err := writer.Close(); err != nil {
		return &types.AddStatus{Success: false, Message: err.Error()}
	}

	url := fmt.Sprintf("%s/torrents/createtorrent", tb.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	body, err := tb.doRequest(req)
	if err != nil {
		return &types.AddStatus{Success: false, Message: err.Error()}
	}
	var envelope APIResponse[createTorrentData]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &types.AddStatus{Success: false, Message: fmt.Sprintf("decoding createtorrent response: %v", err)}
	}
	if !envelope.Success {
		message := envelope.Detail
		if message == "" {
			message = envelope.Error
		}
		return &types.AddStatus{Success: false, Message: message}
	}
	return &types.AddStatus{
		Success:  true,
		Id:       strconv.Itoa(envelope.Data.TorrentId),
		Message:  envelope.Detail,
		IsCached: strings.Contains(strings.ToLower(envelope.Detail), "cached"),
	}
}

// controlTorrent drives the torrents/controltorrent endpoint.
func (tb *TorBox) controlTorrent(ctx context.Context, id, operation string) error {
	torrentId, err := strconv.Atoi(id)
	if err != nil {
		return types.NewProviderError(tb.name, "", fmt.Sprintf("malformed torrent id %q", id))
	}
	payload, _ := json.Marshal(map[string]any{
		"torrent_id": torrentId,
		"operation":  operation,
	})
	url := fmt.Sprintf("%s/torrents/controltorrent", tb.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	body, err := tb.doRequest(req)
	if err != nil {
		return err
	}
	_, err = decodeResponse[json.RawMessage](tb, body)
	return err
}

func (tb *TorBox) DeleteTorrent(ctx context.Context, id string) error {
	return tb.controlTorrent(ctx, id, "delete")
}

func (tb *TorBox) RestartTorrents(ctx context.Context, ids []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(ids))
	for _, id := range ids {
		if err := tb.controlTorrent(ctx, id, "resume"); err != nil {
			results[id] = &types.AddStatus{Success: false, Id: id, Message: err.Error()}
			continue
		}
		results[id] = &types.AddStatus{Success: true, Id: id}
	}
	return results
}

func (tb *TorBox) Profile(ctx context.Context) (*types.Profile, error) {
	url := fmt.Sprintf("%s/user/me", tb.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	body, err := tb.doRequest(req)
	if err != nil {
		return nil, err
	}
	user, err := decodeResponse[userData](tb, body)
	if err != nil {
		return nil, err
	}
	profile := &types.Profile{
		Id:      user.Id,
		Email:   user.Email,
		Premium: user.Plan > 0,
	}
	if user.Plan > 0 {
		profile.Type = "premium"
	} else {
		profile.Type = "free"
	}
	if exp, err := time.Parse(time.RFC3339, user.PremiumExpires); err == nil {
		profile.Expiration = exp
	}
	return profile, nil
}

func (tb *TorBox) getWebDownloadStatus(state string) types.WebDownloadStatus {
	switch state {
	case "queued", "pending":
		return types.WebDownloadPending
	case "downloading", "processing":
		return types.WebDownloadProcessing
	case "completed", "uploading":
		return types.WebDownloadCompleted
	case "error", "failed":
		return types.WebDownloadFailed
	default:
		return types.WebDownloadProcessing
	}
}

func (tb *TorBox) AddWebDownloads(ctx context.Context, links []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(links))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, link := range links {
		wg.Add(1)
		go func() {
			defer wg.Done()
			form := gourl.Values{"link": {link}}
			url := fmt.Sprintf("%s/webdl/createwebdownload", tb.host)
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			status := &types.AddStatus{Success: true}
			body, err := tb.doRequest(req)
			if err == nil {
				var data createWebDownloadData
				if data, err = decodeResponse[createWebDownloadData](tb, body); err == nil {
					status.Id = strconv.Itoa(data.WebDownloadId)
				}
			}
			if err != nil {
				status = &types.AddStatus{Success: false, Message: err.Error()}
			}
			mu.Lock()
			results[link] = status
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (tb *TorBox) ListWebDownloads(ctx context.Context) ([]*types.WebDownload, error) {
	url := fmt.Sprintf("%s/webdl/mylist", tb.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	body, err := tb.doRequest(req)
	if err != nil {
		return nil, err
	}
	infos, err := decodeResponse[[]webDownloadInfo](tb, body)
	if err != nil {
		return nil, err
	}
	downloads := make([]*types.WebDownload, 0, len(infos))
	for _, info := range infos {
		wd := &types.WebDownload{
			Id:       strconv.Itoa(info.Id),
			Name:     info.Name,
			Link:     info.OriginalURL,
			Size:     info.Size,
			Status:   tb.getWebDownloadStatus(info.DownloadState),
			Progress: info.Progress * 100,
			Error:    info.Error,
		}
		if len(info.Files) > 0 {
			wd.DownloadLink = fmt.Sprintf("%s/webdl/requestdl?token=%s&web_id=%d&file_id=%d",
				tb.host, tb.apiKey, info.Id, info.Files[0].Id)
		}
		downloads = append(downloads, wd)
	}
	return downloads, nil
}

func (tb *TorBox) DeleteWebDownload(ctx context.Context, id string) error {
	webId, err := strconv.Atoi(id)
	if err != nil {
		return types.NewProviderError(tb.name, "", fmt.Sprintf("malformed web download id %q", id))
	}
	payload, _ := json.Marshal(map[string]any{
		"webdl_id":  webId,
		"operation": "delete",
	})
	url := fmt.Sprintf("%s/webdl/controlwebdownload", tb.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	body, err := tb.doRequest(req)
	if err != nil {
		return err
	}
	_, err = decodeResponse[json.RawMessage](tb, body)
	return err
}
