package realdebrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	gourl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/internal/logger"
	"github.com/debridui/debridui/internal/request"
	"github.com/debridui/debridui/pkg/debrid/types"
)

const defaultRateLimit = "250/minute"

// authErrorCodes are the provider error codes that signal a bad or expired
// credential rather than an operational failure.
var authErrorCodes = map[int]struct{}{
	8:  {}, // bad token
	9:  {}, // permission denied
	10: {}, // two-factor needed
	11: {}, // two-factor pending
	12: {}, // invalid login
	13: {}, // invalid password
	14: {}, // account locked
}

type RealDebrid struct {
	name   string
	host   string
	apiKey string

	client *request.Client
	logger zerolog.Logger

	// isFolderLink classifies links that unpack into multiple files, so
	// plain single-file links skip the folder-expansion endpoint.
	isFolderLink func(ctx context.Context, link string) bool
}

func New(dc config.Debrid) (*RealDebrid, error) {
	rateLimit := dc.RateLimit
	if rateLimit == "" {
		rateLimit = defaultRateLimit
	}
	_log := logger.New(dc.Name)

	headers := map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", dc.APIKey),
	}
	r := &RealDebrid{
		name:   "realdebrid",
		host:   "https://api.real-debrid.com/rest/1.0",
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
	}
	r.isFolderLink = newFolderClassifier(r.client, _log).isFolder
	return r, nil
}

func (r *RealDebrid) Name() string {
	return r.name
}

func (r *RealDebrid) Logger() zerolog.Logger {
	return r.logger
}

// RefreshInterval is short; the provider computes all transfer state
// server-side and polling is the only way to observe it.
func (r *RealDebrid) RefreshInterval() time.Duration {
	return 5 * time.Second
}

func (r *RealDebrid) SupportsEphemeralLinks() bool {
	return false
}

// doRequest performs a request and normalizes failures into the shared
// error taxonomy using the provider's {error, error_code} envelope.
func (r *RealDebrid) doRequest(req *http.Request) ([]byte, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, types.NewTransportError(r.name, err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewTransportError(r.name, err.Error())
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, r.parseError(resp.StatusCode, body, resp.Header)
}

func (r *RealDebrid) parseError(status int, body []byte, headers http.Header) error {
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == "" {
		return types.NewTransportError(r.name, fmt.Sprintf("HTTP %d: %s", status, string(body)))
	}
	code := strconv.Itoa(envelope.ErrorCode)
	if _, ok := authErrorCodes[envelope.ErrorCode]; ok || status == http.StatusUnauthorized {
		return &types.Error{Provider: r.name, Kind: types.ErrAuth, Code: code, Message: envelope.Error}
	}
	if status == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if s := headers.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return types.NewRateLimitError(r.name, envelope.Error, retryAfter)
	}
	return types.NewProviderError(r.name, code, envelope.Error)
}

func (r *RealDebrid) getStatus(status string) types.TorrentStatus {
	switch status {
	case "magnet_conversion", "waiting_files_selection", "queued":
		return types.StatusWaiting
	case "downloading":
		return types.StatusDownloading
	case "uploading":
		return types.StatusUploading
	case "compressing":
		return types.StatusProcessing
	case "downloaded":
		return types.StatusCompleted
	case "error", "magnet_error", "virus":
		return types.StatusFailed
	case "dead":
		return types.StatusInactive
	default:
		return types.StatusUnknown
	}
}

func (r *RealDebrid) toTorrent(info torrentInfo) *types.Torrent {
	t := &types.Torrent{
		Id:       info.Id,
		Name:     info.Filename,
		InfoHash: strings.ToLower(info.Hash),
		Size:     info.Bytes,
		Status:   r.getStatus(info.Status),
		Progress: info.Progress,
		Speed:    info.Speed,
		Seeders:  info.Seeders,
		Provider: r.name,
	}
	if added, err := time.Parse(time.RFC3339, info.Added); err == nil {
		t.Added = added
	}
	if t.Status == types.StatusFailed {
		t.Error = info.Status
	}
	if t.Status == types.StatusCompleted {
		if ended, err := time.Parse(time.RFC3339, info.Ended); err == nil {
			t.CompletedAt = ended
		}
	}
	if len(info.Files) > 0 {
		t.Files = buildFileTree(info)
	}
	return t
}

// ListTorrents fetches one page of the account's torrent list. The provider
// ignores raw offsets, so the offset is converted to its page parameter.
func (r *RealDebrid) ListTorrents(ctx context.Context, offset, limit int) ([]*types.Torrent, error) {
	if limit <= 0 {
		limit = 50
	}
	page := offset/limit + 1
	url := fmt.Sprintf("%s/torrents?page=%d&limit=%d", r.host, page, limit)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	body, err := r.doRequest(req)
	if err != nil {
		return nil, err
	}
	var infos []torrentInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		return nil, types.NewTransportError(r.name, fmt.Sprintf("decoding torrent list: %v", err))
	}
	torrents := make([]*types.Torrent, 0, len(infos))
	for _, info := range infos {
		torrents = append(torrents, r.toTorrent(info))
	}
	return torrents, nil
}

func (r *RealDebrid) SearchTorrents(ctx context.Context, query string) ([]*types.Torrent, error) {
	const pageSize = 100
	if query == "" {
		return r.ListTorrents(ctx, 0, pageSize)
	}
	query = strings.ToLower(query)
	var matches []*types.Torrent
	for offset := 0; ; offset += pageSize {
		page, err := r.ListTorrents(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, t := range page {
			if strings.Contains(strings.ToLower(t.Name), query) {
				matches = append(matches, t)
			}
		}
		if len(page) < pageSize {
			return matches, nil
		}
	}
}

func (r *RealDebrid) getTorrentInfo(ctx context.Context, id string) (*torrentInfo, error) {
	url := fmt.Sprintf("%s/torrents/info/%s", r.host, id)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	body, err := r.doRequest(req)
	if err != nil {
		return nil, err
	}
	var info torrentInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, types.NewTransportError(r.name, fmt.Sprintf("decoding torrent info: %v", err))
	}
	return &info, nil
}

// GetTorrent returns (nil, nil) for a missing id; absence is an expected
// lookup outcome, not a failure.
func (r *RealDebrid) GetTorrent(ctx context.Context, id string) (*types.Torrent, error) {
	info, err := r.getTorrentInfo(ctx, id)
	if err != nil {
		if e, ok := types.AsError(err); ok && e.Kind == types.ErrProvider {
			return nil, nil
		}
		return nil, err
	}
	return r.toTorrent(*info), nil
}

func (r *RealDebrid) GetTorrentFiles(ctx context.Context, id string) ([]*types.FileNode, error) {
	info, err := r.getTorrentInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildFileTree(*info), nil
}

// buildFileTree reconstructs the torrent's tree from the flat
// (path, bytes, selected) list zipped positionally against links. Folder
// nodes are synthesized per path segment and deduplicated through a
// path-prefix map.
func buildFileTree(info torrentInfo) []*types.FileNode {
	root := &types.FileNode{Children: []*types.FileNode{}}
	folders := map[string]*types.FileNode{"": root}

	linkIdx := 0
	for _, f := range info.Files {
		if f.Selected != 1 {
			continue
		}
		var link string
		if linkIdx < len(info.Links) {
			link = info.Links[linkIdx]
		}
		linkIdx++

		segments := strings.Split(strings.Trim(f.Path, "/"), "/")
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
			ID:   strconv.Itoa(f.ID),
			Size: f.Bytes,
			Path: f.Path,
			Link: link,
		})
	}
	return root.Children
}

func (r *RealDebrid) unrestrictLink(ctx context.Context, link string) (*unrestrictResponse, error) {
	form := gourl.Values{"link": {link}}
	url := fmt.Sprintf("%s/unrestrict/link", r.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := r.doRequest(req)
	if err != nil {
		return nil, err
	}
	var resp unrestrictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.NewTransportError(r.name, fmt.Sprintf("decoding unrestrict response: %v", err))
	}
	return &resp, nil
}

// unrestrictFolder expands a folder link into its member links.
func (r *RealDebrid) unrestrictFolder(ctx context.Context, link string) ([]string, error) {
	form := gourl.Values{"link": {link}}
	url := fmt.Sprintf("%s/unrestrict/folder", r.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := r.doRequest(req)
	if err != nil {
		return nil, err
	}
	var links []string
	if err := json.Unmarshal(body, &links); err != nil {
		return nil, types.NewTransportError(r.name, fmt.Sprintf("decoding folder response: %v", err))
	}
	return links, nil
}

// GetDownloadLink resolves a file node's provider link into a signed URL.
// Folder links are expanded first; the first member is resolved. Links are
// always server-resolved here, so the resolve flag is a no-op.
func (r *RealDebrid) GetDownloadLink(ctx context.Context, node *types.FileNode, resolve bool) (*types.DownloadLink, error) {
	if node == nil || node.Link == "" {
		return nil, types.NewProviderError(r.name, "", "file node has no resolvable link")
	}
	link := node.Link
	if r.isFolderLink != nil && r.isFolderLink(ctx, link) {
		members, err := r.unrestrictFolder(ctx, link)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, types.NewProviderError(r.name, "", "folder link contains no files")
		}
		link = members[0]
	}
	resp, err := r.unrestrictLink(ctx, link)
	if err != nil {
		return nil, err
	}
	return &types.DownloadLink{
		Filename:     resp.Filename,
		Link:         resp.Link,
		DownloadLink: resp.Download,
		Size:         resp.Filesize,
		Id:           resp.Id,
		Generated:    time.Now(),
	}, nil
}

// AddMagnets adds URIs one at a time. Parallel adds trigger upstream rate
// limit errors, so the loop is intentionally serial.
func (r *RealDebrid) AddMagnets(ctx context.Context, uris []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(uris))
	for _, uri := range uris {
		id, err := r.addMagnet(ctx, uri)
		if err != nil {
			results[uri] = &types.AddStatus{Success: false, Message: err.Error()}
			continue
		}
		results[uri] = &types.AddStatus{Success: true, Id: id, Message: "torrent added"}
	}
	return results
}

func (r *RealDebrid) addMagnet(ctx context.Context, uri string) (string, error) {
	form := gourl.Values{"magnet": {uri}}
	url := fmt.Sprintf("%s/torrents/addMagnet", r.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := r.doRequest(req)
	if err != nil {
		return "", err
	}
	var resp addMagnetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", types.NewTransportError(r.name, fmt.Sprintf("decoding addMagnet response: %v", err))
	}
	if err := r.selectFiles(ctx, resp.Id); err != nil {
		return resp.Id, err
	}
	return resp.Id, nil
}

// selectFiles starts the transfer; a torrent stays in
// waiting_files_selection until files are picked.
func (r *RealDebrid) selectFiles(ctx context.Context, id string) error {
	form := gourl.Values{"files": {"all"}}
	url := fmt.Sprintf("%s/torrents/selectFiles/%s", r.host, id)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err := r.doRequest(req)
	return err
}

func (r *RealDebrid) UploadTorrents(ctx context.Context, files []*types.TorrentFile) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(files))
	for _, file := range files {
		url := fmt.Sprintf("%s/torrents/addTorrent", r.host)
		req, _ := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(file.Data))
		req.Header.Set("Content-Type", "application/x-bittorrent")
		body, err := r.doRequest(req)
		if err != nil {
			results[file.Name] = &types.AddStatus{Success: false, Message: err.Error()}
			continue
		}
		var resp addMagnetResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			results[file.Name] = &types.AddStatus{Success: false, Message: fmt.Sprintf("decoding addTorrent response: %v", err)}
			continue
		}
		if err := r.selectFiles(ctx, resp.Id); err != nil {
			results[file.Name] = &types.AddStatus{Success: false, Id: resp.Id, Message: err.Error()}
			continue
		}
		results[file.Name] = &types.AddStatus{Success: true, Id: resp.Id, Message: "torrent added"}
	}
	return results
}

func (r *RealDebrid) DeleteTorrent(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/torrents/delete/%s", r.host, id)
	req, _ := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	_, err := r.doRequest(req)
	return err
}

// RestartTorrents reports a structured failure per id; the provider has no
// restart endpoint.
func (r *RealDebrid) RestartTorrents(ctx context.Context, ids []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(ids))
	for _, id := range ids {
		results[id] = &types.AddStatus{Success: false, Message: "restart is not supported by realdebrid"}
	}
	return results
}

func (r *RealDebrid) Profile(ctx context.Context) (*types.Profile, error) {
	url := fmt.Sprintf("%s/user", r.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	body, err := r.doRequest(req)
	if err != nil {
		return nil, err
	}
	var user userInfo
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, types.NewTransportError(r.name, fmt.Sprintf("decoding user response: %v", err))
	}
	profile := &types.Profile{
		Id:       user.Id,
		Username: user.Username,
		Email:    user.Email,
		Points:   user.Points,
		Type:     user.Type,
		Premium:  user.Type == "premium",
	}
	if exp, err := time.Parse(time.RFC3339, user.Expiration); err == nil {
		profile.Expiration = exp
	}
	return profile, nil
}

// AddWebDownloads unrestricts each link; the provider records successful
// unrestricts in the account's download history.
func (r *RealDebrid) AddWebDownloads(ctx context.Context, links []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(links))
	for _, link := range links {
		resp, err := r.unrestrictLink(ctx, link)
		if err != nil {
			results[link] = &types.AddStatus{Success: false, Message: err.Error()}
			continue
		}
		results[link] = &types.AddStatus{Success: true, Id: resp.Id, IsCached: true}
	}
	return results
}

func (r *RealDebrid) ListWebDownloads(ctx context.Context) ([]*types.WebDownload, error) {
	url := fmt.Sprintf("%s/downloads", r.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	body, err := r.doRequest(req)
	if err != nil {
		return nil, err
	}
	var items []downloadItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, types.NewTransportError(r.name, fmt.Sprintf("decoding downloads list: %v", err))
	}
	downloads := make([]*types.WebDownload, 0, len(items))
	for _, item := range items {
		downloads = append(downloads, &types.WebDownload{
			Id:           item.Id,
			Name:         item.Filename,
			Link:         item.Link,
			DownloadLink: item.Download,
			Size:         item.Filesize,
			Status:       types.WebDownloadCompleted,
			Progress:     100,
		})
	}
	return downloads, nil
}

func (r *RealDebrid) DeleteWebDownload(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/downloads/delete/%s", r.host, id)
	req, _ := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	_, err := r.doRequest(req)
	return err
}
