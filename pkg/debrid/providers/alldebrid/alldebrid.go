package alldebrid

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
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/internal/logger"
	"github.com/debridui/debridui/internal/request"
	"github.com/debridui/debridui/pkg/debrid/types"
)

const defaultRateLimit = "600/minute"

// AllDebrid speaks the provider's Live Mode protocol: the instance holds a
// session id, a monotonic counter and the last-known magnet set, and each
// list call fetches only the changes since the previous one. ListTorrents
// and SearchTorrents must not be called concurrently on one instance; the
// diff protocol has no defense against interleaved counters.
type AllDebrid struct {
	name   string
	host   string
	apiKey string

	client *request.Client
	logger zerolog.Logger

	session string
	state   syncState
}

func New(dc config.Debrid) (*AllDebrid, error) {
	rateLimit := dc.RateLimit
	if rateLimit == "" {
		rateLimit = defaultRateLimit
	}
	_log := logger.New(dc.Name)
	headers := map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", dc.APIKey),
	}
	return &AllDebrid{
		name:   "alldebrid",
		host:   "https://api.alldebrid.com/v4",
		apiKey: dc.APIKey,
		client: request.New(
			request.WithHeaders(headers),
			request.WithRateLimiter(request.ParseRateLimit(rateLimit)),
			request.WithLogger(_log),
			request.WithMaxRetries(5),
			request.WithRetryableStatus(502, 503),
			request.WithProxy(dc.Proxy),
		),
		logger:  _log,
		session: uuid.NewString(),
		state:   newSyncState(),
	}, nil
}

func (ad *AllDebrid) Name() string {
	return ad.name
}

func (ad *AllDebrid) Logger() zerolog.Logger {
	return ad.logger
}

func (ad *AllDebrid) RefreshInterval() time.Duration {
	return 5 * time.Second
}

// SupportsEphemeralLinks is true: unlocked links are not persisted
// server-side, the caller holds them for the session.
func (ad *AllDebrid) SupportsEphemeralLinks() bool {
	return true
}

// callAPI performs a request and unwraps the {status, data, error}
// envelope. A nil form sends a GET.
func (ad *AllDebrid) callAPI(ctx context.Context, path string, form gourl.Values) (json.RawMessage, error) {
	var req *http.Request
	url := fmt.Sprintf("%s/%s", ad.host, path)
	if form == nil {
		req, _ = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	} else {
		req, _ = http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return ad.doRequest(req)
}

func (ad *AllDebrid) doRequest(req *http.Request) (json.RawMessage, error) {
	resp, err := ad.client.Do(req)
	if err != nil {
		return nil, types.NewTransportError(ad.name, err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewTransportError(ad.name, err.Error())
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, types.NewRateLimitError(ad.name, "too many requests", 0)
	}
	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, types.NewTransportError(ad.name, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)))
	}
	if envelope.Status != "success" {
		return nil, ad.classifyError(envelope.Error)
	}
	return envelope.Data, nil
}

func (ad *AllDebrid) classifyError(apiErr *apiError) error {
	if apiErr == nil {
		return types.NewTransportError(ad.name, "error response without error body")
	}
	if strings.HasPrefix(apiErr.Code, "AUTH_") {
		return &types.Error{Provider: ad.name, Kind: types.ErrAuth, Code: apiErr.Code, Message: apiErr.Message}
	}
	return types.NewProviderError(ad.name, apiErr.Code, apiErr.Message)
}

// getStatus maps the provider's numeric status codes. 0-3 are the download
// pipeline, 4 is ready, everything 5-11 is a terminal failure.
func getStatus(code int) types.TorrentStatus {
	switch code {
	case 0:
		return types.StatusWaiting
	case 1:
		return types.StatusDownloading
	case 2:
		return types.StatusProcessing
	case 3:
		return types.StatusUploading
	case 4:
		return types.StatusCompleted
	case 5, 6, 8, 9:
		return types.StatusFailed
	case 7, 10, 11:
		return types.StatusInactive
	default:
		return types.StatusUnknown
	}
}

func (ad *AllDebrid) toTorrent(id string, m Magnet) *types.Torrent {
	t := &types.Torrent{
		Id:       id,
		Provider: ad.name,
		Status:   types.StatusUnknown,
	}
	if m.Filename != nil {
		t.Name = *m.Filename
	}
	if m.Size != nil {
		t.Size = *m.Size
	}
	if m.StatusCode != nil {
		t.Status = getStatus(*m.StatusCode)
	}
	if m.Downloaded != nil && t.Size > 0 {
		t.Progress = float64(*m.Downloaded) / float64(t.Size) * 100
	}
	if t.Status == types.StatusCompleted {
		t.Progress = 100
	}
	if m.DownloadSpeed != nil {
		t.Speed = *m.DownloadSpeed
	}
	if m.Seeders != nil {
		t.Seeders = *m.Seeders
	}
	if m.UploadDate != nil {
		t.Added = time.Unix(*m.UploadDate, 0)
	}
	if t.Status == types.StatusCompleted && m.CompletionDate != nil {
		t.CompletedAt = time.Unix(*m.CompletionDate, 0)
	}
	if t.Status == types.StatusFailed && m.Status != nil {
		t.Error = *m.Status
	}
	return t
}

// sync performs one Live Mode round trip and folds the response into the
// instance state.
func (ad *AllDebrid) sync(ctx context.Context) error {
	form := gourl.Values{
		"session": {ad.session},
		"counter": {strconv.Itoa(ad.state.counter)},
	}
	data, err := ad.callAPI(ctx, "magnet/status", form)
	if err != nil {
		return err
	}
	var status magnetStatusData
	if err := json.Unmarshal(data, &status); err != nil {
		return types.NewTransportError(ad.name, fmt.Sprintf("decoding magnet status: %v", err))
	}
	ad.state = applySync(ad.state, status)
	return nil
}

// ListTorrents syncs and slices the ordered magnet list client-side.
func (ad *AllDebrid) ListTorrents(ctx context.Context, offset, limit int) ([]*types.Torrent, error) {
	if limit <= 0 {
		limit = 50
	}
	if err := ad.sync(ctx); err != nil {
		return nil, err
	}
	order := ad.state.order
	if offset >= len(order) {
		return []*types.Torrent{}, nil
	}
	end := offset + limit
	if end > len(order) {
		end = len(order)
	}
	torrents := make([]*types.Torrent, 0, end-offset)
	for _, id := range order[offset:end] {
		torrents = append(torrents, ad.toTorrent(id, ad.state.magnets[id]))
	}
	return torrents, nil
}

func (ad *AllDebrid) SearchTorrents(ctx context.Context, query string) ([]*types.Torrent, error) {
	if query == "" {
		return ad.ListTorrents(ctx, 0, 100)
	}
	if err := ad.sync(ctx); err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var matches []*types.Torrent
	for _, id := range ad.state.order {
		t := ad.toTorrent(id, ad.state.magnets[id])
		if strings.Contains(strings.ToLower(t.Name), query) {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

func (ad *AllDebrid) GetTorrent(ctx context.Context, id string) (*types.Torrent, error) {
	form := gourl.Values{"id": {id}}
	data, err := ad.callAPI(ctx, "magnet/status", form)
	if err != nil {
		if e, ok := types.AsError(err); ok && e.Kind == types.ErrProvider {
			return nil, nil
		}
		return nil, err
	}
	// A single-id request returns the magnet as an object, not a list.
	var single struct {
		Magnets Magnet `json:"magnets"`
	}
	if err := json.Unmarshal(data, &single); err == nil && single.Magnets.Id != 0 {
		return ad.toTorrent(strconv.FormatInt(single.Magnets.Id, 10), single.Magnets), nil
	}
	var many magnetStatusData
	if err := json.Unmarshal(data, &many); err != nil || len(many.Magnets) == 0 {
		return nil, nil
	}
	m := many.Magnets[0]
	return ad.toTorrent(strconv.FormatInt(m.Id, 10), m), nil
}

func (ad *AllDebrid) GetTorrentFiles(ctx context.Context, id string) ([]*types.FileNode, error) {
	form := gourl.Values{"id[]": {id}}
	data, err := ad.callAPI(ctx, "magnet/files", form)
	if err != nil {
		return nil, err
	}
	var files magnetFilesData
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, types.NewTransportError(ad.name, fmt.Sprintf("decoding magnet files: %v", err))
	}
	if len(files.Magnets) == 0 {
		return nil, types.NewProviderError(ad.name, "", fmt.Sprintf("magnet %s not found", id))
	}
	return toFileTree(files.Magnets[0].Files, ""), nil
}

// toFileTree converts the recursive n/s/l/e encoding: a node with entries
// is a folder, a node with a link is a file.
func toFileTree(files []magnetFile, parentPath string) []*types.FileNode {
	nodes := make([]*types.FileNode, 0, len(files))
	for _, f := range files {
		path := parentPath + "/" + f.Name
		if f.Entries != nil {
			nodes = append(nodes, &types.FileNode{
				Name:     f.Name,
				Path:     path,
				Children: toFileTree(f.Entries, path),
			})
			continue
		}
		nodes = append(nodes, &types.FileNode{
			Name: f.Name,
			ID:   f.Link,
			Size: f.Size,
			Path: path,
			Link: f.Link,
		})
	}
	return nodes
}

// GetDownloadLink unlocks the file's hoster link. Unlocked links are always
// fully resolved, so the resolve flag is a no-op.
func (ad *AllDebrid) GetDownloadLink(ctx context.Context, node *types.FileNode, resolve bool) (*types.DownloadLink, error) {
	if node == nil || node.Link == "" {
		return nil, types.NewProviderError(ad.name, "", "file node has no resolvable link")
	}
	form := gourl.Values{"link": {node.Link}}
	data, err := ad.callAPI(ctx, "link/unlock", form)
	if err != nil {
		return nil, err
	}
	var unlocked unlockData
	if err := json.Unmarshal(data, &unlocked); err != nil {
		return nil, types.NewTransportError(ad.name, fmt.Sprintf("decoding unlock response: %v", err))
	}
	return &types.DownloadLink{
		Filename:     unlocked.Filename,
		Link:         node.Link,
		DownloadLink: unlocked.Link,
		Size:         unlocked.Filesize,
		Id:           unlocked.Id,
		Generated:    time.Now(),
	}, nil
}

// AddMagnets submits the whole batch in one magnet/upload call; the
// response carries a per-magnet result in input order.
func (ad *AllDebrid) AddMagnets(ctx context.Context, uris []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(uris))
	form := gourl.Values{"magnets[]": uris}
	data, err := ad.callAPI(ctx, "magnet/upload", form)
	if err != nil {
		for _, uri := range uris {
			results[uri] = &types.AddStatus{Success: false, Message: err.Error()}
		}
		return results
	}
	var upload uploadData
	if err := json.Unmarshal(data, &upload); err != nil {
		for _, uri := range uris {
			results[uri] = &types.AddStatus{Success: false, Message: fmt.Sprintf("decoding upload response: %v", err)}
		}
		return results
	}
	for i, res := range upload.Magnets {
		key := res.Magnet
		if key == "" && i < len(uris) {
			key = uris[i]
		}
		results[key] = toAddStatus(res)
	}
	for _, uri := range uris {
		if _, ok := results[uri]; !ok {
			results[uri] = &types.AddStatus{Success: false, Message: "no result returned for magnet"}
		}
	}
	return results
}

func toAddStatus(res uploadResult) *types.AddStatus {
	if res.Error != nil {
		return &types.AddStatus{Success: false, Message: res.Error.Message}
	}
	return &types.AddStatus{
		Success:  true,
		Id:       strconv.FormatInt(res.Id, 10),
		IsCached: res.Ready,
	}
}

func (ad *AllDebrid) UploadTorrents(ctx context.Context, files []*types.TorrentFile) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(files))

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, file := range files {
		part, err := writer.CreateFormFile(fmt.Sprintf("files[%d]", i), file.Name)
		if err == nil {
			_, err = part.Write(file.Data)
		}
		if err != nil {
			results[file.Name] = &types.AddStatus{Success: false, Message: err.Error()}
		}
	}
	if err := writer.Close(); err != nil {
		for _, file := range files {
			if _, ok := results[file.Name]; !ok {
				results[file.Name] = &types.AddStatus{Success: false, Message: err.Error()}
			}
		}
		return results
	}

	url := fmt.Sprintf("%s/magnet/upload/file", ad.host)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	data, err := ad.doRequest(req)
	if err != nil {
		for _, file := range files {
			if _, ok := results[file.Name]; !ok {
				results[file.Name] = &types.AddStatus{Success: false, Message: err.Error()}
			}
		}
		return results
	}
	var upload uploadData
	if err := json.Unmarshal(data, &upload); err != nil {
		for _, file := range files {
			if _, ok := results[file.Name]; !ok {
				results[file.Name] = &types.AddStatus{Success: false, Message: fmt.Sprintf("decoding upload response: %v", err)}
			}
		}
		return results
	}
	for i, res := range upload.Files {
		key := res.File
		if key == "" && i < len(files) {
			key = files[i].Name
		}
		results[key] = toAddStatus(res)
	}
	for _, file := range files {
		if _, ok := results[file.Name]; !ok {
			results[file.Name] = &types.AddStatus{Success: false, Message: "no result returned for file"}
		}
	}
	return results
}

func (ad *AllDebrid) DeleteTorrent(ctx context.Context, id string) error {
	form := gourl.Values{"id": {id}}
	_, err := ad.callAPI(ctx, "magnet/delete", form)
	return err
}

func (ad *AllDebrid) RestartTorrents(ctx context.Context, ids []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(ids))
	for _, id := range ids {
		form := gourl.Values{"id": {id}}
		if _, err := ad.callAPI(ctx, "magnet/restart", form); err != nil {
			results[id] = &types.AddStatus{Success: false, Id: id, Message: err.Error()}
			continue
		}
		results[id] = &types.AddStatus{Success: true, Id: id}
	}
	return results
}

func (ad *AllDebrid) Profile(ctx context.Context) (*types.Profile, error) {
	data, err := ad.callAPI(ctx, "user", nil)
	if err != nil {
		return nil, err
	}
	var user userData
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, types.NewTransportError(ad.name, fmt.Sprintf("decoding user response: %v", err))
	}
	profile := &types.Profile{
		Username: user.User.Username,
		Email:    user.User.Email,
		Points:   user.User.FidelityPoints,
		Premium:  user.User.IsPremium,
	}
	if user.User.IsPremium {
		profile.Type = "premium"
		profile.Expiration = time.Unix(user.User.PremiumUntil, 0)
	} else {
		profile.Type = "free"
	}
	return profile, nil
}
