package premiumize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	gourl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/internal/logger"
	"github.com/debridui/debridui/internal/request"
	"github.com/debridui/debridui/pkg/debrid/types"
)

const defaultRateLimit = "60/minute"

type Premiumize struct {
	name string
	host string

	// apiKey is a plain key sent as a query parameter unless the stored
	// credential carries a "Bearer " prefix, in which case it travels as
	// an OAuth Authorization header instead.
	apiKey   string
	useOAuth bool

	client *request.Client
	logger zerolog.Logger
}

func New(dc config.Debrid) (*Premiumize, error) {
	rateLimit := dc.RateLimit
	if rateLimit == "" {
		rateLimit = defaultRateLimit
	}
	_log := logger.New(dc.Name)

	useOAuth := strings.HasPrefix(dc.APIKey, "Bearer ")
	headers := map[string]string{}
	if useOAuth {
		headers["Authorization"] = dc.APIKey
	}
	return &Premiumize{
		name:     "premiumize",
		host:     "https://www.premiumize.me/api",
		apiKey:   strings.TrimPrefix(dc.APIKey, "Bearer "),
		useOAuth: useOAuth,
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

func (p *Premiumize) Name() string {
	return p.name
}

func (p *Premiumize) Logger() zerolog.Logger {
	return p.logger
}

func (p *Premiumize) RefreshInterval() time.Duration {
	return 10 * time.Second
}

func (p *Premiumize) SupportsEphemeralLinks() bool {
	return false
}

// apiURL builds an endpoint URL, appending the apikey parameter for
// key-based auth.
func (p *Premiumize) apiURL(path string, params gourl.Values) string {
	if params == nil {
		params = gourl.Values{}
	}
	if !p.useOAuth {
		params.Set("apikey", p.apiKey)
	}
	return fmt.Sprintf("%s/%s?%s", p.host, path, params.Encode())
}

func (p *Premiumize) doRequest(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewTransportError(p.name, err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewTransportError(p.name, err.Error())
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, types.NewAuthError(p.name, strings.TrimSpace(string(body)))
	case http.StatusTooManyRequests:
		return nil, types.NewRateLimitError(p.name, "too many requests", 0)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewTransportError(p.name, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)))
	}
	return body, nil
}

// checkEnvelope normalizes {status: "error", message} bodies, which arrive
// with a 200 status. Credential complaints are phrased in the message.
func (p *Premiumize) checkEnvelope(env statusEnvelope) error {
	if env.Status != "error" {
		return nil
	}
	lower := strings.ToLower(env.Message)
	if strings.Contains(lower, "apikey") || strings.Contains(lower, "token") || strings.Contains(lower, "customer") {
		return types.NewAuthError(p.name, env.Message)
	}
	return types.NewProviderError(p.name, "", env.Message)
}

func (p *Premiumize) getJSON(ctx context.Context, path string, params gourl.Values, out any) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL(path, params), nil)
	body, err := p.doRequest(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return types.NewTransportError(p.name, fmt.Sprintf("decoding %s response: %v", path, err))
	}
	return nil
}

func (p *Premiumize) getTransferStatus(t transfer) types.TorrentStatus {
	switch t.Status {
	case "waiting", "queued":
		return types.StatusWaiting
	case "running":
		return types.StatusDownloading
	case "finished":
		return types.StatusCompleted
	case "seeding":
		return types.StatusSeeding
	case "error", "banned", "timeout":
		return types.StatusFailed
	case "deleted":
		return types.StatusInactive
	default:
		return types.StatusUnknown
	}
}

func (p *Premiumize) transferToTorrent(t transfer) *types.Torrent {
	torrent := &types.Torrent{
		Id:       t.Id,
		Name:     t.Name,
		Status:   p.getTransferStatus(t),
		Progress: t.Progress * 100,
		Provider: p.name,
	}
	if torrent.Status == types.StatusCompleted {
		torrent.Progress = 100
	}
	if torrent.Status == types.StatusFailed {
		torrent.Error = t.Message
	}
	return torrent
}

func (p *Premiumize) itemToTorrent(it item) *types.Torrent {
	return &types.Torrent{
		Id:       it.Id,
		Name:     it.Name,
		Size:     it.Size,
		Status:   types.StatusCompleted,
		Progress: 100,
		Added:    time.Unix(it.CreatedAt, 0),
		Provider: p.name,
	}
}

// fetchAll loads the active transfer list and the stored item listing in
// parallel; the provider has no pagination for either.
func (p *Premiumize) fetchAll(ctx context.Context) ([]*types.Torrent, []transfer, error) {
	var transfers transferListResponse
	var items listAllResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.getJSON(gctx, "transfer/list", nil, &transfers); err != nil {
			return err
		}
		return p.checkEnvelope(transfers.statusEnvelope)
	})
	g.Go(func() error {
		if err := p.getJSON(gctx, "item/listall", nil, &items); err != nil {
			return err
		}
		return p.checkEnvelope(items.statusEnvelope)
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Transfers first, then stored items not already represented by a
	// finished transfer.
	claimed := make(map[string]struct{}, len(transfers.Transfers))
	all := make([]*types.Torrent, 0, len(transfers.Transfers)+len(items.Files))
	for _, t := range transfers.Transfers {
		all = append(all, p.transferToTorrent(t))
		if t.FileId != "" {
			claimed[t.FileId] = struct{}{}
		}
	}
	for _, it := range items.Files {
		if _, ok := claimed[it.Id]; ok {
			continue
		}
		all = append(all, p.itemToTorrent(it))
	}
	return all, transfers.Transfers, nil
}

// ListTorrents slices the concatenated listing client-side; the upstream
// API has no offset or page parameters.
func (p *Premiumize) ListTorrents(ctx context.Context, offset, limit int) ([]*types.Torrent, error) {
	if limit <= 0 {
		limit = 50
	}
	all, _, err := p.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return []*types.Torrent{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (p *Premiumize) SearchTorrents(ctx context.Context, query string) ([]*types.Torrent, error) {
	if query == "" {
		return p.ListTorrents(ctx, 0, 100)
	}
	all, _, err := p.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var matches []*types.Torrent
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Name), query) {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

func (p *Premiumize) GetTorrent(ctx context.Context, id string) (*types.Torrent, error) {
	all, _, err := p.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.Id == id {
			return t, nil
		}
	}
	return nil, nil
}

// GetTorrentFiles lists the transfer's target folder, or falls back to a
// single node for file-only transfers and stored items.
func (p *Premiumize) GetTorrentFiles(ctx context.Context, id string) ([]*types.FileNode, error) {
	_, transfers, err := p.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	fileId := id
	for _, t := range transfers {
		if t.Id != id {
			continue
		}
		if t.FolderId != "" {
			return p.listFolder(ctx, t.FolderId)
		}
		if t.FileId != "" {
			fileId = t.FileId
		}
		break
	}
	node, err := p.itemDetails(ctx, fileId)
	if err != nil {
		return nil, err
	}
	return []*types.FileNode{node}, nil
}

func (p *Premiumize) listFolder(ctx context.Context, folderId string) ([]*types.FileNode, error) {
	var resp folderListResponse
	params := gourl.Values{"id": {folderId}}
	if err := p.getJSON(ctx, "folder/list", params, &resp); err != nil {
		return nil, err
	}
	if err := p.checkEnvelope(resp.statusEnvelope); err != nil {
		return nil, err
	}
	nodes := make([]*types.FileNode, 0, len(resp.Content))
	for _, entry := range resp.Content {
		if entry.Type == "folder" {
			children, err := p.listFolder(ctx, entry.Id)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &types.FileNode{Name: entry.Name, Children: children})
			continue
		}
		nodes = append(nodes, &types.FileNode{
			Name: entry.Name,
			ID:   entry.Id,
			Size: entry.Size,
			Link: entry.Link,
		})
	}
	return nodes, nil
}

func (p *Premiumize) itemDetails(ctx context.Context, id string) (*types.FileNode, error) {
	var it item
	params := gourl.Values{"id": {id}}
	if err := p.getJSON(ctx, "item/details", params, &it); err != nil {
		return nil, err
	}
	if it.Id == "" {
		return nil, types.NewProviderError(p.name, "", fmt.Sprintf("item %s not found", id))
	}
	return &types.FileNode{
		Name: it.Name,
		ID:   it.Id,
		Size: it.Size,
		Link: it.Link,
	}, nil
}

// GetDownloadLink asks item/details for the node's id and falls back to
// transfer/directdl for raw magnet or URL sources that never became items.
func (p *Premiumize) GetDownloadLink(ctx context.Context, node *types.FileNode, resolve bool) (*types.DownloadLink, error) {
	if node == nil {
		return nil, types.NewProviderError(p.name, "", "file node is nil")
	}
	if node.ID != "" {
		it, err := p.itemDetails(ctx, node.ID)
		if err == nil && it.Link != "" {
			return &types.DownloadLink{
				Filename:     it.Name,
				Link:         node.ID,
				DownloadLink: it.Link,
				Size:         it.Size,
				Id:           it.ID,
				Generated:    time.Now(),
			}, nil
		}
	}
	if node.Link == "" {
		return nil, types.NewProviderError(p.name, "", "file node has no resolvable link")
	}
	return p.directDL(ctx, node.Link)
}

func (p *Premiumize) directDL(ctx context.Context, src string) (*types.DownloadLink, error) {
	form := gourl.Values{"src": {src}}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL("transfer/directdl", nil),
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := p.doRequest(req)
	if err != nil {
		return nil, err
	}
	var resp directDLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.NewTransportError(p.name, fmt.Sprintf("decoding directdl response: %v", err))
	}
	if err := p.checkEnvelope(resp.statusEnvelope); err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, types.NewProviderError(p.name, "", "directdl returned no content")
	}
	first := resp.Content[0]
	return &types.DownloadLink{
		Filename:     first.Path,
		Link:         src,
		DownloadLink: first.Link,
		Size:         first.Size,
		Generated:    time.Now(),
	}, nil
}

// createTransfer POSTs multipart form data to transfer/create with either
// a src field or a raw .torrent file part.
func (p *Premiumize) createTransfer(ctx context.Context, src string, fileData []byte, fileName string) *types.AddStatus {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if src != "" {
		if err := writer.WriteField("src", src); err != nil {
			return &types.AddStatus{Success: false, Message: err.Error()}
		}
	}
	if fileData != nil {
		part, err := writer.CreateFormFile("file", fileName)
		if err == nil {
			_, err = part.Write(fileData)
		}
		if err != nil {
			return &types.AddStatus{Success: false, Message: err.Error()}
		}
	}
	if err := writer.Close(); err != nil {
		return &types.AddStatus{Success: false, Message: err.Error()}
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL("transfer/create", nil), &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	body, err := p.doRequest(req)
	if err != nil {
		return &types.AddStatus{Success: false, Message: err.Error()}
	}
	var resp createTransferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &types.AddStatus{Success: false, Message: fmt.Sprintf("decoding create response: %v", err)}
	}
	if err := p.checkEnvelope(resp.statusEnvelope); err != nil {
		return &types.AddStatus{Success: false, Message: err.Error()}
	}
	return &types.AddStatus{Success: true, Id: resp.Id}
}

func (p *Premiumize) AddMagnets(ctx context.Context, uris []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(uris))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, uri := range uris {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := p.createTransfer(ctx, uri, nil, "")
			mu.Lock()
			results[uri] = status
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (p *Premiumize) UploadTorrents(ctx context.Context, files []*types.TorrentFile) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(files))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := p.createTransfer(ctx, "", file.Data, file.Name)
			mu.Lock()
			results[file.Name] = status
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// DeleteTorrent removes a transfer, falling back to item deletion for
// stored items that no longer have a transfer record.
func (p *Premiumize) DeleteTorrent(ctx context.Context, id string) error {
	var resp statusEnvelope
	params := gourl.Values{"id": {id}}
	if err := p.getJSON(ctx, "transfer/delete", params, &resp); err != nil {
		return err
	}
	if resp.Status != "error" {
		return nil
	}
	var itemResp statusEnvelope
	if err := p.getJSON(ctx, "item/delete", params, &itemResp); err != nil {
		return err
	}
	return p.checkEnvelope(itemResp)
}

func (p *Premiumize) RestartTorrents(ctx context.Context, ids []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(ids))
	for _, id := range ids {
		var resp statusEnvelope
		params := gourl.Values{"id": {id}}
		err := p.getJSON(ctx, "transfer/retry", params, &resp)
		if err == nil {
			err = p.checkEnvelope(resp)
		}
		if err != nil {
			results[id] = &types.AddStatus{Success: false, Id: id, Message: err.Error()}
			continue
		}
		results[id] = &types.AddStatus{Success: true, Id: id}
	}
	return results
}

func (p *Premiumize) Profile(ctx context.Context) (*types.Profile, error) {
	var resp accountInfoResponse
	if err := p.getJSON(ctx, "account/info", nil, &resp); err != nil {
		return nil, err
	}
	if err := p.checkEnvelope(resp.statusEnvelope); err != nil {
		return nil, err
	}
	profile := &types.Profile{
		Id:      resp.CustomerId,
		Premium: resp.PremiumUntil > time.Now().Unix(),
	}
	if profile.Premium {
		profile.Type = "premium"
		profile.Expiration = time.Unix(resp.PremiumUntil, 0)
	} else {
		profile.Type = "free"
	}
	return profile, nil
}

// Web downloads are the subset of transfers whose source is a plain http
// link rather than a magnet.
func (p *Premiumize) AddWebDownloads(ctx context.Context, links []string) map[string]*types.AddStatus {
	return p.AddMagnets(ctx, links)
}

func (p *Premiumize) ListWebDownloads(ctx context.Context) ([]*types.WebDownload, error) {
	var resp transferListResponse
	if err := p.getJSON(ctx, "transfer/list", nil, &resp); err != nil {
		return nil, err
	}
	if err := p.checkEnvelope(resp.statusEnvelope); err != nil {
		return nil, err
	}
	var downloads []*types.WebDownload
	for _, t := range resp.Transfers {
		if !strings.HasPrefix(t.Src, "http") {
			continue
		}
		wd := &types.WebDownload{
			Id:       t.Id,
			Name:     t.Name,
			Link:     t.Src,
			Progress: t.Progress * 100,
		}
		switch p.getTransferStatus(t) {
		case types.StatusWaiting:
			wd.Status = types.WebDownloadPending
		case types.StatusCompleted, types.StatusSeeding:
			wd.Status = types.WebDownloadCompleted
			wd.Progress = 100
		case types.StatusFailed:
			wd.Status = types.WebDownloadFailed
			wd.Error = t.Message
		default:
			wd.Status = types.WebDownloadProcessing
		}
		downloads = append(downloads, wd)
	}
	return downloads, nil
}

func (p *Premiumize) DeleteWebDownload(ctx context.Context, id string) error {
	return p.DeleteTorrent(ctx, id)
}
