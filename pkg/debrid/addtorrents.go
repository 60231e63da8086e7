package debrid

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/debridui/debridui/internal/request"
	"github.com/debridui/debridui/internal/utils"
	"github.com/debridui/debridui/pkg/debrid/types"
)

// fetchConcurrency bounds parallel .torrent downloads in one batch.
const fetchConcurrency = 4

var httpClient = request.New(request.WithMaxRetries(2))

// AddTorrents adds a mixed batch of URIs to the given client. URIs starting
// with http are fetched as .torrent payloads and uploaded; everything else
// is treated as a magnet link. The two partitions run concurrently and the
// result map carries exactly one entry per distinct input URI. A failed
// fetch for one URI never aborts the rest of the batch.
func AddTorrents(ctx context.Context, client types.Client, uris []string) map[string]*types.AddStatus {
	var httpURIs, magnetURIs []string
	seen := make(map[string]struct{}, len(uris))
	for _, uri := range uris {
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		if strings.HasPrefix(uri, "http") {
			httpURIs = append(httpURIs, uri)
		} else {
			magnetURIs = append(magnetURIs, uri)
		}
	}

	results := make(map[string]*types.AddStatus, len(seen))
	var mu sync.Mutex

	var wg sync.WaitGroup
	if len(magnetURIs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for uri, status := range client.AddMagnets(ctx, magnetURIs) {
				mu.Lock()
				results[uri] = status
				mu.Unlock()
			}
		}()
	}
	if len(httpURIs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for uri, status := range addHTTPTorrents(ctx, client, httpURIs) {
				mu.Lock()
				results[uri] = status
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return results
}

// addHTTPTorrents downloads each URI as a .torrent file and uploads the
// batch. Fetch and parse failures become per-URI statuses.
func addHTTPTorrents(ctx context.Context, client types.Client, uris []string) map[string]*types.AddStatus {
	results := make(map[string]*types.AddStatus, len(uris))
	var mu sync.Mutex

	type fetched struct {
		uri  string
		file *types.TorrentFile
	}
	var files []fetched

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, uri := range uris {
		g.Go(func() error {
			data, err := fetchTorrentBody(gctx, uri)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[uri] = &types.AddStatus{Success: false, Message: err.Error()}
				return nil
			}
			magnet, err := utils.GetMagnetFromBytes(data)
			if err != nil {
				results[uri] = &types.AddStatus{Success: false, Message: fmt.Sprintf("invalid torrent file: %v", err)}
				return nil
			}
			files = append(files, fetched{
				uri:  uri,
				file: &types.TorrentFile{Name: magnet.Name + ".torrent", Data: data},
			})
			return nil
		})
	}
	_ = g.Wait()

	if len(files) == 0 {
		return results
	}

	// Upload names must be unique so statuses can be mapped back to the
	// originating URI.
	nameToURI := make(map[string]string, len(files))
	payload := make([]*types.TorrentFile, 0, len(files))
	for i, f := range files {
		name := f.file.Name
		if _, dup := nameToURI[name]; dup {
			name = fmt.Sprintf("%d-%s", i, name)
			f.file.Name = name
		}
		nameToURI[name] = f.uri
		payload = append(payload, f.file)
	}

	for name, status := range client.UploadTorrents(ctx, payload) {
		uri, ok := nameToURI[name]
		if !ok {
			continue
		}
		results[uri] = status
	}

	// Anything the upload response did not cover still gets an entry.
	for name, uri := range nameToURI {
		if _, ok := results[uri]; !ok {
			results[uri] = &types.AddStatus{Success: false, Message: fmt.Sprintf("no upload result for %s", name)}
		}
	}

	return results
}

func fetchTorrentBody(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading torrent: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading torrent: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
