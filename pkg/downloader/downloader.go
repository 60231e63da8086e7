// Package downloader is the local disk side of the web-download manager:
// it fetches resolved links into the configured download folder with a
// bounded number of concurrent transfers.
package downloader

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debridui/debridui/internal/logger"
	"github.com/debridui/debridui/pkg/debrid/types"
)

type State string

const (
	StateQueued      State = "queued"
	StateDownloading State = "downloading"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// Download is one queued transfer. Progress fields are updated by the
// worker; read them through Snapshot.
type Download struct {
	Id    string    `json:"id"`
	Name  string    `json:"name"`
	URL   string    `json:"url"`
	Path  string    `json:"path"`
	Size  int64     `json:"size"`
	Added time.Time `json:"added"`

	mu         sync.Mutex
	state      State
	downloaded int64
	speed      int64
	err        string
	cancel     context.CancelFunc
}

// Snapshot is a point-in-time copy safe to serialize.
type Snapshot struct {
	Id         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Added      time.Time `json:"added"`
	State      State     `json:"state"`
	Downloaded int64     `json:"downloaded"`
	Speed      int64     `json:"speed"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
}

func (d *Download) snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Snapshot{
		Id:         d.Id,
		Name:       d.Name,
		URL:        d.URL,
		Path:       d.Path,
		Size:       d.Size,
		Added:      d.Added,
		State:      d.state,
		Downloaded: d.downloaded,
		Speed:      d.speed,
		Error:      d.err,
	}
	if d.Size > 0 {
		s.Progress = float64(d.downloaded) / float64(d.Size) * 100
	}
	if d.state == StateCompleted {
		s.Progress = 100
	}
	return s
}

type Downloader struct {
	folder    string
	client    *grab.Client
	semaphore chan struct{}
	logger    zerolog.Logger

	mu        sync.RWMutex
	downloads map[string]*Download
}

func New(folder string, maxConcurrent int) (*Downloader, error) {
	if folder == "" {
		return nil, fmt.Errorf("download folder not configured")
	}
	if err := os.MkdirAll(folder, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create download folder: %w", err)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Downloader{
		folder: folder,
		client: &grab.Client{
			UserAgent: "debridui",
			HTTPClient: &http.Client{
				Transport: &http.Transport{
					Proxy: http.ProxyFromEnvironment,
				},
			},
		},
		semaphore: make(chan struct{}, maxConcurrent),
		downloads: make(map[string]*Download),
		logger:    logger.New("downloader"),
	}, nil
}

// Add queues a resolved link and returns its queue id.
func (dl *Downloader) Add(link *types.DownloadLink) (string, error) {
	if link.Empty() {
		return "", fmt.Errorf("download link is empty")
	}
	name := link.Filename
	if name == "" {
		name = filepath.Base(link.DownloadLink)
	}
	d := &Download{
		Id:    uuid.NewString(),
		Name:  name,
		URL:   link.DownloadLink,
		Path:  filepath.Join(dl.folder, name),
		Size:  link.Size,
		Added: time.Now(),
		state: StateQueued,
	}
	dl.mu.Lock()
	dl.downloads[d.Id] = d
	dl.mu.Unlock()

	go dl.run(d)
	return d.Id, nil
}

func (dl *Downloader) run(d *Download) {
	dl.semaphore <- struct{}{}
	defer func() { <-dl.semaphore }()

	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	if d.state == StateCancelled {
		d.mu.Unlock()
		cancel()
		return
	}
	d.state = StateDownloading
	d.cancel = cancel
	d.mu.Unlock()

	err := dl.grab(ctx, d)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.speed = 0
	switch {
	case d.state == StateCancelled:
	case err != nil:
		d.state = StateFailed
		d.err = err.Error()
		dl.logger.Error().Err(err).Str("name", d.Name).Msg("download failed")
	default:
		d.state = StateCompleted
		dl.logger.Info().Str("name", d.Name).Msg("download completed")
	}
}

func (dl *Downloader) grab(ctx context.Context, d *Download) error {
	req, err := grab.NewRequest(d.Path, d.URL)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	resp := dl.client.Do(req)

	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			d.mu.Lock()
			d.downloaded = resp.BytesComplete()
			d.speed = int64(resp.BytesPerSecond())
			if d.Size == 0 {
				d.Size = resp.Size()
			}
			d.mu.Unlock()
		case <-resp.Done:
			d.mu.Lock()
			d.downloaded = resp.BytesComplete()
			d.mu.Unlock()
			return resp.Err()
		}
	}
}

func (dl *Downloader) Get(id string) (Snapshot, bool) {
	dl.mu.RLock()
	d, ok := dl.downloads[id]
	dl.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return d.snapshot(), true
}

// List returns all queued downloads, newest first.
func (dl *Downloader) List() []Snapshot {
	dl.mu.RLock()
	snapshots := make([]Snapshot, 0, len(dl.downloads))
	for _, d := range dl.downloads {
		snapshots = append(snapshots, d.snapshot())
	}
	dl.mu.RUnlock()
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Added.After(snapshots[j].Added)
	})
	return snapshots
}

// Cancel stops a queued or running download. Completed entries stay listed.
func (dl *Downloader) Cancel(id string) error {
	dl.mu.RLock()
	d, ok := dl.downloads[id]
	dl.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown download %q", id)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StateCompleted, StateFailed, StateCancelled:
		return fmt.Errorf("download %q already %s", id, d.state)
	}
	d.state = StateCancelled
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

// Remove drops a finished entry from the list.
func (dl *Downloader) Remove(id string) error {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	d, ok := dl.downloads[id]
	if !ok {
		return fmt.Errorf("unknown download %q", id)
	}
	d.mu.Lock()
	state := d.state
	d.mu.Unlock()
	if state == StateDownloading || state == StateQueued {
		return fmt.Errorf("download %q is still active", id)
	}
	delete(dl.downloads, id)
	return nil
}
