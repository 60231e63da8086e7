package types

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Client is the uniform surface every provider adapter implements. Callers
// never see a provider-native shape; adapters translate both directions.
type Client interface {
	Name() string
	Logger() zerolog.Logger

	Profile(ctx context.Context) (*Profile, error)

	// ListTorrents returns one page of the account's transfer list.
	// Providers without native pagination slice client-side.
	ListTorrents(ctx context.Context, offset, limit int) ([]*Torrent, error)

	// SearchTorrents filters the account's list by a case-insensitive
	// substring. An empty query returns the first page of the full list.
	SearchTorrents(ctx context.Context, query string) ([]*Torrent, error)

	// GetTorrent is a point lookup. A missing id returns (nil, nil),
	// not an error.
	GetTorrent(ctx context.Context, id string) (*Torrent, error)

	// GetTorrentFiles returns the torrent's file tree. Leaves are file
	// nodes whose IDs resolve through GetDownloadLink.
	GetTorrentFiles(ctx context.Context, id string) ([]*FileNode, error)

	// GetDownloadLink resolves a file node's ID into a usable URL.
	// resolve requests an eagerly-resolved (non-redirect) URL where the
	// provider distinguishes the two.
	GetDownloadLink(ctx context.Context, node *FileNode, resolve bool) (*DownloadLink, error)

	// AddMagnets adds magnet URIs. Per-item failures are encoded in the
	// result map; the call itself never fails for a single bad URI.
	AddMagnets(ctx context.Context, uris []string) map[string]*AddStatus

	// UploadTorrents uploads raw .torrent payloads, keyed by file name.
	UploadTorrents(ctx context.Context, files []*TorrentFile) map[string]*AddStatus

	DeleteTorrent(ctx context.Context, id string) error

	// RestartTorrents retries failed transfers. Providers without a
	// restart endpoint report a structured per-id failure.
	RestartTorrents(ctx context.Context, ids []string) map[string]*AddStatus

	// RefreshInterval is the polling cadence the caller should use for
	// this provider; zero disables polling.
	RefreshInterval() time.Duration

	// SupportsEphemeralLinks reports that resolved links are not
	// persisted server-side, so the caller must cache them itself.
	SupportsEphemeralLinks() bool
}

// WebDownloader is implemented by providers that manage single unlocked
// links server-side. Callers assert for it before exposing the feature.
type WebDownloader interface {
	AddWebDownloads(ctx context.Context, links []string) map[string]*AddStatus
	ListWebDownloads(ctx context.Context) ([]*WebDownload, error)
	DeleteWebDownload(ctx context.Context, id string) error
}
