package types

import (
	"time"
)

// TorrentStatus is the normalized status vocabulary every provider's native
// states are mapped into.
type TorrentStatus string

const (
	StatusWaiting     TorrentStatus = "waiting"
	StatusDownloading TorrentStatus = "downloading"
	StatusUploading   TorrentStatus = "uploading"
	StatusSeeding     TorrentStatus = "seeding"
	StatusPaused      TorrentStatus = "paused"
	StatusProcessing  TorrentStatus = "processing"
	StatusCompleted   TorrentStatus = "completed"
	StatusFailed      TorrentStatus = "failed"
	StatusInactive    TorrentStatus = "inactive"
	StatusUnknown     TorrentStatus = "unknown"
)

// Torrent is a normalized transfer record. Each fetch returns a fresh
// snapshot; nothing mutates a Torrent after construction.
type Torrent struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	InfoHash string `json:"info_hash,omitempty"`
	Size     int64  `json:"size"`

	Status   TorrentStatus `json:"status"`
	Progress float64       `json:"progress"` // 0-100
	Speed    int64         `json:"speed,omitempty"`
	Seeders  int           `json:"seeders,omitempty"`

	Added       time.Time `json:"added,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"` // zero unless Status == completed
	Error       string    `json:"error,omitempty"`       // populated for failed torrents

	Provider string `json:"provider"`

	// Files is the inline file tree where the listing endpoint already
	// returned it; otherwise nil and GetTorrentFiles fetches it.
	Files []*FileNode `json:"files,omitempty"`
}

// FileNode is one node of a torrent's file tree. File nodes carry an ID
// usable for link resolution and a defined size; folder nodes have a non-nil
// Children slice and an empty ID.
type FileNode struct {
	Name     string      `json:"name"`
	ID       string      `json:"id,omitempty"`
	Size     int64       `json:"size,omitempty"`
	Path     string      `json:"path,omitempty"`
	Link     string      `json:"link,omitempty"` // provider-native file link, where the API exposes one
	Children []*FileNode `json:"children,omitempty"`
}

// IsDir reports whether the node is a folder.
func (n *FileNode) IsDir() bool {
	return n.Children != nil
}

// Walk visits every file node (leaves) of the tree rooted at n.
func (n *FileNode) Walk(visit func(*FileNode)) {
	if !n.IsDir() {
		visit(n)
		return
	}
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// DownloadLink is a resolved, ephemeral download URL. Validity is bounded by
// the provider's signed URL lifetime; it is treated as point-in-time here.
type DownloadLink struct {
	Filename     string    `json:"filename"`
	Link         string    `json:"link"` // provider file link the URL was resolved from
	DownloadLink string    `json:"download_link"`
	Size         int64     `json:"size"`
	Id           string    `json:"id,omitempty"`
	Generated    time.Time `json:"generated"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

func (d *DownloadLink) String() string {
	return d.DownloadLink
}

func (d *DownloadLink) Empty() bool {
	return d == nil || d.DownloadLink == ""
}

// AddStatus is the per-item result of adding one magnet, torrent file or
// web download. Batch operations never fail as a whole; each item carries
// its own outcome.
type AddStatus struct {
	Success  bool   `json:"success"`
	Id       string `json:"id,omitempty"`
	Message  string `json:"message,omitempty"`
	IsCached bool   `json:"is_cached,omitempty"`
}

// WebDownloadStatus is the normalized lifecycle of a single unlocked link.
type WebDownloadStatus string

const (
	WebDownloadPending    WebDownloadStatus = "pending"
	WebDownloadProcessing WebDownloadStatus = "processing"
	WebDownloadCompleted  WebDownloadStatus = "completed"
	WebDownloadFailed     WebDownloadStatus = "failed"
)

// WebDownload is a normalized "unlocked single link" record. Providers that
// do not persist these server-side report SupportsEphemeralLinks, and the
// caller keeps them in memory for the session.
type WebDownload struct {
	Id           string            `json:"id"`
	Name         string            `json:"name"`
	Link         string            `json:"link"` // original link as submitted
	DownloadLink string            `json:"download_link,omitempty"`
	Size         int64             `json:"size"`
	Status       WebDownloadStatus `json:"status"`
	Progress     float64           `json:"progress"`
	Error        string            `json:"error,omitempty"`
}

type Profile struct {
	Id         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Points     int       `json:"points"`
	Type       string    `json:"type"` // premium, trial, free
	Premium    bool      `json:"premium"`
	Expiration time.Time `json:"expiration,omitzero"`
}

// TorrentFile is a raw .torrent payload to upload.
type TorrentFile struct {
	Name string
	Data []byte
}
