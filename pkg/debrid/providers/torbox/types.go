package torbox

// APIResponse is the provider's uniform envelope; every endpoint wraps its
// payload in success/error/detail plus a typed data field.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Data    T      `json:"data,omitempty"`
}

type torrentInfo struct {
	Id               int     `json:"id"`
	Hash             string  `json:"hash"`
	Name             string  `json:"name"`
	Size             int64   `json:"size"`
	Active           bool    `json:"active"`
	DownloadState    string  `json:"download_state"`
	DownloadFinished bool    `json:"download_finished"`
	DownloadPresent  bool    `json:"download_present"`
	Progress         float64 `json:"progress"` // 0-1
	DownloadSpeed    int64   `json:"download_speed"`
	Seeds            int     `json:"seeds"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`

	Files []struct {
		Id        int    `json:"id"`
		Name      string `json:"name"` // slash-separated path inside the torrent
		Size      int64  `json:"size"`
		ShortName string `json:"short_name"`
	} `json:"files,omitempty"`
}

type createTorrentData struct {
	TorrentId int    `json:"torrent_id"`
	Hash      string `json:"hash"`
	AuthId    string `json:"auth_id"`
}

type webDownloadInfo struct {
	Id            int     `json:"id"`
	Name          string  `json:"name"`
	Size          int64   `json:"size"`
	DownloadState string  `json:"download_state"`
	Progress      float64 `json:"progress"`
	Error         string  `json:"error,omitempty"`
	Files         []struct {
		Id  int    `json:"id"`
		S3  string `json:"s3_path"`
		URL string `json:"absolute_path"`
	} `json:"files,omitempty"`
	OriginalURL string `json:"original_url"`
}

type createWebDownloadData struct {
	WebDownloadId int    `json:"webdownload_id"`
	Hash          string `json:"hash"`
}

type userData struct {
	Id              int64  `json:"id"`
	Email           string `json:"email"`
	Plan            int    `json:"plan"`
	TotalDownloaded int64  `json:"total_downloaded"`
	PremiumExpires  string `json:"premium_expires_at"`
}
