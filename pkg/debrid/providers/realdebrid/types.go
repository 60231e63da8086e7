package realdebrid

// apiError is the provider's error envelope.
type apiError struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

type torrentInfo struct {
	Id       string  `json:"id"`
	Filename string  `json:"filename"`
	Hash     string  `json:"hash"`
	Bytes    int64   `json:"bytes"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Speed    int64   `json:"speed"`
	Seeders  int     `json:"seeders"`
	Added    string  `json:"added"`
	Ended    string  `json:"ended,omitempty"`
	Files    []struct {
		ID       int    `json:"id"`
		Path     string `json:"path"`
		Bytes    int64  `json:"bytes"`
		Selected int    `json:"selected"`
	} `json:"files,omitempty"`
	Links []string `json:"links"`
}

type addMagnetResponse struct {
	Id  string `json:"id"`
	Uri string `json:"uri"`
}

type unrestrictResponse struct {
	Id       string `json:"id"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Link     string `json:"link"`
	Host     string `json:"host"`
	Download string `json:"download"`
}

type downloadItem struct {
	Id        string `json:"id"`
	Filename  string `json:"filename"`
	Link      string `json:"link"`
	Host      string `json:"host"`
	Filesize  int64  `json:"filesize"`
	Download  string `json:"download"`
	Generated string `json:"generated"`
}

type userInfo struct {
	Id         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Points     int    `json:"points"`
	Type       string `json:"type"`
	Premium    int    `json:"premium"`
	Expiration string `json:"expiration"`
}
