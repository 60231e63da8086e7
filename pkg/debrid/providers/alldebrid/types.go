package alldebrid

import "encoding/json"

// apiResponse is the provider's envelope: status is "success" or "error",
// with the payload under data and failures under error.
type apiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Magnet is the provider-native transfer record. Incremental status
// responses carry only the changed fields, so pointers distinguish "absent"
// from zero during merges.
type Magnet struct {
	Id             int64   `json:"id"`
	Filename       *string `json:"filename,omitempty"`
	Size           *int64  `json:"size,omitempty"`
	Status         *string `json:"status,omitempty"`
	StatusCode     *int    `json:"statusCode,omitempty"`
	Downloaded     *int64  `json:"downloaded,omitempty"`
	DownloadSpeed  *int64  `json:"downloadSpeed,omitempty"`
	Seeders        *int    `json:"seeders,omitempty"`
	UploadDate     *int64  `json:"uploadDate,omitempty"`
	CompletionDate *int64  `json:"completionDate,omitempty"`
}

type magnetStatusData struct {
	Magnets  []Magnet `json:"magnets"`
	Counter  int      `json:"counter"`
	Fullsync bool     `json:"fullsync,omitempty"`
}

// magnetFile is one node of the files tree: n = name, s = size, l = link,
// e = entries. A node with entries is a folder; a node with a link is a file.
type magnetFile struct {
	Name    string       `json:"n"`
	Size    int64        `json:"s,omitempty"`
	Link    string       `json:"l,omitempty"`
	Entries []magnetFile `json:"e,omitempty"`
}

type magnetFilesData struct {
	Magnets []struct {
		Id    json.Number  `json:"id"`
		Files []magnetFile `json:"files"`
	} `json:"magnets"`
}

type uploadData struct {
	Magnets []uploadResult `json:"magnets"`
	Files   []uploadResult `json:"files"`
}

type uploadResult struct {
	Magnet string    `json:"magnet,omitempty"`
	File   string    `json:"file,omitempty"`
	Name   string    `json:"name,omitempty"`
	Id     int64     `json:"id,omitempty"`
	Hash   string    `json:"hash,omitempty"`
	Size   int64     `json:"size,omitempty"`
	Ready  bool      `json:"ready,omitempty"`
	Error  *apiError `json:"error,omitempty"`
}

type unlockData struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Id       string `json:"id"`
}

type userData struct {
	User struct {
		Username       string `json:"username"`
		Email          string `json:"email"`
		IsPremium      bool   `json:"isPremium"`
		PremiumUntil   int64  `json:"premiumUntil"`
		FidelityPoints int    `json:"fidelityPoints"`
	} `json:"user"`
}
