package premiumize

// Most endpoints answer {status: "success"|"error", message} with the
// payload inlined beside it.
type statusEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type transfer struct {
	Id       string  `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"` // 0-1
	Message  string  `json:"message,omitempty"`
	Src      string  `json:"src"`
	FolderId string  `json:"folder_id,omitempty"`
	FileId   string  `json:"file_id,omitempty"`
}

type transferListResponse struct {
	statusEnvelope
	Transfers []transfer `json:"transfers"`
}

type item struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	CreatedAt  int64  `json:"created_at"`
	MimeType   string `json:"mime_type,omitempty"`
	Link       string `json:"link,omitempty"`
	StreamLink string `json:"stream_link,omitempty"`
}

type listAllResponse struct {
	statusEnvelope
	Files []item `json:"files"`
}

type folderListResponse struct {
	statusEnvelope
	Content []folderEntry `json:"content"`
	Name    string        `json:"name,omitempty"`
}

type folderEntry struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"` // folder or file
	Size       int64  `json:"size,omitempty"`
	Link       string `json:"link,omitempty"`
	StreamLink string `json:"stream_link,omitempty"`
}

type createTransferResponse struct {
	statusEnvelope
	Id   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type directDLResponse struct {
	statusEnvelope
	Content []struct {
		Path       string `json:"path"`
		Size       int64  `json:"size"`
		Link       string `json:"link"`
		StreamLink string `json:"stream_link,omitempty"`
	} `json:"content"`
}

type accountInfoResponse struct {
	statusEnvelope
	CustomerId   int64   `json:"customer_id"`
	PremiumUntil int64   `json:"premium_until"`
	LimitUsed    float64 `json:"limit_used"`
	SpaceUsed    float64 `json:"space_used"`
}
