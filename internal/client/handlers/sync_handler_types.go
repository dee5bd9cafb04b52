package handlers

type SyncNowRequest struct {
	Path string `json:"path" binding:"required"`
	Mode string `json:"mode"`
}

type SyncNowResponse struct {
	Started bool `json:"started"`
}

type RescanRequest struct {
	Path string `json:"path" binding:"required"`
}

type RescanResponse struct {
	Queued int `json:"queued"`
}
