package handlers

import "github.com/pilehq/pilebox/internal/sync"

type MigrateRequest struct {
	RemoteCollectionID   string `json:"remoteCollectionId" binding:"required"`
	DestinationDirectory string `json:"destinationDirectory" binding:"required"`
}

type MigrateResponse struct {
	Result *sync.SyncResult `json:"result"`
}
