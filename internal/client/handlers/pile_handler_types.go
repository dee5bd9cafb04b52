package handlers

import (
	"github.com/pilehq/pilebox/internal/pilesdk"
	"github.com/pilehq/pilebox/internal/sync"
)

type LinkRequest struct {
	Path               string `json:"path" binding:"required"`
	RemoteCollectionID string `json:"remoteCollectionId"`
}

type LinkResponse struct {
	Collection *pilesdk.Collection    `json:"collection"`
	Status     *sync.CollectionStatus `json:"status"`
}

type UnlinkRequest struct {
	Path string `json:"path" binding:"required"`
}
