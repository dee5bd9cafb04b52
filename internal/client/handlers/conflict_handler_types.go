package handlers

import "github.com/pilehq/pilebox/internal/sync"

type ConflictListResponse struct {
	Conflicts []*sync.Conflict `json:"conflicts"`
}

type ResolveRequest struct {
	Path          string `json:"path" binding:"required"`
	DocumentID    string `json:"documentId" binding:"required"`
	Choice        string `json:"choice" binding:"required"`
	MergedContent string `json:"mergedContent"`
}
