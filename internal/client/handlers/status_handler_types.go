package handlers

import "github.com/pilehq/pilebox/internal/sync"

type StatusResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Version   string                   `json:"version"`
	Revision  string                   `json:"revision"`
	BuildDate string                   `json:"buildDate"`
	Piles     []*sync.CollectionStatus `json:"piles"`
}
