package pilesdk

import "time"

// Collection is a remote pile: one posts table partition plus its blobs.
type Collection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCollectionParams creates a new, empty collection.
type CreateCollectionParams struct {
	Name string `json:"name"`
}
