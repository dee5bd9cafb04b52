package pilesdk

import (
	"time"
)

// Column names of the remote posts table. The base columns always exist;
// the optional ones vary per deployment and are discovered by probing.
const (
	ColumnID        = "id"
	ColumnTitle     = "title"
	ColumnContent   = "content"
	ColumnTags      = "tags"
	ColumnDeleted   = "deleted"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"

	ColumnContentMD = "content_md"
	ColumnUserID    = "user_id"
	ColumnEtag      = "etag"
)

// OptionalColumns lists the schema-variant columns in probe order.
var OptionalColumns = []string{ColumnContentMD, ColumnUserID, ColumnEtag}

// AttachmentRef points at a content-addressed blob from a post row or a
// local post file. The filename is display metadata only.
type AttachmentRef struct {
	ContentHash string `json:"contentHash"`
	Filename    string `json:"filename,omitempty"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
}

// RemotePost is one row of the posts table as returned by the API. Wire
// keys match the column names.
type RemotePost struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	ContentMD   string          `json:"content_md,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	Etag        string          `json:"etag,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	Deleted     bool            `json:"deleted,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ===================================================================================================

// UpsertPostParams upserts one row keyed by (collection id, post id).
// Payload maps column names to values; keys must only name columns that
// exist in the remote schema.
type UpsertPostParams struct {
	CollectionID string         `json:"collection_id"`
	Post         map[string]any `json:"post"`
}

// UpsertPostResponse is the canonical row after the write.
type UpsertPostResponse struct {
	Post *RemotePost `json:"post"`
}

// ===================================================================================================

// ListPostsParams filters the posts listing. Zero UpdatedAfter means no
// time filter. Select limits returned columns and doubles as the schema
// probe: naming an unknown column yields E_SCHEMA_UNKNOWN_COLUMN.
type ListPostsParams struct {
	CollectionID string
	UpdatedAfter time.Time
	Select       []string
	Limit        int
}

// ListPostsResponse carries the matching rows plus the server-side
// read timestamp the query executed at.
type ListPostsResponse struct {
	Posts []*RemotePost `json:"posts"`
	AsOf  time.Time     `json:"asOf"`
}

// ===================================================================================================

// DeletePostParams soft-deletes one row.
type DeletePostParams struct {
	CollectionID string `json:"collection_id"`
	ID           string `json:"id"`
}

// DeletePostResponse reports the tombstoned row state.
type DeletePostResponse struct {
	ID        string    `json:"id"`
	Deleted   bool      `json:"deleted"`
	UpdatedAt time.Time `json:"updated_at"`
}
