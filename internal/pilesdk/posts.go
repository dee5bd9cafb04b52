package pilesdk

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
)

const (
	v1Posts       = "/api/v1/posts"
	v1PostsUpsert = "/api/v1/posts/upsert"
	v1PostsDelete = "/api/v1/posts/delete"
)

type PostsAPI struct {
	client *req.Client
	schema *schemaCache
}

func newPostsAPI(client *req.Client) *PostsAPI {
	return &PostsAPI{
		client: client,
		schema: newSchemaCache(),
	}
}

// Upsert writes one row keyed by (collection id, post id) and returns the
// canonical row. The payload must be pre-adapted to the remote schema;
// unknown columns fail with E_SCHEMA_UNKNOWN_COLUMN.
func (p *PostsAPI) Upsert(ctx context.Context, params *UpsertPostParams) (apiResp *UpsertPostResponse, err error) {
	if params.CollectionID == "" {
		return nil, ErrNoCollectionID
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&apiResp).
		Post(v1PostsUpsert)

	if err := handleAPIError(resp, err, "posts upsert"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// List returns rows of a collection, optionally filtered by update time
// and projected to selected columns.
func (p *PostsAPI) List(ctx context.Context, params *ListPostsParams) (apiResp *ListPostsResponse, err error) {
	if params.CollectionID == "" {
		return nil, ErrNoCollectionID
	}

	r := p.client.R().
		SetContext(ctx).
		SetQueryParam("collection_id", params.CollectionID).
		SetSuccessResult(&apiResp)

	if !params.UpdatedAfter.IsZero() {
		r.SetQueryParam("updated_after", params.UpdatedAfter.UTC().Format(time.RFC3339Nano))
	}
	if len(params.Select) > 0 {
		r.SetQueryParam("select", strings.Join(params.Select, ","))
	}
	if params.Limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(params.Limit))
	}

	resp, err := r.Get(v1Posts)

	if err := handleAPIError(resp, err, "posts list"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// Delete soft-deletes one row. The row keeps its id and gains a deleted
// marker with a bumped update time, so other clients pull the tombstone.
func (p *PostsAPI) Delete(ctx context.Context, params *DeletePostParams) (apiResp *DeletePostResponse, err error) {
	if params.CollectionID == "" {
		return nil, ErrNoCollectionID
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&apiResp).
		Post(v1PostsDelete)

	if err := handleAPIError(resp, err, "posts delete"); err != nil {
		return nil, err
	}

	return apiResp, nil
}
