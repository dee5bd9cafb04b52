package pilesdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	v1Collections = "/api/v1/collections"
)

type CollectionsAPI struct {
	client *req.Client
}

func newCollectionsAPI(client *req.Client) *CollectionsAPI {
	return &CollectionsAPI{
		client: client,
	}
}

// Create makes a new empty collection owned by the signed-in user.
func (c *CollectionsAPI) Create(ctx context.Context, params *CreateCollectionParams) (apiResp *Collection, err error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&apiResp).
		Post(v1Collections)

	if err := handleAPIError(resp, err, "collections create"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// Get fetches collection metadata. A missing collection surfaces as an
// APIError with code E_COLLECTION_NOT_FOUND.
func (c *CollectionsAPI) Get(ctx context.Context, id string) (apiResp *Collection, err error) {
	if id == "" {
		return nil, ErrNoCollectionID
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(v1Collections + "/" + id)

	if err := handleAPIError(resp, err, "collections get"); err != nil {
		return nil, err
	}

	return apiResp, nil
}
