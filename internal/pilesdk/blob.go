package pilesdk

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/imroc/req/v3"
	"github.com/pilehq/pilebox/internal/utils"
)

const (
	v1Blob       = "/api/v1/blob"
	v1BlobURLs   = "/api/v1/blob/urls"
	v1BlobDelete = "/api/v1/blob/delete"
)

type BlobAPI struct {
	client *req.Client

	// signed URLs carry their own credentials; requests to them must not
	// reuse the API client or its bearer token
	signed *req.Client
}

func newBlobAPI(client *req.Client) *BlobAPI {
	return &BlobAPI{
		client: client,
		signed: req.C().
			SetUserAgent(PileboxUserAgent).
			SetCommonRetryCount(3).
			SetCommonRetryFixedInterval(1 * time.Second),
	}
}

// Exists probes whether a blob is already stored remotely.
func (b *BlobAPI) Exists(ctx context.Context, hash string) (bool, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		Head(v1Blob + "/" + hash)
	if err != nil {
		return false, fmt.Errorf("http request error: blob head %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, NewAPIError(CodeUnknownError, fmt.Sprintf("blob head: unexpected status %d", resp.StatusCode))
	}
}

// Upload stores a file under its content hash
func (b *BlobAPI) Upload(ctx context.Context, params *BlobUploadParams) (apiResp *BlobUploadResponse, err error) {
	if !utils.FileExists(params.FilePath) {
		return nil, ErrBlobNotFound
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetFile("file", params.FilePath).
		SetSuccessResult(&apiResp).
		SetUploadCallbackWithInterval(func(info req.UploadInfo) {
			// skip progress below 1MB
			if info.FileSize < 1024*1024 || params.Callback == nil {
				return
			}
			params.Callback(info.UploadedSize, info.FileSize)
		}, time.Second).
		Put(v1Blob + "/" + params.Hash)

	if err := handleAPIError(resp, err, "blob upload"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// DownloadURLs gets signed download URLs for a set of hashes
func (b *BlobAPI) DownloadURLs(ctx context.Context, params *BlobURLsParams) (apiResp *BlobURLsResponse, err error) {
	if len(params.Hashes) == 0 {
		return nil, fmt.Errorf("no hashes provided")
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&apiResp).
		Post(v1BlobURLs)

	if err := handleAPIError(resp, err, "blob download urls"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// Delete removes a set of blobs by hash
func (b *BlobAPI) Delete(ctx context.Context, params *BlobDeleteParams) (apiResp *BlobDeleteResponse, err error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&apiResp).
		Post(v1BlobDelete)

	if err := handleAPIError(resp, err, "blob delete"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// DownloadToFile fetches a signed URL into destPath, verifying the content
// hash before the file becomes visible. The partial download lands in a
// temp file next to destPath and is renamed only after the hash matches.
func (b *BlobAPI) DownloadToFile(ctx context.Context, signedURL string, hash string, destPath string) error {
	if err := utils.EnsureParent(destPath); err != nil {
		return err
	}

	tmpPath := filepath.Join(filepath.Dir(destPath), ".download-"+hash)
	defer os.Remove(tmpPath)

	resp, err := b.signed.R().
		SetContext(ctx).
		SetOutputFile(tmpPath).
		Get(signedURL)
	if err != nil {
		return fmt.Errorf("http request error: blob download %w", err)
	}
	if resp.IsErrorState() {
		return NewAPIError(CodeBlobGetFailed, fmt.Sprintf("blob download: status %d", resp.StatusCode))
	}

	gotHash, err := utils.FileSHA256(tmpPath)
	if err != nil {
		return fmt.Errorf("hash downloaded blob: %w", err)
	}
	if gotHash != hash {
		return fmt.Errorf("%w: want %s got %s", ErrHashMismatch, hash, gotHash)
	}

	return os.Rename(tmpPath, destPath)
}
