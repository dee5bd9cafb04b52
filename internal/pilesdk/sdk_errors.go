package pilesdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	// sdk common
	ErrNoBaseURL      = errors.New("sdk: base url missing")
	ErrNoAccessToken  = errors.New("sdk: access token missing")
	ErrTokenExpired   = errors.New("sdk: access token expired")
	ErrNoCollectionID = errors.New("sdk: collection id missing")

	// blob
	ErrBlobNotFound = errors.New("sdk: blob not found")
	ErrHashMismatch = errors.New("sdk: downloaded blob hash mismatch")
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error

	// Auth errors
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS" // token invalid, expired or malformed

	// Collection errors
	CodeCollectionNotFound = "E_COLLECTION_NOT_FOUND" // the collection does not exist

	// Posts table errors
	CodePostNotFound        = "E_POST_NOT_FOUND"         // the post row does not exist
	CodeSchemaUnknownColumn = "E_SCHEMA_UNKNOWN_COLUMN"  // a column referenced in the request does not exist
	CodePostUpsertFailed    = "E_POST_UPSERT_FAILED"     // a failure during the upsert of a post row
	CodePostDeleteFailed    = "E_POST_DELETE_FAILED"     // a failure during the soft-delete of a post row
	CodePostListFailed      = "E_POST_LIST_FAILED"       // a failure during the listing of post rows

	// Blob errors
	CodeBlobNotFound     = "E_BLOB_NOT_FOUND"               // the specified blob could not be found
	CodeBlobPutFailed    = "E_BLOB_PUT_OPERATION_FAILED"    // a failure during the operation to upload a blob
	CodeBlobGetFailed    = "E_BLOB_GET_OPERATION_FAILED"    // a failure during the operation to download a blob
	CodeBlobDeleteFailed = "E_BLOB_DELETE_OPERATION_FAILED" // a failure during the operation to delete a blob
)

type SDKError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

// BaseError provides common error functionality
type BaseError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *BaseError) ErrorCode() string    { return e.Code }
func (e *BaseError) ErrorMessage() string { return e.Message }

// APIError represents Pile API errors
type APIError struct {
	BaseError
}

func NewAPIError(code, message string) *APIError {
	return &APIError{
		BaseError: BaseError{
			Code:    code,
			Message: message,
		},
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

var _ SDKError = (*APIError)(nil)

// IsAPIErrorCode reports whether err wraps an APIError carrying code.
func IsAPIErrorCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok {
			return fmt.Errorf("%s %w", operation, err)
		}

		return fmt.Errorf("api error: %s %s", operation, resp.Dump())
	}

	return nil
}
