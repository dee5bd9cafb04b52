package pilesdk

// BlobStat describes a stored blob.
type BlobStat struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// BlobURL is a signed, short-lived download URL for a blob.
type BlobURL struct {
	Hash string `json:"hash"`
	URL  string `json:"url"`
}

// BlobError ties an API error to the blob it concerns.
type BlobError struct {
	APIError
	Hash string `json:"hash"`
}

// ===================================================================================================

// BlobUploadParams uploads one file under its content hash. Uploads are
// idempotent per hash.
type BlobUploadParams struct {
	Hash     string
	FilePath string
	Callback func(uploadedBytes int64, totalBytes int64)
}

// BlobUploadResponse confirms the stored blob.
type BlobUploadResponse struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// ===================================================================================================

// BlobURLsParams requests signed download URLs for a set of hashes.
type BlobURLsParams struct {
	Hashes []string `json:"hashes"`
}

// BlobURLsResponse carries the signed URLs plus per-hash failures.
type BlobURLsResponse struct {
	URLs   []*BlobURL   `json:"urls"`
	Errors []*BlobError `json:"errors"`
}

// ===================================================================================================

// BlobDeleteParams deletes a set of blobs by hash.
type BlobDeleteParams struct {
	Hashes []string `json:"hashes"`
}

// BlobDeleteResponse reports which hashes were deleted and which failed.
type BlobDeleteResponse struct {
	Deleted []string     `json:"deleted"`
	Errors  []*BlobError `json:"errors"`
}
