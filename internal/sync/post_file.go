package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pilehq/pilebox/internal/pilesdk"
	"github.com/pilehq/pilebox/internal/utils"
)

// PostFile is one local document: a JSON file anywhere under the pile root.
// The editor owns these files; the engine reads them for push and writes
// them on pull and conflict resolution.
type PostFile struct {
	ID          string                  `json:"id"`
	Title       string                  `json:"title"`
	Content     string                  `json:"content"`
	ContentMD   string                  `json:"contentMD,omitempty"`
	Tags        []string                `json:"tags,omitempty"`
	Attachments []pilesdk.AttachmentRef `json:"attachments,omitempty"`
	CreatedAt   time.Time               `json:"createdAt,omitempty"`
	UpdatedAt   time.Time               `json:"updatedAt,omitempty"`
}

// LoadPostFile reads and decodes a document. Files without an id are not
// documents and return an error.
func LoadPostFile(absPath string) (*PostFile, os.FileInfo, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, nil, err
	}

	var pf PostFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("decode post file %s: %w", absPath, err)
	}
	if pf.ID == "" {
		return nil, nil, fmt.Errorf("post file %s: missing id", absPath)
	}

	return &pf, info, nil
}

// WritePostFile encodes and atomically writes a document.
func WritePostFile(absPath string, pf *PostFile) error {
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode post file %s: %w", absPath, err)
	}
	return utils.AtomicWriteFile(absPath, data, 0o644)
}

// LocalUpdatedAt is the document's modification time: the embedded
// updatedAt when present, the file mtime otherwise.
func (pf *PostFile) LocalUpdatedAt(info os.FileInfo) time.Time {
	if !pf.UpdatedAt.IsZero() {
		return pf.UpdatedAt
	}
	if info != nil {
		return info.ModTime()
	}
	return time.Time{}
}

// contentFingerprint is the hashed shape of a document. Timestamps stay
// out so that touching a file without changing it does not count as a
// content change.
type contentFingerprint struct {
	Title       string                  `json:"title"`
	Content     string                  `json:"content"`
	ContentMD   string                  `json:"contentMD,omitempty"`
	Tags        []string                `json:"tags,omitempty"`
	Attachments []pilesdk.AttachmentRef `json:"attachments,omitempty"`
}

// ContentHash returns a stable hash of the document's syncable content.
func (pf *PostFile) ContentHash() string {
	data, _ := json.Marshal(contentFingerprint{
		Title:       pf.Title,
		Content:     pf.Content,
		ContentMD:   pf.ContentMD,
		Tags:        pf.Tags,
		Attachments: pf.Attachments,
	})
	return utils.SHA256Hex(data)
}

// postFileFromRemote converts a remote row into the local document form.
func postFileFromRemote(remote *pilesdk.RemotePost) *PostFile {
	return &PostFile{
		ID:          remote.ID,
		Title:       remote.Title,
		Content:     remote.Content,
		ContentMD:   remote.ContentMD,
		Tags:        remote.Tags,
		Attachments: remote.Attachments,
		CreatedAt:   remote.CreatedAt,
		UpdatedAt:   remote.UpdatedAt,
	}
}

// remoteContentHash hashes a remote row the same way local documents are
// hashed, so convergence checks compare like for like.
func remoteContentHash(remote *pilesdk.RemotePost) string {
	return (&PostFile{
		Title:       remote.Title,
		Content:     remote.Content,
		ContentMD:   remote.ContentMD,
		Tags:        remote.Tags,
		Attachments: remote.Attachments,
	}).ContentHash()
}
