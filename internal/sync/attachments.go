package sync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pilehq/pilebox/internal/utils"
)

// AttachmentStore is the pile-local content-addressed blob store. Files
// are named by their SHA-256 hex digest; identical bytes occupy one file
// no matter how many posts reference them. Display filenames live only in
// the attachment refs of posts.
type AttachmentStore struct {
	dir string
}

func NewAttachmentStore(dir string) *AttachmentStore {
	return &AttachmentStore{dir: dir}
}

// Path returns where a blob with the given hash lives locally.
func (s *AttachmentStore) Path(hash string) string {
	return filepath.Join(s.dir, hash)
}

// Has reports whether the blob is present locally.
func (s *AttachmentStore) Has(hash string) bool {
	return utils.FileExists(s.Path(hash))
}

// Put imports a file into the store and returns its hash and size. If a
// blob with the same content already exists the source is not copied
// again.
func (s *AttachmentStore) Put(srcPath string) (string, int64, error) {
	hash, err := utils.FileSHA256(srcPath)
	if err != nil {
		return "", 0, fmt.Errorf("hash attachment %s: %w", srcPath, err)
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return "", 0, err
	}

	if s.Has(hash) {
		return hash, info.Size(), nil
	}

	if err := utils.CopyFile(srcPath, s.Path(hash)); err != nil {
		return "", 0, fmt.Errorf("store attachment %s: %w", hash, err)
	}
	return hash, info.Size(), nil
}

// Missing filters hashes down to the ones not present locally.
func (s *AttachmentStore) Missing(hashes []string) []string {
	var missing []string
	for _, hash := range hashes {
		if !s.Has(hash) {
			missing = append(missing, hash)
		}
	}
	return missing
}
