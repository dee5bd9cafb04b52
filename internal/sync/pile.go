// Package sync keeps one local pile directory and one remote collection
// convergent. Each pile carries its own queue, journal and conflict records
// under a .pilebox directory, so engines for different piles never share
// state.
package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pilehq/pilebox/internal/utils"
)

const (
	internalDir     = ".pilebox"
	stateFile       = "sync.json"
	journalFile     = "journal.db"
	conflictsFile   = "conflicts.json"
	snapshotsDir    = "conflicts"
	attachmentsDir  = "attachments"
	lockFile        = "pile.lock"
	ignoreFile      = ".pileboxignore"
	pathSep         = string(filepath.Separator)
)

var (
	ErrPileLocked = errors.New("pile locked by another process")
)

// Pile is the on-disk layout of one linked directory.
type Pile struct {
	Root        string
	InternalDir string

	flock *flock.Flock
}

func NewPile(rootDir string) (*Pile, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", rootDir, err)
	}

	internal := filepath.Join(root, internalDir)
	return &Pile{
		Root:        root,
		InternalDir: internal,
		flock:       flock.New(filepath.Join(internal, lockFile)),
	}, nil
}

// Lock takes the pile's advisory file lock so a second daemon cannot run
// the same pile.
func (p *Pile) Lock() error {
	if err := utils.EnsureDir(p.InternalDir); err != nil {
		return fmt.Errorf("create directory %s: %w", p.InternalDir, err)
	}

	locked, err := p.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock pile: %w", err)
	}
	if !locked {
		return ErrPileLocked
	}
	return nil
}

func (p *Pile) Unlock() error {
	if !p.flock.Locked() {
		return nil
	}
	if err := p.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock pile: %w", err)
	}
	return os.Remove(p.flock.Path())
}

func (p *Pile) StatePath() string {
	return filepath.Join(p.InternalDir, stateFile)
}

func (p *Pile) JournalPath() string {
	return filepath.Join(p.InternalDir, journalFile)
}

func (p *Pile) ConflictsPath() string {
	return filepath.Join(p.InternalDir, conflictsFile)
}

func (p *Pile) SnapshotsDir() string {
	return filepath.Join(p.InternalDir, snapshotsDir)
}

func (p *Pile) AttachmentsDir() string {
	return filepath.Join(p.Root, attachmentsDir)
}

func (p *Pile) IgnorePath() string {
	return filepath.Join(p.Root, ignoreFile)
}

// AbsPath returns the absolute path of a pile-relative document path.
func (p *Pile) AbsPath(relPath string) string {
	return filepath.Join(p.Root, filepath.FromSlash(relPath))
}

// RelPath returns the slash-normalized pile-relative path of an absolute
// path inside the pile.
func (p *Pile) RelPath(absPath string) (string, error) {
	rel, err := filepath.Rel(p.Root, absPath)
	if err != nil {
		return "", err
	}
	return NormPath(rel), nil
}

// Contains reports whether absPath lies inside the pile root.
func (p *Pile) Contains(absPath string) bool {
	rel, err := filepath.Rel(p.Root, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+pathSep)
}

// IsInternal reports whether absPath lies under the pile's metadata or
// attachment directories, which never hold documents.
func (p *Pile) IsInternal(absPath string) bool {
	for _, dir := range []string{p.InternalDir, p.AttachmentsDir()} {
		rel, err := filepath.Rel(dir, absPath)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+pathSep) {
			return true
		}
	}
	return false
}

// NormPath normalizes a path by cleaning it, replacing backslashes with slashes, and trimming leading slashes
func NormPath(path string) string {
	path = filepath.Clean(path)
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimLeft(path, "/")
	return path
}
