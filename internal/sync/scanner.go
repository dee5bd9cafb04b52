package sync

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// documentGlob matches candidate document files anywhere under the pile.
const documentGlob = "**/*.json"

// Scanner enumerates the document files of a pile. It returns candidate
// paths only; callers decode them and decide per file what to do with
// ones that fail.
type Scanner struct {
	pile   *Pile
	ignore *IgnoreList
}

func NewScanner(pile *Pile, ignore *IgnoreList) *Scanner {
	return &Scanner{pile: pile, ignore: ignore}
}

// Scan returns the slash-normalized relative paths of all non-ignored
// document files, in stable order.
func (sc *Scanner) Scan() ([]string, error) {
	fsys := os.DirFS(sc.pile.Root)

	var docs []string
	err := doublestar.GlobWalk(fsys, documentGlob, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		if sc.ignore.ShouldIgnore(path) {
			return nil
		}
		docs = append(docs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pile %s: %w", sc.pile.Root, err)
	}

	sort.Strings(docs)
	return docs, nil
}
