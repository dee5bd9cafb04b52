package sync

import (
	"bufio"
	"log/slog"
	"os"

	"github.com/pilehq/pilebox/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

var defaultIgnoreLines = []string{
	// pilebox internals
	internalDir + "/",
	attachmentsDir + "/",
	ignoreFile,
	// editor droppings
	"*.tmp",
	"*.swp",
	"*~",
	".#*",
	// version control
	".git/",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"Icon",
}

// IgnoreList decides which paths inside a pile are not documents. It
// combines built-in rules with an optional .pileboxignore file at the
// pile root, using gitignore syntax.
type IgnoreList struct {
	pile   *Pile
	ignore *gitignore.GitIgnore
}

func NewIgnoreList(pile *Pile) *IgnoreList {
	return &IgnoreList{pile: pile}
}

func (l *IgnoreList) Load() {
	ignorePath := l.pile.IgnorePath()
	ignoreLines := defaultIgnoreLines

	if utils.FileExists(ignorePath) {
		rules := 0
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()

			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := scanner.Text()
				if line != "" {
					ignoreLines = append(ignoreLines, line)
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
			} else {
				slog.Info("loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

// ShouldIgnore reports whether a pile-relative path is excluded from sync.
func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	if l.ignore == nil {
		l.Load()
	}
	return l.ignore.MatchesPath(relPath)
}
