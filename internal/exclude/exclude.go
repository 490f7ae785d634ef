// Package exclude builds the rsync exclusion list for a backup run and
// materializes it as a pattern file for --exclude-from.
package exclude

import (
	"bufio"
	"os"
	"strings"

	"github.com/thoreinstein/snapback/internal/errors"
)

// Group is a named set of built-in exclusion patterns.
type Group struct {
	Name     string
	Patterns []string
}

// Library holds the built-in groups, in the order their patterns are
// appended to every exclusion list.
var Library = []Group{
	{
		Name: "caches",
		Patterns: []string{
			"/home/*/.cache/*",
			"/root/.cache/*",
			"/var/cache/*",
			"/var/tmp/*",
		},
	},
	{
		Name: "thumbnails",
		Patterns: []string{
			"/home/*/.thumbnails/*",
			"/home/*/.cache/thumbnails/*",
		},
	},
	{
		Name: "browser storage",
		Patterns: []string{
			"/home/*/.mozilla/firefox/*/cache2/*",
			"/home/*/.config/google-chrome/*/Cache/*",
			"/home/*/.config/google-chrome/*/Service Worker/CacheStorage/*",
			"/home/*/.config/chromium/*/Cache/*",
			"/home/*/.config/chromium/*/Service Worker/CacheStorage/*",
		},
	},
	{
		Name: "swap",
		Patterns: []string{
			"/swapfile",
			"/swap.img",
		},
	},
}

// Defaults returns the built-in patterns flattened in Library order.
func Defaults() []string {
	var out []string
	for _, g := range Library {
		out = append(out, g.Patterns...)
	}
	return out
}

// Build returns the user patterns followed by the built-in defaults.
// Order is preserved and duplicates are kept.
func Build(user []string) []string {
	defaults := Defaults()
	out := make([]string, 0, len(user)+len(defaults))
	out = append(out, user...)
	return append(out, defaults...)
}

// WriteFile writes patterns one per line to a new temp file in dir (the
// system temp dir when dir is empty). The returned cleanup removes the file;
// it is safe to call more than once and callers should defer it immediately.
func WriteFile(dir string, patterns []string) (path string, cleanup func(), err error) {
	for _, p := range patterns {
		if strings.ContainsAny(p, "\n\r") {
			return "", nil, errors.Newf("exclusion pattern %q contains a line break", p)
		}
	}

	f, err := os.CreateTemp(dir, "snapback-exclude-*.txt")
	if err != nil {
		return "", nil, errors.Wrap(err, "creating exclusion file")
	}
	path = f.Name()
	cleanup = func() {
		_ = os.Remove(path)
	}

	w := bufio.NewWriter(f)
	for _, p := range patterns {
		if _, err := w.WriteString(p + "\n"); err != nil {
			f.Close()
			cleanup()
			return "", nil, errors.Wrap(err, "writing exclusion file")
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		cleanup()
		return "", nil, errors.Wrap(err, "writing exclusion file")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, "closing exclusion file")
	}

	return path, cleanup, nil
}
