// Package clipboard abstracts the system clipboard as a source of file
// references and a sink for text.
package clipboard

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
)

const nautilusHeader = "x-special/nautilus-clipboard"

// ErrUnsupported is returned when no clipboard utility is available on this system.
var ErrUnsupported = errors.New("clipboard is not supported on this system")

// Clipboard is the capability the monitor needs from the OS clipboard.
type Clipboard interface {
	// ReadFileReferences returns the paths of the files or folders currently
	// on the clipboard, or an empty slice when it holds something else.
	ReadFileReferences() ([]string, error)

	// WriteText replaces the clipboard contents with text.
	WriteText(text string) error
}

// System is the clipboard of the running desktop session.
type System struct{}

func (System) ReadFileReferences() ([]string, error) {
	if clipboard.Unsupported {
		return nil, ErrUnsupported
	}

	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, err
	}

	return ParseFileReferences(text), nil
}

func (System) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}

	return clipboard.WriteAll(text)
}

// ParseFileReferences interprets clipboard text as a list of file references.
// File managers put copied files on the clipboard as newline separated
// file:// URIs (text/uri-list, optionally preceded by a Nautilus
// "x-special/nautilus-clipboard" header and a "copy"/"cut" verb) or as plain
// absolute paths. Any line that is neither, or that points at something that
// does not exist, means the clipboard holds ordinary text and no references
// are returned.
func ParseFileReferences(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		paths      []string
		seenHeader bool
		seenVerb   bool
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(paths) == 0 && !seenHeader && !seenVerb && line == nautilusHeader {
			seenHeader = true
			continue
		}
		if len(paths) == 0 && !seenVerb && (line == "copy" || line == "cut") {
			seenVerb = true
			continue
		}

		path, ok := toPath(line)
		if !ok {
			return nil
		}
		if _, err := os.Stat(path); err != nil {
			return nil
		}
		paths = append(paths, path)
	}

	return paths
}

func toPath(line string) (string, bool) {
	if strings.HasPrefix(line, "file://") {
		u, err := url.Parse(line)
		if err != nil || u.Path == "" {
			return "", false
		}
		if u.Host != "" && u.Host != "localhost" {
			return "", false
		}
		return filepath.FromSlash(u.Path), true
	}

	if filepath.IsAbs(line) {
		return filepath.Clean(line), true
	}

	return "", false
}
