// Package aggregate turns a list of copied file and folder paths into a single
// text document suitable for pasting, applying the user's file filter policy.
package aggregate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

// Policy decides which files are included in an aggregation.
type Policy struct {
	// ProcessAllFiles includes every file regardless of its extension.
	ProcessAllFiles bool

	// MaxFileSizeBytes is the largest file whose body is read. Larger files
	// are replaced by a placeholder.
	MaxFileSizeBytes int64

	// AllowedExtensions is consulted only when ProcessAllFiles is false.
	// Entries always start with ".", see NormalizeExtensions.
	AllowedExtensions []string
}

// NewPolicy builds a Policy with normalized extensions.
func NewPolicy(processAll bool, maxFileSizeBytes int64, extensions []string) Policy {
	return Policy{
		ProcessAllFiles:   processAll,
		MaxFileSizeBytes:  maxFileSizeBytes,
		AllowedExtensions: NormalizeExtensions(extensions),
	}
}

// NormalizeExtensions trims each entry, prefixes a missing ".", and drops
// blanks and duplicates while keeping the original order.
func NormalizeExtensions(extensions []string) []string {
	normalized := lo.FilterMap(extensions, func(ext string, _ int) (string, bool) {
		ext = strings.TrimSpace(ext)
		if ext == "" || ext == "." {
			return "", false
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return ext, true
	})
	return lo.Uniq(normalized)
}

// Includes reports whether a file with the given name passes the policy.
// Extension matching is a case-sensitive suffix match.
func (p Policy) Includes(name string) bool {
	if p.ProcessAllFiles {
		return true
	}
	return lo.SomeBy(p.AllowedExtensions, func(ext string) bool {
		return strings.HasSuffix(name, ext)
	})
}

// Result is the outcome of one aggregation.
type Result struct {
	Text      string
	FileCount int
	LineCount int
	FileNames []string
}

// Empty reports whether nothing was included.
func (r Result) Empty() bool {
	return r.Text == ""
}

// Aggregate reads every file referenced by paths that passes policy and
// concatenates them, in order, into one document. Directories are walked
// recursively in lexical order. Files that cannot be read contribute a
// placeholder instead of their body and are still counted.
func Aggregate(paths []string, policy Policy) Result {
	var resolved []string
	for _, path := range paths {
		resolved = append(resolved, candidates(path)...)
	}
	return aggregateFiles(resolved, policy)
}

// aggregateFiles builds the document from already resolved candidates. A
// candidate may disappear between resolution and reading.
func aggregateFiles(files []string, policy Policy) Result {
	var (
		result Result
		text   strings.Builder
	)

	for _, candidate := range files {
		if !policy.Includes(filepath.Base(candidate)) {
			continue
		}

		body, lines := readFile(candidate, policy.MaxFileSizeBytes)

		text.WriteString("File: " + filepath.Base(candidate) + "\n")
		text.WriteString("Path: " + candidate + "\n")
		text.WriteString(body)
		text.WriteString("\n\n")

		result.FileCount++
		result.LineCount += lines
		result.FileNames = append(result.FileNames, filepath.Base(candidate))
	}

	result.Text = text.String()
	return result
}

// candidates resolves a copied path into the regular files it stands for.
func candidates(path string) []string {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	if info.Mode().IsRegular() {
		return []string{path}
	}
	if !info.IsDir() {
		return nil
	}

	var files []string
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		// Unreadable entries are skipped, the rest of the tree is still walked.
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
			return nil
		}
		// Symlinks and other special entries count only when they resolve to a regular file.
		if target, err := os.Stat(p); err == nil && target.Mode().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	return files
}

// readFile returns the text to emit for a file and the number of lines it contributes.
func readFile(path string, maxSize int64) (string, int) {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("Error reading file %s: %v\n", path, err), 0
	}
	if info.Size() > maxSize {
		return fmt.Sprintf("File %s is too large (>%s). Skipping.\n", path, humanize.IBytes(uint64(max(maxSize, 0)))), 0
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("Error reading file %s: %v\n", path, err), 0
	}
	if !utf8.Valid(data) {
		return fmt.Sprintf("File %s is not a text file or uses an unsupported encoding. Skipping.\n", path), 0
	}

	content := string(data)
	return content, strings.Count(content, "\n") + 1
}
