// Package extractor turns a file on disk into text plus metadata. It
// never fails upward: an unsupported or undecodable file degrades to
// an empty-text result that still carries its content hash, so a
// caller can always store a record for it. A file that cannot be
// opened or read through yields an empty hash as well.
package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// supportedExtensions is the closed set of suffixes SEFS reads as
// text directly. PDF/DOCX/etc. belong to the text-extraction library
// set that spec.md §1 places out of scope; a TextExtractor collaborator
// below leaves room for one without committing to a library the pack
// doesn't carry.
var supportedExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true, ".rs": true,
	".rb": true, ".php": true, ".sh": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".ini": true, ".cfg": true,
	".log": true, ".csv": true,
	".pdf": true, ".docx": true,
	".html": true, ".htm": true, ".xml": true,
}

// extensionlessBasenames are well-known files with no suffix.
var extensionlessBasenames = map[string]bool{
	"makefile": true, "dockerfile": true, "jenkinsfile": true,
	"license": true, "readme": true, "changelog": true,
}

// binaryFormats require a dedicated parser SEFS does not embed (see
// package doc). Extract returns empty text with a non-zero hash for
// these so they're still tracked, hashed, and move-detectable.
var binaryFormats = map[string]bool{".pdf": true, ".docx": true}

// Result is the output of Extract.
type Result struct {
	Text        string
	WordCount   int
	PageCount   int
	FileType    string
	ContentHash string
	SizeBytes   int64
}

// TextExtractor is the per-format collaborator interface a real
// PDF/DOCX/etc. library would implement. None is wired in; it exists
// so one can be added without changing Extract's callers.
type TextExtractor interface {
	ExtractText(path string) (text string, pageCount int, err error)
}

// Registry maps a file extension to an external TextExtractor. Empty
// by default — binary formats fall back to the zero-text path.
type Registry struct {
	byExtension map[string]TextExtractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{byExtension: make(map[string]TextExtractor)}
}

// Register installs a TextExtractor for the given extension (with leading dot).
func (r *Registry) Register(ext string, x TextExtractor) {
	r.byExtension[strings.ToLower(ext)] = x
}

// IsSupported reports whether path names a file type Extract handles.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		return supportedExtensions[ext]
	}
	base := strings.ToLower(filepath.Base(path))
	return extensionlessBasenames[base]
}

// FileType returns the tag stored on a FileRecord for path, without
// reading the file. For a well-known extensionless basename this is
// the lowercased basename itself (see DESIGN.md Open Question).
func FileType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	return strings.ToLower(filepath.Base(path))
}

// Extract reads path, computing its hash before attempting any text
// extraction, so a zero-text result (unsupported format, text that
// fails to read or is not UTF-8, or no registered parser for a binary
// format) still carries a stable identity. If the file cannot be
// opened or hashed, the result has an empty ContentHash. It never
// returns an error.
func (r *Registry) Extract(path string) Result {
	res := Result{FileType: FileType(path)}

	f, err := os.Open(path)
	if err != nil {
		return res
	}
	defer f.Close()

	hash := sha256.New()
	info, statErr := f.Stat()
	if statErr == nil {
		res.SizeBytes = info.Size()
	}
	if _, err := io.Copy(hash, f); err != nil {
		return res
	}
	res.ContentHash = hex.EncodeToString(hash.Sum(nil))

	if !IsSupported(path) {
		return res
	}

	ext := strings.ToLower(filepath.Ext(path))
	if binaryFormats[ext] {
		if x, ok := r.byExtension[ext]; ok {
			text, pages, err := x.ExtractText(path)
			if err == nil {
				res.Text = text
				res.PageCount = pages
				res.WordCount = countWords(text)
			}
		}
		return res
	}

	data, err := os.ReadFile(path)
	if err != nil || !utf8.Valid(data) {
		return res
	}
	res.Text = string(data)
	res.WordCount = countWords(res.Text)
	res.PageCount = 1
	return res
}

// Extract is a convenience wrapper around a default, empty Registry —
// used whenever no binary-format parser has been wired in.
func Extract(path string) Result {
	return defaultRegistry.Extract(path)
}

var defaultRegistry = NewRegistry()

func countWords(text string) int {
	return len(strings.Fields(text))
}
