// Package archive reads and writes packaged model archives.
//
// A model archive is a zip container holding one manifest.json entry,
// image entries under layers/, and placement metadata entries under
// metadata/. The read side parses the central directory once and hands
// out independent entry readers, so a single in-memory archive can be
// read from many goroutines without locking.
package archive

import (
	"errors"
	"fmt"
	"strings"
)

// Well-known entry locations inside a model archive.
const (
	EntryManifest  = "manifest.json"
	PrefixLayers   = "layers/"
	PrefixMetadata = "metadata/"
)

// Uncompressed size caps per entry class. Entries above their cap are
// treated as corruption rather than read into memory.
const (
	MaxManifestSize int64 = 16 << 20  // 16 MiB
	MaxMetadataSize int64 = 1 << 20   // 1 MiB
	MaxImageSize    int64 = 128 << 20 // 128 MiB
	MaxArchiveSize  int64 = 512 << 20 // 512 MiB, whole-archive cap for loads
)

// ErrEntryNotFound reports a lookup for an entry name the archive does
// not contain.
var ErrEntryNotFound = errors.New("entry not found in archive")

// ArchiveError represents errors that occur while reading or writing an
// archive.
type ArchiveError struct {
	Operation string
	Entry     string
	Cause     error
}

func (e *ArchiveError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive %s %s: %v", e.Operation, e.Entry, e.Cause)
	}
	return fmt.Sprintf("archive %s: %v", e.Operation, e.Cause)
}

func (e *ArchiveError) Unwrap() error {
	return e.Cause
}

// NewArchiveError creates a new ArchiveError.
func NewArchiveError(operation, entry string, cause error) *ArchiveError {
	return &ArchiveError{
		Operation: operation,
		Entry:     entry,
		Cause:     cause,
	}
}

// ValidEntryName reports whether name is addressable inside an archive:
// slash-separated, relative, with no empty, "." or ".." elements and no
// backslashes. Hostile names in a foreign archive fail this check and
// are skipped during indexing.
func ValidEntryName(name string) bool {
	if name == "" || strings.ContainsRune(name, '\\') {
		return false
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		switch part {
		case "", ".", "..":
			return false
		}
	}
	return true
}

// maxEntrySize returns the uncompressed cap applied to an entry name.
func maxEntrySize(name string) int64 {
	switch {
	case name == EntryManifest:
		return MaxManifestSize
	case strings.HasPrefix(name, PrefixMetadata):
		return MaxMetadataSize
	default:
		return MaxImageSize
	}
}
