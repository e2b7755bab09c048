package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// View is a random-access read view over an in-memory archive. The
// central directory is indexed once at construction; every entry access
// opens a fresh reader over the shared bytes, so a View is safe for
// concurrent use.
type View struct {
	data    []byte
	entries map[string]*zip.File
	names   []string
}

// OpenView indexes data as a zip archive. Entries with names that fail
// ValidEntryName are dropped from the index; duplicate names keep the
// first occurrence.
func OpenView(data []byte) (*View, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, NewArchiveError("open", "", err)
	}

	v := &View{
		data:    data,
		entries: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		name := f.Name
		if !ValidEntryName(name) {
			continue
		}
		if _, dup := v.entries[name]; dup {
			continue
		}
		v.entries[name] = f
		v.names = append(v.names, name)
	}
	return v, nil
}

// Bytes returns the underlying archive bytes. The slice is shared and
// must not be modified.
func (v *View) Bytes() []byte {
	return v.data
}

// Has reports whether the archive contains an entry with the given name.
func (v *View) Has(name string) bool {
	_, ok := v.entries[name]
	return ok
}

// Names returns all indexed entry names in central-directory order.
func (v *View) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Open returns a fresh reader for the named entry. Each call returns an
// independent reader; callers must close it.
func (v *View) Open(name string) (io.ReadCloser, error) {
	f, ok := v.entries[name]
	if !ok {
		return nil, NewArchiveError("read", name, ErrEntryNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, NewArchiveError("read", name, err)
	}
	return rc, nil
}

// ReadAll reads the named entry fully, enforcing the per-class
// uncompressed size cap.
func (v *View) ReadAll(name string) ([]byte, error) {
	rc, err := v.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	limit := maxEntrySize(name)
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, NewArchiveError("read", name, err)
	}
	if int64(len(data)) > limit {
		return nil, NewArchiveError("read", name, fmt.Errorf("entry exceeds %d byte limit", limit))
	}
	return data, nil
}
