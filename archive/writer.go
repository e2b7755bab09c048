package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// Writer builds a model archive entry by entry. Entries are written in
// the order they are added. Writer is not safe for concurrent use.
type Writer struct {
	zw    *zip.Writer
	added map[string]bool
	err   error
}

// NewWriter returns a Writer emitting the archive to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		zw:    zip.NewWriter(w),
		added: make(map[string]bool),
	}
}

// AddManifest writes the manifest.json entry.
func (w *Writer) AddManifest(data []byte) error {
	return w.add(EntryManifest, data)
}

// AddLayer writes an image entry under layers/. name is the bare layer
// name, not the full entry path.
func (w *Writer) AddLayer(name string, data []byte) error {
	return w.add(PrefixLayers+name, data)
}

// AddMetadata writes a placement metadata entry under metadata/.
func (w *Writer) AddMetadata(name string, data []byte) error {
	return w.add(PrefixMetadata+name, data)
}

// AddEntry writes an arbitrary entry. Most callers want AddManifest,
// AddLayer or AddMetadata instead.
func (w *Writer) AddEntry(name string, data []byte) error {
	return w.add(name, data)
}

func (w *Writer) add(name string, data []byte) error {
	if w.err != nil {
		return w.err
	}
	if !ValidEntryName(name) {
		return NewArchiveError("write", name, fmt.Errorf("invalid entry name"))
	}
	if w.added[name] {
		return NewArchiveError("write", name, fmt.Errorf("duplicate entry"))
	}

	ew, err := w.zw.Create(name)
	if err != nil {
		w.err = NewArchiveError("write", name, err)
		return w.err
	}
	if _, err := ew.Write(data); err != nil {
		w.err = NewArchiveError("write", name, err)
		return w.err
	}
	w.added[name] = true
	return nil
}

// Close finishes the archive by writing the central directory. The
// underlying writer is not closed.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		if w.err == nil {
			w.err = NewArchiveError("close", "", err)
		}
		return w.err
	}
	return w.err
}
