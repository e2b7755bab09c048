// Package model bundles a packaged layer archive with its parsed
// manifest behind one immutable facade.
//
// A Model never changes after construction: the archive bytes and the
// manifest are read-only, every render opens transient readers over the
// shared buffer, and no decoded raster is cached between calls. One
// *Model can therefore serve any number of goroutines without locking,
// and handing it around costs a pointer copy.
package model

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/hyades-vt/prism/archive"
	"github.com/hyades-vt/prism/manifest"
)

// Model is an immutable handle on a loaded layer model. The zero value
// is not usable; construct one with FromBytes, FromReader or Open.
type Model struct {
	view     *archive.View
	manifest *manifest.Manifest
}

// FromBytes opens the archive held in data and parses its manifest.
// The Model keeps data; callers must not modify it afterwards.
func FromBytes(data []byte) (*Model, error) {
	view, err := archive.OpenView(data)
	if err != nil {
		return nil, err
	}
	man, err := manifest.Parse(view)
	if err != nil {
		return nil, err
	}
	return &Model{view: view, manifest: man}, nil
}

// FromReader reads an entire archive from r and loads it. Streams
// larger than archive.MaxArchiveSize are rejected without buffering
// them whole.
func FromReader(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(io.LimitReader(r, archive.MaxArchiveSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > archive.MaxArchiveSize {
		return nil, fmt.Errorf("archive exceeds %d byte limit", archive.MaxArchiveSize)
	}
	return FromBytes(data)
}

// Open loads a model archive from a file.
func Open(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return FromReader(f)
}

// Bytes returns the backing archive bytes. The slice is shared with
// the Model and must be treated as read-only.
func (m *Model) Bytes() []byte {
	return m.view.Bytes()
}

// Manifest returns the parsed manifest for read-only introspection.
func (m *Model) Manifest() *manifest.Manifest {
	return m.manifest
}

// LayerDescriptions returns the described layers keyed by their
// position in manifest declaration order. The indices are the stable
// vocabulary an external selector (an LLM prompt, a UI) addresses
// layers by.
func (m *Model) LayerDescriptions() []manifest.LayerDescription {
	return m.manifest.Descriptions()
}

// LayerImage decodes and returns the raster for one layer. The name
// must be a retained manifest layer; decoding happens per call, with
// no caching.
func (m *Model) LayerImage(name string) (image.Image, error) {
	if _, ok := m.manifest.Layer(name); !ok {
		return nil, &manifest.UnknownLayerError{Name: name}
	}
	return m.decodeLayer(name)
}

// decodeLayer reads a layer entry from the archive and decodes it.
// Format support is whatever image decoders are linked in: PNG, JPEG,
// BMP and WebP.
func (m *Model) decodeLayer(name string) (image.Image, error) {
	data, err := m.view.ReadAll(archive.PrefixLayers + name)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Layer: name, Cause: err}
	}
	return img, nil
}
