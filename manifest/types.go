package manifest

import (
	"errors"
	"fmt"
)

// LayerKind discriminates the two manifest record shapes.
type LayerKind string

const (
	// KindBaseLayer marks the canvas-originating layer of a render. Its
	// offset shifts every top layer composited onto it.
	KindBaseLayer LayerKind = "base_layer"
	// KindTopLayer marks an overlay layer placed onto the current canvas
	// at the position, scale and opacity its metadata declares.
	KindTopLayer LayerKind = "top_layer"
)

// Layer is one parsed manifest record. Kind selects which fields are
// meaningful: base layers carry Offset, top layers carry Metadata.
// Layers returned by a Manifest are shared and must be treated as
// read-only.
type Layer struct {
	Kind LayerKind

	// Offset is the translation applied to every top layer composited
	// onto this layer. Base layers only.
	Offset [2]int

	// Metadata holds placement, scale and opacity. Top layers only.
	Metadata TopLayerMetadata

	// Description is the human-readable description shown in the layer
	// selection vocabulary. Empty when the record declares none.
	Description string

	// Bindings lists layer names always rendered alongside this one, in
	// declaration order. Bindings are expanded one level deep only.
	Bindings []string
}

// IsBase reports whether the layer is the base-layer variant.
func (l *Layer) IsBase() bool {
	return l.Kind == KindBaseLayer
}

// IsTop reports whether the layer is the top-layer variant.
func (l *Layer) IsTop() bool {
	return l.Kind == KindTopLayer
}

// TopLayerMetadata describes how a top layer is placed onto a base
// canvas: position relative to the base origin (before the base offset
// is applied), the source and target dimensions of the resize, and the
// opacity multiplier applied to the layer's alpha channel.
type TopLayerMetadata struct {
	X              int     `json:"x"`
	Y              int     `json:"y"`
	OriginalWidth  int     `json:"originalWidth"`
	OriginalHeight int     `json:"originalHeight"`
	ScaledWidth    int     `json:"scaledWidth"`
	ScaledHeight   int     `json:"scaledHeight"`
	Scale          float64 `json:"scale"`
	Opacity        float64 `json:"opacity"`
}

// LayerDescription pairs a layer's position in manifest order with its
// human-readable description. The index is the stable vocabulary a
// caller (an LLM prompt, a UI list) uses to select layers.
type LayerDescription struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrNoManifest reports an archive with no manifest.json entry.
var ErrNoManifest = errors.New("no manifest.json entry in archive")

// ParseError represents a fatal defect in the manifest index or in a
// metadata entry. Soft omissions (a declared image or metadata entry
// missing from the archive) are not errors; those records are dropped
// during parse instead.
type ParseError struct {
	Entry   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Entry, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse %s: %s", e.Entry, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// UnknownLayerError reports a requested layer name with no matching
// manifest record.
type UnknownLayerError struct {
	Name string
}

func (e *UnknownLayerError) Error() string {
	return fmt.Sprintf("no matched layer manifest for %q", e.Name)
}
