package model

import (
	"errors"
	"fmt"
	"image"

	"github.com/hyades-vt/prism/compose"
	"github.com/hyades-vt/prism/manifest"
)

// Render sequencing errors. Each aborts the render call that hit it;
// nothing is retried and no partial canvas is returned.
var (
	// ErrNoLayersProvided reports a render whose resolved sequence came
	// out empty.
	ErrNoLayersProvided = errors.New("no layers provided to render")
	// ErrMultipleBaseLayers reports a second base layer in one resolved
	// sequence. Exactly one base layer is permitted per render.
	ErrMultipleBaseLayers = errors.New("multiple base layers in render sequence")
	// ErrNoBaseLayerLoaded reports a top layer encountered before any
	// base layer in the resolved sequence.
	ErrNoBaseLayerLoaded = errors.New("no base layer loaded before a top layer")
)

// DecodeError reports a layer entry whose bytes could not be decoded
// as a raster image.
type DecodeError struct {
	Layer string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode layer %q: %v", e.Layer, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Render composites the named layers into one raster. The requested
// names are expanded through their bindings first, then the resolved
// sequence is folded left to right: the single base layer becomes the
// canvas and every top layer is composited onto it at its declared
// placement, shifted by the base layer's offset.
//
// The sequence must contain exactly one base layer, before any top
// layer. Images are decoded from the archive per call; nothing is
// cached between renders.
func (m *Model) Render(names []string) (*image.NRGBA, error) {
	sequence, err := m.manifest.Resolve(names)
	if err != nil {
		return nil, err
	}
	if len(sequence) == 0 {
		return nil, ErrNoLayersProvided
	}

	var (
		canvas    *image.NRGBA
		baseLayer *manifest.Layer
	)
	for _, name := range sequence {
		// Bindings are expanded without lookup, so a binding naming a
		// dropped or unknown layer surfaces here.
		layer, ok := m.manifest.Layer(name)
		if !ok {
			return nil, &manifest.UnknownLayerError{Name: name}
		}

		if layer.IsBase() {
			if canvas != nil {
				return nil, ErrMultipleBaseLayers
			}
			img, err := m.decodeLayer(name)
			if err != nil {
				return nil, err
			}
			canvas = compose.ToNRGBA(img)
			baseLayer = layer
			continue
		}

		if canvas == nil {
			return nil, ErrNoBaseLayerLoaded
		}
		img, err := m.decodeLayer(name)
		if err != nil {
			return nil, err
		}
		canvas, err = compose.FromManifest(canvas, img, baseLayer, layer)
		if err != nil {
			return nil, err
		}
	}
	return canvas, nil
}
