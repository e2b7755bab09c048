// Package compose merges raster layers according to their placement
// metadata.
//
// The primitive operation resizes a top layer to its declared target
// dimensions with a Lanczos filter, scales its alpha channel by the
// declared opacity, and overlays it onto a base canvas at integer
// pixel coordinates. Placement outside the canvas is clipped, never an
// error. All work happens on non-premultiplied RGBA rasters so the
// opacity multiply touches exactly the stored alpha samples.
package compose

import (
	"errors"
	"image"
	"image/draw"
	"math"

	"github.com/nfnt/resize"

	"github.com/hyades-vt/prism/manifest"
)

// FromManifest guard errors. They signal a caller handing layers to
// the wrong roles, not defective archive data.
var (
	ErrBadBaseLayerManifest = errors.New("compose: manifest record is not a base layer")
	ErrBadTopLayerManifest  = errors.New("compose: manifest record is not a top layer")
)

// Compose overlays top onto base and returns the merged canvas. The
// top image is resized to the metadata's scaled dimensions with
// Lanczos resampling, its alpha channel is multiplied by the
// metadata's opacity, and the result is drawn over the base at
// (meta.X, meta.Y). The returned canvas has the base's dimensions;
// neither input is modified.
func Compose(base, top image.Image, meta manifest.TopLayerMetadata) *image.NRGBA {
	canvas := ToNRGBA(base)

	scaled := resize.Resize(uint(meta.ScaledWidth), uint(meta.ScaledHeight), top, resize.Lanczos3)
	overlay := ToNRGBA(scaled)
	if meta.Opacity < 1.0 {
		scaleAlpha(overlay, meta.Opacity)
	}

	bounds := overlay.Bounds()
	target := image.Rect(meta.X, meta.Y, meta.X+bounds.Dx(), meta.Y+bounds.Dy())
	draw.Draw(canvas, target, overlay, image.Point{}, draw.Over)
	return canvas
}

// FromManifest composites top onto base using both layers' manifest
// records: the top layer's declared placement is shifted by the base
// layer's offset before the overlay. The records must match their
// roles or the call fails with ErrBadBaseLayerManifest or
// ErrBadTopLayerManifest.
func FromManifest(base, top image.Image, baseLayer, topLayer *manifest.Layer) (*image.NRGBA, error) {
	if baseLayer == nil || !baseLayer.IsBase() {
		return nil, ErrBadBaseLayerManifest
	}
	if topLayer == nil || !topLayer.IsTop() {
		return nil, ErrBadTopLayerManifest
	}

	meta := topLayer.Metadata
	meta.X += baseLayer.Offset[0]
	meta.Y += baseLayer.Offset[1]
	return Compose(base, top, meta), nil
}

// ToNRGBA copies img into a fresh non-premultiplied RGBA raster
// anchored at the origin. It always allocates, so the result is safe
// to mutate regardless of the input's type or bounds.
func ToNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// scaleAlpha multiplies every alpha sample by opacity, rounding to the
// nearest integer. Color samples are left alone; the raster is
// non-premultiplied.
func scaleAlpha(img *image.NRGBA, opacity float64) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(math.Round(float64(img.Pix[i]) * opacity))
	}
}
