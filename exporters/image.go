package exporters

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
)

func init() {
	RegisterExporter("png", &PNGExporter{})
	RegisterExporter("jpeg", &JPEGExporter{Quality: 90})
	RegisterExporter("bmp", &BMPExporter{})
}

// PNGExporter writes lossless PNG output and keeps the alpha channel.
type PNGExporter struct{}

func (e *PNGExporter) Export(img image.Image, w io.Writer) error {
	return png.Encode(w, img)
}

// JPEGExporter writes JPEG output. JPEG has no alpha channel, so the
// raster is flattened onto a white background first.
type JPEGExporter struct {
	Quality int
}

func (e *JPEGExporter) Export(img image.Image, w io.Writer) error {
	bounds := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, bounds.Min, draw.Over)

	quality := e.Quality
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}
	return jpeg.Encode(w, flat, &jpeg.Options{Quality: quality})
}

// BMPExporter writes uncompressed BMP output.
type BMPExporter struct{}

func (e *BMPExporter) Export(img image.Image, w io.Writer) error {
	if _, ok := img.(*image.NRGBA); !ok {
		bounds := img.Bounds()
		dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		img = dst
	}
	return bmp.Encode(w, img)
}
