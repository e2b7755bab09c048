package model

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/hyades-vt/prism/archive"
	"github.com/hyades-vt/prism/manifest"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// metaJSON builds a placement record with scale 1 and full opacity so
// pixel assertions stay exact.
func metaJSON(x, y, w, h int) []byte {
	return []byte(fmt.Sprintf(
		`{"top_layer":{"x":%d,"y":%d,"originalWidth":%d,"originalHeight":%d,"scaledWidth":%d,"scaledHeight":%d,"scale":1.0,"opacity":1.0}}`,
		x, y, w, h, w, h))
}

// fixtureArchive packs a model with two base layers, three healthy top
// layers (one carrying a binding) and one undecodable top layer.
func fixtureArchive(t *testing.T) []byte {
	t.Helper()

	index := `{"layers":{
		"base.png":   {"type":"base_layer","offset":[10,5],"description":"neutral body"},
		"alt.png":    {"type":"base_layer","offset":[0,0]},
		"smile.png":  {"metadata":"smile.json","description":"a gentle smile"},
		"blush.png":  {"metadata":"blush.json"},
		"hat.png":    {"metadata":"hat.json","bindings":["blush.png"]},
		"broken.png": {"metadata":"broken.json"}
	}}`

	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	entries := []struct {
		name string
		data []byte
	}{
		{archive.EntryManifest, []byte(index)},
		{archive.PrefixLayers + "base.png", encodePNG(t, solid(20, 10, white))},
		{archive.PrefixLayers + "alt.png", encodePNG(t, solid(6, 6, white))},
		{archive.PrefixLayers + "smile.png", encodePNG(t, solid(4, 4, red))},
		{archive.PrefixLayers + "blush.png", encodePNG(t, solid(2, 2, blue))},
		{archive.PrefixLayers + "hat.png", encodePNG(t, solid(3, 3, green))},
		{archive.PrefixLayers + "broken.png", []byte("definitely not an image")},
		{archive.PrefixMetadata + "smile.json", metaJSON(0, 0, 4, 4)},
		{archive.PrefixMetadata + "blush.json", metaJSON(2, 1, 2, 2)},
		{archive.PrefixMetadata + "hat.json", metaJSON(0, 0, 3, 3)},
		{archive.PrefixMetadata + "broken.json", metaJSON(0, 0, 1, 1)},
	}
	for _, e := range entries {
		if err := w.AddEntry(e.name, e.data); err != nil {
			t.Fatalf("AddEntry(%s) failed: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return buf.Bytes()
}

func loadFixture(t *testing.T) *Model {
	t.Helper()
	m, err := FromBytes(fixtureArchive(t))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	return m
}

func TestRenderBaseOnly(t *testing.T) {
	m := loadFixture(t)

	got, err := m.Render([]string{"base.png"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Fatalf("canvas bounds = %v, want (0,0)-(20,10)", got.Bounds())
	}
	if c := got.NRGBAAt(0, 0); c != white {
		t.Errorf("pixel (0,0) = %v, want white", c)
	}
}

func TestRenderPlacesTopAtBaseOffset(t *testing.T) {
	m := loadFixture(t)

	// smile declares x=0,y=0; the base offset (10,5) shifts it.
	got, err := m.Render([]string{"base.png", "smile.png"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if got.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Fatalf("canvas bounds = %v, want base dimensions", got.Bounds())
	}
	for _, p := range []image.Point{{10, 5}, {13, 8}} {
		if c := got.NRGBAAt(p.X, p.Y); c != red {
			t.Errorf("pixel %v = %v, want red", p, c)
		}
	}
	for _, p := range []image.Point{{9, 5}, {10, 4}, {14, 8}} {
		if c := got.NRGBAAt(p.X, p.Y); c != white {
			t.Errorf("pixel %v = %v, want white", p, c)
		}
	}
}

func TestRenderExpandsBindings(t *testing.T) {
	m := loadFixture(t)

	// hat binds blush, so blush composites after hat without being
	// requested: hat covers (10..12, 5..7), blush (12..13, 6..7).
	got, err := m.Render([]string{"base.png", "hat.png"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if c := got.NRGBAAt(10, 5); c != green {
		t.Errorf("pixel (10,5) = %v, want green (hat)", c)
	}
	if c := got.NRGBAAt(12, 6); c != blue {
		t.Errorf("pixel (12,6) = %v, want blue (bound blush over hat)", c)
	}
	if c := got.NRGBAAt(13, 7); c != blue {
		t.Errorf("pixel (13,7) = %v, want blue (bound blush)", c)
	}
	if c := got.NRGBAAt(14, 6); c != white {
		t.Errorf("pixel (14,6) = %v, want white", c)
	}
}

func TestRenderSequencingErrors(t *testing.T) {
	m := loadFixture(t)

	tests := []struct {
		name    string
		request []string
		wantErr error
	}{
		{"empty request", []string{}, ErrNoLayersProvided},
		{"nil request", nil, ErrNoLayersProvided},
		{"top before base", []string{"smile.png", "base.png"}, ErrNoBaseLayerLoaded},
		{"top without base", []string{"smile.png"}, ErrNoBaseLayerLoaded},
		{"two distinct bases", []string{"base.png", "alt.png"}, ErrMultipleBaseLayers},
		{"same base twice", []string{"base.png", "base.png"}, ErrMultipleBaseLayers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Render(tt.request)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Render(%v) error = %v, want %v", tt.request, err, tt.wantErr)
			}
		})
	}
}

func TestRenderUnknownLayer(t *testing.T) {
	m := loadFixture(t)

	_, err := m.Render([]string{"base.png", "nope.png"})
	var unknown *manifest.UnknownLayerError
	if !errors.As(err, &unknown) {
		t.Fatalf("Render error = %v, want *manifest.UnknownLayerError", err)
	}
	if unknown.Name != "nope.png" {
		t.Errorf("UnknownLayerError.Name = %q, want %q", unknown.Name, "nope.png")
	}
}

func TestRenderDecodeError(t *testing.T) {
	m := loadFixture(t)

	_, err := m.Render([]string{"base.png", "broken.png"})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Render error = %v, want *DecodeError", err)
	}
	if decodeErr.Layer != "broken.png" {
		t.Errorf("DecodeError.Layer = %q, want %q", decodeErr.Layer, "broken.png")
	}
}

func TestRenderDeterministic(t *testing.T) {
	m := loadFixture(t)

	request := []string{"base.png", "hat.png", "smile.png"}
	first, err := m.Render(request)
	if err != nil {
		t.Fatalf("first Render failed: %v", err)
	}
	second, err := m.Render(request)
	if err != nil {
		t.Fatalf("second Render failed: %v", err)
	}
	if !bytes.Equal(first.Pix, second.Pix) {
		t.Error("two renders of the same request differ")
	}
}

func TestRenderConcurrent(t *testing.T) {
	m := loadFixture(t)

	want, err := m.Render([]string{"base.png", "smile.png"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]*image.NRGBA, 8)
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Render([]string{"base.png", "smile.png"})
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: Render failed: %v", i, errs[i])
		}
		if !bytes.Equal(results[i].Pix, want.Pix) {
			t.Errorf("goroutine %d: render differs from sequential result", i)
		}
	}
}

func TestLayerDescriptions(t *testing.T) {
	m := loadFixture(t)

	want := []manifest.LayerDescription{
		{Index: 0, Name: "base.png", Description: "neutral body"},
		{Index: 2, Name: "smile.png", Description: "a gentle smile"},
	}
	if got := m.LayerDescriptions(); !reflect.DeepEqual(got, want) {
		t.Errorf("LayerDescriptions() = %+v, want %+v", got, want)
	}
}

func TestLayerImage(t *testing.T) {
	m := loadFixture(t)

	img, err := m.LayerImage("smile.png")
	if err != nil {
		t.Fatalf("LayerImage failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Errorf("smile.png bounds = %v, want 4x4", b)
	}

	_, err = m.LayerImage("nope.png")
	var unknown *manifest.UnknownLayerError
	if !errors.As(err, &unknown) {
		t.Errorf("LayerImage error = %v, want *manifest.UnknownLayerError", err)
	}
}

func TestFromBytesErrors(t *testing.T) {
	t.Run("not an archive", func(t *testing.T) {
		if _, err := FromBytes([]byte("junk bytes")); err == nil {
			t.Error("FromBytes succeeded on junk")
		}
	})

	t.Run("no manifest entry", func(t *testing.T) {
		var buf bytes.Buffer
		w := archive.NewWriter(&buf)
		if err := w.AddLayer("base.png", encodePNG(t, solid(2, 2, white))); err != nil {
			t.Fatalf("AddLayer failed: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		_, err := FromBytes(buf.Bytes())
		if !errors.Is(err, manifest.ErrNoManifest) {
			t.Errorf("FromBytes error = %v, want ErrNoManifest", err)
		}
	})

	t.Run("malformed manifest", func(t *testing.T) {
		var buf bytes.Buffer
		w := archive.NewWriter(&buf)
		if err := w.AddManifest([]byte("{broken")); err != nil {
			t.Fatalf("AddManifest failed: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		_, err := FromBytes(buf.Bytes())
		var parseErr *manifest.ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("FromBytes error = %T, want *manifest.ParseError", err)
		}
	})
}

func TestOpenAndFromReader(t *testing.T) {
	data := fixtureArchive(t)

	path := filepath.Join(t.TempDir(), "model.zip")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := m.Render([]string{"base.png"}); err != nil {
		t.Errorf("Render on opened model failed: %v", err)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "absent.zip")); err == nil {
		t.Error("Open succeeded on a missing file")
	}

	fromReader, err := FromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("FromReader failed: %v", err)
	}
	if got, want := len(fromReader.Bytes()), len(data); got != want {
		t.Errorf("FromReader kept %d bytes, want %d", got, want)
	}
}

func TestFromPackedProjectDir(t *testing.T) {
	dir := t.TempDir()

	// Deliberately non-alphabetical declaration order; the loaded model
	// must keep it.
	index := `{"layers":{
		"zeta.png":  {"type":"base_layer","offset":[0,0]},
		"alpha.png": {"metadata":"alpha.json"},
		"mid.png":   {"metadata":"mid.json"}
	}}`

	files := []struct {
		path string
		data []byte
	}{
		{"manifest.json", []byte(index)},
		{filepath.Join("layers", "zeta.png"), encodePNG(t, solid(8, 8, white))},
		{filepath.Join("layers", "alpha.png"), encodePNG(t, solid(2, 2, red))},
		{filepath.Join("layers", "mid.png"), encodePNG(t, solid(2, 2, blue))},
		{filepath.Join("metadata", "alpha.json"), metaJSON(0, 0, 2, 2)},
		{filepath.Join("metadata", "mid.json"), metaJSON(4, 4, 2, 2)},
	}
	for _, f := range files {
		target := filepath.Join(dir, f.path)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			t.Fatalf("mkdir for %s: %v", f.path, err)
		}
		if err := os.WriteFile(target, f.data, 0644); err != nil {
			t.Fatalf("write %s: %v", f.path, err)
		}
	}

	data, err := archive.PackDir(dir)
	if err != nil {
		t.Fatalf("PackDir failed: %v", err)
	}
	m, err := FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes on packed archive failed: %v", err)
	}

	want := []string{"zeta.png", "alpha.png", "mid.png"}
	if got := m.Manifest().Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("layer order = %v, want %v", got, want)
	}

	img, err := m.Render([]string{"zeta.png", "alpha.png"})
	if err != nil {
		t.Fatalf("Render on packed model failed: %v", err)
	}
	if c := img.NRGBAAt(0, 0); c != red {
		t.Errorf("pixel (0,0) = %v, want red", c)
	}
}
