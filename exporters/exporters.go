// Package exporters provides the output format implementations for
// rendered rasters.
package exporters

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// Exporter encodes one rendered raster into an output format.
type Exporter interface {
	Export(img image.Image, w io.Writer) error
}

var exporters = make(map[string]Exporter)

// RegisterExporter makes an exporter available under a format name.
// Names are case-insensitive; format implementations register
// themselves from init.
func RegisterExporter(name string, exporter Exporter) {
	exporters[strings.ToLower(name)] = exporter
}

// GetExporter returns the exporter registered under name.
func GetExporter(name string) (Exporter, error) {
	exporter, exists := exporters[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("exporter %s not found (have %s)", name, strings.Join(ListExporters(), ", "))
	}
	return exporter, nil
}

// ListExporters returns the registered format names, sorted.
func ListExporters() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForPath picks an exporter from a file name's extension.
func ForPath(path string) (Exporter, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return nil, fmt.Errorf("output path %q has no format extension", path)
	}
	if ext == "jpg" {
		ext = "jpeg"
	}
	return GetExporter(ext)
}
