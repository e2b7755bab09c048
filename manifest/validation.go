package manifest

import (
	"encoding/json"
	"fmt"
)

// metadataFile mirrors a metadata/<name> archive entry. The placement
// record lives under the top_layer key; the file may carry other keys
// (editors write a base_layer block too) which are ignored.
type metadataFile struct {
	TopLayer *TopLayerMetadata `json:"top_layer"`
}

// DecodeTopLayerMetadata unmarshals and validates one metadata entry.
// The metadata being present but malformed is fatal to the whole parse,
// unlike a missing entry, so every field defect surfaces as an error
// here.
func DecodeTopLayerMetadata(data []byte) (TopLayerMetadata, error) {
	var file metadataFile
	if err := json.Unmarshal(data, &file); err != nil {
		return TopLayerMetadata{}, err
	}
	if file.TopLayer == nil {
		return TopLayerMetadata{}, fmt.Errorf("missing top_layer object")
	}
	if err := file.TopLayer.Validate(); err != nil {
		return TopLayerMetadata{}, err
	}
	return *file.TopLayer, nil
}

// Validate checks the metadata against its wire-format ranges: opacity
// is a fraction in [0, 1], dimensions are positive, scale is
// non-negative.
func (m TopLayerMetadata) Validate() error {
	if m.Opacity < 0 || m.Opacity > 1 {
		return fmt.Errorf("opacity %v outside [0, 1]", m.Opacity)
	}
	if m.OriginalWidth <= 0 || m.OriginalHeight <= 0 {
		return fmt.Errorf("original dimensions %dx%d must be positive", m.OriginalWidth, m.OriginalHeight)
	}
	if m.ScaledWidth <= 0 || m.ScaledHeight <= 0 {
		return fmt.Errorf("scaled dimensions %dx%d must be positive", m.ScaledWidth, m.ScaledHeight)
	}
	if m.Scale < 0 {
		return fmt.Errorf("scale %v must not be negative", m.Scale)
	}
	return nil
}
