// Package manifest parses and validates the declarative index of a
// packaged layer model.
//
// The index lives in the archive's manifest.json entry as a single
// "layers" object mapping layer names to records. A record is one of
// two shapes, told apart structurally: a base-layer record carries a
// "type" discriminator and a two-integer "offset", a top-layer record
// references a "metadata" entry holding its placement. Declaration
// order of the layers object is preserved end to end; it is the default
// z-order of a render and the index space of the layer descriptions.
//
// Records whose image entry (or, for top layers, metadata entry) is
// missing from the archive are dropped silently so that partially
// populated archives still render whatever is present. Defects in the
// index itself - malformed JSON, records matching neither shape,
// out-of-range metadata - are fatal whether or not the record's image
// survives in the archive.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hyades-vt/prism/archive"
)

// Manifest is the ordered mapping from layer name to parsed record.
// It is immutable after Parse and safe for concurrent use.
type Manifest struct {
	layers *orderedmap.OrderedMap[string, *Layer]
}

// Parse reads the manifest index from the archive view and resolves it
// against the view's entries. A missing manifest.json is ErrNoManifest;
// structural defects are *ParseError; records whose image or metadata
// entry is absent are dropped without error.
func Parse(view *archive.View) (*Manifest, error) {
	data, err := view.ReadAll(archive.EntryManifest)
	if err != nil {
		if errors.Is(err, archive.ErrEntryNotFound) {
			return nil, ErrNoManifest
		}
		return nil, err
	}

	entries, err := decodeIndex(data)
	if err != nil {
		return nil, err
	}

	m := &Manifest{layers: orderedmap.New[string, *Layer]()}
	for _, entry := range entries {
		if !view.Has(archive.PrefixLayers + entry.name) {
			// Image stripped from the archive; drop the record.
			continue
		}

		layer, keep, err := buildLayer(view, entry)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}
		m.layers.Set(entry.name, layer)
	}
	return m, nil
}

// buildLayer turns a classified index record into a Layer. keep is
// false when the record must be dropped because its metadata entry is
// absent.
func buildLayer(view *archive.View, entry indexEntry) (*Layer, bool, error) {
	rec := entry.record
	if entry.kind == KindBaseLayer {
		return &Layer{
			Kind:        KindBaseLayer,
			Offset:      [2]int(*rec.Offset),
			Description: rec.Description,
			Bindings:    rec.Bindings,
		}, true, nil
	}

	metaEntry := archive.PrefixMetadata + *rec.Metadata
	data, err := view.ReadAll(metaEntry)
	if err != nil {
		if errors.Is(err, archive.ErrEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	meta, err := DecodeTopLayerMetadata(data)
	if err != nil {
		return nil, false, &ParseError{Entry: metaEntry, Message: "invalid top layer metadata", Cause: err}
	}
	return &Layer{
		Kind:        KindTopLayer,
		Metadata:    meta,
		Description: rec.Description,
		Bindings:    rec.Bindings,
	}, true, nil
}

// Len returns the number of retained layers.
func (m *Manifest) Len() int {
	return m.layers.Len()
}

// Layer returns the record for name. The returned Layer is shared;
// callers must not modify it.
func (m *Manifest) Layer(name string) (*Layer, bool) {
	return m.layers.Get(name)
}

// Names returns all retained layer names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, m.layers.Len())
	for pair := m.layers.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Descriptions returns the layer selection vocabulary: one entry per
// described layer, indexed by the layer's position in declaration
// order. Layers without a description keep their position (the index
// sequence may have gaps) but are omitted from the result.
func (m *Manifest) Descriptions() []LayerDescription {
	descs := make([]LayerDescription, 0, m.layers.Len())
	idx := 0
	for pair := m.layers.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Description != "" {
			descs = append(descs, LayerDescription{
				Index:       idx,
				Name:        pair.Key,
				Description: pair.Value.Description,
			})
		}
		idx++
	}
	return descs
}

// indexEntry preserves the position of one record in the manifest's
// layers object, together with the shape it matched.
type indexEntry struct {
	name   string
	kind   LayerKind
	record layerRecord
}

// layerRecord is the superset of both record shapes as they appear on
// the wire. Which shape applies is decided structurally: a metadata
// key, present with any value, makes a top layer; a type discriminator
// plus offset makes a base layer.
type layerRecord struct {
	Type        string       `json:"type"`
	Offset      *offsetField `json:"offset"`
	Metadata    *string      `json:"metadata"`
	Description string       `json:"description"`
	Bindings    []string     `json:"bindings"`
}

// classifyRecord decides which shape a record matched. Matching neither
// is a defect of the index itself, fatal regardless of which archive
// entries exist.
func classifyRecord(name string, rec layerRecord) (LayerKind, error) {
	switch {
	case rec.Metadata != nil:
		return KindTopLayer, nil
	case rec.Type == string(KindBaseLayer) && rec.Offset != nil:
		return KindBaseLayer, nil
	default:
		return "", &ParseError{
			Entry:   archive.EntryManifest,
			Message: fmt.Sprintf("layer %q matches neither the base nor the top record shape", name),
		}
	}
}

// offsetField insists on exactly two integers. Decoding straight into a
// fixed-size array would silently drop surplus elements.
type offsetField [2]int

func (o *offsetField) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("offset has %d elements, want 2", len(raw))
	}
	o[0], o[1] = raw[0], raw[1]
	return nil
}

// decodeIndex walks the manifest JSON token by token so the declaration
// order of the layers object survives decoding; unmarshalling into a Go
// map would shuffle it.
func decodeIndex(data []byte) ([]indexEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, indexError("manifest is not a JSON object", err)
	}

	var entries []indexEntry
	sawLayers := false
	for dec.More() {
		key, err := decodeKey(dec)
		if err != nil {
			return nil, indexError("malformed manifest object", err)
		}

		if key != "layers" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, indexError(fmt.Sprintf("malformed value for %q", key), err)
			}
			continue
		}

		sawLayers = true
		if err := expectDelim(dec, '{'); err != nil {
			return nil, indexError("layers is not a JSON object", err)
		}
		for dec.More() {
			name, err := decodeKey(dec)
			if err != nil {
				return nil, indexError("malformed layers object", err)
			}
			var rec layerRecord
			if err := dec.Decode(&rec); err != nil {
				return nil, indexError(fmt.Sprintf("malformed record for layer %q", name), err)
			}
			kind, err := classifyRecord(name, rec)
			if err != nil {
				return nil, err
			}
			entries = append(entries, indexEntry{name: name, kind: kind, record: rec})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, indexError("unterminated layers object", err)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, indexError("unterminated manifest object", err)
	}
	if !sawLayers {
		return nil, indexError("missing layers object", nil)
	}
	return entries, nil
}

func decodeKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("unexpected end of input")
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want.String(), tok)
	}
	return nil
}

func indexError(message string, cause error) *ParseError {
	return &ParseError{Entry: archive.EntryManifest, Message: message, Cause: cause}
}
