package archive

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PackDir packs a model project directory into archive bytes. The
// directory must contain a manifest.json file; files under layers/ and
// metadata/ become the corresponding archive entries. Other files are
// ignored.
func PackDir(dir string) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	manifest, err := os.ReadFile(filepath.Join(dir, EntryManifest))
	if err != nil {
		return nil, NewArchiveError("pack", EntryManifest, err)
	}
	if err := w.AddManifest(manifest); err != nil {
		return nil, err
	}

	for _, prefix := range []string{PrefixLayers, PrefixMetadata} {
		if err := packSubdir(w, dir, prefix); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func packSubdir(w *Writer, dir, prefix string) error {
	sub := filepath.Join(dir, filepath.FromSlash(strings.TrimSuffix(prefix, "/")))
	entries, err := os.ReadDir(sub)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return NewArchiveError("pack", prefix, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(sub, entry.Name()))
		if err != nil {
			return NewArchiveError("pack", prefix+entry.Name(), err)
		}
		if err := w.AddEntry(prefix+entry.Name(), data); err != nil {
			return err
		}
	}
	return nil
}

// Unpack extracts archive bytes into dir, creating it if needed. Entry
// names that would escape dir are rejected.
func Unpack(data []byte, dir string) error {
	v, err := OpenView(data)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return NewArchiveError("unpack", "", err)
	}

	base, err := filepath.Abs(dir)
	if err != nil {
		return NewArchiveError("unpack", "", err)
	}

	for _, name := range v.Names() {
		target := filepath.Join(base, filepath.FromSlash(name))
		if !strings.HasPrefix(target, base+string(os.PathSeparator)) {
			return NewArchiveError("unpack", name, fmt.Errorf("entry escapes target directory"))
		}

		content, err := v.ReadAll(name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return NewArchiveError("unpack", name, err)
		}
		if err := os.WriteFile(target, content, 0644); err != nil {
			return NewArchiveError("unpack", name, err)
		}
	}
	return nil
}
