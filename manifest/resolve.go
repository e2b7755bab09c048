package manifest

// Resolve expands a requested ordered list of layer names into the full
// render sequence. Each requested name is followed by its declared
// bindings in declared order. Expansion is exactly one level deep:
// bindings of bindings are not walked, and a name reachable through two
// bindings appears - and composites - twice.
//
// Requested names must exist in the manifest; the first miss aborts
// with *UnknownLayerError and no partial result. Binding names are
// appended verbatim without lookup, so a binding naming a dropped layer
// surfaces later, when the render walks the sequence.
func (m *Manifest) Resolve(requested []string) ([]string, error) {
	resolved := make([]string, 0, len(requested))
	for _, name := range requested {
		layer, ok := m.layers.Get(name)
		if !ok {
			return nil, &UnknownLayerError{Name: name}
		}
		resolved = append(resolved, name)
		resolved = append(resolved, layer.Bindings...)
	}
	return resolved, nil
}
