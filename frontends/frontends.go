// Package frontends turns batch render definitions into render jobs.
package frontends

import (
	"fmt"
	"io"

	"github.com/hyades-vt/prism/internal/types"
)

// Frontend parses one batch definition format into render jobs.
type Frontend interface {
	Parse(r io.Reader) ([]types.RenderJob, error)
}

var frontends = make(map[string]Frontend)

// RegisterFrontend makes a frontend available under a format name.
// Implementations register themselves from init.
func RegisterFrontend(name string, frontend Frontend) {
	frontends[name] = frontend
}

// GetFrontend returns the frontend registered under name.
func GetFrontend(name string) (Frontend, error) {
	frontend, exists := frontends[name]
	if !exists {
		return nil, fmt.Errorf("frontend %s not found", name)
	}
	return frontend, nil
}

// ListFrontends returns the registered frontend names.
func ListFrontends() []string {
	names := make([]string, 0, len(frontends))
	for name := range frontends {
		names = append(names, name)
	}
	return names
}
