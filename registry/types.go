package registry

import (
	"fmt"

	gtypes "github.com/google/go-containerregistry/pkg/v1/types"
)

// Media types identifying a packaged model in an OCI registry. The
// archive travels as a single image layer; the config descriptor marks
// the artifact kind.
const (
	MediaTypeModelLayer  gtypes.MediaType = "application/vnd.prism.model.layer.v1+zip"
	MediaTypeModelConfig gtypes.MediaType = "application/vnd.prism.model.config.v1+json"
)

// ErrorType classifies registry errors.
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeManifest   ErrorType = "manifest"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// RegistryError represents an error from registry operations.
type RegistryError struct {
	Type      ErrorType `json:"type"`
	Operation string    `json:"operation"`
	Registry  string    `json:"registry,omitempty"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	if e.Registry != "" {
		return fmt.Sprintf("registry error [%s] %s on %s: %s", e.Type, e.Operation, e.Registry, e.Message)
	}
	return fmt.Sprintf("registry error [%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying error.
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// PullInfo describes the artifact a Pull returned.
type PullInfo struct {
	// Digest is the image manifest digest, usable as a pinned reference.
	Digest string `json:"digest"`
	// MediaType is the media type of the layer the archive came from.
	MediaType string `json:"mediaType"`
	// Size is the archive size in bytes.
	Size int64 `json:"size"`
}
