package registry

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/static"
	gtypes "github.com/google/go-containerregistry/pkg/v1/types"
)

// Push uploads a model archive to ref as a single-layer OCI artifact
// and returns the manifest digest. The archive bytes are stored
// verbatim; no transformation or compression is applied on top of the
// archive's own.
func (c *Client) Push(ctx context.Context, ref string, archive []byte) (string, error) {
	nameRef, err := c.parseReference("push", ref)
	if err != nil {
		return "", err
	}
	registryHost := nameRef.Context().RegistryStr()

	if len(archive) == 0 {
		return "", &RegistryError{
			Type:      ErrorTypeValidation,
			Operation: "push",
			Registry:  registryHost,
			Message:   "refusing to push an empty archive",
		}
	}

	layer := static.NewLayer(archive, MediaTypeModelLayer)
	img := mutate.MediaType(empty.Image, gtypes.OCIManifestSchema1)
	img = mutate.ConfigMediaType(img, MediaTypeModelConfig)
	img, err = mutate.AppendLayers(img, layer)
	if err != nil {
		return "", &RegistryError{
			Type:      ErrorTypeManifest,
			Operation: "push",
			Registry:  registryHost,
			Message:   fmt.Sprintf("failed to assemble artifact: %v", err),
			Cause:     err,
		}
	}

	if err := remote.Write(nameRef, img, c.remoteOptions(ctx)...); err != nil {
		return "", &RegistryError{
			Type:      ErrorTypeNetwork,
			Operation: "push",
			Registry:  registryHost,
			Message:   fmt.Sprintf("failed to push artifact: %v", err),
			Cause:     err,
		}
	}

	digest, err := img.Digest()
	if err != nil {
		return "", &RegistryError{
			Type:      ErrorTypeManifest,
			Operation: "push",
			Registry:  registryHost,
			Message:   fmt.Sprintf("failed to compute digest: %v", err),
			Cause:     err,
		}
	}
	return digest.String(), nil
}
