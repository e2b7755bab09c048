package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/hyades-vt/prism/archive"
)

// Pull downloads a model archive from ref. The artifact's model layer
// is located by media type, falling back to the sole layer of
// single-layer images, so archives pushed by other tooling still
// resolve. The layer bytes are verified against their declared digest
// and capped at archive.MaxArchiveSize before they are returned.
func (c *Client) Pull(ctx context.Context, ref string) ([]byte, *PullInfo, error) {
	nameRef, err := c.parseReference("pull", ref)
	if err != nil {
		return nil, nil, err
	}
	registryHost := nameRef.Context().RegistryStr()

	img, err := remote.Image(nameRef, c.remoteOptions(ctx)...)
	if err != nil {
		return nil, nil, &RegistryError{
			Type:      ErrorTypeNetwork,
			Operation: "pull",
			Registry:  registryHost,
			Message:   fmt.Sprintf("failed to fetch %q: %v", ref, err),
			Cause:     err,
		}
	}

	layer, err := selectModelLayer(img)
	if err != nil {
		return nil, nil, &RegistryError{
			Type:      ErrorTypeManifest,
			Operation: "pull",
			Registry:  registryHost,
			Message:   err.Error(),
			Cause:     err,
		}
	}

	size, err := layer.Size()
	if err != nil {
		return nil, nil, pullError(registryHost, "failed to read layer size", err)
	}
	if size > archive.MaxArchiveSize {
		return nil, nil, &RegistryError{
			Type:      ErrorTypeValidation,
			Operation: "pull",
			Registry:  registryHost,
			Message:   fmt.Sprintf("model layer is %d bytes, above the %d byte limit", size, archive.MaxArchiveSize),
		}
	}

	rc, err := layer.Compressed()
	if err != nil {
		return nil, nil, pullError(registryHost, "failed to open layer", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, archive.MaxArchiveSize+1))
	if err != nil {
		return nil, nil, pullError(registryHost, "failed to read layer", err)
	}
	if int64(len(data)) > archive.MaxArchiveSize {
		return nil, nil, &RegistryError{
			Type:      ErrorTypeValidation,
			Operation: "pull",
			Registry:  registryHost,
			Message:   fmt.Sprintf("model layer exceeds the %d byte limit", archive.MaxArchiveSize),
		}
	}

	declared, err := layer.Digest()
	if err != nil {
		return nil, nil, pullError(registryHost, "failed to read layer digest", err)
	}
	sum := sha256.Sum256(data)
	if actual := hex.EncodeToString(sum[:]); actual != declared.Hex {
		return nil, nil, &RegistryError{
			Type:      ErrorTypeValidation,
			Operation: "pull",
			Registry:  registryHost,
			Message:   fmt.Sprintf("layer digest mismatch: manifest declares %s, content is sha256:%s", declared, actual),
		}
	}

	manifestDigest, err := img.Digest()
	if err != nil {
		return nil, nil, pullError(registryHost, "failed to read manifest digest", err)
	}
	mediaType, err := layer.MediaType()
	if err != nil {
		return nil, nil, pullError(registryHost, "failed to read layer media type", err)
	}

	info := &PullInfo{
		Digest:    manifestDigest.String(),
		MediaType: string(mediaType),
		Size:      int64(len(data)),
	}
	return data, info, nil
}

// selectModelLayer picks the layer holding the archive: the first
// layer with the model media type, or the only layer when none is
// typed.
func selectModelLayer(img v1.Image) (v1.Layer, error) {
	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %v", err)
	}

	for _, layer := range layers {
		mt, err := layer.MediaType()
		if err != nil {
			return nil, fmt.Errorf("failed to read layer media type: %v", err)
		}
		if mt == MediaTypeModelLayer {
			return layer, nil
		}
	}
	if len(layers) == 1 {
		return layers[0], nil
	}
	return nil, fmt.Errorf("no layer with media type %s among %d layers", MediaTypeModelLayer, len(layers))
}

func pullError(registryHost, message string, cause error) *RegistryError {
	return &RegistryError{
		Type:      ErrorTypeUnknown,
		Operation: "pull",
		Registry:  registryHost,
		Message:   fmt.Sprintf("%s: %v", message, cause),
		Cause:     cause,
	}
}
