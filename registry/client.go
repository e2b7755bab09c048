// Package registry pushes and pulls packaged model archives as OCI
// artifacts.
//
// A model travels as a single-layer image: the archive bytes become
// one layer with a model media type, and the config descriptor is
// typed so registries and tooling can tell model artifacts from
// container images. Any registry speaking the OCI distribution API can
// host them.
package registry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Client provides registry push and pull operations.
type Client struct {
	options *ClientOptions
	auth    authn.Authenticator
}

// ClientOptions configures the registry client.
type ClientOptions struct {
	// Transport for HTTP requests.
	Transport http.RoundTripper
	// UserAgent for requests.
	UserAgent string
	// Username and Password authenticate against the registry. Both
	// empty means anonymous access.
	Username string
	Password string
	// PlainHTTP talks to the registry without TLS. Localhost registries
	// get this automatically.
	PlainHTTP bool
}

// DefaultClientOptions returns sensible defaults for the registry
// client.
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		UserAgent: "prism/1.0",
	}
}

// NewClient creates a new registry client with the given options.
func NewClient(options *ClientOptions) *Client {
	if options == nil {
		options = DefaultClientOptions()
	}

	var auth authn.Authenticator = authn.Anonymous
	if options.Username != "" || options.Password != "" {
		auth = &authn.Basic{Username: options.Username, Password: options.Password}
	}

	return &Client{
		options: options,
		auth:    auth,
	}
}

// SetAuthenticator overrides the authenticator derived from the
// options.
func (c *Client) SetAuthenticator(auth authn.Authenticator) {
	c.auth = auth
}

// parseReference parses a registry reference, honoring the PlainHTTP
// option.
func (c *Client) parseReference(operation, ref string) (name.Reference, error) {
	var opts []name.Option
	if c.options.PlainHTTP {
		opts = append(opts, name.Insecure)
	}
	nameRef, err := name.ParseReference(ref, opts...)
	if err != nil {
		return nil, &RegistryError{
			Type:      ErrorTypeValidation,
			Operation: operation,
			Message:   fmt.Sprintf("invalid reference %q: %v", ref, err),
			Cause:     err,
		}
	}
	return nameRef, nil
}

// remoteOptions assembles the remote transport options for one call.
func (c *Client) remoteOptions(ctx context.Context) []remote.Option {
	opts := []remote.Option{
		remote.WithAuth(c.auth),
		remote.WithContext(ctx),
	}
	if c.options.UserAgent != "" {
		opts = append(opts, remote.WithUserAgent(c.options.UserAgent))
	}
	if c.options.Transport != nil {
		opts = append(opts, remote.WithTransport(c.options.Transport))
	}
	return opts
}
