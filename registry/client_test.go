package registry

import (
	"testing"

	"github.com/google/go-containerregistry/pkg/authn"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		options  *ClientOptions
		validate func(t *testing.T, c *Client)
	}{
		{
			name:    "nil options uses defaults",
			options: nil,
			validate: func(t *testing.T, c *Client) {
				if c.options.UserAgent != "prism/1.0" {
					t.Errorf("UserAgent = %q, want prism/1.0", c.options.UserAgent)
				}
				if c.auth != authn.Anonymous {
					t.Errorf("auth = %v, want Anonymous", c.auth)
				}
			},
		},
		{
			name:    "credentials produce basic auth",
			options: &ClientOptions{Username: "render", Password: "hunter2"},
			validate: func(t *testing.T, c *Client) {
				basic, ok := c.auth.(*authn.Basic)
				if !ok {
					t.Fatalf("auth = %T, want *authn.Basic", c.auth)
				}
				if basic.Username != "render" || basic.Password != "hunter2" {
					t.Errorf("basic auth = %s/%s, want render/hunter2", basic.Username, basic.Password)
				}
			},
		},
		{
			name:    "custom user agent kept",
			options: &ClientOptions{UserAgent: "test-agent"},
			validate: func(t *testing.T, c *Client) {
				if c.options.UserAgent != "test-agent" {
					t.Errorf("UserAgent = %q, want test-agent", c.options.UserAgent)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, NewClient(tt.options))
		})
	}
}

func TestParseReferenceRejectsGarbage(t *testing.T) {
	c := NewClient(nil)

	_, err := c.parseReference("push", "not a valid ref !!!")
	if err == nil {
		t.Fatal("parseReference succeeded on garbage")
	}
	regErr, ok := err.(*RegistryError)
	if !ok {
		t.Fatalf("error = %T, want *RegistryError", err)
	}
	if regErr.Type != ErrorTypeValidation {
		t.Errorf("error type = %s, want %s", regErr.Type, ErrorTypeValidation)
	}
}
