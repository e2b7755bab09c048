// Package posefile implements the YAML pose sheet frontend.
//
// A pose sheet names the renders of a batch run:
//
//	poses:
//	  - name: happy
//	    layers: [base.png, smile.png]
//	  - name: shy
//	    layers: [base.png, blush.png]
//	    output: shy@2x.png
//
// Layer lists are passed to the render untouched, so bindings expand
// exactly as they would for a single render call.
package posefile

import (
	"fmt"
	"io"

	yaml "gopkg.in/yaml.v2"

	"github.com/hyades-vt/prism/frontends"
	"github.com/hyades-vt/prism/internal/types"
)

// PoseFrontend parses YAML pose sheets.
type PoseFrontend struct{}

func init() {
	frontends.RegisterFrontend("posefile", &PoseFrontend{})
}

// poseSheet mirrors the YAML document layout.
type poseSheet struct {
	Poses []types.RenderJob `yaml:"poses"`
}

// Parse reads a pose sheet and returns its jobs in declaration order.
// Unknown YAML keys, unnamed or layer-less poses, duplicate pose names
// and duplicate output targets are all rejected.
func (f *PoseFrontend) Parse(r io.Reader) ([]types.RenderJob, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pose sheet: %v", err)
	}

	var sheet poseSheet
	if err := yaml.UnmarshalStrict(data, &sheet); err != nil {
		return nil, fmt.Errorf("parse pose sheet: %v", err)
	}
	if len(sheet.Poses) == 0 {
		return nil, fmt.Errorf("pose sheet declares no poses")
	}

	names := make(map[string]struct{}, len(sheet.Poses))
	outputs := make(map[string]struct{}, len(sheet.Poses))
	for i, job := range sheet.Poses {
		if err := job.Validate(); err != nil {
			return nil, fmt.Errorf("pose %d: %v", i+1, err)
		}
		if _, dup := names[job.Name]; dup {
			return nil, fmt.Errorf("pose name %q declared twice", job.Name)
		}
		names[job.Name] = struct{}{}
		if job.Output != "" {
			if _, dup := outputs[job.Output]; dup {
				return nil, fmt.Errorf("output %q declared by two poses", job.Output)
			}
			outputs[job.Output] = struct{}{}
		}
	}
	return sheet.Poses, nil
}
