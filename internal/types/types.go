package types

import (
	"fmt"
	"strings"
	"time"
)

// RenderJob is one named render request: a pose name, the layer names to
// composite, and an optional output file name. Frontends produce jobs and
// the engine consumes them.
type RenderJob struct {
	Name   string   `json:"name" yaml:"name"`
	Layers []string `json:"layers" yaml:"layers"`
	Output string   `json:"output,omitempty" yaml:"output,omitempty"`
}

// OutputName returns the file name the job renders to. When the job does
// not set one, the pose name plus the exporter extension is used.
func (j RenderJob) OutputName(ext string) string {
	if j.Output != "" {
		return j.Output
	}
	return j.Name + "." + strings.TrimPrefix(ext, ".")
}

// Validate reports whether the job is usable: named, with at least one
// layer, and with an output that stays inside the output directory.
func (j RenderJob) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job has no name")
	}
	if len(j.Layers) == 0 {
		return fmt.Errorf("job %q lists no layers", j.Name)
	}
	if j.Output != "" && !IsBareFileName(j.Output) {
		return fmt.Errorf("job %q output %q must be a bare file name", j.Name, j.Output)
	}
	return nil
}

// IsBareFileName reports whether name is a plain file name with no
// directory components, suitable for joining under an output directory.
func IsBareFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// RenderResult records the outcome of one job.
type RenderResult struct {
	Job      RenderJob     `json:"job"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Failed reports whether the job produced an error.
func (r RenderResult) Failed() bool {
	return r.Err != nil
}
