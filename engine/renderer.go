// Package engine drives batch rendering: it fans a list of render jobs
// out to a worker pool over one shared model and writes each output
// raster through an exporter.
//
// The model facade is immutable, so workers render concurrently without
// locking. Job failures are collected per job and never abort the
// batch; the Result says which jobs failed and why.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyades-vt/prism/exporters"
	"github.com/hyades-vt/prism/internal/types"
	"github.com/hyades-vt/prism/model"
)

// Options configures a Renderer.
type Options struct {
	// Workers caps how many renders run at once. Defaults to GOMAXPROCS
	// and is further capped by the job count.
	Workers int
	// OutputDir receives the rendered files. Created if absent.
	OutputDir string
	// Format names the exporter used for jobs without an explicit
	// output file name.
	Format string
	// Logger receives per-job progress. Defaults to a silent logger.
	Logger *logrus.Logger
}

// DefaultOptions returns the options used when New receives nil.
func DefaultOptions() *Options {
	return &Options{
		Workers:   runtime.GOMAXPROCS(0),
		OutputDir: ".",
		Format:    "png",
	}
}

// Renderer renders batches of jobs against one model.
type Renderer struct {
	model    *model.Model
	opts     Options
	exporter exporters.Exporter
	logger   *logrus.Logger
}

// New builds a Renderer for m. Nil or zero option fields fall back to
// DefaultOptions; the output directory is created eagerly so a doomed
// batch fails before any rendering starts.
func New(m *model.Model, opts *Options) (*Renderer, error) {
	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}
	resolved := *opts
	if resolved.Workers <= 0 {
		resolved.Workers = defaults.Workers
	}
	if resolved.OutputDir == "" {
		resolved.OutputDir = defaults.OutputDir
	}
	if resolved.Format == "" {
		resolved.Format = defaults.Format
	}

	exporter, err := exporters.GetExporter(resolved.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to get exporter: %v", err)
	}

	if err := os.MkdirAll(resolved.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %v", err)
	}

	logger := resolved.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Renderer{
		model:    m,
		opts:     resolved,
		exporter: exporter,
		logger:   logger,
	}, nil
}

// Result aggregates one batch run. Jobs holds a result per input job,
// in input order.
type Result struct {
	Jobs     []types.RenderResult
	Rendered int
	Failed   int
	Duration time.Duration
}

// Err returns nil when every job rendered, otherwise a summary error.
// Per-job causes stay on the individual results.
func (r *Result) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d renders failed", r.Failed, len(r.Jobs))
}

// RenderAll renders every job and returns the collected results. The
// context is checked between jobs: cancelling stops unstarted work,
// and those jobs report the context error; a render already underway
// runs to completion.
func (r *Renderer) RenderAll(ctx context.Context, jobs []types.RenderJob) *Result {
	start := time.Now()
	results := make([]types.RenderResult, len(jobs))

	workers := r.opts.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				if err := ctx.Err(); err != nil {
					results[idx] = types.RenderResult{Job: jobs[idx], Err: err}
					continue
				}
				results[idx] = r.renderOne(jobs[idx])
			}
		}()
	}
	for idx := range jobs {
		indexes <- idx
	}
	close(indexes)
	wg.Wait()

	result := &Result{Jobs: results, Duration: time.Since(start)}
	for _, jr := range results {
		if jr.Failed() {
			result.Failed++
		} else {
			result.Rendered++
		}
	}

	r.logger.WithFields(logrus.Fields{
		"jobs":     len(jobs),
		"rendered": result.Rendered,
		"failed":   result.Failed,
		"duration": result.Duration.String(),
	}).Info("batch complete")
	return result
}

// renderOne runs a single job: render, pick the exporter, write the
// output file.
func (r *Renderer) renderOne(job types.RenderJob) types.RenderResult {
	start := time.Now()
	log := r.logger.WithFields(logrus.Fields{
		"pose":   job.Name,
		"layers": len(job.Layers),
	})

	fail := func(err error) types.RenderResult {
		duration := time.Since(start)
		log.WithField("duration", duration.String()).WithError(err).Error("render failed")
		return types.RenderResult{Job: job, Duration: duration, Err: err}
	}

	if err := job.Validate(); err != nil {
		return fail(err)
	}

	img, err := r.model.Render(job.Layers)
	if err != nil {
		return fail(err)
	}

	// An explicit output name carries its own format extension.
	exporter := r.exporter
	if job.Output != "" {
		exporter, err = exporters.ForPath(job.Output)
		if err != nil {
			return fail(err)
		}
	}

	outPath := filepath.Join(r.opts.OutputDir, job.OutputName(r.opts.Format))
	f, err := os.Create(outPath)
	if err != nil {
		return fail(err)
	}
	if err := exporter.Export(img, f); err != nil {
		f.Close()
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}

	duration := time.Since(start)
	log.WithFields(logrus.Fields{
		"output":   outPath,
		"duration": duration.String(),
	}).Info("render complete")
	return types.RenderResult{Job: job, Output: outPath, Duration: duration}
}
