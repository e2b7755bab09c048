package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hyades-vt/prism/archive"
	"github.com/hyades-vt/prism/compose"
	"github.com/hyades-vt/prism/engine"
	"github.com/hyades-vt/prism/exporters"
	"github.com/hyades-vt/prism/frontends"
	_ "github.com/hyades-vt/prism/frontends/posefile"
	"github.com/hyades-vt/prism/internal/config"
	"github.com/hyades-vt/prism/internal/logging"
	"github.com/hyades-vt/prism/manifest"
	"github.com/hyades-vt/prism/model"
	"github.com/hyades-vt/prism/registry"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	cfg    *config.Config
	logger *logrus.Logger
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "prism",
		Short: "Prism - a layer-model render engine",
		Long: `Prism renders composited character portraits from packaged layer
models. A model is a single archive holding image layers and a manifest
describing how they stack; prism can inspect models, render layer
selections, run batch pose sheets, and move models through OCI
registries.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.FromEnv()
			if err != nil {
				return fmt.Errorf("failed to load environment config: %v", err)
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			if logFormat == "" {
				logFormat = cfg.LogFormat
			}
			logger = logging.New(logLevel, logFormat, os.Stderr)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (default from PRISM_LOG_LEVEL, then info)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format, text or json (default from PRISM_LOG_FORMAT)")

	cmd.AddCommand(newInfoCommand())
	cmd.AddCommand(newLayersCommand())
	cmd.AddCommand(newRenderCommand())
	cmd.AddCommand(newComposeCommand())
	cmd.AddCommand(newBatchCommand())
	cmd.AddCommand(newPackCommand())
	cmd.AddCommand(newUnpackCommand())
	cmd.AddCommand(newPushCommand())
	cmd.AddCommand(newPullCommand())

	return cmd
}

// resolveModelPath picks the model archive path from an optional
// positional argument, falling back to PRISM_MODEL.
func resolveModelPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Model != "" {
		return cfg.Model, nil
	}
	return "", fmt.Errorf("no model archive given: pass a path or set PRISM_MODEL")
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info [model]",
		Short: "Summarize a model archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveModelPath(args)
			if err != nil {
				return err
			}
			m, err := model.Open(path)
			if err != nil {
				return fmt.Errorf("failed to load model: %v", err)
			}

			man := m.Manifest()
			var bases, tops, bindings int
			for _, name := range man.Names() {
				layer, _ := man.Layer(name)
				if layer.IsBase() {
					bases++
				} else {
					tops++
				}
				bindings += len(layer.Bindings)
			}

			fmt.Printf("Model: %s\n", path)
			fmt.Printf("  archive size:     %d bytes\n", len(m.Bytes()))
			fmt.Printf("  layers:           %d (%d base, %d top)\n", man.Len(), bases, tops)
			fmt.Printf("  described layers: %d\n", len(m.LayerDescriptions()))
			fmt.Printf("  bindings:         %d\n", bindings)
			return nil
		},
	}
}

func newLayersCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "layers [model]",
		Short: "List a model's layers and their selection vocabulary",
		Long: `List every layer of a model in manifest order. With --json, emit the
described layers as JSON keyed by their stable selection indexes, the
form handed to an external selector such as an LLM prompt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveModelPath(args)
			if err != nil {
				return err
			}
			m, err := model.Open(path)
			if err != nil {
				return fmt.Errorf("failed to load model: %v", err)
			}

			if asJSON {
				out, err := json.MarshalIndent(m.LayerDescriptions(), "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode descriptions: %v", err)
				}
				fmt.Println(string(out))
				return nil
			}

			man := m.Manifest()
			for i, name := range man.Names() {
				layer, _ := man.Layer(name)
				kind := "top "
				if layer.IsBase() {
					kind = "base"
				}
				fmt.Printf("%3d  %s  %-28s %s\n", i, kind, name, layer.Description)
				for _, bound := range layer.Bindings {
					fmt.Printf("            +- %s\n", bound)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit described layers as JSON")
	return cmd
}

func newRenderCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "render <model> [layer...]",
		Short: "Render a layer selection to an image file",
		Long: `Render composites the named layers, in order, onto the base layer they
include. Layer bindings expand automatically, so requesting a layer
also renders the layers bound to it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to load model: %v", err)
			}

			exporter, err := exporters.ForPath(output)
			if err != nil {
				return err
			}

			layers := args[1:]
			start := time.Now()
			img, err := m.Render(layers)
			if err != nil {
				return fmt.Errorf("render failed: %v", err)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output: %v", err)
			}
			if err := exporter.Export(img, f); err != nil {
				f.Close()
				return fmt.Errorf("failed to export image: %v", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write output: %v", err)
			}

			logger.WithFields(logrus.Fields{
				"layers":   len(layers),
				"output":   output,
				"duration": time.Since(start).String(),
			}).Info("render complete")
			fmt.Printf("Rendered %d layers to %s\n", len(layers), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "render.png", "Output image path; the extension picks the format")
	return cmd
}

func newComposeCommand() *cobra.Command {
	var (
		basePath string
		topPath  string
		metaPath string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Composite one top image onto a base image",
		Long: `Compose runs the compositing primitive directly on two image files and
a placement metadata JSON, without a model archive. Useful for
previewing a layer's placement before packing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseImg, err := loadImage(basePath)
			if err != nil {
				return err
			}
			topImg, err := loadImage(topPath)
			if err != nil {
				return err
			}

			metaBytes, err := os.ReadFile(metaPath)
			if err != nil {
				return fmt.Errorf("failed to read metadata: %v", err)
			}
			meta, err := manifest.DecodeTopLayerMetadata(metaBytes)
			if err != nil {
				return fmt.Errorf("invalid metadata: %v", err)
			}

			exporter, err := exporters.ForPath(output)
			if err != nil {
				return err
			}

			result := compose.Compose(baseImg, topImg, meta)

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output: %v", err)
			}
			if err := exporter.Export(result, f); err != nil {
				f.Close()
				return fmt.Errorf("failed to export image: %v", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write output: %v", err)
			}

			fmt.Printf("Composed %s onto %s at (%d,%d), wrote %s\n", topPath, basePath, meta.X, meta.Y, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&basePath, "base", "b", "", "Base image file")
	cmd.Flags().StringVarP(&topPath, "top", "t", "", "Top image file")
	cmd.Flags().StringVarP(&metaPath, "metadata", "m", "", "Placement metadata JSON file")
	cmd.Flags().StringVarP(&output, "output", "o", "composed.png", "Output image path")
	cmd.MarkFlagRequired("base")
	cmd.MarkFlagRequired("top")
	cmd.MarkFlagRequired("metadata")
	return cmd
}

func newBatchCommand() *cobra.Command {
	var (
		posesPath    string
		outputDir    string
		format       string
		frontendName string
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "batch <model>",
		Short: "Render every pose in a pose sheet",
		Long: `Batch renders a whole pose sheet against one model, fanning the poses
out across a worker pool. Failed poses are reported individually and do
not stop the rest of the batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to load model: %v", err)
			}

			frontend, err := frontends.GetFrontend(frontendName)
			if err != nil {
				return fmt.Errorf("failed to get frontend: %v", err)
			}

			f, err := os.Open(posesPath)
			if err != nil {
				return fmt.Errorf("failed to open pose sheet: %v", err)
			}
			jobs, err := frontend.Parse(f)
			f.Close()
			if err != nil {
				return err
			}

			if workers == 0 {
				workers = cfg.Workers
			}
			renderer, err := engine.New(m, &engine.Options{
				Workers:   workers,
				OutputDir: outputDir,
				Format:    format,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			result := renderer.RenderAll(cmd.Context(), jobs)
			for _, jr := range result.Jobs {
				if jr.Failed() {
					fmt.Printf("  ✗ %s: %v\n", jr.Job.Name, jr.Err)
					continue
				}
				fmt.Printf("  ✓ %s -> %s (%s)\n", jr.Job.Name, jr.Output, jr.Duration.Round(time.Millisecond))
			}
			fmt.Printf("Rendered %d/%d poses in %s\n", result.Rendered, len(result.Jobs), result.Duration.Round(time.Millisecond))
			return result.Err()
		},
	}

	cmd.Flags().StringVarP(&posesPath, "poses", "f", "poses.yaml", "Pose sheet file")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "renders", "Directory for rendered images")
	cmd.Flags().StringVar(&format, "format", "png", "Output format for poses without an explicit output name")
	cmd.Flags().StringVar(&frontendName, "frontend", "posefile", "Pose sheet format")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent renders (default PRISM_WORKERS, then one per CPU)")
	return cmd
}

func newPackCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Pack a model directory into an archive",
		Long: `Pack bundles a directory holding manifest.json, layers/ and metadata/
into a single model archive, then verifies the result loads.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := archive.PackDir(args[0])
			if err != nil {
				return fmt.Errorf("failed to pack %s: %v", args[0], err)
			}

			m, err := model.FromBytes(data)
			if err != nil {
				return fmt.Errorf("packed archive does not load as a model: %v", err)
			}

			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write archive: %v", err)
			}
			fmt.Printf("Packed %d layers into %s (%d bytes)\n", m.Manifest().Len(), output, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "model.zip", "Archive path to write")
	return cmd
}

func newUnpackCommand() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "unpack <model>",
		Short: "Extract a model archive into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read archive: %v", err)
			}
			if err := archive.Unpack(data, outputDir); err != nil {
				return fmt.Errorf("failed to unpack: %v", err)
			}
			fmt.Printf("Unpacked %s into %s\n", args[0], outputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory to extract into")
	return cmd
}

func newPushCommand() *cobra.Command {
	var plainHTTP bool

	cmd := &cobra.Command{
		Use:   "push <model> <ref>",
		Short: "Push a model archive to an OCI registry",
		Long: `Push uploads a model archive to a registry as a single-layer OCI
artifact. Credentials come from PRISM_REGISTRY_USER and
PRISM_REGISTRY_PASSWORD; anonymous access is used when unset.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read archive: %v", err)
			}
			if _, err := model.FromBytes(data); err != nil {
				return fmt.Errorf("refusing to push an invalid model archive: %v", err)
			}

			client := registry.NewClient(&registry.ClientOptions{
				Username:  cfg.RegistryUser,
				Password:  cfg.RegistryPassword,
				PlainHTTP: plainHTTP,
			})
			digest, err := client.Push(cmd.Context(), args[1], data)
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"ref":    args[1],
				"digest": digest,
				"size":   len(data),
			}).Info("push complete")
			fmt.Printf("Pushed %s\n  digest: %s\n", args[1], digest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&plainHTTP, "plain-http", false, "Use HTTP instead of HTTPS for the registry")
	return cmd
}

func newPullCommand() *cobra.Command {
	var (
		output    string
		plainHTTP bool
	)

	cmd := &cobra.Command{
		Use:   "pull <ref>",
		Short: "Pull a model archive from an OCI registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := registry.NewClient(&registry.ClientOptions{
				Username:  cfg.RegistryUser,
				Password:  cfg.RegistryPassword,
				PlainHTTP: plainHTTP,
			})
			data, info, err := client.Pull(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if _, err := model.FromBytes(data); err != nil {
				return fmt.Errorf("pulled artifact is not a valid model archive: %v", err)
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write archive: %v", err)
			}

			logger.WithFields(logrus.Fields{
				"ref":    args[0],
				"digest": info.Digest,
				"size":   info.Size,
			}).Info("pull complete")
			fmt.Printf("Pulled %s (%d bytes)\n  digest: %s\n  wrote:  %s\n", args[0], info.Size, info.Digest, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "model.zip", "Archive path to write")
	cmd.Flags().BoolVar(&plainHTTP, "plain-http", false, "Use HTTP instead of HTTPS for the registry")
	return cmd
}

// loadImage decodes one image file.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %v", path, err)
	}
	return img, nil
}
