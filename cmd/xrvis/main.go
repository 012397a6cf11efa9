// Command xrvis drives the asset pipeline headlessly: it imports glTF and dataset files, synthesizes
// and bakes their meshes and renders a bounded number of frames into the frame recorder.
package main

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/config"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.L().Error("xrvis: command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "xrvis",
		Usage: "import, synthesize and bake XR visualization assets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "TOML or YAML configuration `FILE`"},
			&cli.StringFlag{Name: "log-level", Usage: "override log.level"},
			&cli.Uint64Flag{Name: "budget", Usage: "override device.budget_bytes"},
			&cli.BoolFlag{Name: "wgpu", Usage: "use the wgpu device backend"},
			&cli.StringFlag{Name: "prefix", Usage: "prefix added to every node id"},
			&cli.StringSliceFlag{Name: "columns", Usage: "dataset value columns to chart"},
			&cli.StringFlag{Name: "chart", Value: "bar", Usage: "dataset chart kind: bar, pie or line"},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "parse files and print the scene events they produce",
				ArgsUsage: "FILE...",
				Action:    importFiles,
			},
			{
				Name:      "run",
				Usage:     "run the engine headless over the imported files",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "frames", Value: 240, Usage: "maximum frames to render"},
					&cli.DurationFlag{Name: "timeout", Value: defaultTimeout, Usage: "give up waiting for nodes to settle"},
				},
				Action: runFiles,
			},
			{
				Name:      "bake",
				Usage:     "synthesize the imported files and bake a lightmap for every node",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "resolution", Usage: "override bake.resolution"},
					&cli.IntFlag{Name: "samples", Usage: "override bake.sample_count"},
					&cli.BoolFlag{Name: "no-denoise", Usage: "disable the denoise filter"},
					&cli.DurationFlag{Name: "timeout", Value: defaultTimeout, Usage: "give up waiting for bakes"},
				},
				Action: bakeFiles,
			},
		},
	}
}

// setup loads the configuration, applies the global flag overrides and installs the logger.
func setup(ctx *cli.Context) error {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if ctx.IsSet("log-level") {
		cfg.Log.Level = ctx.String("log-level")
	}
	if ctx.IsSet("budget") {
		cfg.Device.BudgetBytes = ctx.Uint64("budget")
	}
	if ctx.Bool("wgpu") {
		cfg.Device.Backend = config.BackendWGPU
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	logger.SetLogger(l)
	ctx.App.Metadata = map[string]any{configKey: cfg}
	return nil
}

const configKey = "config"

func configFrom(ctx *cli.Context) config.Config {
	if cfg, ok := ctx.App.Metadata[configKey].(config.Config); ok {
		return cfg
	}
	return config.Default()
}
