package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Carmen-Shannon/oxy-xrvis/engine"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/config"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/loader"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/procgen"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/scene"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	pollInterval   = 10 * time.Millisecond
)

var errNoFiles = errors.New("xrvis: no input files")

// loadEvents imports every file argument in order and returns the combined event stream.
func loadEvents(ctx *cli.Context) ([]model.Event, error) {
	if ctx.NArg() == 0 {
		return nil, errNoFiles
	}
	var opts []loader.LoaderBuilderOption
	if prefix := ctx.String("prefix"); prefix != "" {
		opts = append(opts, loader.WithIDPrefix(prefix))
	}
	if columns := ctx.StringSlice("columns"); len(columns) > 0 {
		opts = append(opts, loader.WithValueColumns(columns...))
	}
	kind, ok := procgen.ParseChartKind(ctx.String("chart"))
	if !ok {
		return nil, fmt.Errorf("xrvis: unknown chart kind %q", ctx.String("chart"))
	}
	opts = append(opts, loader.WithChart(kind))
	l := loader.NewLoader(opts...)

	var events []model.Event
	for _, path := range ctx.Args().Slice() {
		evs, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		logger.L().Info("xrvis: imported", zap.String("file", path), zap.Int("events", len(evs)))
		events = append(events, evs...)
	}
	return events, nil
}

func importFiles(ctx *cli.Context) error {
	events, err := loadEvents(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tNODE\tVERTICES\tTRIANGLES\tMATERIALS")
	for _, ev := range events {
		vertices, triangles := 0, 0
		if ev.Mesh != nil {
			vertices, triangles = ev.Mesh.VertexCount(), ev.Mesh.TriangleCount()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", ev.Kind, ev.Node, vertices, triangles, len(ev.Materials))
	}
	return w.Flush()
}

func runFiles(ctx *cli.Context) error {
	events, err := loadEvents(ctx)
	if err != nil {
		return err
	}
	cfg := configFrom(ctx)
	cfg.Engine.MaxFrames = 0

	e, done, err := startEngine(cfg)
	if err != nil {
		return err
	}
	defer stopEngine(e, done)

	if err := submitAll(ctx.Context, e, events); err != nil {
		return err
	}
	settled := func(s scene.NodeState) bool {
		if s == scene.StateFailed || s == scene.StateRendered {
			return true
		}
		return !cfg.Engine.AutoBake && s == scene.StateSynthesized
	}
	frames := ctx.Uint64("frames")
	waitFor(ctx.Context, ctx.Duration("timeout"), func() bool {
		return (frames > 0 && e.Frames() >= frames) || allNodes(e.Controller(), settled)
	})

	printStates(ctx.App.Writer, e.Controller())
	report := e.LastReport()
	fmt.Fprintf(ctx.App.Writer, "frame %d: %d lit, %d unlit, %d culled, %d skipped\n",
		report.Frame, report.Lit, report.Unlit, report.Culled, len(report.Skipped))
	for _, s := range report.Skipped {
		fmt.Fprintf(ctx.App.Writer, "  skipped %s: %v\n", s.Node, s.Reason)
	}
	return nil
}

func bakeFiles(ctx *cli.Context) error {
	events, err := loadEvents(ctx)
	if err != nil {
		return err
	}
	cfg := configFrom(ctx)
	cfg.Engine.MaxFrames = 0
	cfg.Engine.AutoBake = false
	if ctx.IsSet("resolution") {
		cfg.Bake.Resolution = ctx.Float64("resolution")
	}
	if ctx.IsSet("samples") {
		cfg.Bake.SampleCount = ctx.Int("samples")
	}
	if ctx.Bool("no-denoise") {
		cfg.Bake.Denoise = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	e, done, err := startEngine(cfg)
	if err != nil {
		return err
	}
	defer stopEngine(e, done)

	if err := submitAll(ctx.Context, e, events); err != nil {
		return err
	}
	timeout := ctx.Duration("timeout")
	ctrl := e.Controller()
	waitFor(ctx.Context, timeout, func() bool {
		return allNodes(ctrl, func(s scene.NodeState) bool {
			return s == scene.StateSynthesized || s == scene.StateFailed
		})
	})

	options := cfg.Bake.Options()
	handles := make(map[model.NodeID]bake.Handle)
	for _, id := range ctrl.Nodes() {
		if ctrl.NodeState(id) != scene.StateSynthesized {
			continue
		}
		h, err := ctrl.RequestBake(id, options)
		if err != nil {
			logger.L().Warn("xrvis: bake request rejected", zap.String("node", string(id)), zap.Error(err))
			continue
		}
		handles[id] = h
	}
	logger.L().Info("xrvis: bakes requested", zap.Int("count", len(handles)))

	waitFor(ctx.Context, timeout, func() bool {
		for id := range handles {
			if ctrl.NodeState(id) == scene.StateBaking {
				return false
			}
		}
		return true
	})
	printStates(ctx.App.Writer, ctrl)
	return nil
}

func startEngine(cfg config.Config) (engine.Engine, <-chan struct{}, error) {
	device, err := cfg.Device.OpenDevice()
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		device.Release()
		return nil, nil, err
	}
	e := engine.NewEngine(append(opts, engine.WithDevice(device))...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run()
	}()
	return e, done, nil
}

func stopEngine(e engine.Engine, done <-chan struct{}) {
	e.Quit()
	<-done
}

func submitAll(ctx context.Context, e engine.Engine, events []model.Event) error {
	for _, ev := range events {
		if err := e.Submit(ctx, ev); err != nil {
			return fmt.Errorf("xrvis: submit %s %s: %w", ev.Kind, ev.Node, err)
		}
	}
	return nil
}

// waitFor polls cond until it holds, the timeout passes or ctx is cancelled.
func waitFor(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-ctx.Done():
			logger.L().Warn("xrvis: gave up waiting", zap.Duration("timeout", timeout))
			return false
		case <-ticker.C:
		}
	}
}

func allNodes(ctrl scene.Controller, pred func(scene.NodeState) bool) bool {
	ids := ctrl.Nodes()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !pred(ctrl.NodeState(id)) {
			return false
		}
	}
	return true
}

func printStates(out io.Writer, ctrl scene.Controller) {
	if out == nil {
		out = os.Stdout
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tSTATE\tDETAIL")
	for _, id := range ctrl.Nodes() {
		state := ctrl.NodeState(id)
		detail := ""
		switch state {
		case scene.StateFailed:
			if err := ctrl.FailureReason(id); err != nil {
				detail = err.Error()
			}
		case scene.StateBaking:
			if p, ok := ctrl.BakeProgress(id); ok {
				detail = fmt.Sprintf("%.0f%%", p*100)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", id, state, detail)
	}
	w.Flush()
}
