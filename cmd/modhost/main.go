package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/mod-runtime/config"
	"github.com/wippyai/mod-runtime/gui"
	"github.com/wippyai/mod-runtime/logging"
	"github.com/wippyai/mod-runtime/modhost"
	"github.com/wippyai/mod-runtime/snapshot"
	"github.com/wippyai/mod-runtime/supervisor"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to YAML config file")
		mods         = flag.String("mods", "", "Module files to load (comma-separated, overrides config)")
		interactive  = flag.Bool("i", false, "Interactive mode with TUI")
		frames       = flag.Int("frames", 0, "Stop after this many frames (0 runs until interrupted)")
		schema       = flag.Bool("schema", false, "Print the config JSON schema and exit")
		imports      = flag.Bool("imports", false, "List the host functions mods may import and exit")
		watch        = flag.Duration("watch", 0, "Poll module files and hot reload changes at this interval")
		snapshotAddr = flag.String("snapshot-addr", "", "Serve frame snapshots over websocket on this address")
		logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	if *schema {
		out, err := config.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	if *imports {
		for _, name := range modhost.Namespaces() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags override the file and the environment, but only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mods":
			cfg.Mods = splitList(*mods)
		case "watch":
			cfg.Watch = *watch
		case "snapshot-addr":
			cfg.SnapshotAddr = *snapshotAddr
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Mods) == 0 && len(flag.Args()) > 0 {
		cfg.Mods = flag.Args()
	}
	if len(cfg.Mods) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: modhost -mods a.wasm,b.wasm [-config file.yaml] [-frames n] [-watch 1s]")
		fmt.Fprintln(os.Stderr, "       modhost -mods a.wasm -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       modhost -schema | -imports")
		os.Exit(1)
	}

	if *interactive {
		err = runInteractive(cfg)
	} else {
		err = run(cfg, *frames)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newSupervisor(cfg config.Config, log *zap.Logger, backend gui.Backend) (*supervisor.Supervisor, error) {
	return supervisor.New(supervisor.Options{
		Logger:      log,
		AssetDir:    cfg.AssetDir,
		DataDir:     cfg.DataDir,
		Seed:        cfg.Seed,
		MemoryPages: cfg.MemoryPages,
		AudioQueue:  cfg.AudioQueue,
		GUI:         backend,
	})
}

// run drives the mods headlessly at the configured frame rate.
func run(cfg config.Config, frames int) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup, err := newSupervisor(cfg, log, nil)
	if err != nil {
		return err
	}
	defer sup.Close(context.Background())

	if _, err := sup.LoadAll(ctx, cfg.Mods); err != nil {
		log.Warn("some mods failed to load", zap.Error(err))
	}

	var snap *snapshot.Server
	if cfg.SnapshotAddr != "" {
		snap = snapshot.New(sup.Scene(), log.Named("snapshot"))
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	if snap != nil {
		g.Go(func() error { return snap.ListenAndServe(ctx, cfg.SnapshotAddr) })
	}
	g.Go(func() error {
		defer cancel()
		return loop(ctx, cfg, frames, sup, snap, log)
	})
	return g.Wait()
}

func loop(ctx context.Context, cfg config.Config, frames int, sup *supervisor.Supervisor, snap *snapshot.Server, log *zap.Logger) error {
	ticker := time.NewTicker(cfg.FrameInterval())
	defer ticker.Stop()

	var watch <-chan time.Time
	if cfg.Watch > 0 {
		t := time.NewTicker(cfg.Watch)
		defer t.Stop()
		watch = t.C
	}

	last := time.Now()
	for n := 0; frames == 0 || n < frames; {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now
			if err := sup.Update(ctx, dt); err != nil {
				log.Warn("tick", zap.Error(err))
			}
			if snap != nil {
				if err := snap.Publish(); err != nil {
					log.Warn("publish frame", zap.Error(err))
				}
			}
			n++
		case <-watch:
			reloaded, err := sup.ReloadChanged(ctx)
			if reloaded > 0 {
				log.Info("hot reload", zap.Int("mods", reloaded), zap.Error(err))
			}
		}
	}
	return nil
}
