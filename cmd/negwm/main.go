package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/negwm/negwm/internal/config"
	"github.com/negwm/negwm/internal/control"
	"github.com/negwm/negwm/internal/display"
	"github.com/negwm/negwm/internal/engine"
	"github.com/negwm/negwm/internal/ipc"
	"github.com/negwm/negwm/internal/layout"
	"github.com/negwm/negwm/internal/metrics"
	"github.com/negwm/negwm/internal/util"
)

func main() {
	home, _ := os.UserHomeDir()
	defaultConfig := filepath.Join(home, ".config", "negwm", "config.yaml")

	cfgPath := flag.String("config", defaultConfig, "path to YAML config")
	logLevel := flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	socketPath := flag.String("socket", "", "control socket path (default $XDG_RUNTIME_DIR/negwm/control.sock)")
	collectMetrics := flag.Bool("metrics", true, "count control verbs and window events")
	flag.Parse()

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	cfgFullPath, err := filepath.Abs(*cfgPath)
	if err != nil {
		exitErr(fmt.Errorf("resolve config path: %w", err))
	}
	cfgFullPath = filepath.Clean(cfgFullPath)
	raw, err := os.ReadFile(cfgFullPath)
	if err != nil {
		exitErr(fmt.Errorf("read config: %w", err))
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		exitErr(fmt.Errorf("load config: %w", err))
	}

	wm := ipc.NewClient(logger.With("ipc"))
	resolve := func(cfg *config.Config) layout.Converter {
		current := display.Resolve(cfg.Resolution, cfg.Reference, display.X11{}, logger)
		return layout.NewConverter(cfg.Reference, current)
	}
	hints := &display.X11Hints{}
	defer hints.Close()
	windows := display.NewClassifier(hints, logger.With("ewmh"))

	var reloader *configReloader
	store := config.FileStore{Path: cfgFullPath, OnWrite: func(data []byte) {
		reloader.noteWrite(data)
	}}
	scratchpad := engine.NewScratchpad(wm, cfg, engine.ScratchpadOptions{
		Logger:  logger.With(config.ModuleScratchpad),
		Store:   store,
		Resolve: resolve,
		Windows: windows,
	})
	circle := engine.NewCircle(wm, cfg, engine.CircleOptions{Logger: logger.With(config.ModuleCircle)})

	collector := metrics.NewCollector(*collectMetrics)
	loop := engine.NewLoop(logger, collector, scratchpad, circle)
	reloader = newConfigReloader(cfgFullPath, logger, loop, cfg, raw)
	dispatcher := control.NewDispatcher(loop, control.DispatcherOptions{
		Scratchpad: scratchpad,
		Circle:     circle,
		Reload:     reloader.ForModule,
		Metrics:    collector,
	})
	ctrlSrv, err := control.NewServer(dispatcher, logger.With("control"), *socketPath)
	if err != nil {
		exitErr(fmt.Errorf("start control server: %w", err))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		exitErr(fmt.Errorf("watch config: %w", err))
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(cfgFullPath)); err != nil {
		exitErr(fmt.Errorf("watch config dir: %w", err))
	}
	if err := watcher.Add(cfgFullPath); err != nil {
		logger.Debugf("unable to watch config file directly: %v", err)
	}
	reloadRequests := make(chan string, 1)
	go watchConfig(logger, watcher, cfgFullPath, reloadRequests)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	hups := make(chan os.Signal, 1)
	signal.Notify(hups, syscall.SIGHUP)
	defer signal.Stop(hups)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(ctx)
	})
	g.Go(func() error {
		return ctrlSrv.Serve(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case reason := <-reloadRequests:
				if err := reloader.ReloadIfChanged(ctx, reason); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			case <-hups:
				if err := reloader.Reload(ctx, "received SIGHUP", ""); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("negwm exited: %v", err)
		os.Exit(1)
	}
	logger.Infof("negwm stopped")
}

func watchConfig(logger *util.Logger, watcher *fsnotify.Watcher, target string, reloadRequests chan<- string) {
	const debounceWindow = 250 * time.Millisecond
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case reloadRequests <- "config file updated":
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
