// powerhintd - power hint coordination daemon
//
// powerhintd translates performance-intent events (interaction, launch,
// VR, sustained performance, camera, audio) into tuned writes against
// sysfs nodes, driven by a JSON node/action configuration. Events arrive
// over a unix control socket; powerctl is the matching client.
//
//	powerhintd -config /etc/powerhintd/config.toml
//	powerhintd -log-level debug
//	powerhintd -version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"powerhintd/internal/config"
	"powerhintd/internal/display"
	"powerhintd/internal/governor"
	"powerhintd/internal/hint"
	"powerhintd/internal/interaction"
	"powerhintd/internal/ipc"
	"powerhintd/internal/journal"
	"powerhintd/internal/logging"
	"powerhintd/internal/power"
	"powerhintd/internal/sysprop"
)

// Version is set at build time via -ldflags.
var Version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("powerhintd %s\n", Version)
		return
	}

	if err := run(*configPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "powerhintd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string) error {
	path := configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		path = config.ConfigPath()
	}

	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg, logLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	logger.Info("starting powerhintd", "version", Version, "config", path)
	if created {
		logger.Info("wrote default configuration", "path", path)
	}

	lock, err := acquireLock(filepath.Join(cfg.Daemon.RuntimeDir, "powerhintd.lock"))
	if err != nil {
		return err
	}
	defer lock.Close()

	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			// Journaling is best-effort; the daemon runs without it.
			logger.Warn("journal disabled", "path", cfg.Journal.Path, "error", err)
		} else {
			defer jnl.Close()
		}
	}

	gate := governor.New(cfg.Governor.Path, cfg.Governor.Allowed,
		logger.WithComponent("governor").Logger)

	props, err := sysprop.NewStore(cfg.Properties.Dir)
	if err != nil {
		return fmt.Errorf("open property store: %w", err)
	}

	var disp power.DisplayPower = display.Disabled{}
	if cfg.Display.Enabled {
		toggle := display.New(display.Options{
			Destination: cfg.Display.Destination,
			ObjectPath:  cfg.Display.ObjectPath,
			Interface:   cfg.Display.Interface,
			Property:    cfg.Display.Property,
			LowPower:    cfg.Display.LowPowerMode,
			Normal:      cfg.Display.NormalMode,
		})
		defer toggle.Close()
		disp = toggle
	}

	// The engine is created on the initialization goroutine once the
	// platform signals readiness; the handle is kept for shutdown.
	var (
		engineMu sync.Mutex
		engine   *hint.Manager
	)
	loadEngine := func() (power.Engine, error) {
		m, err := hint.Load(cfg.Engine.ConfigPath, logger.WithComponent("hint").Logger)
		if err != nil {
			return nil, err
		}
		m.Start()
		engineMu.Lock()
		engine = m
		engineMu.Unlock()
		return m, nil
	}

	svc := power.New(power.Options{
		LoadEngine: loadEngine,
		NewInteractions: func(e power.Engine) power.Interactions {
			return interaction.New(e, logger.WithComponent("interaction").Logger)
		},
		Gate:         gate,
		Props:        props,
		Display:      disp,
		Journal:      jnl,
		Log:          logger.WithComponent("power").Logger,
		InitKey:      cfg.Properties.InitKey,
		InitValue:    cfg.Properties.InitValue,
		StateKey:     cfg.Properties.StateKey,
		AudioKey:     cfg.Properties.AudioKey,
		RenderingKey: cfg.Properties.RenderingKey,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	var server *ipc.Server
	if cfg.IPC.Enabled {
		handler := ipc.NewDaemonHandler(ipc.DaemonHandlerConfig{
			Version: Version,
			Service: svc,
			Gate:    gate,
			Log:     logger.WithComponent("ipc").Logger,
		})

		scfg := ipc.DefaultServerConfig(cfg.Daemon.RuntimeDir)
		if cfg.IPC.SocketPath != "" {
			scfg.SocketPath = cfg.IPC.SocketPath
		}
		if cfg.IPC.TimeoutSec > 0 {
			scfg.ReadTimeout = time.Duration(cfg.IPC.TimeoutSec) * time.Second
		}
		scfg.Log = logger.WithComponent("ipc").Logger

		server = ipc.NewServer(scfg, handler)
		if err := server.Start(); err != nil {
			return fmt.Errorf("start ipc server: %w", err)
		}
	}

	watchConfig(path, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	if server != nil {
		server.Stop()
	}
	cancel()
	engineMu.Lock()
	if engine != nil {
		engine.Stop()
	}
	engineMu.Unlock()

	logger.Info("powerhintd stopped")
	return nil
}

func buildLogger(cfg *config.Config, override string) (*logging.Logger, error) {
	levelStr := cfg.Logging.Level
	if override != "" {
		levelStr = override
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	return logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "powerhintd",
	})
}

// watchConfig reloads the log level when the config file changes. Other
// settings require a restart.
func watchConfig(path string, logger *logging.Logger) {
	loader := config.NewLoader(path)
	if _, err := loader.Load(); err != nil {
		logger.Warn("config watch disabled", "error", err)
		return
	}

	loader.OnChange(func(c *config.Config) {
		level, err := logging.ParseLevel(c.Logging.Level)
		if err != nil {
			logger.Warn("ignoring invalid log level from config reload", "error", err)
			return
		}
		logger.SetLevel(level)
		logger.Info("log level updated", "level", c.Logging.Level)
	})

	if err := loader.Watch(); err != nil {
		logger.Warn("config watch disabled", "error", err)
		return
	}

	// A rewrite that fails to parse or validate keeps the running config;
	// the failure only surfaces here.
	go func() {
		for err := range loader.Errors() {
			logger.Warn("config reload failed", "error", err)
		}
	}()
}

// acquireLock takes the single-instance flock. A second daemon fails
// fast instead of fighting over the socket and the engine nodes.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another powerhintd instance is running (lock %s held)", path)
	}

	f.Truncate(0)
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return f, nil
}
