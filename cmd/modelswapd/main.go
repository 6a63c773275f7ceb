package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"modelswap/internal/common/logutil"
	"modelswap/internal/config"
	"modelswap/internal/desired"
	"modelswap/internal/httpapi"
	"modelswap/internal/manager"
)

// flags hold command-line overrides. Only flags the user actually set are
// applied on top of the file and environment configuration.
type flags struct {
	configPath      string
	addr            string
	initialArtifact string
	engine          string
	artifactsDir    string
	remoteURL       string
	adminToken      string
	desiredBackend  string
	desiredPath     string
	logLevel        string
	logFormat       string
	corsEnabled     bool
	corsOrigins     string
	syncInitialLoad bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*flags, map[string]bool, error) {
	f := &flags{}
	fs.StringVar(&f.configPath, "config", os.Getenv("MODELSWAP_CONFIG"), "Path to a .yaml/.json/.toml config file")
	fs.StringVar(&f.addr, "addr", "", "HTTP listen address, e.g. :8080")
	fs.StringVar(&f.initialArtifact, "initial-artifact", "", "Artifact loaded at startup (version 1)")
	fs.StringVar(&f.engine, "engine", "", "Inference engine: sim|llama|remote")
	fs.StringVar(&f.artifactsDir, "artifacts-dir", "", "Directory to scan for *.gguf artifacts")
	fs.StringVar(&f.remoteURL, "remote-url", "", "Base URL of the completion server (engine=remote)")
	fs.StringVar(&f.adminToken, "admin-token", "", "Bearer token required by /update-model")
	fs.StringVar(&f.desiredBackend, "desired-backend", "", "Desired-state store: file|redis|etcd|s3 (empty disables)")
	fs.StringVar(&f.desiredPath, "desired-path", "", "Shared desired-state file (desired-backend=file)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: json|console")
	fs.BoolVar(&f.corsEnabled, "cors-enabled", false, "Enable CORS")
	fs.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated allowed origins")
	fs.BoolVar(&f.syncInitialLoad, "sync-initial-load", false, "Block startup until the initial artifact is loaded")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// loadConfig merges defaults < file < environment < flags.
func loadConfig(f *flags, set map[string]bool) (config.Replica, error) {
	var cfg config.Replica
	if f.configPath != "" {
		c, err := config.LoadReplica(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if err := config.ApplyReplicaEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	apply := func(name string, dst *string, v string) {
		if set[name] {
			*dst = v
		}
	}
	apply("addr", &cfg.Addr, f.addr)
	apply("initial-artifact", &cfg.InitialArtifact, f.initialArtifact)
	apply("engine", &cfg.Engine.Kind, f.engine)
	apply("artifacts-dir", &cfg.Engine.ArtifactsDir, f.artifactsDir)
	apply("remote-url", &cfg.Engine.RemoteURL, f.remoteURL)
	apply("admin-token", &cfg.HTTP.AdminToken, f.adminToken)
	apply("desired-backend", &cfg.Desired.Backend, f.desiredBackend)
	apply("desired-path", &cfg.Desired.Path, f.desiredPath)
	apply("log-level", &cfg.LogLevel, f.logLevel)
	apply("log-format", &cfg.LogFormat, f.logFormat)
	if set["cors-enabled"] {
		cfg.HTTP.CORSEnabled = f.corsEnabled
	}
	if set["cors-origins"] {
		cfg.HTTP.CORSOrigins = splitCSV(f.corsOrigins)
	}
	if set["sync-initial-load"] {
		cfg.SyncInitialLoad = f.syncInitialLoad
	}
	cfg.Defaults()
	if strings.TrimSpace(cfg.InitialArtifact) == "" {
		return cfg, errors.New("initial artifact is required (--initial-artifact or MODELSWAP_INITIAL_ARTIFACT)")
	}
	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	f, set, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := loadConfig(f, set)
	if err != nil {
		fmt.Fprintf(os.Stderr, "modelswapd: %v\n", err)
		os.Exit(2)
	}
	lg := logutil.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("modelswapd failed")
	}
}

func run(cfg config.Replica, lg zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, err := buildLoader(cfg.Engine, lg)
	if err != nil {
		return err
	}
	pub, closePub, err := buildPublisher(cfg.Events, lg)
	if err != nil {
		return err
	}
	defer closePub()

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Loader:          loader,
		InitialArtifact: cfg.InitialArtifact,
		SyncInitialLoad: cfg.SyncInitialLoad,
		ReleaseGrace:    cfg.ReleaseGrace.Std(),
		Logger:          &lg,
		Publisher:       pub,
	})
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	defer mgr.Close()

	var reader httpapi.DesiredReader
	sc := cfg.Desired.StoreConfig()
	sc.Logger = &lg
	store, err := desired.Open(ctx, sc)
	switch {
	case errors.Is(err, desired.ErrDisabled):
		lg.Info().Msg("desired-state sync disabled")
	case err != nil:
		return fmt.Errorf("open desired-state store: %w", err)
	default:
		defer store.Close()
		reader = store
		w := desired.NewWatcher(store, mgr, desired.WatcherConfig{
			Interval: cfg.Desired.WatchInterval.Std(),
			Logger:   &lg,
		})
		go func() { _ = w.Run(ctx) }()
	}

	httpapi.SetLogger(lg)
	httpapi.SetDefaultLogLevel(cfg.HTTP.AccessLog)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
	httpapi.SetGenerateTimeout(cfg.HTTP.GenerateTimeout.Std())
	httpapi.SetAdminToken(cfg.HTTP.AdminToken)
	httpapi.SetCORSOptions(cfg.HTTP.CORSEnabled, cfg.HTTP.CORSOrigins, cfg.HTTP.CORSMethods, cfg.HTTP.CORSHeaders)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr, reader),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", cfg.Addr).Str("engine", cfg.Engine.Kind).Str("artifact", cfg.InitialArtifact).Msg("modelswapd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	// Graceful shutdown (Ctrl+C / SIGTERM)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
