package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Joseda-hg/lazydash/internal/api"
	"github.com/Joseda-hg/lazydash/internal/config"
	"github.com/Joseda-hg/lazydash/internal/tui"
	"github.com/Joseda-hg/lazydash/internal/web"
)

var Version = "dev"

type flags struct {
	configPath string
	apiURL     string
	logFile    string
	verbose    bool
	web        bool
	port       int
	open       string
}

// app is what every command shares once flags are resolved.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	client *api.Client
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:     "lazydash",
		Short:   "Terminal dashboard for RAG query statistics and evaluations",
		Version: Version,
		Long: `lazydash browses the daily statistics backend: query volume, knowledge
bases, individual queries and evaluation scores.

Run without a subcommand to start the terminal UI.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, f, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()
			return a.runUI(cmd.Context(), f.open)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file path")
	pf.StringVar(&f.apiURL, "api-url", "", "backend origin, e.g. http://localhost:8000")
	pf.StringVar(&f.logFile, "log-file", "", "log file path")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log debug messages")
	cmd.Flags().BoolVar(&f.web, "web", false, "also serve the web view")
	cmd.Flags().IntVar(&f.port, "port", 0, "web server port")
	cmd.Flags().StringVar(&f.open, "open", "", `address to open, e.g. "/queries?mode=rag_retrieval"`)

	cmd.AddCommand(serveCmd(f), syncCmd(f), evaluateCmd(f))
	return cmd
}

func serveCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web view only",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, f, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&f.port, "port", 0, "web server port")
	return cmd
}

// setup resolves the configuration (defaults, file, environment, flags),
// saves it back and builds the logger and backend client.
func setup(cmd *cobra.Command, f *flags, logToStderr bool) (*app, error) {
	cfgPath := f.configPath
	if cfgPath == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = path
	}

	stored, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	applyFlags := func(cfg *config.Config) {
		if changed("api-url") {
			cfg.APIURL = f.apiURL
		}
		if changed("log-file") {
			cfg.LogPath = f.logFile
		}
		if changed("web") {
			cfg.WebEnabled = f.web
		}
		if changed("port") {
			cfg.WebPort = f.port
		}
		if cfg.LogPath == "" {
			cfg.LogPath = filepath.Join(filepath.Dir(cfgPath), "lazydash.log")
		}
		cfg.Sanitize()
	}

	// Only the file and the flags are persisted; the environment applies to
	// this run alone and flags still win over it.
	applyFlags(&stored)
	if err := config.Save(cfgPath, stored); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	cfg, err := config.LoadEnv(stored)
	if err != nil {
		return nil, err
	}
	applyFlags(&cfg)

	logger, err := newLogger(cfg.LogPath, f.verbose, logToStderr)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", zap.String("path", cfgPath), zap.String("api_url", cfg.APIURL))

	return &app{
		cfg:    cfg,
		logger: logger,
		client: api.New(cfg.APIURL, api.WithLogger(logger)),
	}, nil
}

// newLogger writes JSON logs to logPath; the terminal UI owns stdout and
// stderr, so only headless commands log to stderr.
func newLogger(logPath string, verbose, toStderr bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if toStderr {
		zcfg.OutputPaths = []string{"stderr"}
	} else {
		if err := config.EnsureDir(logPath); err != nil {
			return nil, err
		}
		zcfg.OutputPaths = []string{logPath}
	}
	zcfg.ErrorOutputPaths = zcfg.OutputPaths
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (a *app) webServer() *web.Server {
	return web.NewServer(web.Options{
		Client:        a.client,
		Logger:        a.logger,
		QuietInterval: a.cfg.QuietInterval,
		PollInterval:  a.cfg.PollInterval,
		DefaultDays:   a.cfg.DefaultDays,
	})
}

func (a *app) runUI(ctx context.Context, address string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := tui.Options{
		Client:        a.client,
		Logger:        a.logger,
		Address:       address,
		QuietInterval: a.cfg.QuietInterval,
		PollInterval:  a.cfg.PollInterval,
		DefaultDays:   a.cfg.DefaultDays,
	}
	if !a.cfg.WebEnabled {
		return tui.Run(ctx, opts)
	}

	// Quitting the terminal UI stops the web server and vice versa.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return listen(gctx, a.addr(), a.webServer().Handler(), a.logger)
	})
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, opts)
	})
	return g.Wait()
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Printf("Web server running at http://localhost%s\n", a.addr())
	return listen(ctx, a.addr(), a.webServer().Handler(), a.logger)
}

func (a *app) addr() string {
	return fmt.Sprintf(":%d", a.cfg.WebPort)
}

// listen serves handler until ctx is done, then shuts down gracefully.
func listen(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		logger.Info("web server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
