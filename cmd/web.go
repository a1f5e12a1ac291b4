package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sisbarc/camshell/internal/api"
	"github.com/sisbarc/camshell/internal/build"
	"github.com/sisbarc/camshell/internal/config"
	"github.com/sisbarc/camshell/internal/devproxy"
	"github.com/sisbarc/camshell/internal/discovery"
	"github.com/sisbarc/camshell/internal/eventbus"
	"github.com/sisbarc/camshell/internal/logger"
	"github.com/sisbarc/camshell/internal/metrics"
	"github.com/sisbarc/camshell/internal/routes"
	"github.com/sisbarc/camshell/internal/server"
	"github.com/sisbarc/camshell/internal/storage"
	"github.com/sisbarc/camshell/internal/telemetry"
	"github.com/sisbarc/camshell/internal/views"
)

// NewWebCmd returns the "web" subcommand that starts the HTTP server.
func NewWebCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		port      int
		baseURL   string
		env       string
		deviceURL string
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Start the camshell web UI",
		Long: `Start the camshell HTTP server. It serves the Home, Monitor and About
pages under BASE_URL and, in development, forwards /api to the camera.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("base-url") {
				cfg.BaseURL = baseURL
			}
			if flags.Changed("env") {
				cfg.Env = env
			}
			if flags.Changed("device-url") {
				cfg.DeviceURL = deviceURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			serverURL := fmt.Sprintf("http://localhost:%d%s", cfg.Port, cfg.BaseURL)
			logFile := filepath.Join(cfg.LogDir(), "system.log")
			printBanner(os.Stdout, bannerInfo{
				Version:   build.Version,
				URL:       serverURL,
				LogFile:   logFile,
				Env:       cfg.Env,
				DeviceURL: deviceTarget(cfg),
			})

			if err := runWeb(cfg, noBrowser); err != nil {
				fmt.Fprintf(os.Stderr, "An error occurred: %v\nCheck the logs at: %s\n", err, logFile)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	cmd.Flags().StringVar(&baseURL, "base-url", cfg.BaseURL, "Path prefix for every page (overrides BASE_URL)")
	cmd.Flags().StringVar(&env, "env", cfg.Env, "development or production (overrides APP_ENV)")
	cmd.Flags().StringVar(&deviceURL, "device-url", cfg.DeviceURL, "Camera the /api proxy forwards to (overrides DEVICE_URL)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not automatically open the browser on startup")

	return cmd
}

// deviceTarget is shown in the banner; production builds never proxy.
func deviceTarget(cfg *config.AppConfig) string {
	if cfg.IsProduction() {
		return ""
	}
	return cfg.DeviceURL
}

func runWeb(cfg *config.AppConfig, noBrowser bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var console io.Writer
	if !cfg.IsProduction() {
		console = os.Stderr
	}
	sysLogger, logCloser, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel(), console)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logCloser.Close() //nolint:errcheck

	sysLogger.Info("camshell starting",
		slog.Int("port", cfg.Port),
		slog.String("base_url", cfg.BaseURL),
		slog.String("env", cfg.Env),
		slog.String("data_dir", cfg.DataDir),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
		slog.String("build_date", build.BuildDate),
	)

	bus := eventbus.New(0, eventbus.WithLogger(logger.Component(sysLogger, "eventbus")))
	defer bus.Close()
	bus.Subscribe(eventbus.LogListener(logger.Component(sysLogger, "events")))

	m := metrics.New(nil)
	tel, err := telemetry.New(m.Registry())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background()) //nolint:errcheck

	db, _, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck
	devices := storage.NewSQLiteDeviceStore(db)

	if cfg.DiscoveryEnabled {
		watcher, err := discovery.NewWatcher(discovery.Config{
			Browser:        discovery.NewMDNSBrowser(discovery.DefaultBrowseTimeout, logger.Component(sysLogger, "mdns")),
			Store:          devices,
			Interval:       cfg.DiscoveryInterval,
			Logger:         logger.Component(sysLogger, "discovery"),
			Gauge:          m,
			EventPublisher: bus,
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop() //nolint:errcheck
	}

	srv, err := newShellServer(cfg, shellDeps{
		Logger:    sysLogger,
		Publisher: bus,
		Metrics:   m,
		Devices:   devices,
		Static:    WebFS,
		Telemetry: tel,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://localhost:%d%s", cfg.Port, cfg.BaseURL)
	sysLogger.Info("server ready", "url", url)

	if !noBrowser {
		go openBrowser(url)
	}

	return srv.Run(ctx)
}

// shellDeps are the long-lived collaborators newShellServer wires together.
type shellDeps struct {
	Logger    *slog.Logger
	Publisher eventbus.Publisher
	Metrics   *metrics.Metrics
	Devices   storage.DeviceStore
	Static    fs.FS
	Telemetry *telemetry.Providers
}

// newShellServer builds the route table, the pages and, outside production,
// the dev proxy, and returns the server hosting them.
func newShellServer(cfg *config.AppConfig, deps shellDeps) (*server.Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}

	set, err := views.New(nil)
	if err != nil {
		return nil, fmt.Errorf("loading views: %w", err)
	}
	declared, err := views.Declared(set)
	if err != nil {
		return nil, fmt.Errorf("loading views: %w", err)
	}
	table, err := routes.New(cfg.BaseURL, declared, routes.WithFetchHook(deps.Metrics.ViewFetched))
	if err != nil {
		return nil, fmt.Errorf("building route table: %w", err)
	}

	notFound, err := set.Page(views.PageNotFound)
	if err != nil {
		return nil, err
	}
	errPage, err := set.Page(views.PageError)
	if err != nil {
		return nil, err
	}

	var proxy *devproxy.Proxy
	if !cfg.IsProduction() {
		rules, err := cfg.ProxyRules()
		if err != nil {
			return nil, err
		}
		opts := []devproxy.Option{
			devproxy.WithLogger(logger.Component(deps.Logger, "devproxy")),
			devproxy.WithRecorder(deps.Metrics),
		}
		if deps.Publisher != nil {
			opts = append(opts, devproxy.WithPublisher(deps.Publisher))
		}
		if proxy, err = devproxy.New(rules, opts...); err != nil {
			return nil, fmt.Errorf("building dev proxy: %w", err)
		}
		for _, r := range proxy.Rules() {
			deps.Logger.Info("dev proxy rule",
				slog.String("prefix", r.Prefix),
				slog.String("target", r.Target.String()),
				slog.Bool("change_origin", r.ChangeOrigin),
				slog.Bool("ws", r.WS),
			)
		}
	}

	scfg := server.Config{
		Table:     table,
		API:       api.New(table, deps.Devices, logger.Component(deps.Logger, "api")),
		NotFound:  notFound,
		Error:     errPage,
		Static:    deps.Static,
		Proxy:     proxy,
		APIPrefix: config.DefaultProxyPrefix,
		Metrics:   deps.Metrics,
		Telemetry: deps.Telemetry,
		Port:      cfg.Port,
		Logger:    logger.Component(deps.Logger, "server"),
	}
	if deps.Publisher != nil {
		scfg.EventPublisher = deps.Publisher
	}
	return server.New(scfg), nil
}

func openBrowser(url string) {
	time.Sleep(600 * time.Millisecond)
	ctx := context.Background()
	var c *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		c = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		c = exec.CommandContext(ctx, "open", url)
	default:
		c = exec.CommandContext(ctx, "xdg-open", url)
	}
	_ = c.Start()
}
