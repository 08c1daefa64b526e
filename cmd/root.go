package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/s0up4200/torrentsnag/backend"
	"github.com/s0up4200/torrentsnag/config"
	"github.com/s0up4200/torrentsnag/handlers"
	"github.com/s0up4200/torrentsnag/metrics"
	"github.com/s0up4200/torrentsnag/orchestrator"
	"github.com/s0up4200/torrentsnag/page"
	"github.com/s0up4200/torrentsnag/session"
	"github.com/s0up4200/torrentsnag/settings"
	"github.com/s0up4200/torrentsnag/store"
	"github.com/s0up4200/torrentsnag/tracker"
)

var (
	version   = "dev"
	buildTime = "unknown"

	cfgFile     string
	appConfig   *config.AppConfig
	cfg         *config.Config
	logger      zerolog.Logger
	db          *store.DB
	settingsSvc *settings.Service
	dupTracker  *tracker.Tracker
	sessions    *session.Manager
	fetcher     *page.Fetcher
	metricsMgr  *metrics.Manager
	orch        *orchestrator.Orchestrator
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "torrentsnag",
	Short: "Find torrent links on web pages and send them to your torrent client",
	Long: `torrentsnag scans web pages for magnet links, .torrent files and torrent download
pages, skips what was already sent, and hands the rest to qBittorrent, Transmission,
Deluge or a local download folder.`,
	PersistentPreRunE:  initializeApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
}

// SetVersion sets the build information reported by the version command.
func SetVersion(v, built string) {
	version = v
	buildTime = built
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// initializeApp loads the configuration and wires the services
func initializeApp(cmd *cobra.Command, args []string) error {
	if cmd.Annotations["skipInit"] == "true" {
		return nil
	}

	var err error
	appConfig, err = config.New(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = appConfig.Current()

	logger, err = setupLogger(cfg.Logging)
	if err != nil {
		return err
	}

	db, err = store.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}

	settingsSvc = settings.NewService(db, logger)
	dupTracker = tracker.New(db, logger, tracker.WithMaxAge(cfg.Tracking.MaxAge))
	metricsMgr = metrics.NewManager(func() float64 {
		return float64(dupTracker.Count(context.Background()))
	})

	notifier := orchestrator.LogNotifier{Logger: logger}
	sessions = session.NewManager(dupTracker, logger, session.WithDetectedHook(func(id string, count int) {
		metricsMgr.ObserveCandidates(id, count)
		notifier.Badge(id, count)
	}))

	fetcher = page.NewFetcher(logger,
		page.WithTimeout(cfg.Fetch.Timeout),
		page.WithRetries(cfg.Fetch.Retries),
		page.WithUserAgent(cfg.Fetch.UserAgent),
	)

	orch = orchestrator.New(settingsSvc, dupTracker, sessions, logger,
		orchestrator.WithNotifier(notifier),
		orchestrator.WithMetrics(metricsMgr),
		orchestrator.WithFactory(func(kind string, hc settings.HandlerConfig) (backend.Handler, error) {
			return handlers.New(kind, hc, logger, handlers.Options{UserAgent: cfg.Fetch.UserAgent})
		}),
	)

	if err := orchestrator.Follow(cmd.Context(), settingsSvc, sessions, dupTracker, logger); err != nil {
		return fmt.Errorf("failed to arm patterns: %w", err)
	}

	return nil
}

func closeApp(cmd *cobra.Command, args []string) error {
	if sessions != nil {
		sessions.Shutdown()
	}
	if db != nil {
		return db.Close()
	}
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer
	if cfg.Format == "json" {
		out = os.Stderr
	} else {
		// Console format
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
		}
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to create log directory: %w", err)
		}
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
		})
	}

	return zerolog.New(out).With().Timestamp().Logger(), nil
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version",
	Annotations: map[string]string{"skipInit": "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("torrentsnag %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
