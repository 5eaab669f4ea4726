package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/justyntemme/duopane/internal/app"
	"github.com/justyntemme/duopane/internal/config"
	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/metrics"
)

var (
	configPath  string
	metricsAddr string
	logLevel    string

	cfgManager    = config.NewManager()
	metricsServer *http.Server
)

var rootCmd = &cobra.Command{
	Use:   "duopane",
	Short: "Dual-pane navigator over local, remote and favorite locations",
	Long: `duopane browses the local filesystem, rclone remotes and a favorites
view through one navigation model.

Remotes come from the rclone rc endpoint (config/listremotes) and the rclone
config file; s3 remotes marked "direct = true" are listed straight from the
bucket store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfgManager.Load(configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg := cfgManager.Get()
		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		debug.Init(level, cfg.Logging.Format)
		setDebugCategories(cfg.Logging.Categories)
		if err := cfgManager.ParseError(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s is invalid, using defaults: %v\n", cfgManager.Path(), err)
		}

		addr := cfg.Metrics.Listen
		if metricsAddr != "" {
			addr = metricsAddr
		}
		if addr != "" {
			startMetrics(addr)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		stopMetrics()
		debug.Sync()
		return nil
	},
}

func setDebugCategories(names map[string]bool) {
	if len(names) == 0 {
		return
	}
	cats := make(map[debug.Category]bool, len(names))
	for name, on := range names {
		cats[debug.Category(name)] = on
	}
	debug.SetCategories(cats)
	debug.Log(debug.APP, "debug categories: %v", debug.ListEnabled())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", getEnvOrDefault("DUOPANE_CONFIG", ""), "config file (default ~/.config/duopane/config.json)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		debug.Log(debug.APP, "metrics listening on %s", addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.Error(debug.APP, "metrics server: %v", err)
		}
	}()
}

func stopMetrics() {
	if metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		debug.Warn(debug.APP, "metrics shutdown: %v", err)
	}
	metricsServer = nil
}

// openApp builds the application from the loaded configuration.
func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	a, err := app.New(ctx, cfgManager.Get(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}
