package commands

import (
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/metrics"
	"github.com/quillfs/quillnfs/pkg/config"
	"github.com/quillfs/quillnfs/pkg/server"
	"github.com/quillfs/quillnfs/pkg/vfs"
	"github.com/quillfs/quillnfs/pkg/vfs/badgerfs"
	"github.com/quillfs/quillnfs/pkg/vfs/memfs"
)

var (
	serveBackend string
	serveDataDir string
	serveRO      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the NFS server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		if err := logger.Init(logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		}); err != nil {
			return err
		}

		watchLogLevel(configPath)

		fs, cleanup, err := buildFileSystem()
		if err != nil {
			return err
		}
		defer cleanup()

		var m *metrics.ServerMetrics
		if cfg.Metrics.Enabled {
			m = metrics.NewServerMetrics(nil)
			go serveMetrics(cfg.Metrics.Listen)
		}

		srv := server.New(server.Config{
			BindAddress: cfg.Server.BindAddress,
			Port:        cfg.Server.Port,
			ExportName:  cfg.Server.ExportName,
		}, fs, server.WithMetrics(m))

		if err := srv.Listen(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("Serving NFSv3",
			"port", srv.LocalPort(),
			"export", cfg.Server.ExportName,
			"backend", serveBackend)

		return srv.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveBackend, "backend", "memory", "file system backend: memory or badger")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./quillnfs-data", "data directory for the badger backend")
	serveCmd.Flags().BoolVar(&serveRO, "read-only", false, "serve the export read-only")
}

// buildFileSystem constructs the configured backend. The memory backend
// is seeded with a small demo tree so a fresh mount has something to show.
func buildFileSystem() (vfs.FileSystem, func(), error) {
	switch serveBackend {
	case "memory":
		fs := memfs.New()
		if _, err := fs.AddFile("hello.txt", []byte("hello from quillnfs\n")); err != nil {
			return nil, nil, err
		}
		if _, err := fs.AddDir("scratch"); err != nil {
			return nil, nil, err
		}
		fs.SetReadOnly(serveRO)
		return fs, func() {}, nil

	case "badger":
		fs, err := badgerfs.Open(serveDataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger backend: %w", err)
		}
		fs.SetReadOnly(serveRO)
		return fs, func() { _ = fs.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want memory or badger)", serveBackend)
	}
}

// watchLogLevel applies logging changes from the config file without a
// restart. Only the logging section is hot-reloaded; network and export
// settings need a restart.
func watchLogLevel(path string) {
	if path == "" {
		return
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if err := v.ReadInConfig(); err != nil {
			logger.Warn("Config reload failed", "path", event.Name, "error", err)
			return
		}
		if level := v.GetString("logging.level"); level != "" {
			logger.SetLevel(level)
			logger.Info("Log level updated", "level", level)
		}
	})
	v.WatchConfig()
}

// serveMetrics exposes /metrics until the process exits.
func serveMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("Metrics listening", "address", listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server failed", "error", err)
	}
}
