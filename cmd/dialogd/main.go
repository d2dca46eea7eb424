package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/dialog/pkg/config"
	"github.com/cuemby/dialog/pkg/dialoglog"
	"github.com/cuemby/dialog/pkg/metrics"
	"github.com/cuemby/dialog/pkg/remote/rpc"
	"github.com/cuemby/dialog/pkg/storage"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "dialogd",
	Short:   "dialogd serves a Dialog backend over gRPC",
	Long:    `dialogd exposes one storage.Backend as a remote branch upstream, so other nodes' artifacts.Commit and remote.Branch can mirror and publish against it.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("dialogd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file (defaults applied if omitted)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dialogd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		} else if err := cfg.Validate(); err != nil {
			return fmt.Errorf("default config: %w", err)
		}

		dialoglog.Init(cfg.LoggerConfig())
		log := dialoglog.WithComponent("dialogd")

		backend, err := openBackend(cfg)
		if err != nil {
			return fmt.Errorf("open backend: %w", err)
		}
		if closer, ok := backend.(interface{ Close() error }); ok {
			defer closer.Close()
		}

		metrics.SetVersion(Version)
		metrics.RegisterComponent("storage", true, string(cfg.Backend))
		metrics.RegisterComponent("rpc", false, "starting")

		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())
			http.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(cfg.MetricsListen, nil); err != nil {
				log.Error("metrics server stopped", err)
			}
		}()
		log.With("addr", cfg.MetricsListen).Info("metrics endpoint listening")

		server := rpc.NewServer(backend)
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Listen(cfg.Listen)
		}()
		metrics.RegisterComponent("rpc", true, "serving")
		log.With("addr", cfg.Listen).With("backend", string(cfg.Backend)).Info("dialogd listening")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("rpc server: %w", err)
			}
		case sig := <-sigCh:
			log.With("signal", sig.String()).Info("shutting down")
			server.Stop()
		}
		return nil
	},
}

func openBackend(cfg config.Config) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryBackend(), nil
	case config.BackendFile:
		return storage.OpenFileBackend(cfg.DataDir)
	case config.BackendS3:
		return storage.NewS3Backend(context.Background(), cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Region, cfg.S3.Endpoint)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
