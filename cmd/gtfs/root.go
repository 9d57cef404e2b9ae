package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/config"
	"github.com/linpawslitap/mds-scaling/pkg/tierfs"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gtfs",
	Short: "Tiered small/bulk file store",
	Long: `gtfs stores small files inline in a metadata store and moves a file to
the bulk store once it grows past the configured threshold.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "init" {
			return nil
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		if err := logger.Configure(loaded.Logging.Level, loaded.Logging.Format, loaded.Logging.Output); err != nil {
			return fmt.Errorf("failed to configure logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/gtfs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
}

// session is an opened file system plus whatever must be torn down with it.
type session struct {
	fs      *tierfs.FileSystem
	ctx     context.Context
	cleanup []func()
}

func (s *session) Close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

// openSession builds the file system from the loaded configuration. When
// metrics are enabled the metrics server runs until the session closes.
func openSession(cmd *cobra.Command) (*session, error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	s := &session{ctx: ctx, cleanup: []func(){stop}}

	m := config.InitializeMetrics(cfg)
	if m.Server != nil {
		metricsCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := m.Server.Start(metricsCtx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
		s.cleanup = append(s.cleanup, func() {
			cancel()
			<-done
		})
	}

	fs, err := config.NewFileSystem(ctx, cfg, m.TierMetrics)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.fs = fs
	s.cleanup = append(s.cleanup, func() {
		if err := fs.Close(); err != nil {
			logger.Warn("Close file system: %v", err)
		}
	})
	return s, nil
}
