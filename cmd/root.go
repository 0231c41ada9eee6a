package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abhisek/fractiz/internal/config"
	"github.com/abhisek/fractiz/internal/store"
)

var (
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fractiz",
	Short: "Adaptive practice backend",
	Long: `fractiz tracks each student's mastery of every knowledge component with
Bayesian Knowledge Tracing and picks the next question to practice.

Run "fractiz serve" to start the HTTP API, or use the subcommands to drive a
practice session from the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c

		logger, err = buildLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ./fractiz.yaml or $XDG_CONFIG_HOME/fractiz/fractiz.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides FRACTIZ_DB env var)")
	rootCmd.PersistentFlags().String("catalog", "", "Path to the question bank (overrides catalog.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(beginCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(versionCmd)
}

func buildLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then FRACTIZ_DB env var, then store.sqlite_path from config, then the
// default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if p := os.Getenv("FRACTIZ_DB"); p != "" {
		return p, store.EnsureDir(p)
	}
	if p := cfg.Store.SQLitePath; p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// resolveCatalogPath returns --catalog if set, else catalog.path.
func resolveCatalogPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("catalog"); p != "" {
		return p
	}
	return cfg.Catalog.Path
}
