package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LJTian/MedNewsHub/internal/config"
	"github.com/LJTian/MedNewsHub/internal/logging"
)

var rootFlags struct {
	tunables string
	sources  string
	logLevel string
}

// cfg and logger are filled in by the root PersistentPreRunE.
var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect, rank and post healthcare AI news",
	Long:  "collect gathers radiology and healthcare AI news from the configured sources,\nranks it and posts a weekly digest. Use `collect run` for a one-off cycle.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.tunables, "tunables", "", "tunables YAML (overrides TUNABLES_PATH)")
	f.StringVar(&rootFlags.sources, "sources", "", "sources YAML (overrides SOURCES_PATH)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func setup(_ *cobra.Command, _ []string) error {
	cfg = config.Load()
	if rootFlags.tunables != "" {
		cfg.TunablesPath = rootFlags.tunables
	}
	if rootFlags.sources != "" {
		cfg.SourcesPath = rootFlags.sources
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}

	var err error
	logger, err = logging.New(cfg.LogLevel, "console")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

func main() {
	// Ctrl-C / SIGTERM 取消正在进行的采集，子命令通过 cmd.Context() 拿到
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
