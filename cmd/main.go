package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"fit2tp/internal/app"
	"fit2tp/internal/config"
	"fit2tp/internal/logger"
	"fit2tp/internal/progress"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	generate   string
)

var rootCmd = &cobra.Command{
	Use:           "fit2tp",
	Short:         "Upload workout FIT files to TrainingPeaks",
	Long:          `Scans a directory for FIT files, keeps the ones that record a workout, and uploads them to TrainingPeaks concurrently.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runUpload,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML)")
	rootCmd.Flags().StringVar(&generate, "generate", "", "print a shell completion script (bash|zsh|fish|powershell) and exit")

	// Source flags
	rootCmd.Flags().StringP("fit-file-dir-path", "f", "", "Directory containing FIT files")
	rootCmd.Flags().String("extension", ".fit", "File extension to consider")

	// Upload flags
	rootCmd.Flags().StringP("auth-bearer-token", "a", "", "TrainingPeaks bearer token")
	rootCmd.Flags().Uint64("athlete-id", 0, "TrainingPeaks athlete id")
	rootCmd.Flags().String("endpoint", config.DefaultEndpoint, "TrainingPeaks API base URL")
	rootCmd.Flags().Duration("timeout", 0, "Per-request timeout (0 uses the transport default)")

	// Pipeline flags
	rootCmd.Flags().IntP("parallelism", "p", 8, "Maximum number of files in flight")
	rootCmd.Flags().Int("decode-workers", runtime.NumCPU(), "Number of FIT decoding workers")
	rootCmd.Flags().String("log-level", "info", "Log level (debug/info/warn/error)")
	rootCmd.Flags().Bool("show-progress", true, "Show progress display")
	rootCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")

	_ = rootCmd.RegisterFlagCompletionFunc("generate", cobra.FixedCompletions(
		[]string{"bash", "zsh", "fish", "powershell"}, cobra.ShellCompDirectiveNoFileComp))
	_ = rootCmd.MarkFlagDirname("fit-file-dir-path")
}

func runUpload(cmd *cobra.Command, args []string) error {
	if generate != "" {
		fmt.Fprintf(os.Stderr, "Generating completion file for %s...\n", generate)
		return writeCompletion(cmd.Root(), generate, cmd.OutOrStdout())
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Logs and the progress line share the terminal.
	term := progress.NewTerminal(os.Stdout, os.Stderr)
	log, err := logger.NewWithWriter(cfg.LogLevel, term)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	uploader, err := app.New(cfg, log, term)
	if err != nil {
		return fmt.Errorf("failed to create uploader: %w", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = uploader.Run(ctx)
	if ctx.Err() != nil {
		log.Warn("Interrupted by shutdown signal, remaining files were not uploaded")
	}

	if closeErr := uploader.Close(); closeErr != nil {
		log.Error("Error closing uploader", zap.Error(closeErr))
	}

	return err
}

func writeCompletion(root *cobra.Command, shell string, w io.Writer) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell %q (want bash, zsh, fish or powershell)", shell)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
