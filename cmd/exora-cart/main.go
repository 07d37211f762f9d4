package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	tokenFlag  string
	verbose    bool
	timeout    time.Duration

	// set by PersistentPreRunE, closed by execute
	current *app
)

var rootCmd = &cobra.Command{
	Use:   "exora-cart",
	Short: "Drive the Exora cart from a terminal",
	Long: `exora-cart runs the storefront cart container against a cart API.

Every command goes through the same container the storefront uses, so the
session gate, single-flight policy and notifications behave the same way.

The bearer token comes from the session store (see "exora-cart session"),
or from --token / EXORA_TOKEN for one-off runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		// stdout is for cart output; logs go to stderr
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		a, err := newApp(cmd.Context(), configPath, tokenFlag, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		current = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to the YAML config (default: environment only)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", os.Getenv("EXORA_TOKEN"), "Bearer token for this run (or set EXORA_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall command timeout")

	sessionCmd.AddCommand(sessionSaveCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {

	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// execute runs the command tree and releases the app whether or not the
// command succeeded. cobra skips post-run hooks when RunE fails.
func execute(ctx context.Context) error {

	defer func() {
		if current == nil {
			return
		}

		if err := current.Close(context.Background()); err != nil {
			slog.Warn("Failed to close app", slog.String("error", err.Error()))
		}
	}()

	return rootCmd.ExecuteContext(ctx)
}
