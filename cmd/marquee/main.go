package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genricoloni/marquee/internal/domain"
	"github.com/genricoloni/marquee/internal/layout"
	"github.com/genricoloni/marquee/internal/monitor"
	"github.com/genricoloni/marquee/internal/normalize"
	"github.com/genricoloni/marquee/internal/selector"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	stopTimeout   = 5 * time.Second
	statusTimeout = 3 * time.Second
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "marquee",
	Short: "Now-playing overlay for MPRIS media players",
	Long: `Marquee follows the active MPRIS media player on the session bus and lays out
the current title and artist to fit a fixed-size desktop widget.`,
	RunE:         runDaemon,
	SilenceUsage: true,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read the bus once and print the selected track",
	RunE:  runStatus,
}

var fontsCmd = &cobra.Command{
	Use:   "fonts",
	Short: "List the available font families",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range layout.Families() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/marquee/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.AddCommand(statusCmd, fontsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runDaemon starts the application graph and blocks until SIGINT/SIGTERM
func runDaemon(cmd *cobra.Command, args []string) error {
	app := fx.New(AppOptions)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	// Wait for interrupt signal
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	return nil
}

// runStatus performs a single synchronous poll without starting the daemon
func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = newLogger(cfg); err != nil {
			return err
		}
	}

	src := monitor.NewMprisSource(logger, monitor.Options{
		Interval: cfg.PollEvery(),
		Policy:   selector.Policy{Players: cfg.Players},
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()
	snap := src.Poll(ctx)

	if err := src.Stop(context.Background()); err != nil {
		logger.Warn("Failed to close bus connection", zap.Error(err))
	}

	return printStatus(cmd.OutOrStdout(), snap, cfg.ArtistSeparator)
}

func printStatus(w io.Writer, snap domain.Snapshot, sep string) error {
	if snap.Err != nil {
		return fmt.Errorf("failed to read players: %w", snap.Err)
	}

	for _, h := range snap.Handles {
		marker := " "
		if snap.Selected != nil && h.ID == snap.Selected.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", marker, h.ID, h.Status)
	}

	if snap.Selected == nil {
		fmt.Fprintln(w, "No active playback")
		return nil
	}

	track := normalize.Normalize(snap.Metadata, sep)
	fmt.Fprintf(w, "Title:  %s\n", track.Title)
	fmt.Fprintf(w, "Artist: %s\n", track.ArtistLine(sep))
	if track.Album != "" {
		fmt.Fprintf(w, "Album:  %s\n", track.Album)
	}
	return nil
}
