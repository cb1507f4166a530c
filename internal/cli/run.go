package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tannerlabs/corral/internal/booking"
	"github.com/tannerlabs/corral/internal/driver"
	"github.com/tannerlabs/corral/internal/sqlframe"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the booking machine's single-writer loop against a durable store",
		Long: `Start the booking example machine with a SQLite-backed frame,
recovering any in-flight payment preauthorizations before accepting new
requests. Blocks until interrupted.

Example:
  corralctl run --db ./clinic.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDriver(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runDriver(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("opening database", "path", opts.Database)
	store, err := sqlframe.Open(opts.Database, booking.DefaultSchedule())
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	d := driver.New[booking.System, booking.Request, booking.PaymentReq, booking.Notification, booking.PaymentResult](
		booking.Machine{}, store, noopExecutor{}, 0,
	)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("recovering in-flight preauthorizations")
	if err := d.Recover(ctx); err != nil {
		return WrapExitError(ExitCommandError, "recover", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Booking machine started. Press Ctrl-C to stop.")
	if err := d.Run(ctx); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return WrapExitError(ExitFailure, "driver error", err)
	}

	slog.Info("driver stopped gracefully")
	return nil
}
