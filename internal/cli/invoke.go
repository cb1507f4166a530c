package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tannerlabs/corral"
	"github.com/tannerlabs/corral/internal/booking"
	"github.com/tannerlabs/corral/internal/driver"
	"github.com/tannerlabs/corral/internal/sqlframe"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Database string
	UserID   uint64
	Day      int
	Hour     int
	Minute   int
	AptType  int
}

// NewInvokeCommand creates the invoke command: submit a single slot request
// against a durable booking store and print a summary of what was submitted.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Submit one slot request against a durable booking store",
		Long: `Submit a single RequestSlot input to the booking machine backed by a
SQLite-persisted frame, printing the submitted user id, day and time once
the request has been committed.

Example:
  corralctl invoke --db ./clinic.db --user 7 --day 0 --hour 9 --apt 1`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Uint64Var(&opts.UserID, "user", 1, "requesting user id")
	cmd.Flags().IntVar(&opts.Day, "day", 0, "day of week, 0=Monday..6=Sunday")
	cmd.Flags().IntVar(&opts.Hour, "hour", 9, "requested hour (24h)")
	cmd.Flags().IntVar(&opts.Minute, "minute", 0, "requested minute")
	cmd.Flags().IntVar(&opts.AptType, "apt", 0, "appointment type, 0=Cleaning..3=RootCanal")

	return cmd
}

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, action corral.Action[booking.PaymentReq, booking.Notification]) error {
	return nil
}

func runInvoke(opts *InvokeOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	ctx := cmd.Context()

	store, err := sqlframe.Open(opts.Database, booking.DefaultSchedule())
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer store.Close()

	d := driver.New[booking.System, booking.Request, booking.PaymentReq, booking.Notification, booking.PaymentResult](
		booking.Machine{}, store, noopExecutor{}, 0,
	)
	if err := d.Recover(ctx); err != nil {
		return WrapExitError(ExitCommandError, "recover booking state", err)
	}

	req := booking.RequestSlot(opts.UserID, fmt.Sprintf("user-%d", opts.UserID), "", booking.Day(opts.Day), booking.NewTime(opts.Hour, opts.Minute), booking.AptType(opts.AptType))

	go d.Run(ctx)
	defer d.Stop()

	if err := d.Submit(ctx, req); err != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("request rejected: %v", err))
	}

	return formatter.Success(map[string]any{
		"submitted": true,
		"user_id":   opts.UserID,
		"day":       booking.Day(opts.Day).String(),
		"time":      booking.NewTime(opts.Hour, opts.Minute).String(),
	})
}
