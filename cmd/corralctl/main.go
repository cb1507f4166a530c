// Command corralctl drives and simulates the booking example machine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tannerlabs/corral/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := cli.NewRootCommand()
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		reportError(cmd, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// reportError prints a command's terminal error in whichever format the
// user asked for, so a --format json invocation gets a CLIResponse
// envelope on failure the same way it does on success, instead of a bare
// text line from a formatter that was only ever exercised on the happy
// path.
func reportError(cmd *cobra.Command, err error) {
	format, _ := cmd.PersistentFlags().GetString("format")
	if format != "json" {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	code := "E_COMMAND"
	if cli.GetExitCode(err) == cli.ExitFailure {
		code = "E_FAILURE"
	}
	formatter := &cli.OutputFormatter{Format: "json", Writer: os.Stderr}
	_ = formatter.Error(code, err.Error(), nil)
}
