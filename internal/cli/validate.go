package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tannerlabs/corral/internal/recipe"
)

// NewValidateCommand creates the validate command: check a simulation
// recipe file against the CUE schema without running it.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <recipe-file>",
		Short: "Validate a simulation recipe without running it",
		Long: `Validate a CUE simulation recipe file against its schema.

Performs schema unification and default-filling without running a
simulation. Faster than simulate for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	source, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read recipe file", err)
	}

	r, err := recipe.Load(source)
	if err != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("invalid recipe: %v", err))
	}

	return formatter.Success(map[string]any{"valid": true, "recipe": r})
}
