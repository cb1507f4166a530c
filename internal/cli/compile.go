package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tannerlabs/corral/internal/recipe"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// NewCompileCommand creates the compile command: resolve a recipe file's
// CUE defaults and emit the fully-expanded configuration as JSON, useful
// for checking what a recipe will actually run with before committing to a
// simulation run.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <recipe-file>",
		Short: "Resolve a recipe's CUE defaults to a concrete JSON document",
		Args:  cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write resolved JSON to this path instead of stdout")
	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	source, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read recipe file", err)
	}

	r, err := recipe.Load(source)
	if err != nil {
		return NewExitError(ExitFailure, "compile failed: "+err.Error())
	}

	if opts.Output != "" {
		payload, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return WrapExitError(ExitCommandError, "marshal resolved recipe", err)
		}
		if err := os.WriteFile(opts.Output, payload, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "write output file", err)
		}
		return formatter.Success(map[string]any{"written_to": opts.Output})
	}

	if opts.Format != "json" {
		payload, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return WrapExitError(ExitCommandError, "marshal resolved recipe", err)
		}
		_, err = cmd.OutOrStdout().Write(append(payload, '\n'))
		return err
	}

	return formatter.Success(r)
}
