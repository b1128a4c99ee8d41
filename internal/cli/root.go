// Package cli implements the embedfix command line using Cobra.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/embedfixer/embedfixer/internal/config"
	"github.com/embedfixer/embedfixer/internal/embed"
	"github.com/embedfixer/embedfixer/internal/tui"
)

// Overridable in tests
var (
	copyToClipboard = clipboard.WriteAll
	isTerminal      = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	}
	runInteractive = tui.Run
)

// app is the state shared by all subcommands of one invocation
type app struct {
	registry *embed.Registry
	out      io.Writer
	errOut   io.Writer
}

// NewRootCmd builds the command tree writing to out and errOut
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{
		registry: embed.DefaultRegistry(),
		out:      out,
		errOut:   errOut,
	}

	var opts recognizeOptions

	root := &cobra.Command{
		Use:   "embedfix [url]",
		Short: "Turn YouTube and Spotify share links into stable embed codes",
		Long: `embedfix recognizes YouTube and Spotify sharing links, strips the tracking
noise and prints a clean embed URL and iframe code.

Run it without arguments in a terminal for the interactive form.`,
		Version:       config.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.recognize(args[0], opts)
			}
			if isTerminal() {
				return runInteractive(a.registry)
			}
			return cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	opts.bind(root)

	root.AddCommand(
		a.recognizeCmd(),
		a.reportCmd(),
		a.platformsCmd(),
		serveCmd(errOut),
	)
	return root
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	if err := NewRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// copyText puts s on the clipboard and tells the user on errOut
func (a *app) copyText(s, what string) error {
	if err := copyToClipboard(s); err != nil {
		return fmt.Errorf("copying to clipboard: %w", err)
	}
	fmt.Fprintf(a.errOut, "Copied %s to clipboard.\n", what)
	return nil
}
