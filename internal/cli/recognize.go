package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embedfixer/embedfixer/internal/embed"
)

type recognizeOptions struct {
	output   string
	codeOnly bool
	copy     bool
}

func (o *recognizeOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.output, "output", "o", "text", "Output format: text | json | yaml")
	cmd.Flags().BoolVar(&o.codeOnly, "code-only", false, "Print only the iframe embed code")
	cmd.Flags().BoolVarP(&o.copy, "copy", "c", false, "Copy the embed code to the clipboard")
}

func (a *app) recognizeCmd() *cobra.Command {
	var opts recognizeOptions
	cmd := &cobra.Command{
		Use:     "recognize <url>",
		Aliases: []string{"fix"},
		Short:   "Print the embed URL and code for a share link",
		Example: `  embedfix recognize "https://youtu.be/dQw4w9WgXcQ?si=abc"
  embedfix recognize -o json "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.recognize(args[0], opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func (a *app) recognize(rawURL string, opts recognizeOptions) error {
	f, err := parseFormat(opts.output)
	if err != nil {
		return err
	}

	r, err := a.registry.Recognize(embed.CleanInput(rawURL))
	if err != nil {
		return err
	}

	if opts.codeOnly {
		fmt.Fprintln(a.out, r.EmbedCode)
	} else if err := writeResult(a.out, r, f); err != nil {
		return err
	}

	if opts.copy {
		return a.copyText(r.EmbedCode, "embed code")
	}
	return nil
}
