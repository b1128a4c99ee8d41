package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embedfixer/embedfixer/internal/embed"
)

func (a *app) reportCmd() *cobra.Command {
	var output string
	var copyReport bool

	cmd := &cobra.Command{
		Use:   "report <url>",
		Short: "Print a bug report for the platform about a share link",
		Long: `Print a plain-text bug report describing the share link and the content ID
it should have pointed at. Nothing is sent anywhere.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(output)
			if err != nil {
				return err
			}

			r, err := a.registry.Recognize(embed.CleanInput(args[0]))
			if err != nil {
				return err
			}

			rep := embed.NewReport(r)
			if err := writeReport(a.out, rep, f); err != nil {
				return err
			}

			if copyReport {
				return a.copyText(rep.String(), "report")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text | json | yaml")
	cmd.Flags().BoolVarP(&copyReport, "copy", "c", false, "Copy the report to the clipboard")
	return cmd
}

func (a *app) platformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List supported platforms in matching order",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range a.registry.Platforms() {
				fmt.Fprintln(a.out, p)
			}
		},
	}
}
