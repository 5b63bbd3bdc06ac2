package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newUpdateSecretCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update-secret <value>",
		Short: "Store a new key for a profile and verify it",
		Long: `Store a new value for the profile's secret in the boundary, then run the
verification again. A value of "-" reads the first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := args[0]
			if value == "-" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read secret from stdin: %w", err)
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return fmt.Errorf("secret value is empty")
			}
			return opts.runUpdateSecret(cmd, value)
		},
	}
}

func (o *options) runUpdateSecret(cmd *cobra.Command, value string) error {
	ctx := cmd.Context()
	inv, err := o.open(cmd)
	if err != nil {
		return err
	}
	p, err := inv.profile(ctx)
	if err != nil {
		return err
	}
	w, err := inv.workflow(p)
	if err != nil {
		return err
	}
	rec := o.record(inv.bar, cmd.OutOrStdout())

	// the editor is reachable once the first check has settled
	w.Start(ctx)
	view, err := w.UpdateSecret(ctx, value)
	if err != nil {
		return err
	}
	return o.finish(cmd.OutOrStdout(), p, view, w.LastFailure(), rec, false)
}
