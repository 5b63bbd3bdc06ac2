package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"git.sr.ht/~jakintosh/keycheck/pkg/profile"
)

func newProfilesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the profiles the data server checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := opts.open(cmd)
			if err != nil {
				return err
			}

			profiles, err := inv.client.Checks(cmd.Context())
			if err != nil {
				inv.log.WithError(err).Warn("failed to list checks; showing built-in profiles")
				profiles = profile.Builtins()
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(profiles)
			}
			for _, p := range profiles {
				fmt.Fprintf(out, "%-16s %-20s %s\n", p.Name, p.CheckPath, p.Label)
			}
			return nil
		},
	}
}
