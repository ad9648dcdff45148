package cli

import (
	"encoding/json"
	"fmt"

	"tubewatch/internal/app"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single pass, print the report and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), m, app.Options{DryRun: dryRun})
			if err != nil {
				return err
			}
			rep, err := a.Check(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if eerr := enc.Encode(rep); eerr != nil {
				return eerr
			}
			if err != nil {
				return err
			}
			if rep.SaveErr != "" {
				return fmt.Errorf("save state: %s", rep.SaveErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "probe only; do not notify or save state")
	return cmd
}
