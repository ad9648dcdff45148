package cli

import (
	"encoding/json"

	"tubewatch/internal/app"

	"github.com/spf13/cobra"
)

func newStateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the persisted last-seen state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := opts.loadConfig()
			if err != nil {
				return err
			}
			state, err := app.LoadState(cmd.Context(), m.Get())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "    ")
			return enc.Encode(state)
		},
	}
}
