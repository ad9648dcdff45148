package cli

import (
	"tubewatch/internal/app"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the watch loop until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), m, app.Options{})
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}
