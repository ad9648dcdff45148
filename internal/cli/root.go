// Package cli provides the command-line interface for tubewatch.
package cli

import (
	"context"
	"fmt"

	"tubewatch/internal/app"
	"tubewatch/internal/config"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tubewatch",
		Short:         "Relay new YouTube uploads to Discord webhooks",
		Long:          "tubewatch polls a fixed set of YouTube channels and posts each newly published video to the channel's Discord webhook exactly once.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (JSON or YAML); empty means environment only")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(
		newRunCmd(opts),
		newCheckCmd(opts),
		newStateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig() (*config.Manager, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}
	m := config.NewManager(o.configPath)
	if _, err := m.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return m, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tubewatch %s\n", app.Version)
		},
	}
}
