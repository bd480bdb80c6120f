package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command
func NewConfigCmd(global *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after config.local.toml, .env and environment
overrides have been applied. API keys are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := global.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if err := l.cfg.Validate(); err != nil {
				fmt.Fprintf(out, "# warning: %v\n", err)
			}
			fmt.Fprintf(out, "# workspace: %s\n", l.dir)
			return l.cfg.Encode(out, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "toml", "output format: toml or yaml")
	return cmd
}
