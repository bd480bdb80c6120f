package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe"
	"github.com/TechnicallyShaun/meetscribe/internal/workspace"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a meetscribe workspace",
		Long: `Create a .meetscribe workspace with a default config.toml.

Without an argument the workspace is created in $MEETSCRIBE_HOME, or the
home directory when that is unset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) == 1 {
				root = args[0]
			} else {
				ws, err := workspace.Default()
				if err != nil {
					return err
				}
				root = ws.Root
			}

			data, err := transcribe.DefaultTOML()
			if err != nil {
				return err
			}

			result, err := workspace.Init(root, data, force)
			if errors.Is(err, workspace.ErrExists) {
				fmt.Fprintf(cmd.OutOrStdout(), "Workspace already initialized at %s (use --force to overwrite the config)\n", result.Workspace.Dir())
				return nil
			}
			if err != nil {
				return err
			}

			if result.AlreadyExisted {
				fmt.Fprintf(cmd.OutOrStdout(), "Replaced config at %s\n", result.Workspace.ConfigPath())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized workspace at %s\n", result.Workspace.Dir())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Edit %s to set your input and output folders.\n", result.Workspace.ConfigPath())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.toml")
	return cmd
}
