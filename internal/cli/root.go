// Package cli assembles the gamelib command tree.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/cuihairu/gamelib/internal/cli/catalogcmd"
	"github.com/cuihairu/gamelib/internal/cli/common"
	"github.com/cuihairu/gamelib/internal/cli/configcmd"
	"github.com/cuihairu/gamelib/internal/cli/ingestcmd"
	"github.com/cuihairu/gamelib/internal/cli/usercmd"
	"github.com/spf13/cobra"
)

// NewRoot returns the `gamelib` root command with every subcommand attached.
func NewRoot() *cobra.Command {
	var g common.Globals
	root := &cobra.Command{
		Use:           "gamelib",
		Short:         "Game catalog: ingest, browse, search, review",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			slog.Debug("log summary", "counts", common.LogCounters())
		},
	}
	g.Bind(root)

	root.AddCommand(ingestcmd.New(&g))
	root.AddCommand(catalogcmd.New(&g)...)
	root.AddCommand(usercmd.New(&g)...)
	root.AddCommand(configcmd.New(&g))
	root.AddCommand(completionCmd(root))
	return root
}

func completionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return fmt.Errorf("unknown shell: %s", args[0])
		},
	}
}
