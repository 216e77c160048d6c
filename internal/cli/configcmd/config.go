// Package configcmd implements `gamelib config`.
package configcmd

import (
	"fmt"

	"github.com/cuihairu/gamelib/internal/cli/common"
	"github.com/spf13/cobra"
)

func New(g *common.Globals) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect the effective configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Validate the effective config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := g.Load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config after files, profile, env and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.Load()
			if err != nil {
				return err
			}
			format := g.Output
			if format == common.FormatTable {
				format = common.FormatYAML
			}
			return common.Print(cmd.OutOrStdout(), format, cfg, nil)
		},
	})
	return cmd
}
