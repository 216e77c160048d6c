// Package ingestcmd implements `gamelib ingest`.
package ingestcmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/cuihairu/gamelib/internal/cli/common"
	"github.com/cuihairu/gamelib/internal/datareader"
	"github.com/cuihairu/gamelib/internal/hotreload"
	"github.com/cuihairu/gamelib/internal/objstore"
	"github.com/spf13/cobra"
)

func New(g *common.Globals) *cobra.Command {
	var (
		watch    bool
		debounce = hotreload.DefaultConfig().DebounceTime
	)
	cmd := &cobra.Command{
		Use:   "ingest [location]",
		Short: "Load a games CSV (local path or blob URL) into the repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				g.DataPath = args[0]
			}
			ctx := cmd.Context()
			return g.Run(ctx, false, func(rt *common.Runtime) error {
				loc := rt.Config.Data.Path
				st, err := rt.Service.Ingest(ctx, loc)
				if err != nil {
					return err
				}
				if err := printStats(cmd, g.Output, loc, st); err != nil {
					return err
				}
				if !watch {
					return nil
				}
				parsed, err := objstore.Parse(loc)
				if err != nil {
					return err
				}
				if !parsed.IsLocal() {
					return fmt.Errorf("--watch needs a local path, got %s", loc)
				}
				return watchFile(ctx, cmd, g.Output, rt, parsed.Path, hotreload.Config{DebounceTime: debounce})
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-ingest when the file changes")
	cmd.Flags().DurationVar(&debounce, "debounce", debounce, "quiet period before a change is re-ingested")
	return cmd
}

func watchFile(ctx context.Context, cmd *cobra.Command, format string, rt *common.Runtime, path string, cfg hotreload.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	w, err := hotreload.New(cfg, rt.Logger)
	if err != nil {
		return err
	}
	defer w.Close()
	err = rt.Reader.Watch(w, path, func(st datareader.Stats, err error) {
		if err == nil {
			_ = printStats(cmd, format, path, st)
		}
	})
	if err != nil {
		return err
	}
	rt.Logger.Info("watching dataset, press Ctrl+C to stop", "path", path)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printStats(cmd *cobra.Command, format, loc string, st datareader.Stats) error {
	return common.Print(cmd.OutOrStdout(), format, st, func() ([]string, [][]string) {
		itoa := strconv.Itoa
		return []string{"SOURCE", "ROWS", "GAMES", "SKIPPED", "FAILED", "PUBLISHERS", "GENRES", "TAGS"},
			[][]string{{loc, itoa(st.Rows), itoa(st.Games), itoa(st.Skipped), itoa(st.Failed),
				itoa(st.Publishers), itoa(st.Genres), itoa(st.Tags)}}
	})
}
