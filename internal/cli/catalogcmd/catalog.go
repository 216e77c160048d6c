// Package catalogcmd implements the read-only catalog commands: games,
// genres, publishers, tags, search and similar.
package catalogcmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuihairu/gamelib/internal/cli/common"
	"github.com/cuihairu/gamelib/internal/service/catalog"
	"github.com/spf13/cobra"
)

// New returns the catalog commands to be added to the root.
func New(g *common.Globals) []*cobra.Command {
	return []*cobra.Command{
		gamesCmd(g),
		namesCmd(g, "genres", "List genres", (*catalog.Service).Genres),
		namesCmd(g, "publishers", "List publishers", (*catalog.Service).Publishers),
		namesCmd(g, "tags", "List tags", (*catalog.Service).Tags),
		searchCmd(g),
		similarCmd(g),
	}
}

func gamesCmd(g *common.Globals) *cobra.Command {
	var (
		genre string
		slide bool
	)
	cmd := &cobra.Command{
		Use:   "games [id]",
		Short: "List games, or show one game by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.Run(ctx, true, func(rt *common.Runtime) error {
				if len(args) == 1 {
					id, err := ParseID(args[0])
					if err != nil {
						return err
					}
					v, err := rt.Service.Game(ctx, id)
					if err != nil {
						return err
					}
					if v == nil {
						return fmt.Errorf("%w: %d", catalog.ErrUnknownGame, id)
					}
					return printGame(cmd, g.Output, v)
				}
				var (
					views []catalog.GameView
					err   error
				)
				switch {
				case genre != "":
					views, err = rt.Service.GamesByGenre(ctx, genre)
				case slide:
					views, err = rt.Service.SlideGames(ctx)
				default:
					views, err = rt.Service.Games(ctx)
				}
				if err != nil {
					return err
				}
				return PrintGames(cmd, g.Output, views)
			})
		},
	}
	cmd.Flags().StringVar(&genre, "genre", "", "only games in this genre")
	cmd.Flags().BoolVar(&slide, "slide", false, "only the featured games")
	return cmd
}

func namesCmd(g *common.Globals, use, short string, list func(*catalog.Service, context.Context) ([]string, error)) *cobra.Command {
	header := strings.ToUpper(strings.TrimSuffix(use, "s"))
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return g.Run(ctx, true, func(rt *common.Runtime) error {
				names, err := list(rt.Service, ctx)
				if err != nil {
					return err
				}
				return common.Print(cmd.OutOrStdout(), g.Output, names, func() ([]string, [][]string) {
					rows := make([][]string, 0, len(names))
					for _, n := range names {
						rows = append(rows, []string{n})
					}
					return []string{header}, rows
				})
			})
		},
	}
}

func searchCmd(g *common.Globals) *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search games by title, publisher, category or tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.Run(ctx, true, func(rt *common.Runtime) error {
				views, err := rt.Service.Search(ctx, field, args[0])
				if err != nil {
					return err
				}
				return PrintGames(cmd, g.Output, views)
			})
		},
	}
	cmd.Flags().StringVarP(&field, "by", "b", catalog.FieldTitle, "field: title|publisher|category|tags")
	return cmd
}

func similarCmd(g *common.Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "similar <id>",
		Short: "List games sharing a genre with a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ParseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return g.Run(ctx, true, func(rt *common.Runtime) error {
				views, err := rt.Service.SimilarTo(ctx, id)
				if err != nil {
					return err
				}
				return PrintGames(cmd, g.Output, views)
			})
		},
	}
}

func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid game id %q", s)
	}
	return id, nil
}

func price(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

// PrintGames renders a game list; table output shows the summary columns.
func PrintGames(cmd *cobra.Command, format string, views []catalog.GameView) error {
	return common.Print(cmd.OutOrStdout(), format, views, func() ([]string, [][]string) {
		rows := make([][]string, 0, len(views))
		for _, v := range views {
			rows = append(rows, []string{strconv.FormatInt(v.ID, 10), v.Title, v.Publisher, price(v.Price), v.ReleaseDate})
		}
		return []string{"ID", "TITLE", "PUBLISHER", "PRICE", "RELEASED"}, rows
	})
}

func printGame(cmd *cobra.Command, format string, v *catalog.GameView) error {
	return common.Print(cmd.OutOrStdout(), format, v, func() ([]string, [][]string) {
		rating := "-"
		if v.Reviews > 0 {
			rating = strconv.FormatFloat(v.Rating, 'f', 1, 64) + " (" + strconv.Itoa(v.Reviews) + ")"
		}
		return []string{"FIELD", "VALUE"}, [][]string{
			{"id", strconv.FormatInt(v.ID, 10)},
			{"title", v.Title},
			{"publisher", v.Publisher},
			{"price", price(v.Price)},
			{"released", v.ReleaseDate},
			{"genres", strings.Join(v.Genres, ", ")},
			{"categories", strings.Join(v.Categories, ", ")},
			{"tags", strings.Join(v.Tags, ", ")},
			{"languages", strings.Join(v.Languages, ", ")},
			{"platforms", strings.Join(v.Platforms, ", ")},
			{"website", v.URL},
			{"rating", rating},
		}
	})
}
