// Package usercmd implements the account commands: user, review and
// wishlist. Writes authenticate with --user/--password first; the password
// may also come from GAMELIB_PASSWORD.
package usercmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cuihairu/gamelib/internal/cli/catalogcmd"
	"github.com/cuihairu/gamelib/internal/cli/common"
	"github.com/cuihairu/gamelib/internal/service/catalog"
	"github.com/spf13/cobra"
)

type credentials struct {
	user     string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&c.user, "user", "u", "", "username")
	cmd.PersistentFlags().StringVarP(&c.password, "password", "p", "", "password (default $GAMELIB_PASSWORD)")
}

func (c *credentials) login(ctx context.Context, rt *common.Runtime) (string, error) {
	if c.user == "" {
		return "", errors.New("--user required")
	}
	pw := c.password
	if pw == "" {
		pw = os.Getenv("GAMELIB_PASSWORD")
	}
	u, err := rt.Service.Authenticate(ctx, c.user, pw)
	if err != nil {
		return "", err
	}
	return u.Username(), nil
}

// New returns the user, review and wishlist commands.
func New(g *common.Globals) []*cobra.Command {
	return []*cobra.Command{userCmd(g), reviewCmd(g), wishlistCmd(g)}
}

func userCmd(g *common.Globals) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{Use: "user", Short: "Register and inspect users"}
	creds.bind(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return g.Run(ctx, true, func(rt *common.Runtime) error {
				pw := creds.password
				if pw == "" {
					pw = os.Getenv("GAMELIB_PASSWORD")
				}
				u, err := rt.Service.Register(ctx, creds.user, pw)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", u.Username())
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Check credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return g.Run(ctx, false, func(rt *common.Runtime) error {
				name, err := creds.login(ctx, rt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "authenticated %s\n", name)
				return nil
			})
		},
	})
	return cmd
}

func reviewCmd(g *common.Globals) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{Use: "review", Short: "Write and list reviews"}
	creds.bind(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "add <game-id> <rating> [comment...]",
		Short: "Review a game (once per user and game)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := catalogcmd.ParseID(args[0])
			if err != nil {
				return err
			}
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid rating %q", args[1])
			}
			comment := strings.Join(args[2:], " ")
			ctx := cmd.Context()
			return g.Run(ctx, true, func(rt *common.Runtime) error {
				name, err := creds.login(ctx, rt)
				if err != nil {
					return err
				}
				ok, err := rt.Service.Review(ctx, name, id, rating, comment)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s has already reviewed game %d", name, id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "review added for game %d\n", id)
				return nil
			})
		},
	})

	var gameID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List the reviews of --user, or of --game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return g.Run(ctx, true, func(rt *common.Runtime) error {
				var (
					views []catalog.ReviewView
					err   error
				)
				switch {
				case gameID > 0:
					views, err = rt.Service.GameReviews(ctx, gameID)
				case creds.user != "":
					views, err = rt.Service.UserReviews(ctx, creds.user)
				default:
					return errors.New("--user or --game required")
				}
				if err != nil {
					return err
				}
				return printReviews(cmd, g.Output, views)
			})
		},
	}
	list.Flags().Int64Var(&gameID, "game", 0, "game id")
	cmd.AddCommand(list)
	return cmd
}

func wishlistCmd(g *common.Globals) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{Use: "wishlist", Short: "Manage a user's wishlist"}
	creds.bind(cmd)

	change := func(use, short string, apply func(*catalog.Service, context.Context, string, int64) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <game-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := catalogcmd.ParseID(args[0])
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				return g.Run(ctx, true, func(rt *common.Runtime) error {
					name, err := creds.login(ctx, rt)
					if err != nil {
						return err
					}
					return apply(rt.Service, ctx, name, id)
				})
			},
		}
	}
	cmd.AddCommand(change("add", "Add a game", (*catalog.Service).AddToWishlist))
	cmd.AddCommand(change("remove", "Remove a game", (*catalog.Service).RemoveFromWishlist))
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the wishlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return g.Run(ctx, true, func(rt *common.Runtime) error {
				views, err := rt.Service.Wishlist(ctx, creds.user)
				if err != nil {
					return err
				}
				return catalogcmd.PrintGames(cmd, g.Output, views)
			})
		},
	})
	return cmd
}

func printReviews(cmd *cobra.Command, format string, views []catalog.ReviewView) error {
	return common.Print(cmd.OutOrStdout(), format, views, func() ([]string, [][]string) {
		rows := make([][]string, 0, len(views))
		for _, v := range views {
			rows = append(rows, []string{v.Username, strconv.FormatInt(v.GameID, 10), v.GameTitle,
				strconv.Itoa(v.Rating), v.Timestamp.Format("2006-01-02"), v.Comment})
		}
		return []string{"USER", "GAME", "TITLE", "RATING", "DATE", "COMMENT"}, rows
	})
}
