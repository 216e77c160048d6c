package ports

import (
	"context"
	"errors"

	"github.com/cuihairu/gamelib/internal/domain"
)

// SlideGamesLimit bounds the promotional subset returned by SlideGames.
const SlideGamesLimit = 10

var (
	// ErrUserExists is returned by AddUser when the username is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrNotStored is returned by user-scoped operations when the user or the
	// game has not been added to the repository.
	ErrNotStored = errors.New("entity not stored")
	// ErrBackend wraps failures of the underlying store. The store is left
	// rolled back when it is returned.
	ErrBackend = errors.New("repository backend failure")
)

// Repository is the catalog store contract shared by the in-memory and the
// persistent backends. Lookups that find nothing return nil or an empty slice
// with a nil error. Returned slices belong to the caller; the entities inside
// them are shared.
type Repository interface {
	// Games
	AddGame(ctx context.Context, g *domain.Game) error
	Games(ctx context.Context) ([]*domain.Game, error)
	NumberOfGames(ctx context.Context) (int, error)
	GameByID(ctx context.Context, id int64) (*domain.Game, error)
	SimilarGames(ctx context.Context, genres []*domain.Genre) ([]*domain.Game, error)
	SlideGames(ctx context.Context) ([]*domain.Game, error)

	// Genres and publishers are upserted by normalized name.
	AddGenre(ctx context.Context, g *domain.Genre) error
	Genres(ctx context.Context) ([]*domain.Genre, error)
	GamesByGenre(ctx context.Context, genre string) ([]*domain.Game, error)
	AddPublisher(ctx context.Context, p *domain.Publisher) error
	Publishers(ctx context.Context) ([]*domain.Publisher, error)
	Tags(ctx context.Context) ([]string, error)

	// Case-insensitive substring search, ordered by game id.
	SearchGamesByTitle(ctx context.Context, q string) ([]*domain.Game, error)
	SearchGamesByPublisher(ctx context.Context, q string) ([]*domain.Game, error)
	SearchGamesByCategory(ctx context.Context, q string) ([]*domain.Game, error)
	SearchGamesByTag(ctx context.Context, q string) ([]*domain.Game, error)

	// Users
	AddUser(ctx context.Context, u *domain.User) error
	User(ctx context.Context, username string) (*domain.User, error)

	AddWishGame(ctx context.Context, u *domain.User, g *domain.Game) error
	RemoveWishGame(ctx context.Context, u *domain.User, g *domain.Game) error
	Wishlist(ctx context.Context, u *domain.User) ([]*domain.Game, error)

	AddFavouriteGame(ctx context.Context, u *domain.User, g *domain.Game) error
	RemoveFavouriteGame(ctx context.Context, u *domain.User, g *domain.Game) error
	FavouriteGames(ctx context.Context, u *domain.User) ([]*domain.Game, error)

	// AddReview reports false without changes when u already reviewed g.
	AddReview(ctx context.Context, u *domain.User, g *domain.Game, rating int, comment string) (bool, error)
	UserReviews(ctx context.Context, u *domain.User) ([]*domain.Review, error)
	Reviews(ctx context.Context) ([]*domain.Review, error)

	// ResetSession drops cached state and starts a fresh unit of work.
	ResetSession(ctx context.Context) error
	Close() error
}
