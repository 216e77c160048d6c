// Package catalog is the use-case layer over a ports.Repository: account
// registration, browsing, search, reviews and wishlists. It returns flat
// views and publishes a domain event for every accepted write.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuihairu/gamelib/internal/datareader"
	"github.com/cuihairu/gamelib/internal/domain"
	"github.com/cuihairu/gamelib/internal/events"
	"github.com/cuihairu/gamelib/internal/ports"
	"github.com/cuihairu/gamelib/internal/security/password"
)

// MinPasswordLength is the shortest accepted password, after trimming.
const MinPasswordLength = 7

var (
	ErrPasswordTooShort   = errors.New("password too short")
	ErrUnknownUser        = errors.New("unknown user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownGame        = errors.New("unknown game")
	ErrUnknownField       = errors.New("unknown search field")
)

// Search fields accepted by Service.Search.
const (
	FieldTitle     = "title"
	FieldPublisher = "publisher"
	FieldCategory  = "category"
	FieldTag       = "tags"
)

type Service struct {
	repo   ports.Repository
	hasher password.Hasher
	events events.Publisher
	reader *datareader.Reader
	log    *slog.Logger
}

type Option func(*Service)

func WithHasher(h password.Hasher) Option { return func(s *Service) { s.hasher = h } }

func WithEvents(p events.Publisher) Option { return func(s *Service) { s.events = p } }

func WithReader(r *datareader.Reader) Option { return func(s *Service) { s.reader = r } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(repo ports.Repository, opts ...Option) *Service {
	s := &Service{repo: repo, hasher: password.NewBcrypt(0), events: events.Noop{}, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.reader == nil {
		s.reader = datareader.New(repo, datareader.WithLogger(s.log))
	}
	return s
}

// publish is best effort: a broker outage never fails the write it reports.
func (s *Service) publish(ctx context.Context, typ string, attrs map[string]any) {
	if err := s.events.Publish(ctx, events.New(typ, attrs)); err != nil {
		s.log.Warn("publish event failed", "type", typ, "error", err)
	}
}

// Ingest loads the dataset at location and reports what was stored.
func (s *Service) Ingest(ctx context.Context, location string) (datareader.Stats, error) {
	st, err := s.reader.ReadFile(ctx, location)
	if err != nil {
		return st, err
	}
	s.publish(ctx, events.CatalogIngested, map[string]any{
		"source":  location,
		"games":   st.Games,
		"skipped": st.Skipped,
		"failed":  st.Failed,
	})
	return st, nil
}

// ---- accounts ----

func (s *Service) Register(ctx context.Context, username, plain string) (*domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, &domain.ValidationError{Entity: "user", Field: "username", Err: domain.ErrInvalidUsername}
	}
	if len(strings.TrimSpace(plain)) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	existing, err := s.repo.User(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ports.ErrUserExists
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := domain.NewUser(username, hash)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", "username", u.Username())
	s.publish(ctx, events.UserRegistered, map[string]any{"username": u.Username()})
	return u, nil
}

func (s *Service) Authenticate(ctx context.Context, username, plain string) (*domain.User, error) {
	u, err := s.repo.User(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}
	if err := s.hasher.Verify(u.PasswordHash(), plain); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) user(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.repo.User(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}
	return u, nil
}

func (s *Service) game(ctx context.Context, id int64) (*domain.Game, error) {
	g, err := s.repo.GameByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGame, id)
	}
	return g, nil
}

// ---- browsing ----

func (s *Service) NumberOfGames(ctx context.Context) (int, error) { return s.repo.NumberOfGames(ctx) }

func (s *Service) Games(ctx context.Context) ([]GameView, error) {
	games, err := s.repo.Games(ctx)
	if err != nil {
		return nil, err
	}
	return gameViews(games), nil
}

func (s *Service) SlideGames(ctx context.Context) ([]GameView, error) {
	games, err := s.repo.SlideGames(ctx)
	if err != nil {
		return nil, err
	}
	return gameViews(games), nil
}

// Game returns nil when id is unknown.
func (s *Service) Game(ctx context.Context, id int64) (*GameView, error) {
	g, err := s.repo.GameByID(ctx, id)
	if err != nil || g == nil {
		return nil, err
	}
	v := gameView(g)
	return &v, nil
}

func (s *Service) Genres(ctx context.Context) ([]string, error) {
	genres, err := s.repo.Genres(ctx)
	if err != nil {
		return nil, err
	}
	return domain.GenreNames(genres), nil
}

func (s *Service) Publishers(ctx context.Context) ([]string, error) {
	pubs, err := s.repo.Publishers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pubs))
	for _, p := range pubs {
		out = append(out, p.Name())
	}
	return out, nil
}

func (s *Service) Tags(ctx context.Context) ([]string, error) { return s.repo.Tags(ctx) }

func (s *Service) GamesByGenre(ctx context.Context, genre string) ([]GameView, error) {
	games, err := s.repo.GamesByGenre(ctx, genre)
	if err != nil {
		return nil, err
	}
	return gameViews(games), nil
}

// SimilarTo lists games sharing a genre with gameID, excluding the game itself.
func (s *Service) SimilarTo(ctx context.Context, gameID int64) ([]GameView, error) {
	g, err := s.game(ctx, gameID)
	if err != nil {
		return nil, err
	}
	games, err := s.repo.SimilarGames(ctx, g.Genres())
	if err != nil {
		return nil, err
	}
	out := make([]GameView, 0, len(games))
	for _, o := range games {
		if !o.Equal(g) {
			out = append(out, gameView(o))
		}
	}
	return out, nil
}

// Search dispatches query to the repository search for field. "tag" is
// accepted as an alias of "tags".
func (s *Service) Search(ctx context.Context, field, query string) ([]GameView, error) {
	var search func(context.Context, string) ([]*domain.Game, error)
	switch strings.ToLower(strings.TrimSpace(field)) {
	case FieldTitle:
		search = s.repo.SearchGamesByTitle
	case FieldPublisher:
		search = s.repo.SearchGamesByPublisher
	case FieldCategory:
		search = s.repo.SearchGamesByCategory
	case FieldTag, "tag":
		search = s.repo.SearchGamesByTag
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	games, err := search(ctx, query)
	if err != nil {
		return nil, err
	}
	return gameViews(games), nil
}

// ---- reviews ----

// Review records the user's review of a game. It reports false when the user
// has already reviewed it.
func (s *Service) Review(ctx context.Context, username string, gameID int64, rating int, comment string) (bool, error) {
	u, err := s.user(ctx, username)
	if err != nil {
		return false, err
	}
	g, err := s.game(ctx, gameID)
	if err != nil {
		return false, err
	}
	ok, err := s.repo.AddReview(ctx, u, g, rating, comment)
	if err != nil || !ok {
		return ok, err
	}
	s.publish(ctx, events.ReviewAdded, map[string]any{"username": u.Username(), "game_id": gameID, "rating": rating})
	return true, nil
}

func (s *Service) UserReviews(ctx context.Context, username string) ([]ReviewView, error) {
	u, err := s.user(ctx, username)
	if err != nil {
		return nil, err
	}
	reviews, err := s.repo.UserReviews(ctx, u)
	if err != nil {
		return nil, err
	}
	out := make([]ReviewView, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, reviewView(r))
	}
	return out, nil
}

func (s *Service) GameReviews(ctx context.Context, gameID int64) ([]ReviewView, error) {
	g, err := s.game(ctx, gameID)
	if err != nil {
		return nil, err
	}
	reviews := g.Reviews()
	out := make([]ReviewView, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, reviewView(r))
	}
	return out, nil
}

// ---- wishlist ----

func (s *Service) AddToWishlist(ctx context.Context, username string, gameID int64) error {
	u, err := s.user(ctx, username)
	if err != nil {
		return err
	}
	g, err := s.game(ctx, gameID)
	if err != nil {
		return err
	}
	if u.Wishlist().Contains(g) {
		return nil
	}
	if err := s.repo.AddWishGame(ctx, u, g); err != nil {
		return err
	}
	s.publish(ctx, events.WishlistAdded, map[string]any{"username": u.Username(), "game_id": gameID})
	return nil
}

func (s *Service) RemoveFromWishlist(ctx context.Context, username string, gameID int64) error {
	u, err := s.user(ctx, username)
	if err != nil {
		return err
	}
	g, err := s.game(ctx, gameID)
	if err != nil {
		return err
	}
	if !u.Wishlist().Contains(g) {
		return nil
	}
	if err := s.repo.RemoveWishGame(ctx, u, g); err != nil {
		return err
	}
	s.publish(ctx, events.WishlistRemoved, map[string]any{"username": u.Username(), "game_id": gameID})
	return nil
}

func (s *Service) Wishlist(ctx context.Context, username string) ([]GameView, error) {
	u, err := s.user(ctx, username)
	if err != nil {
		return nil, err
	}
	games, err := s.repo.Wishlist(ctx, u)
	if err != nil {
		return nil, err
	}
	return gameViews(games), nil
}
