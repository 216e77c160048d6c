package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	dom "github.com/cuihairu/gamelib/internal/domain"
	"gorm.io/gorm"
)

// State is the lifecycle state of the repository session.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	}
	return "closed"
}

// loadChunk bounds the number of ids bound into a single IN clause.
const loadChunk = 500

// session is one unit of work: a gorm session plus the identity map of every
// entity materialized through it. Dropping the session drops the map.
type session struct {
	db    *gorm.DB
	log   *slog.Logger
	state State

	games      map[int64]*dom.Game
	users      map[string]*dom.User
	userIDs    map[string]uint
	usersByID  map[uint]*dom.User
	reviews    map[uint]*dom.Review
	genres     map[string]*dom.Genre
	publishers map[string]*dom.Publisher
}

func newSession(db *gorm.DB, log *slog.Logger) *session {
	return &session{
		db:         db.Session(&gorm.Session{NewDB: true}),
		log:        log,
		state:      StateOpen,
		games:      map[int64]*dom.Game{},
		users:      map[string]*dom.User{},
		userIDs:    map[string]uint{},
		usersByID:  map[uint]*dom.User{},
		reviews:    map[uint]*dom.Review{},
		genres:     map[string]*dom.Genre{},
		publishers: map[string]*dom.Publisher{},
	}
}

func (s *session) genre(name string) *dom.Genre {
	if g, ok := s.genres[name]; ok {
		return g
	}
	g := dom.NewGenre(name)
	s.genres[name] = g
	return g
}

func (s *session) publisher(name string) *dom.Publisher {
	if p, ok := s.publishers[name]; ok {
		return p
	}
	p := dom.NewPublisher(name)
	s.publishers[name] = p
	return p
}

func byPosition(db *gorm.DB) *gorm.DB { return db.Order("position") }

func byID(db *gorm.DB) *gorm.DB { return db.Order("id") }

// gamesByID returns the session's instances for ids in the given order,
// loading the ones not seen yet. Unknown ids are dropped.
func (s *session) gamesByID(ctx context.Context, ids []int64) ([]*dom.Game, error) {
	var missing []int64
	for _, id := range ids {
		if _, ok := s.games[id]; !ok && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	var recs []*Game
	for chunk := range slices.Chunk(missing, loadChunk) {
		var part []*Game
		err := s.db.WithContext(ctx).
			Preload("GenreLinks", byPosition).
			Preload("TagLinks", byPosition).
			Preload("CategoryLinks", byPosition).
			Preload("Reviews", byID).
			Where("id IN ?", chunk).
			Find(&part).Error
		if err != nil {
			return nil, err
		}
		recs = append(recs, part...)
	}
	// Register every game before following reviews so cycles resolve
	// through the map.
	for _, rec := range recs {
		if g := s.toDomainGame(rec); g != nil {
			s.games[rec.ID] = g
		}
	}
	for _, rec := range recs {
		for i := range rec.Reviews {
			if _, err := s.review(ctx, &rec.Reviews[i]); err != nil {
				return nil, err
			}
		}
	}
	out := make([]*dom.Game, 0, len(ids))
	for _, id := range ids {
		if g, ok := s.games[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// adopt makes g the session's instance for its id. Reviews of a previously
// materialized instance, or stored for the id, are linked to g, and users in
// the session see g in their wishlists and favourites.
func (s *session) adopt(ctx context.Context, g *dom.Game) error {
	old, seen := s.games[g.ID()]
	s.games[g.ID()] = g
	if seen {
		if old != g {
			g.Supersede(old)
			for _, u := range s.users {
				u.ReplaceGame(g)
			}
		}
		return nil
	}
	var recs []Review
	if err := s.db.WithContext(ctx).Where("game_id = ?", g.ID()).Order("id").Find(&recs).Error; err != nil {
		return err
	}
	for i := range recs {
		if _, err := s.review(ctx, &recs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) toDomainGame(rec *Game) *dom.Game {
	g, err := dom.NewGame(rec.ID, deref(rec.Title))
	if err != nil {
		return nil
	}
	if rec.Price != nil {
		_ = g.SetPrice(*rec.Price)
	}
	_ = g.SetReleaseDate(deref(rec.ReleaseDate))
	g.SetDescription(deref(rec.Description))
	g.SetImageURL(deref(rec.ImageURL))
	g.SetWebsiteURL(deref(rec.WebsiteURL))
	g.SetVideoURL(deref(rec.VideoURL))
	if rec.PublisherName != nil {
		g.SetPublisher(s.publisher(*rec.PublisherName))
	}
	for _, l := range rec.GenreLinks {
		g.AddGenre(s.genre(l.GenreName))
	}
	for _, l := range rec.TagLinks {
		g.AddTag(l.Tag)
	}
	for _, l := range rec.CategoryLinks {
		g.AddCategory(l.Category)
	}
	langs, err := rec.languageList()
	if err != nil {
		s.log.Warn("stored game column unreadable", "game_id", rec.ID, "error", err)
	}
	for _, l := range langs {
		g.AddLanguage(l)
	}
	support, err := rec.supportMap()
	if err != nil {
		s.log.Warn("stored game column unreadable", "game_id", rec.ID, "error", err)
	}
	for platform, ok := range support {
		g.SetSystemSupport(platform, ok)
	}
	return g
}

func (s *session) userByName(ctx context.Context, username string) (*dom.User, error) {
	name := dom.NormalizeUsername(username)
	if u, ok := s.users[name]; ok {
		return u, nil
	}
	return s.loadUser(ctx, "username = ?", name)
}

func (s *session) userByID(ctx context.Context, id uint) (*dom.User, error) {
	if u, ok := s.usersByID[id]; ok {
		return u, nil
	}
	return s.loadUser(ctx, "id = ?", id)
}

func (s *session) loadUser(ctx context.Context, cond string, arg any) (*dom.User, error) {
	var rec User
	err := s.db.WithContext(ctx).
		Preload("Wishlist.Entries", byID).
		Preload("Favourites", byID).
		Preload("Reviews", byID).
		Where(cond, arg).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u, err := dom.NewUser(rec.Username, rec.PasswordHash)
	if err != nil {
		return nil, nil
	}
	s.remember(u, rec.ID)

	wish := make([]int64, 0, len(rec.Wishlist.Entries))
	for _, e := range rec.Wishlist.Entries {
		wish = append(wish, e.GameID)
	}
	games, err := s.gamesByID(ctx, wish)
	if err != nil {
		return nil, err
	}
	for _, g := range games {
		u.Wishlist().Add(g)
	}

	favs := make([]int64, 0, len(rec.Favourites))
	for _, f := range rec.Favourites {
		favs = append(favs, f.GameID)
	}
	if games, err = s.gamesByID(ctx, favs); err != nil {
		return nil, err
	}
	for _, g := range games {
		u.AddFavouriteGame(g)
	}

	for i := range rec.Reviews {
		if _, err := s.review(ctx, &rec.Reviews[i]); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (s *session) remember(u *dom.User, id uint) {
	s.users[u.Username()] = u
	s.userIDs[u.Username()] = id
	s.usersByID[id] = u
}

// review links a stored review to its user and game. Rows that reference
// missing entities or fail validation are skipped.
func (s *session) review(ctx context.Context, rec *Review) (*dom.Review, error) {
	if rv, ok := s.reviews[rec.ID]; ok {
		return rv, nil
	}
	u, err := s.userByID(ctx, rec.UserID)
	if err != nil || u == nil {
		return nil, err
	}
	games, err := s.gamesByID(ctx, []int64{rec.GameID})
	if err != nil || len(games) == 0 {
		return nil, err
	}
	// Loading the user or the game may already have materialized it.
	if rv, ok := s.reviews[rec.ID]; ok {
		return rv, nil
	}
	rv, err := dom.NewReviewAt(u, games[0], rec.Rating, rec.Comment, rec.Timestamp)
	if err != nil {
		return nil, nil
	}
	s.reviews[rec.ID] = rv
	u.AddReview(rv)
	games[0].AddReview(rv)
	return rv, nil
}
