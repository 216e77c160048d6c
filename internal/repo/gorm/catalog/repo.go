// Package catalog is the gorm-backed catalog repository. Every write runs in
// its own transaction; reads go through a session-scoped identity map so a
// game or user is materialized once per session.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	dom "github.com/cuihairu/gamelib/internal/domain"
	"github.com/cuihairu/gamelib/internal/ports"
	"github.com/cuihairu/gamelib/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo implements ports.Repository over gorm.
type Repo struct {
	db     *gorm.DB
	log    *slog.Logger
	tracer trace.Tracer

	// mu serializes operations. The session and its identity maps are only
	// touched with mu held.
	mu   sync.Mutex
	sess *session
}

var _ ports.Repository = (*Repo)(nil)

type Option func(*Repo)

func WithLogger(l *slog.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.log = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Repo) {
		if t != nil {
			r.tracer = t
		}
	}
}

func NewRepo(db *gorm.DB, opts ...Option) *Repo {
	r := &Repo{db: db, log: slog.Default(), tracer: otel.Tracer("gamelib/repo/catalog")}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State reports the lifecycle state of the current session.
func (r *Repo) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return StateClosed
	}
	return r.sess.state
}

// ResetSession discards the identity map and opens a fresh session.
func (r *Repo) ResetSession(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sess = newSession(r.db, r.log)
	return nil
}

// Close ends the current session. The next call opens a new one.
func (r *Repo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sess = nil
	return nil
}

// session returns the current session, opening one if needed. r.mu must be
// held.
func (r *Repo) session() *session {
	if r.sess == nil {
		r.sess = newSession(r.db, r.log)
	}
	return r.sess
}

// read returns the session and a handle for a query outside a transaction.
func (r *Repo) read(ctx context.Context) (*session, *gorm.DB) {
	s := r.session()
	s.state = StateOpen
	return s, s.db.WithContext(ctx)
}

// withTx runs fn as one begin -> act -> commit unit. On failure the unit is
// rolled back, logged and reported as ports.ErrBackend. fn must only use tx.
func (r *Repo) withTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	s := r.session()
	ctx, span := r.tracer.Start(ctx, "catalog."+op, trace.WithAttributes(telemetry.OperationKey.String(op)))
	defer span.End()

	s.state = StateOpen
	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		s.state = StateCommitted
		return nil
	}
	s.state = StateRolledBack
	if errors.Is(err, ports.ErrUserExists) {
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return r.fail(op, err)
}

func (r *Repo) fail(op string, err error) error {
	r.log.Error("catalog operation failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w: %w", op, ports.ErrBackend, err)
}

// ---- games ----

func (r *Repo) AddGame(ctx context.Context, g *dom.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g == nil {
		return nil
	}
	rec, err := fromDomainGame(g)
	if err != nil {
		return r.fail("add_game", err)
	}
	err = r.withTx(ctx, "add_game", func(tx *gorm.DB) error {
		if p := g.Publisher(); p != nil && !p.IsNull() {
			if err := upsertPublisher(tx, p); err != nil {
				return err
			}
		}
		for _, gn := range g.Genres() {
			if err := upsertGenre(tx, gn); err != nil {
				return err
			}
		}
		err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
			Create(rec).Error
		if err != nil {
			return err
		}
		return replaceLinks(tx, g)
	})
	if err != nil {
		return err
	}
	if err := r.session().adopt(ctx, g); err != nil {
		return r.fail("add_game", err)
	}
	return nil
}

func fromDomainGame(g *dom.Game) (*Game, error) {
	rec := &Game{
		ID:          g.ID(),
		Title:       nullable(g.Title()),
		ReleaseDate: nullable(g.ReleaseDate()),
		Description: nullable(g.Description()),
		ImageURL:    nullable(g.ImageURL()),
		WebsiteURL:  nullable(g.WebsiteURL()),
		VideoURL:    nullable(g.VideoURL()),
	}
	var err error
	if rec.Languages, err = jsonOf(g.Languages()); err != nil {
		return nil, fmt.Errorf("encode languages: %w", err)
	}
	if rec.SystemSupport, err = jsonOf(g.SystemSupport()); err != nil {
		return nil, fmt.Errorf("encode system_support: %w", err)
	}
	if p, ok := g.Price(); ok {
		rec.Price = &p
	}
	if pub := g.Publisher(); pub != nil {
		rec.PublisherName = nullable(pub.Name())
	}
	return rec, nil
}

// replaceLinks rewrites the genre, tag and category rows of g.
func replaceLinks(tx *gorm.DB, g *dom.Game) error {
	id := g.ID()
	for _, m := range []any{&GameGenre{}, &GameTag{}, &GameCategory{}} {
		if err := tx.Where("game_id = ?", id).Delete(m).Error; err != nil {
			return err
		}
	}
	var genres []GameGenre
	for i, gn := range g.Genres() {
		genres = append(genres, GameGenre{GameID: id, GenreName: gn.Name(), Position: i})
	}
	var tags []GameTag
	for i, t := range g.Tags() {
		tags = append(tags, GameTag{GameID: id, Tag: t, Position: i})
	}
	var cats []GameCategory
	for i, c := range g.Categories() {
		cats = append(cats, GameCategory{GameID: id, Category: c, Position: i})
	}
	if len(genres) > 0 {
		if err := tx.Create(&genres).Error; err != nil {
			return err
		}
	}
	if len(tags) > 0 {
		if err := tx.Create(&tags).Error; err != nil {
			return err
		}
	}
	if len(cats) > 0 {
		if err := tx.Create(&cats).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) Games(ctx context.Context) ([]*dom.Game, error) {
	return r.findGames(ctx, "games", nil)
}

func (r *Repo) NumberOfGames(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, db := r.read(ctx)
	var n int64
	if err := db.Model(&Game{}).Count(&n).Error; err != nil {
		return 0, r.fail("number_of_games", err)
	}
	return int(n), nil
}

func (r *Repo) GameByID(ctx context.Context, id int64) (*dom.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, _ := r.read(ctx)
	games, err := s.gamesByID(ctx, []int64{id})
	if err != nil {
		return nil, r.fail("game_by_id", err)
	}
	if len(games) == 0 {
		return nil, nil
	}
	return games[0], nil
}

func (r *Repo) SimilarGames(ctx context.Context, genres []*dom.Genre) ([]*dom.Game, error) {
	var names []string
	for _, g := range genres {
		if g != nil && !g.IsNull() {
			names = append(names, g.Name())
		}
	}
	if len(names) == 0 {
		return []*dom.Game{}, nil
	}
	return r.findGames(ctx, "similar_games", func(db *gorm.DB) *gorm.DB {
		return db.Where("id IN (SELECT game_id FROM game_genres WHERE genre_name IN ?)", names)
	})
}

func (r *Repo) SlideGames(ctx context.Context) ([]*dom.Game, error) {
	return r.findGames(ctx, "slide_games", func(db *gorm.DB) *gorm.DB {
		return db.Limit(ports.SlideGamesLimit)
	})
}

// findGames plucks the matching ids in id order and resolves them through
// the identity map.
func (r *Repo) findGames(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) ([]*dom.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, db := r.read(ctx)
	q := db.Model(&Game{})
	if scope != nil {
		q = scope(q)
	}
	var ids []int64
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, r.fail(op, err)
	}
	games, err := s.gamesByID(ctx, ids)
	if err != nil {
		return nil, r.fail(op, err)
	}
	return games, nil
}

// ---- genres, publishers, tags ----

func upsertGenre(tx *gorm.DB, g *dom.Genre) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Genre{Name: g.Name()}).Error
}

func upsertPublisher(tx *gorm.DB, p *dom.Publisher) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Publisher{Name: p.Name()}).Error
}

func (r *Repo) AddGenre(ctx context.Context, g *dom.Genre) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g == nil || g.IsNull() {
		return nil
	}
	err := r.withTx(ctx, "add_genre", func(tx *gorm.DB) error { return upsertGenre(tx, g) })
	if err != nil {
		return err
	}
	s := r.session()
	if _, ok := s.genres[g.Name()]; !ok {
		s.genres[g.Name()] = g
	}
	return nil
}

func (r *Repo) Genres(ctx context.Context) ([]*dom.Genre, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, db := r.read(ctx)
	var names []string
	if err := db.Model(&Genre{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, r.fail("genres", err)
	}
	out := make([]*dom.Genre, 0, len(names))
	for _, n := range names {
		out = append(out, s.genre(n))
	}
	return out, nil
}

func (r *Repo) GamesByGenre(ctx context.Context, name string) ([]*dom.Game, error) {
	want := dom.NewGenre(name)
	return r.findGames(ctx, "games_by_genre", func(db *gorm.DB) *gorm.DB {
		return db.Where("id IN (SELECT game_id FROM game_genres WHERE genre_name = ?)", want.Name())
	})
}

func (r *Repo) AddPublisher(ctx context.Context, p *dom.Publisher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == nil || p.IsNull() {
		return nil
	}
	err := r.withTx(ctx, "add_publisher", func(tx *gorm.DB) error { return upsertPublisher(tx, p) })
	if err != nil {
		return err
	}
	s := r.session()
	if _, ok := s.publishers[p.Name()]; !ok {
		s.publishers[p.Name()] = p
	}
	return nil
}

func (r *Repo) Publishers(ctx context.Context) ([]*dom.Publisher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, db := r.read(ctx)
	var names []string
	if err := db.Model(&Publisher{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, r.fail("publishers", err)
	}
	out := make([]*dom.Publisher, 0, len(names))
	for _, n := range names {
		out = append(out, s.publisher(n))
	}
	return out, nil
}

func (r *Repo) Tags(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, db := r.read(ctx)
	var tags []string
	if err := db.Model(&GameTag{}).Distinct("tag").Order("tag").Pluck("tag", &tags).Error; err != nil {
		return nil, r.fail("tags", err)
	}
	return tags, nil
}

// ---- search ----

func (r *Repo) SearchGamesByTitle(ctx context.Context, q string) ([]*dom.Game, error) {
	return r.findGames(ctx, "search_title", func(db *gorm.DB) *gorm.DB {
		return db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, likePattern(q))
	})
}

func (r *Repo) SearchGamesByPublisher(ctx context.Context, q string) ([]*dom.Game, error) {
	return r.findGames(ctx, "search_publisher", func(db *gorm.DB) *gorm.DB {
		return db.Where(`LOWER(publisher_name) LIKE ? ESCAPE '\'`, likePattern(q))
	})
}

func (r *Repo) SearchGamesByCategory(ctx context.Context, q string) ([]*dom.Game, error) {
	return r.findGames(ctx, "search_category", func(db *gorm.DB) *gorm.DB {
		return db.Where(`id IN (SELECT game_id FROM game_categories WHERE LOWER(category) LIKE ? ESCAPE '\')`, likePattern(q))
	})
}

func (r *Repo) SearchGamesByTag(ctx context.Context, q string) ([]*dom.Game, error) {
	return r.findGames(ctx, "search_tag", func(db *gorm.DB) *gorm.DB {
		return db.Where(`id IN (SELECT game_id FROM game_tags WHERE LOWER(tag) LIKE ? ESCAPE '\')`, likePattern(q))
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(q string) string { return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%" }

// ---- users ----

func (r *Repo) AddUser(ctx context.Context, u *dom.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u == nil {
		return nil
	}
	var id uint
	err := r.withTx(ctx, "add_user", func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&User{}).Where("username = ?", u.Username()).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ports.ErrUserExists
		}
		rec := &User{Username: u.Username(), PasswordHash: u.PasswordHash()}
		if err := tx.Omit(clause.Associations).Create(rec).Error; err != nil {
			return err
		}
		wl := &Wishlist{UserID: rec.ID}
		if err := tx.Omit(clause.Associations).Create(wl).Error; err != nil {
			return err
		}
		for _, g := range u.Wishlist().Games() {
			if err := tx.Create(&WishlistEntry{WishlistID: wl.ID, GameID: g.ID()}).Error; err != nil {
				return err
			}
		}
		for _, g := range u.FavouriteGames() {
			if err := tx.Create(&Favourite{UserID: rec.ID, GameID: g.ID()}).Error; err != nil {
				return err
			}
		}
		id = rec.ID
		return nil
	})
	if err != nil {
		return err
	}
	r.session().remember(u, id)
	return nil
}

func (r *Repo) User(ctx context.Context, username string) (*dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, _ := r.read(ctx)
	u, err := s.userByName(ctx, username)
	if err != nil {
		return nil, r.fail("user", err)
	}
	return u, nil
}

// resolve maps caller-held entities onto the session's stored instances. A
// nil g only resolves the user.
func (r *Repo) resolve(ctx context.Context, u *dom.User, g *dom.Game) (*dom.User, uint, *dom.Game, error) {
	if u == nil {
		return nil, 0, nil, ports.ErrNotStored
	}
	s, _ := r.read(ctx)
	su, err := s.userByName(ctx, u.Username())
	if err != nil {
		return nil, 0, nil, r.fail("resolve_user", err)
	}
	if su == nil {
		return nil, 0, nil, ports.ErrNotStored
	}
	uid := s.userIDs[su.Username()]
	if g == nil {
		return su, uid, nil, nil
	}
	games, err := s.gamesByID(ctx, []int64{g.ID()})
	if err != nil {
		return nil, 0, nil, r.fail("resolve_game", err)
	}
	if len(games) == 0 {
		return nil, 0, nil, ports.ErrNotStored
	}
	return su, uid, games[0], nil
}

func (r *Repo) AddWishGame(ctx context.Context, u *dom.User, g *dom.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g == nil {
		return ports.ErrNotStored
	}
	su, uid, sg, err := r.resolve(ctx, u, g)
	if err != nil {
		return err
	}
	err = r.withTx(ctx, "add_wish_game", func(tx *gorm.DB) error {
		var wl Wishlist
		if err := tx.Where(Wishlist{UserID: uid}).FirstOrCreate(&wl).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&WishlistEntry{WishlistID: wl.ID, GameID: sg.ID()}).Error
	})
	if err != nil {
		return err
	}
	su.Wishlist().Add(sg)
	if su != u {
		u.Wishlist().Add(sg)
	}
	return nil
}

func (r *Repo) RemoveWishGame(ctx context.Context, u *dom.User, g *dom.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	su, uid, _, err := r.resolve(ctx, u, nil)
	if err != nil || g == nil {
		return err
	}
	err = r.withTx(ctx, "remove_wish_game", func(tx *gorm.DB) error {
		var wl Wishlist
		err := tx.Where("user_id = ?", uid).First(&wl).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Where("wishlist_id = ? AND game_id = ?", wl.ID, g.ID()).Delete(&WishlistEntry{}).Error
	})
	if err != nil {
		return err
	}
	su.Wishlist().Remove(g)
	if su != u {
		u.Wishlist().Remove(g)
	}
	return nil
}

func (r *Repo) Wishlist(ctx context.Context, u *dom.User) ([]*dom.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	su, _, _, err := r.resolve(ctx, u, nil)
	if errors.Is(err, ports.ErrNotStored) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return su.Wishlist().Games(), nil
}

func (r *Repo) AddFavouriteGame(ctx context.Context, u *dom.User, g *dom.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g == nil {
		return ports.ErrNotStored
	}
	su, uid, sg, err := r.resolve(ctx, u, g)
	if err != nil {
		return err
	}
	err = r.withTx(ctx, "add_favourite", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&Favourite{UserID: uid, GameID: sg.ID()}).Error
	})
	if err != nil {
		return err
	}
	su.AddFavouriteGame(sg)
	if su != u {
		u.AddFavouriteGame(sg)
	}
	return nil
}

func (r *Repo) RemoveFavouriteGame(ctx context.Context, u *dom.User, g *dom.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	su, uid, _, err := r.resolve(ctx, u, nil)
	if err != nil || g == nil {
		return err
	}
	err = r.withTx(ctx, "remove_favourite", func(tx *gorm.DB) error {
		return tx.Where("user_id = ? AND game_id = ?", uid, g.ID()).Delete(&Favourite{}).Error
	})
	if err != nil {
		return err
	}
	su.RemoveFavouriteGame(g)
	if su != u {
		u.RemoveFavouriteGame(g)
	}
	return nil
}

func (r *Repo) FavouriteGames(ctx context.Context, u *dom.User) ([]*dom.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	su, _, _, err := r.resolve(ctx, u, nil)
	if errors.Is(err, ports.ErrNotStored) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return su.FavouriteGames(), nil
}

// ---- reviews ----

func (r *Repo) AddReview(ctx context.Context, u *dom.User, g *dom.Game, rating int, comment string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g == nil {
		return false, ports.ErrNotStored
	}
	su, uid, sg, err := r.resolve(ctx, u, g)
	if err != nil {
		return false, err
	}
	if su.HasReviewed(sg) {
		return false, nil
	}
	rv, err := dom.NewReview(su, sg, rating, comment)
	if err != nil {
		return false, err
	}
	rec := &Review{UserID: uid, GameID: sg.ID(), Rating: rv.Rating(), Comment: rv.Comment(), Timestamp: rv.Timestamp()}
	var inserted bool
	err = r.withTx(ctx, "add_review", func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected > 0
		return nil
	})
	if err != nil || !inserted {
		return false, err
	}
	r.session().reviews[rec.ID] = rv
	su.AddReview(rv)
	sg.AddReview(rv)
	if su != u {
		u.AddReview(rv)
	}
	return true, nil
}

func (r *Repo) UserReviews(ctx context.Context, u *dom.User) ([]*dom.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	su, _, _, err := r.resolve(ctx, u, nil)
	if errors.Is(err, ports.ErrNotStored) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return su.Reviews(), nil
}

func (r *Repo) Reviews(ctx context.Context) ([]*dom.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, db := r.read(ctx)
	var recs []Review
	if err := db.Order("id").Find(&recs).Error; err != nil {
		return nil, r.fail("reviews", err)
	}
	out := make([]*dom.Review, 0, len(recs))
	for i := range recs {
		rv, err := s.review(ctx, &recs[i])
		if err != nil {
			return nil, r.fail("reviews", err)
		}
		if rv != nil {
			out = append(out, rv)
		}
	}
	return out, nil
}
