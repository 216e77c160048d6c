// Package memory is the in-process catalog backend. Collections are kept
// sorted by identity so lookups are binary searches and listings need no sort.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cuihairu/gamelib/internal/domain"
	"github.com/cuihairu/gamelib/internal/ports"
)

// Repo is an in-memory ports.Repository.
type Repo struct {
	mu         sync.RWMutex
	games      []*domain.Game
	genres     []*domain.Genre
	publishers []*domain.Publisher
	users      []*domain.User
	reviews    []*domain.Review
}

var _ ports.Repository = (*Repo)(nil)

func NewRepo() *Repo { return &Repo{} }

func (r *Repo) ResetSession(context.Context) error { return nil }

func (r *Repo) Close() error { return nil }

// AddGame inserts g in id order and registers its publisher and genres. A
// game with the same id is replaced; its reviews and the wishlist and
// favourite entries pointing at it move over to g.
func (r *Repo) AddGame(_ context.Context, g *domain.Game) error {
	if g == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := g.Publisher(); p != nil && !p.IsNull() {
		r.publishers = insertSorted(r.publishers, p, (*domain.Publisher).Compare)
	}
	for _, gn := range g.Genres() {
		if !gn.IsNull() {
			r.genres = insertSorted(r.genres, gn, (*domain.Genre).Compare)
		}
	}
	i, found := slices.BinarySearchFunc(r.games, g.ID(), byGameID)
	if !found {
		r.games = slices.Insert(r.games, i, g)
		return nil
	}
	if old := r.games[i]; old != g {
		g.Supersede(old)
		for _, u := range r.users {
			u.ReplaceGame(g)
		}
	}
	r.games[i] = g
	return nil
}

func (r *Repo) Games(context.Context) ([]*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.games), nil
}

func (r *Repo) NumberOfGames(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games), nil
}

func (r *Repo) GameByID(_ context.Context, id int64) (*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gameLocked(id), nil
}

func (r *Repo) gameLocked(id int64) *domain.Game {
	if i, ok := slices.BinarySearchFunc(r.games, id, byGameID); ok {
		return r.games[i]
	}
	return nil
}

func (r *Repo) SimilarGames(_ context.Context, genres []*domain.Genre) ([]*domain.Game, error) {
	return r.filterGames(func(g *domain.Game) bool { return g.HasAnyGenre(genres) }), nil
}

func (r *Repo) SlideGames(context.Context) ([]*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.games[:min(len(r.games), ports.SlideGamesLimit)]), nil
}

// AddGenre is an upsert on the normalized name. Null genres are ignored.
func (r *Repo) AddGenre(_ context.Context, g *domain.Genre) error {
	if g == nil || g.IsNull() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.genres = insertSorted(r.genres, g, (*domain.Genre).Compare)
	return nil
}

func (r *Repo) Genres(context.Context) ([]*domain.Genre, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.genres), nil
}

// GamesByGenre matches on a genre value built from name, not on a stored
// genre instance.
func (r *Repo) GamesByGenre(_ context.Context, name string) ([]*domain.Game, error) {
	want := domain.NewGenre(name)
	return r.filterGames(func(g *domain.Game) bool { return g.HasGenre(want) }), nil
}

func (r *Repo) AddPublisher(_ context.Context, p *domain.Publisher) error {
	if p == nil || p.IsNull() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers = insertSorted(r.publishers, p, (*domain.Publisher).Compare)
	return nil
}

func (r *Repo) Publishers(context.Context) ([]*domain.Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.publishers), nil
}

func (r *Repo) Tags(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, g := range r.games {
		for _, t := range g.Tags() {
			if i, ok := slices.BinarySearch(out, t); !ok {
				out = slices.Insert(out, i, t)
			}
		}
	}
	return out, nil
}

func (r *Repo) SearchGamesByTitle(_ context.Context, q string) ([]*domain.Game, error) {
	q = strings.ToLower(q)
	return r.filterGames(func(g *domain.Game) bool { return contains(g.Title(), q) }), nil
}

func (r *Repo) SearchGamesByPublisher(_ context.Context, q string) ([]*domain.Game, error) {
	q = strings.ToLower(q)
	return r.filterGames(func(g *domain.Game) bool {
		return g.Publisher() != nil && contains(g.Publisher().Name(), q)
	}), nil
}

func (r *Repo) SearchGamesByCategory(_ context.Context, q string) ([]*domain.Game, error) {
	q = strings.ToLower(q)
	return r.filterGames(func(g *domain.Game) bool { return anyContains(g.Categories(), q) }), nil
}

func (r *Repo) SearchGamesByTag(_ context.Context, q string) ([]*domain.Game, error) {
	q = strings.ToLower(q)
	return r.filterGames(func(g *domain.Game) bool { return anyContains(g.Tags(), q) }), nil
}

func (r *Repo) AddUser(_ context.Context, u *domain.User) error {
	if u == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i, found := slices.BinarySearchFunc(r.users, u, (*domain.User).Compare)
	if found {
		return ports.ErrUserExists
	}
	r.users = slices.Insert(r.users, i, u)
	return nil
}

func (r *Repo) User(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userLocked(username), nil
}

func (r *Repo) userLocked(username string) *domain.User {
	name := domain.NormalizeUsername(username)
	i, ok := slices.BinarySearchFunc(r.users, name, func(u *domain.User, n string) int {
		return strings.Compare(u.Username(), n)
	})
	if !ok {
		return nil
	}
	return r.users[i]
}

// resolve maps caller-held entities onto the stored instances so that
// mutations land on repository state. A nil g only resolves the user.
func (r *Repo) resolve(u *domain.User, g *domain.Game) (*domain.User, *domain.Game, error) {
	if u == nil {
		return nil, nil, ports.ErrNotStored
	}
	su := r.userLocked(u.Username())
	if su == nil {
		return nil, nil, ports.ErrNotStored
	}
	if g == nil {
		return su, nil, nil
	}
	sg := r.gameLocked(g.ID())
	if sg == nil {
		return nil, nil, ports.ErrNotStored
	}
	return su, sg, nil
}

func (r *Repo) AddWishGame(_ context.Context, u *domain.User, g *domain.Game) error {
	if g == nil {
		return ports.ErrNotStored
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	su, sg, err := r.resolve(u, g)
	if err != nil {
		return err
	}
	su.Wishlist().Add(sg)
	if su != u {
		u.Wishlist().Add(sg)
	}
	return nil
}

func (r *Repo) RemoveWishGame(_ context.Context, u *domain.User, g *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	su, _, err := r.resolve(u, nil)
	if err != nil || g == nil {
		return err
	}
	su.Wishlist().Remove(g)
	if su != u {
		u.Wishlist().Remove(g)
	}
	return nil
}

func (r *Repo) Wishlist(_ context.Context, u *domain.User) ([]*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	su, _, err := r.resolve(u, nil)
	if err != nil {
		return nil, nil
	}
	return su.Wishlist().Games(), nil
}

func (r *Repo) AddFavouriteGame(_ context.Context, u *domain.User, g *domain.Game) error {
	if g == nil {
		return ports.ErrNotStored
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	su, sg, err := r.resolve(u, g)
	if err != nil {
		return err
	}
	su.AddFavouriteGame(sg)
	if su != u {
		u.AddFavouriteGame(sg)
	}
	return nil
}

func (r *Repo) RemoveFavouriteGame(_ context.Context, u *domain.User, g *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	su, _, err := r.resolve(u, nil)
	if err != nil || g == nil {
		return err
	}
	su.RemoveFavouriteGame(g)
	if su != u {
		u.RemoveFavouriteGame(g)
	}
	return nil
}

func (r *Repo) FavouriteGames(_ context.Context, u *domain.User) ([]*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	su, _, err := r.resolve(u, nil)
	if err != nil {
		return nil, nil
	}
	return su.FavouriteGames(), nil
}

func (r *Repo) AddReview(_ context.Context, u *domain.User, g *domain.Game, rating int, comment string) (bool, error) {
	if g == nil {
		return false, ports.ErrNotStored
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	su, sg, err := r.resolve(u, g)
	if err != nil {
		return false, err
	}
	if su.HasReviewed(sg) {
		return false, nil
	}
	rv, err := domain.NewReview(su, sg, rating, comment)
	if err != nil {
		return false, err
	}
	su.AddReview(rv)
	sg.AddReview(rv)
	if su != u {
		u.AddReview(rv)
	}
	r.reviews = append(r.reviews, rv)
	return true, nil
}

func (r *Repo) UserReviews(_ context.Context, u *domain.User) ([]*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	su, _, err := r.resolve(u, nil)
	if err != nil {
		return nil, nil
	}
	return su.Reviews(), nil
}

func (r *Repo) Reviews(context.Context) ([]*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.reviews), nil
}

func (r *Repo) filterGames(keep func(*domain.Game) bool) []*domain.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Game{}
	for _, g := range r.games {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}

func byGameID(g *domain.Game, id int64) int { return cmp.Compare(g.ID(), id) }

// insertSorted adds v to the sorted list unless an equal key is present.
func insertSorted[T any](list []T, v T, compare func(T, T) int) []T {
	i, found := slices.BinarySearchFunc(list, v, compare)
	if found {
		return list
	}
	return slices.Insert(list, i, v)
}

// contains never matches a null (empty) value.
func contains(s, lowerQuery string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerQuery)
}

func anyContains(list []string, lowerQuery string) bool {
	return slices.ContainsFunc(list, func(s string) bool { return contains(s, lowerQuery) })
}
