package domain

import (
	"iter"
	"slices"
)

// Wishlist is an ordered, duplicate-free list of games owned by one user.
type Wishlist struct {
	owner *User
	games []*Game
}

func newWishlist(owner *User) *Wishlist { return &Wishlist{owner: owner} }

func (w *Wishlist) Owner() *User { return w.owner }

// Add appends g unless it is already listed.
func (w *Wishlist) Add(g *Game) bool {
	if g == nil || w.Contains(g) {
		return false
	}
	w.games = append(w.games, g)
	return true
}

func (w *Wishlist) Remove(g *Game) bool {
	n := len(w.games)
	w.games = slices.DeleteFunc(w.games, g.Equal)
	return len(w.games) != n
}

func (w *Wishlist) replace(g *Game) {
	for i, e := range w.games {
		if e.Equal(g) {
			w.games[i] = g
		}
	}
}

func (w *Wishlist) Contains(g *Game) bool { return slices.ContainsFunc(w.games, g.Equal) }

// Size is 0 for an empty wishlist.
func (w *Wishlist) Size() int { return len(w.games) }

// Select returns the game at index i, or nil when out of range.
func (w *Wishlist) Select(i int) *Game {
	if i < 0 || i >= len(w.games) {
		return nil
	}
	return w.games[i]
}

func (w *Wishlist) First() *Game { return w.Select(0) }

func (w *Wishlist) Games() []*Game { return slices.Clone(w.games) }

func (w *Wishlist) All() iter.Seq2[int, *Game] {
	return func(yield func(int, *Game) bool) {
		for i, g := range w.games {
			if !yield(i, g) {
				return
			}
		}
	}
}
