package domain

import (
	"slices"
	"strings"
)

// User is identified by its lowercased username. Each user owns exactly one
// wishlist, created with the user.
type User struct {
	username     string
	passwordHash string
	favourites   []*Game
	reviews      []*Review
	wishlist     *Wishlist
}

// NewUser validates presence only; password policy belongs to the caller.
func NewUser(username, passwordHash string) (*User, error) {
	name := NormalizeUsername(username)
	if name == "" {
		return nil, invalid("user", "username", ErrInvalidUsername)
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, invalid("user", "password", ErrInvalidPassword)
	}
	u := &User{username: name, passwordHash: passwordHash}
	u.wishlist = newWishlist(u)
	return u, nil
}

// NormalizeUsername trims and lowercases a username for storage and lookup.
func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (u *User) Username() string { return u.username }

func (u *User) PasswordHash() string { return u.passwordHash }

func (u *User) SetPasswordHash(h string) error {
	if strings.TrimSpace(h) == "" {
		return invalid("user", "password", ErrInvalidPassword)
	}
	u.passwordHash = h
	return nil
}

func (u *User) Wishlist() *Wishlist { return u.wishlist }

func (u *User) FavouriteGames() []*Game { return slices.Clone(u.favourites) }

func (u *User) AddFavouriteGame(g *Game) bool {
	if g == nil || slices.ContainsFunc(u.favourites, g.Equal) {
		return false
	}
	u.favourites = append(u.favourites, g)
	return true
}

func (u *User) RemoveFavouriteGame(g *Game) bool {
	n := len(u.favourites)
	u.favourites = slices.DeleteFunc(u.favourites, g.Equal)
	return len(u.favourites) != n
}

// ReplaceGame swaps every wishlist and favourite entry with g's id for g,
// keeping positions.
func (u *User) ReplaceGame(g *Game) {
	if g == nil {
		return
	}
	u.wishlist.replace(g)
	for i, f := range u.favourites {
		if f.Equal(g) {
			u.favourites[i] = g
		}
	}
}

func (u *User) Reviews() []*Review { return slices.Clone(u.reviews) }

// AddReview links a review written by u; duplicates are rejected.
func (u *User) AddReview(r *Review) bool {
	if r == nil || !r.User().Equal(u) || slices.ContainsFunc(u.reviews, r.Equal) {
		return false
	}
	u.reviews = append(u.reviews, r)
	return true
}

func (u *User) RemoveReview(r *Review) bool {
	n := len(u.reviews)
	u.reviews = slices.DeleteFunc(u.reviews, r.Equal)
	return len(u.reviews) != n
}

// HasReviewed reports whether u already reviewed g.
func (u *User) HasReviewed(g *Game) bool {
	return slices.ContainsFunc(u.reviews, func(r *Review) bool { return r.Game().Equal(g) })
}

func (u *User) Equal(o *User) bool {
	if u == nil || o == nil {
		return u == o
	}
	return u.username == o.username
}

func (u *User) Compare(o *User) int {
	if c, ok := nilOrder(u, o); ok {
		return c
	}
	return strings.Compare(u.username, o.username)
}

func (u *User) String() string { return "<User " + u.username + ">" }
