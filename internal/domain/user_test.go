package domain

import (
	"errors"
	"testing"
)

func newTestUser(t *testing.T, name string) *User {
	t.Helper()
	u, err := NewUser(name, "hash-value")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	return u
}

func TestNewUserNormalizesAndValidates(t *testing.T) {
	u := newTestUser(t, "  Shyamli ")
	if u.Username() != "shyamli" {
		t.Fatalf("username = %q", u.Username())
	}
	if u.Wishlist() == nil || u.Wishlist().Owner() != u {
		t.Fatalf("user must own a wishlist")
	}
	if _, err := NewUser("   ", "hash"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("want ErrInvalidUsername, got %v", err)
	}
	if _, err := NewUser("bob", ""); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("want ErrInvalidPassword, got %v", err)
	}
	if !u.Equal(newTestUser(t, "SHYAMLI")) {
		t.Fatalf("users should compare by normalized username")
	}
}

func TestReviewValidationAndEquality(t *testing.T) {
	u := newTestUser(t, "alice")
	g, _ := NewGame(1, "A")
	if _, err := NewReview(nil, g, 3, "ok"); !errors.Is(err, ErrNilUser) {
		t.Fatalf("want ErrNilUser, got %v", err)
	}
	if _, err := NewReview(u, nil, 3, "ok"); !errors.Is(err, ErrNilGame) {
		t.Fatalf("want ErrNilGame, got %v", err)
	}
	for _, r := range []int{-1, 6} {
		if _, err := NewReview(u, g, r, "ok"); !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: want ErrInvalidRating, got %v", r, err)
		}
	}
	if _, err := NewReview(u, g, 3, "  "); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("want ErrEmptyComment, got %v", err)
	}

	r1, err := NewReview(u, g, 5, "great")
	if err != nil {
		t.Fatalf("new review: %v", err)
	}
	r2, _ := NewReview(u, g, 1, "changed my mind")
	if !r1.Equal(r2) {
		t.Fatalf("reviews by the same user for the same game should be equal")
	}
	if !u.AddReview(r1) || u.AddReview(r2) {
		t.Fatalf("user should accept exactly one review per game")
	}
	if !g.AddReview(r1) || g.AddReview(r2) {
		t.Fatalf("game should accept exactly one review per user")
	}
	if !u.HasReviewed(g) || len(u.Reviews()) != 1 || len(g.Reviews()) != 1 {
		t.Fatalf("review links not recorded")
	}
}

func TestFavouriteGames(t *testing.T) {
	u := newTestUser(t, "bob")
	g, _ := NewGame(2, "B")
	if !u.AddFavouriteGame(g) || u.AddFavouriteGame(g) {
		t.Fatalf("favourites must not hold duplicates")
	}
	if !u.RemoveFavouriteGame(g) || len(u.FavouriteGames()) != 0 {
		t.Fatalf("favourite not removed")
	}
}
