package domain

import (
	"strings"
	"time"
)

const (
	MinRating = 0
	MaxRating = 5
)

// Review is a user's rating and comment on a game. A user reviews a game at
// most once, so two reviews are equal when user and game match.
type Review struct {
	user      *User
	game      *Game
	rating    int
	comment   string
	timestamp time.Time
}

func NewReview(user *User, game *Game, rating int, comment string) (*Review, error) {
	return NewReviewAt(user, game, rating, comment, time.Now())
}

// NewReviewAt builds a review with an explicit timestamp, as stored rows do.
func NewReviewAt(user *User, game *Game, rating int, comment string, ts time.Time) (*Review, error) {
	if user == nil {
		return nil, invalid("review", "user", ErrNilUser)
	}
	if game == nil {
		return nil, invalid("review", "game", ErrNilGame)
	}
	r := &Review{user: user, game: game, timestamp: ts}
	if err := r.SetRating(rating); err != nil {
		return nil, err
	}
	if err := r.SetComment(comment); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Review) User() *User { return r.user }

func (r *Review) Game() *Game { return r.game }

func (r *Review) Rating() int { return r.rating }

func (r *Review) Comment() string { return r.comment }

func (r *Review) Timestamp() time.Time { return r.timestamp }

func (r *Review) SetRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return invalid("review", "rating", ErrInvalidRating)
	}
	r.rating = rating
	return nil
}

func (r *Review) SetComment(c string) error {
	c = strings.TrimSpace(c)
	if c == "" {
		return invalid("review", "comment", ErrEmptyComment)
	}
	r.comment = c
	return nil
}

func (r *Review) Equal(o *Review) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.user.Equal(o.user) && r.game.Equal(o.game)
}

func (r *Review) String() string {
	return "<Review " + r.user.Username() + ", " + r.game.Title() + ">"
}
