package catalog

import (
	"time"

	"github.com/cuihairu/gamelib/internal/domain"
)

// GameView is the flat projection of a game handed to presentation code.
type GameView struct {
	ID          int64    `json:"game_id" yaml:"game_id"`
	Title       string   `json:"title" yaml:"title"`
	URL         string   `json:"game_url,omitempty" yaml:"game_url,omitempty"`
	HeaderImage string   `json:"header_image,omitempty" yaml:"header_image,omitempty"`
	Price       *float64 `json:"price" yaml:"price"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	Publisher   string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Genres      []string `json:"genres,omitempty" yaml:"genres,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Categories  []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Languages   []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	Platforms   []string `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	Video       string   `json:"video_url,omitempty" yaml:"video_url,omitempty"`
	Rating      float64  `json:"rating,omitempty" yaml:"rating,omitempty"`
	Reviews     int      `json:"reviews" yaml:"reviews"`
}

type ReviewView struct {
	Username  string    `json:"username" yaml:"username"`
	GameID    int64     `json:"game_id" yaml:"game_id"`
	GameTitle string    `json:"game_title" yaml:"game_title"`
	Rating    int       `json:"rating" yaml:"rating"`
	Comment   string    `json:"comment" yaml:"comment"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

var platformOrder = []string{"windows", "mac", "linux"}

func gameView(g *domain.Game) GameView {
	v := GameView{
		ID:          g.ID(),
		Title:       g.Title(),
		URL:         g.WebsiteURL(),
		HeaderImage: g.ImageURL(),
		Description: g.Description(),
		ReleaseDate: g.ReleaseDate(),
		Genres:      domain.GenreNames(g.Genres()),
		Tags:        g.Tags(),
		Categories:  g.Categories(),
		Languages:   g.Languages(),
		Video:       g.VideoURL(),
	}
	if p, ok := g.Price(); ok {
		v.Price = &p
	}
	if pub := g.Publisher(); pub != nil {
		v.Publisher = pub.Name()
	}
	support := g.SystemSupport()
	for _, p := range platformOrder {
		if support[p] {
			v.Platforms = append(v.Platforms, p)
		}
	}
	reviews := g.Reviews()
	v.Reviews = len(reviews)
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Rating()
		}
		v.Rating = float64(sum) / float64(len(reviews))
	}
	return v
}

func gameViews(games []*domain.Game) []GameView {
	out := make([]GameView, 0, len(games))
	for _, g := range games {
		out = append(out, gameView(g))
	}
	return out
}

func reviewView(r *domain.Review) ReviewView {
	return ReviewView{
		Username:  r.User().Username(),
		GameID:    r.Game().ID(),
		GameTitle: r.Game().Title(),
		Rating:    r.Rating(),
		Comment:   r.Comment(),
		Timestamp: r.Timestamp(),
	}
}
