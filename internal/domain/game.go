package domain

import (
	"cmp"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ReleaseDateLayout is the textual release date format, e.g. "Oct 21, 2008".
const ReleaseDateLayout = "Jan 2, 2006"

// Game is identified by its id. Optional strings use "" as null.
type Game struct {
	id          int64
	title       string
	price       *float64
	releaseDate string
	description string
	imageURL    string
	websiteURL  string
	videoURL    string
	publisher   *Publisher

	genres        []*Genre
	categories    []string
	tags          []string
	languages     []string
	systemSupport map[string]bool
	reviews       []*Review
}

func NewGame(id int64, title string) (*Game, error) {
	if id < 0 {
		return nil, invalid("game", "id", ErrInvalidGameID)
	}
	g := &Game{id: id, systemSupport: map[string]bool{}}
	g.SetTitle(title)
	return g, nil
}

func (g *Game) ID() int64 { return g.id }

func (g *Game) Title() string { return g.title }

func (g *Game) SetTitle(t string) { g.title = strings.TrimSpace(t) }

// Price returns the price and whether one is set.
func (g *Game) Price() (float64, bool) {
	if g.price == nil {
		return 0, false
	}
	return *g.price, true
}

func (g *Game) SetPrice(p float64) error {
	if p < 0 {
		return invalid("game", "price", ErrInvalidPrice)
	}
	g.price = &p
	return nil
}

func (g *Game) ClearPrice() { g.price = nil }

func (g *Game) ReleaseDate() string { return g.releaseDate }

// ReleaseTime parses the stored release date.
func (g *Game) ReleaseTime() (time.Time, bool) {
	if g.releaseDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(ReleaseDateLayout, g.releaseDate)
	return t, err == nil
}

// SetReleaseDate accepts "" to clear the date.
func (g *Game) SetReleaseDate(d string) error {
	d = strings.TrimSpace(d)
	if d == "" {
		g.releaseDate = ""
		return nil
	}
	if _, err := time.Parse(ReleaseDateLayout, d); err != nil {
		return invalid("game", "release_date", ErrInvalidReleaseDate)
	}
	g.releaseDate = d
	return nil
}

func (g *Game) Description() string { return g.description }

func (g *Game) SetDescription(d string) { g.description = strings.TrimSpace(d) }

func (g *Game) ImageURL() string { return g.imageURL }

func (g *Game) SetImageURL(u string) { g.imageURL = strings.TrimSpace(u) }

func (g *Game) WebsiteURL() string { return g.websiteURL }

func (g *Game) SetWebsiteURL(u string) { g.websiteURL = strings.TrimSpace(u) }

func (g *Game) VideoURL() string { return g.videoURL }

func (g *Game) SetVideoURL(u string) { g.videoURL = strings.TrimSpace(u) }

func (g *Game) Publisher() *Publisher { return g.publisher }

func (g *Game) SetPublisher(p *Publisher) { g.publisher = p }

// Genres returns a copy of the genre set in insertion order.
func (g *Game) Genres() []*Genre { return slices.Clone(g.genres) }

// AddGenre ignores nil, null and already present genres.
func (g *Game) AddGenre(gn *Genre) {
	if gn == nil || gn.IsNull() || g.HasGenre(gn) {
		return
	}
	g.genres = append(g.genres, gn)
}

func (g *Game) RemoveGenre(gn *Genre) {
	g.genres = slices.DeleteFunc(g.genres, func(x *Genre) bool { return x.Equal(gn) })
}

func (g *Game) HasGenre(gn *Genre) bool {
	return slices.ContainsFunc(g.genres, func(x *Genre) bool { return x.Equal(gn) })
}

// HasAnyGenre reports whether g shares at least one genre with gs.
func (g *Game) HasAnyGenre(gs []*Genre) bool {
	for _, gn := range gs {
		if gn != nil && g.HasGenre(gn) {
			return true
		}
	}
	return false
}

func (g *Game) Categories() []string { return slices.Clone(g.categories) }

func (g *Game) AddCategory(c string) { g.categories = addUnique(g.categories, c) }

func (g *Game) RemoveCategory(c string) {
	g.categories = slices.DeleteFunc(g.categories, func(x string) bool { return x == strings.TrimSpace(c) })
}

func (g *Game) Tags() []string { return slices.Clone(g.tags) }

func (g *Game) AddTag(t string) { g.tags = addUnique(g.tags, t) }

func (g *Game) RemoveTag(t string) {
	g.tags = slices.DeleteFunc(g.tags, func(x string) bool { return x == strings.TrimSpace(t) })
}

func (g *Game) Languages() []string { return slices.Clone(g.languages) }

func (g *Game) AddLanguage(l string) { g.languages = addUnique(g.languages, l) }

// SystemSupport returns a copy of the platform support map.
func (g *Game) SystemSupport() map[string]bool { return maps.Clone(g.systemSupport) }

func (g *Game) SetSystemSupport(platform string, supported bool) {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return
	}
	if g.systemSupport == nil {
		g.systemSupport = map[string]bool{}
	}
	g.systemSupport[platform] = supported
}

func (g *Game) Reviews() []*Review { return slices.Clone(g.reviews) }

// AddReview links r to the game; a second review by the same user is ignored.
func (g *Game) AddReview(r *Review) bool {
	if r == nil || !r.Game().Equal(g) || slices.ContainsFunc(g.reviews, r.Equal) {
		return false
	}
	g.reviews = append(g.reviews, r)
	return true
}

func (g *Game) Equal(o *Game) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.id == o.id
}

// Compare orders games by id; nil sorts first.
func (g *Game) Compare(o *Game) int {
	if c, ok := nilOrder(g, o); ok {
		return c
	}
	return cmp.Compare(g.id, o.id)
}

// Supersede moves the reviews of old onto g when g replaces old under the
// same id. Reviews keep their identity and now refer to g.
func (g *Game) Supersede(old *Game) {
	if old == nil || old == g || old.id != g.id {
		return
	}
	for _, r := range old.reviews {
		r.game = g
		if !slices.ContainsFunc(g.reviews, r.Equal) {
			g.reviews = append(g.reviews, r)
		}
	}
	old.reviews = nil
}

func (g *Game) String() string { return "<Game " + strconv.FormatInt(g.id, 10) + ", " + g.title + ">" }

// nilOrder orders nil before non-nil. ok is false when neither is nil.
func nilOrder[T any](a, b *T) (c int, ok bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}
	return 0, false
}

func addUnique(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" || slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
