// Package repotest is the behavioural suite every ports.Repository backend
// must pass. Each case gets a fresh repository loaded with the fixture
// catalog.
package repotest

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/cuihairu/gamelib/internal/datareader"
	"github.com/cuihairu/gamelib/internal/domain"
	"github.com/cuihairu/gamelib/internal/fixtures"
	"github.com/cuihairu/gamelib/internal/ports"
)

// Factory returns an empty repository. Cleanup belongs to the factory.
type Factory func(t *testing.T) ports.Repository

// Run executes the suite against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, ctx context.Context, r ports.Repository)
	}{
		{"Games", testGames},
		{"SimilarGames", testSimilarGames},
		{"SlideGames", testSlideGames},
		{"SearchTitle", testSearchTitle},
		{"SearchPublisher", testSearchPublisher},
		{"SearchCategory", testSearchCategory},
		{"SearchTag", testSearchTag},
		{"Genres", testGenres},
		{"Publishers", testPublishers},
		{"Tags", testTags},
		{"UpsertGame", testUpsertGame},
		{"Users", testUsers},
		{"Wishlist", testWishlist},
		{"Favourites", testFavourites},
		{"Reviews", testReviews},
		{"ResetSession", testResetSession},
		{"ReAddKeepsReviews", testReAddKeepsReviews},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			Load(t, ctx, r)
			tc.fn(t, ctx, r)
		})
	}
	t.Run("AddGameRegistersReferences", func(t *testing.T) {
		testAddGameRegistersReferences(t, context.Background(), newRepo(t))
	})
}

// Load ingests the fixture catalog into r.
func Load(t *testing.T, ctx context.Context, r ports.Repository) {
	t.Helper()
	st, err := datareader.New(r).Read(ctx, bytes.NewReader(fixtures.GamesCSV))
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	if st.Games != fixtures.GamesCount {
		t.Fatalf("load fixtures: stored %d games, stats %+v", st.Games, st)
	}
}

func ids(games []*domain.Game) []int64 {
	out := make([]int64, 0, len(games))
	for _, g := range games {
		out = append(out, g.ID())
	}
	return out
}

func mustUser(t *testing.T, ctx context.Context, r ports.Repository, name string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(name, "hash-"+name)
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := r.AddUser(ctx, u); err != nil {
		t.Fatalf("add user: %v", err)
	}
	return u
}

func mustGame(t *testing.T, ctx context.Context, r ports.Repository, id int64) *domain.Game {
	t.Helper()
	g, err := r.GameByID(ctx, id)
	if err != nil || g == nil {
		t.Fatalf("game %d: %v %v", id, g, err)
	}
	return g
}

func expectIDs(t *testing.T, what string, games []*domain.Game, err error, want ...int64) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
	if got := ids(games); !slices.Equal(got, want) {
		t.Fatalf("%s: got %v, want %v", what, got, want)
	}
}

func testGames(t *testing.T, ctx context.Context, r ports.Repository) {
	n, err := r.NumberOfGames(ctx)
	if err != nil || n != fixtures.GamesCount {
		t.Fatalf("number of games: %d %v", n, err)
	}
	games, err := r.Games(ctx)
	if err != nil || len(games) != fixtures.GamesCount {
		t.Fatalf("games: %d %v", len(games), err)
	}
	if !slices.IsSortedFunc(games, (*domain.Game).Compare) {
		t.Fatalf("games not ordered by id: %v", ids(games))
	}

	g := mustGame(t, ctx, r, 7940)
	if g.Title() != "Call of Duty® 4: Modern Warfare®" {
		t.Fatalf("title %q", g.Title())
	}
	if p, ok := g.Price(); !ok || p != 9.99 {
		t.Fatalf("price %v %v", p, ok)
	}
	if g.Publisher() == nil || g.Publisher().Name() != "Activision" {
		t.Fatalf("publisher %v", g.Publisher())
	}
	if got := domain.GenreNames(g.Genres()); !slices.Equal(got, []string{"Action"}) {
		t.Fatalf("genres %v", got)
	}

	missing, err := r.GameByID(ctx, 34242)
	if err != nil || missing != nil {
		t.Fatalf("unknown id: %v %v", missing, err)
	}
}

func testSimilarGames(t *testing.T, ctx context.Context, r ports.Repository) {
	games, err := r.SimilarGames(ctx, []*domain.Genre{domain.NewGenre("Action"), domain.NewGenre("Adventure")})
	if err != nil || len(games) != fixtures.GamesCount {
		t.Fatalf("similar to action/adventure: %d %v", len(games), err)
	}
	games, err = r.SimilarGames(ctx, []*domain.Genre{domain.NewGenre("Education")})
	if err != nil || len(games) != 0 {
		t.Fatalf("similar to education: %v %v", ids(games), err)
	}
	games, err = r.SimilarGames(ctx, nil)
	if err != nil || len(games) != 0 {
		t.Fatalf("similar to nothing: %v %v", ids(games), err)
	}
}

func testSlideGames(t *testing.T, ctx context.Context, r ports.Repository) {
	games, err := r.SlideGames(ctx)
	expectIDs(t, "slide games", games, err,
		7940, 20200, 242530, 311120, 418650, 655370, 1139950, 1178150, 1228870, 1355720)
}

func testSearchTitle(t *testing.T, ctx context.Context, r ports.Repository) {
	for _, q := range []string{"call of duty", "CALL OF DUTY", "Modern Warfare"} {
		games, err := r.SearchGamesByTitle(ctx, q)
		expectIDs(t, "title "+q, games, err, 7940)
	}
	games, err := r.SearchGamesByTitle(ctx, "no such game")
	expectIDs(t, "title miss", games, err)
	// LIKE wildcards are literal.
	games, err = r.SearchGamesByTitle(ctx, "%")
	expectIDs(t, "title wildcard", games, err)
}

func testSearchPublisher(t *testing.T, ctx context.Context, r ports.Repository) {
	games, err := r.SearchGamesByPublisher(ctx, "buka")
	expectIDs(t, "publisher buka", games, err, 311120)
	games, err = r.SearchGamesByPublisher(ctx, "Activision")
	expectIDs(t, "publisher activision", games, err, 7940)
}

func testSearchCategory(t *testing.T, ctx context.Context, r ports.Repository) {
	games, err := r.SearchGamesByCategory(ctx, "VR Support")
	expectIDs(t, "category vr", games, err, 418650)
	games, err = r.SearchGamesByCategory(ctx, "single-player")
	if err != nil || len(games) != fixtures.GamesCount {
		t.Fatalf("category single-player: %d %v", len(games), err)
	}
}

func testSearchTag(t *testing.T, ctx context.Context, r ports.Repository) {
	games, err := r.SearchGamesByTag(ctx, "Steampunk")
	expectIDs(t, "tag steampunk", games, err, 242530, 1228870)
	games, err = r.SearchGamesByTag(ctx, "adventure")
	expectIDs(t, "tag adventure", games, err, 1139950, 1178150, 1968760)
}

func testGenres(t *testing.T, ctx context.Context, r ports.Repository) {
	genres, err := r.Genres(ctx)
	if err != nil || !slices.Equal(domain.GenreNames(genres), []string{"Action"}) {
		t.Fatalf("genres: %v %v", genres, err)
	}
	for range 2 {
		if err := r.AddGenre(ctx, domain.NewGenre("Education")); err != nil {
			t.Fatalf("add genre: %v", err)
		}
	}
	if err := r.AddGenre(ctx, domain.NewGenre("  ")); err != nil {
		t.Fatalf("add null genre: %v", err)
	}
	genres, err = r.Genres(ctx)
	if err != nil || !slices.Equal(domain.GenreNames(genres), []string{"Action", "Education"}) {
		t.Fatalf("genres after add: %v %v", domain.GenreNames(genres), err)
	}

	games, err := r.GamesByGenre(ctx, " Action ")
	if err != nil || len(games) != fixtures.GamesCount {
		t.Fatalf("games by action: %d %v", len(games), err)
	}
	games, err = r.GamesByGenre(ctx, "Education")
	expectIDs(t, "games by education", games, err)
}

func testPublishers(t *testing.T, ctx context.Context, r ports.Repository) {
	if err := r.AddPublisher(ctx, domain.NewPublisher("Activision")); err != nil {
		t.Fatalf("add publisher: %v", err)
	}
	pubs, err := r.Publishers(ctx)
	if err != nil || len(pubs) != fixtures.GamesCount {
		t.Fatalf("publishers: %d %v", len(pubs), err)
	}
	if !slices.IsSortedFunc(pubs, (*domain.Publisher).Compare) {
		t.Fatalf("publishers not ordered by name")
	}
}

func testTags(t *testing.T, ctx context.Context, r ports.Repository) {
	tags, err := r.Tags(ctx)
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if !slices.IsSorted(tags) || len(slices.Compact(slices.Clone(tags))) != len(tags) {
		t.Fatalf("tags not sorted and distinct: %v", tags)
	}
	for _, want := range []string{"Steampunk", "Adventure", "FPS"} {
		if !slices.Contains(tags, want) {
			t.Fatalf("tag %q missing from %v", want, tags)
		}
	}
}

func testUpsertGame(t *testing.T, ctx context.Context, r ports.Repository) {
	g, err := domain.NewGame(7940, "Renamed")
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	g.SetPublisher(domain.NewPublisher("Activision"))
	g.AddGenre(domain.NewGenre("Action"))
	g.AddTag("Remaster")
	if err := r.AddGame(ctx, g); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	n, _ := r.NumberOfGames(ctx)
	if n != fixtures.GamesCount {
		t.Fatalf("upsert changed the game count to %d", n)
	}
	got := mustGame(t, ctx, r, 7940)
	if got.Title() != "Renamed" || !slices.Equal(got.Tags(), []string{"Remaster"}) {
		t.Fatalf("upsert not applied: %q %v", got.Title(), got.Tags())
	}
	games, err := r.SearchGamesByTag(ctx, "FPS")
	expectIDs(t, "stale tag", games, err)
}

func testUsers(t *testing.T, ctx context.Context, r ports.Repository) {
	u := mustUser(t, ctx, r, "Alice")
	dup, _ := domain.NewUser("alice", "other")
	if err := r.AddUser(ctx, dup); !errors.Is(err, ports.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	got, err := r.User(ctx, "  ALICE ")
	if err != nil || got == nil || !got.Equal(u) {
		t.Fatalf("lookup: %v %v", got, err)
	}
	if got.PasswordHash() != "hash-alice" {
		t.Fatalf("password hash %q", got.PasswordHash())
	}
	missing, err := r.User(ctx, "bob")
	if err != nil || missing != nil {
		t.Fatalf("unknown user: %v %v", missing, err)
	}
}

func testWishlist(t *testing.T, ctx context.Context, r ports.Repository) {
	u := mustUser(t, ctx, r, "alice")
	g := mustGame(t, ctx, r, 7940)
	for range 2 {
		if err := r.AddWishGame(ctx, u, g); err != nil {
			t.Fatalf("add wish: %v", err)
		}
	}
	if err := r.AddWishGame(ctx, u, mustGame(t, ctx, r, 20200)); err != nil {
		t.Fatalf("add wish: %v", err)
	}
	games, err := r.Wishlist(ctx, u)
	expectIDs(t, "wishlist", games, err, 7940, 20200)
	if u.Wishlist().Size() != 2 || u.Wishlist().First().ID() != 7940 {
		t.Fatalf("caller wishlist not updated: %v", ids(u.Wishlist().Games()))
	}

	if err := r.RemoveWishGame(ctx, u, g); err != nil {
		t.Fatalf("remove wish: %v", err)
	}
	games, err = r.Wishlist(ctx, u)
	expectIDs(t, "wishlist after remove", games, err, 20200)

	stranger, _ := domain.NewUser("stranger", "x")
	if err := r.AddWishGame(ctx, stranger, g); !errors.Is(err, ports.ErrNotStored) {
		t.Fatalf("unknown user: expected ErrNotStored, got %v", err)
	}
	if games, err := r.Wishlist(ctx, stranger); err != nil || len(games) != 0 {
		t.Fatalf("unknown user wishlist: %v %v", ids(games), err)
	}
	ghost, _ := domain.NewGame(999999, "Ghost")
	if err := r.AddWishGame(ctx, u, ghost); !errors.Is(err, ports.ErrNotStored) {
		t.Fatalf("unknown game: expected ErrNotStored, got %v", err)
	}
}

func testFavourites(t *testing.T, ctx context.Context, r ports.Repository) {
	u := mustUser(t, ctx, r, "alice")
	g := mustGame(t, ctx, r, 418650)
	for range 2 {
		if err := r.AddFavouriteGame(ctx, u, g); err != nil {
			t.Fatalf("add favourite: %v", err)
		}
	}
	games, err := r.FavouriteGames(ctx, u)
	expectIDs(t, "favourites", games, err, 418650)
	if err := r.RemoveFavouriteGame(ctx, u, g); err != nil {
		t.Fatalf("remove favourite: %v", err)
	}
	games, err = r.FavouriteGames(ctx, u)
	expectIDs(t, "favourites after remove", games, err)
}

func testReviews(t *testing.T, ctx context.Context, r ports.Repository) {
	u := mustUser(t, ctx, r, "alice")
	g := mustGame(t, ctx, r, 7940)

	ok, err := r.AddReview(ctx, u, g, 4, "  solid campaign ")
	if err != nil || !ok {
		t.Fatalf("first review: %v %v", ok, err)
	}
	ok, err = r.AddReview(ctx, u, g, 1, "changed my mind")
	if err != nil || ok {
		t.Fatalf("second review of the same game must be refused: %v %v", ok, err)
	}
	if _, err := r.AddReview(ctx, u, mustGame(t, ctx, r, 20200), 9, "too high"); !errors.Is(err, domain.ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}

	reviews, err := r.UserReviews(ctx, u)
	if err != nil || len(reviews) != 1 {
		t.Fatalf("user reviews: %d %v", len(reviews), err)
	}
	rv := reviews[0]
	if rv.Rating() != 4 || rv.Comment() != "solid campaign" || rv.Game().ID() != 7940 {
		t.Fatalf("review %v", rv)
	}
	if len(u.Reviews()) != 1 {
		t.Fatalf("caller user not updated")
	}
	if n := len(mustGame(t, ctx, r, 7940).Reviews()); n != 1 {
		t.Fatalf("game has %d reviews", n)
	}
	all, err := r.Reviews(ctx)
	if err != nil || len(all) != 1 || !all[0].Equal(rv) {
		t.Fatalf("all reviews: %v %v", all, err)
	}

	other := mustUser(t, ctx, r, "bob")
	if ok, err := r.AddReview(ctx, other, g, 5, "classic"); err != nil || !ok {
		t.Fatalf("second user review: %v %v", ok, err)
	}
	if n := len(mustGame(t, ctx, r, 7940).Reviews()); n != 2 {
		t.Fatalf("game has %d reviews", n)
	}
}

// testResetSession checks that state written before a reset is visible after
// it, whether the backend keeps it in memory or reloads it.
func testResetSession(t *testing.T, ctx context.Context, r ports.Repository) {
	u := mustUser(t, ctx, r, "alice")
	g := mustGame(t, ctx, r, 1228870)
	if err := r.AddWishGame(ctx, u, g); err != nil {
		t.Fatalf("add wish: %v", err)
	}
	if err := r.AddFavouriteGame(ctx, u, g); err != nil {
		t.Fatalf("add favourite: %v", err)
	}
	if ok, err := r.AddReview(ctx, u, g, 3, "loud"); err != nil || !ok {
		t.Fatalf("review: %v %v", ok, err)
	}
	if err := r.ResetSession(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	got, err := r.User(ctx, "alice")
	if err != nil || got == nil {
		t.Fatalf("user after reset: %v %v", got, err)
	}
	if w := got.Wishlist(); w.Size() != 1 || w.First().ID() != 1228870 {
		t.Fatalf("wishlist after reset: %v", ids(w.Games()))
	}
	if favs := got.FavouriteGames(); len(favs) != 1 {
		t.Fatalf("favourites after reset: %v", ids(favs))
	}
	if rs := got.Reviews(); len(rs) != 1 || rs[0].Rating() != 3 {
		t.Fatalf("reviews after reset: %v", rs)
	}
	ok, err := r.AddReview(ctx, got, g, 5, "again")
	if err != nil || ok {
		t.Fatalf("review after reset must still be refused: %v %v", ok, err)
	}

	reloaded := mustGame(t, ctx, r, 1228870)
	if reloaded.Publisher() == nil || reloaded.Publisher().Name() != "Beep Games" {
		t.Fatalf("publisher after reset: %v", reloaded.Publisher())
	}
	if tags := reloaded.Tags(); !slices.Equal(tags, []string{"Steampunk", "Shoot 'Em Up", "Twin Stick Shooter"}) {
		t.Fatalf("tag order after reset: %v", tags)
	}
	if langs := reloaded.Languages(); !slices.Equal(langs, []string{"English"}) {
		t.Fatalf("languages after reset: %v", langs)
	}
	if !reloaded.SystemSupport()["windows"] || reloaded.SystemSupport()["mac"] {
		t.Fatalf("system support after reset: %v", reloaded.SystemSupport())
	}
	if len(reloaded.Reviews()) != 1 {
		t.Fatalf("game reviews after reset: %d", len(reloaded.Reviews()))
	}
}

// testReAddKeepsReviews replaces a reviewed, wishlisted game with a fresh
// instance under the same id.
func testReAddKeepsReviews(t *testing.T, ctx context.Context, r ports.Repository) {
	u := mustUser(t, ctx, r, "alice")
	g := mustGame(t, ctx, r, 7940)
	if ok, err := r.AddReview(ctx, u, g, 4, "solid"); err != nil || !ok {
		t.Fatalf("review: %v %v", ok, err)
	}
	if err := r.AddWishGame(ctx, u, g); err != nil {
		t.Fatalf("add wish: %v", err)
	}

	fresh, _ := domain.NewGame(7940, "Modern Warfare Remastered")
	fresh.SetPublisher(domain.NewPublisher("Activision"))
	fresh.AddGenre(domain.NewGenre("Action"))
	if err := r.AddGame(ctx, fresh); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	check := func(stage string) {
		t.Helper()
		got := mustGame(t, ctx, r, 7940)
		if got.Title() != "Modern Warfare Remastered" {
			t.Fatalf("%s: title %q", stage, got.Title())
		}
		if n := len(got.Reviews()); n != 1 {
			t.Fatalf("%s: game has %d reviews", stage, n)
		}
		stored, err := r.User(ctx, "alice")
		if err != nil || stored == nil {
			t.Fatalf("%s: user %v %v", stage, stored, err)
		}
		if rs := stored.Reviews(); len(rs) != 1 || rs[0].Game().Title() != got.Title() {
			t.Fatalf("%s: user review points at a stale game: %v", stage, rs)
		}
		wish, err := r.Wishlist(ctx, stored)
		if err != nil || len(wish) != 1 || wish[0].Title() != got.Title() {
			t.Fatalf("%s: wishlist %v %v", stage, wish, err)
		}
		all, err := r.Reviews(ctx)
		if err != nil || len(all) != 1 || all[0].Game().Title() != got.Title() {
			t.Fatalf("%s: all reviews %v %v", stage, all, err)
		}
		if ok, err := r.AddReview(ctx, stored, got, 2, "again"); err != nil || ok {
			t.Fatalf("%s: second review must be refused: %v %v", stage, ok, err)
		}
	}
	check("same session")
	if err := r.ResetSession(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	check("after reset")
}

// testAddGameRegistersReferences starts from an empty repository: adding a
// game alone makes its publisher and genres listable.
func testAddGameRegistersReferences(t *testing.T, ctx context.Context, r ports.Repository) {
	g, _ := domain.NewGame(1, "Empire Builder")
	g.SetPublisher(domain.NewPublisher("Acme"))
	g.AddGenre(domain.NewGenre("Strategy"))
	g.AddGenre(domain.NewGenre("Simulation"))
	if err := r.AddGame(ctx, g); err != nil {
		t.Fatalf("add game: %v", err)
	}
	genres, err := r.Genres(ctx)
	if err != nil || !slices.Equal(domain.GenreNames(genres), []string{"Simulation", "Strategy"}) {
		t.Fatalf("genres: %v %v", domain.GenreNames(genres), err)
	}
	pubs, err := r.Publishers(ctx)
	if err != nil || len(pubs) != 1 || pubs[0].Name() != "Acme" {
		t.Fatalf("publishers: %v %v", pubs, err)
	}
	games, err := r.GamesByGenre(ctx, "Strategy")
	expectIDs(t, "games by strategy", games, err, 1)
}
