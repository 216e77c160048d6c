package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/cuihairu/gamelib/internal/domain"
	"github.com/cuihairu/gamelib/internal/events"
	"github.com/cuihairu/gamelib/internal/fixtures"
	"github.com/cuihairu/gamelib/internal/ports"
	"github.com/cuihairu/gamelib/internal/repo/memory"
	"github.com/cuihairu/gamelib/internal/security/password"
	"golang.org/x/crypto/bcrypt"
)

// newTestService returns a service over a memory repo loaded with the
// fixture catalog, and the recorder of its events.
func newTestService(t *testing.T) (*Service, *events.Memory) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.csv")
	if err := os.WriteFile(path, fixtures.GamesCSV, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	rec := events.NewMemory()
	svc := NewService(memory.NewRepo(), WithEvents(rec), WithHasher(password.NewBcrypt(bcrypt.MinCost)))
	st, err := svc.Ingest(context.Background(), path)
	if err != nil || st.Games != fixtures.GamesCount {
		t.Fatalf("ingest: %+v %v", st, err)
	}
	return svc, rec
}

func TestIngestPublishesEvent(t *testing.T) {
	_, rec := newTestService(t)
	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != events.CatalogIngested || evs[0].Attrs["games"] != fixtures.GamesCount {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)

	if _, err := svc.Register(ctx, "Alice", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := svc.Register(ctx, "  ", "long enough"); !errors.Is(err, domain.ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	u, err := svc.Register(ctx, "Alice", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username() != "alice" || u.PasswordHash() == "correct horse" {
		t.Fatalf("unexpected user %v", u)
	}
	if _, err := svc.Register(ctx, "ALICE", "another one"); !errors.Is(err, ports.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if _, err := svc.Authenticate(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "alice", "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "bob", "whatever"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if types := rec.Types(); !slices.Contains(types, events.UserRegistered) {
		t.Fatalf("no registration event in %v", types)
	}
}

func TestGameView(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	v, err := svc.Game(ctx, 7940)
	if err != nil || v == nil {
		t.Fatalf("game: %v %v", v, err)
	}
	if v.Title != "Call of Duty® 4: Modern Warfare®" || v.Publisher != "Activision" || v.Price == nil || *v.Price != 9.99 {
		t.Fatalf("unexpected view %+v", v)
	}
	if !slices.Equal(v.Platforms, []string{"windows", "mac"}) || !slices.Equal(v.Genres, []string{"Action"}) {
		t.Fatalf("unexpected platforms/genres %v %v", v.Platforms, v.Genres)
	}
	if v.URL != "https://www.callofduty.com" || v.ReleaseDate != "Nov 12, 2007" {
		t.Fatalf("unexpected url/date %q %q", v.URL, v.ReleaseDate)
	}

	missing, err := svc.Game(ctx, 34242)
	if err != nil || missing != nil {
		t.Fatalf("unknown game: %v %v", missing, err)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	cases := []struct {
		field, query string
		want         []int64
	}{
		{FieldTitle, "bowling", []int64{20200}},
		{FieldPublisher, "buka", []int64{311120}},
		{FieldCategory, "vr support", []int64{418650}},
		{FieldTag, "steampunk", []int64{242530, 1228870}},
		{"tag", "Steampunk", []int64{242530, 1228870}},
		{FieldTitle, "nothing like this", nil},
	}
	for _, tc := range cases {
		views, err := svc.Search(ctx, tc.field, tc.query)
		if err != nil {
			t.Fatalf("%s %q: %v", tc.field, tc.query, err)
		}
		var got []int64
		for _, v := range views {
			got = append(got, v.ID)
		}
		if !slices.Equal(got, tc.want) {
			t.Fatalf("%s %q: got %v, want %v", tc.field, tc.query, got, tc.want)
		}
	}
	if _, err := svc.Search(ctx, "colour", "red"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestSimilarToExcludesGame(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	views, err := svc.SimilarTo(ctx, 7940)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(views) != fixtures.GamesCount-1 {
		t.Fatalf("expected %d similar games, got %d", fixtures.GamesCount-1, len(views))
	}
	for _, v := range views {
		if v.ID == 7940 {
			t.Fatalf("game listed as similar to itself")
		}
	}
	if _, err := svc.SimilarTo(ctx, 1); !errors.Is(err, ErrUnknownGame) {
		t.Fatalf("expected ErrUnknownGame, got %v", err)
	}
}

func TestReviewFlow(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)
	if _, err := svc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	ok, err := svc.Review(ctx, "alice", 1355720, 5, "clever puzzles")
	if err != nil || !ok {
		t.Fatalf("review: %v %v", ok, err)
	}
	ok, err = svc.Review(ctx, "alice", 1355720, 2, "second thoughts")
	if err != nil || ok {
		t.Fatalf("duplicate review: %v %v", ok, err)
	}
	if _, err := svc.Review(ctx, "nobody", 1355720, 3, "hi"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}

	views, err := svc.UserReviews(ctx, "alice")
	if err != nil || len(views) != 1 {
		t.Fatalf("user reviews: %v %v", views, err)
	}
	if views[0].GameTitle != "Henosis™" || views[0].Rating != 5 {
		t.Fatalf("unexpected review view %+v", views[0])
	}
	gv, _ := svc.Game(ctx, 1355720)
	if gv.Reviews != 1 || gv.Rating != 5 {
		t.Fatalf("game view not updated: %+v", gv)
	}
	gr, err := svc.GameReviews(ctx, 1355720)
	if err != nil || len(gr) != 1 || gr[0].Username != "alice" {
		t.Fatalf("game reviews: %v %v", gr, err)
	}

	n := 0
	for _, typ := range rec.Types() {
		if typ == events.ReviewAdded {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected one review event, got %d", n)
	}
}

func TestWishlistFlow(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)
	if _, err := svc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	for range 2 {
		if err := svc.AddToWishlist(ctx, "alice", 655370); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := svc.AddToWishlist(ctx, "alice", 1659180); err != nil {
		t.Fatalf("add: %v", err)
	}
	views, err := svc.Wishlist(ctx, "alice")
	if err != nil || len(views) != 2 || views[0].ID != 655370 {
		t.Fatalf("wishlist: %v %v", views, err)
	}
	if err := svc.RemoveFromWishlist(ctx, "alice", 655370); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.RemoveFromWishlist(ctx, "alice", 655370); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	views, _ = svc.Wishlist(ctx, "alice")
	if len(views) != 1 || views[0].ID != 1659180 {
		t.Fatalf("wishlist after remove: %v", views)
	}
	if err := svc.AddToWishlist(ctx, "alice", 42); !errors.Is(err, ErrUnknownGame) {
		t.Fatalf("expected ErrUnknownGame, got %v", err)
	}

	var added, removed int
	for _, typ := range rec.Types() {
		switch typ {
		case events.WishlistAdded:
			added++
		case events.WishlistRemoved:
			removed++
		}
	}
	if added != 2 || removed != 1 {
		t.Fatalf("events: added=%d removed=%d", added, removed)
	}
}

func TestBrowse(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	if n, _ := svc.NumberOfGames(ctx); n != fixtures.GamesCount {
		t.Fatalf("count %d", n)
	}
	slide, _ := svc.SlideGames(ctx)
	if len(slide) != ports.SlideGamesLimit {
		t.Fatalf("slide %d", len(slide))
	}
	genres, _ := svc.Genres(ctx)
	if !slices.Equal(genres, []string{"Action"}) {
		t.Fatalf("genres %v", genres)
	}
	byGenre, _ := svc.GamesByGenre(ctx, "action")
	if len(byGenre) != 0 {
		t.Fatalf("genre lookup should be case sensitive, got %d", len(byGenre))
	}
	byGenre, _ = svc.GamesByGenre(ctx, "Action")
	if len(byGenre) != fixtures.GamesCount {
		t.Fatalf("games by genre %d", len(byGenre))
	}
	pubs, _ := svc.Publishers(ctx)
	if len(pubs) != fixtures.GamesCount {
		t.Fatalf("publishers %d", len(pubs))
	}
	tags, _ := svc.Tags(ctx)
	if !slices.Contains(tags, "Tower Defense") {
		t.Fatalf("tags %v", tags)
	}
}
