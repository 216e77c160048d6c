package catalog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/cuihairu/gamelib/internal/datareader"
	"github.com/cuihairu/gamelib/internal/db"
	"github.com/cuihairu/gamelib/internal/domain"
	"github.com/cuihairu/gamelib/internal/fixtures"
	"github.com/cuihairu/gamelib/internal/ports"
	"github.com/cuihairu/gamelib/internal/repo/repotest"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(db.Config{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) ports.Repository {
		r := NewRepo(newTestDB(t))
		t.Cleanup(func() { _ = r.Close() })
		return r
	})
}

func TestSessionStates(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := NewRepo(gdb)
	if r.State() != StateClosed {
		t.Fatalf("new repo should start closed, got %s", r.State())
	}
	if _, err := r.NumberOfGames(ctx); err != nil {
		t.Fatalf("count: %v", err)
	}
	if r.State() != StateOpen {
		t.Fatalf("expected open, got %s", r.State())
	}
	if err := r.AddGenre(ctx, domain.NewGenre("Action")); err != nil {
		t.Fatalf("add genre: %v", err)
	}
	if r.State() != StateCommitted {
		t.Fatalf("expected committed, got %s", r.State())
	}

	if err := gdb.Migrator().DropTable(&GameGenre{}, &Genre{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	err := r.AddGenre(ctx, domain.NewGenre("Education"))
	if !errors.Is(err, ports.ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if r.State() != StateRolledBack {
		t.Fatalf("expected rolled_back, got %s", r.State())
	}

	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.State() != StateClosed {
		t.Fatalf("expected closed, got %s", r.State())
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := NewRepo(gdb)
	repotest.Load(t, ctx, r)

	if err := gdb.Migrator().DropTable(&GameTag{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	g, _ := domain.NewGame(1, "Half Written")
	g.SetPublisher(domain.NewPublisher("Rollback Co"))
	g.AddTag("Broken")
	if err := r.AddGame(ctx, g); !errors.Is(err, ports.ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}

	var games, pubs int64
	gdb.Model(&Game{}).Count(&games)
	gdb.Model(&Publisher{}).Where("name = ?", "Rollback Co").Count(&pubs)
	if games != fixtures.GamesCount || pubs != 0 {
		t.Fatalf("partial write survived: games=%d publishers=%d", games, pubs)
	}
	if r.State() != StateRolledBack {
		t.Fatalf("expected rolled_back, got %s", r.State())
	}
}

func TestIdentityMap(t *testing.T) {
	ctx := context.Background()
	r := NewRepo(newTestDB(t))
	repotest.Load(t, ctx, r)
	if err := r.ResetSession(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	a, _ := r.GameByID(ctx, 7940)
	b, _ := r.GameByID(ctx, 7940)
	if a == nil || a != b {
		t.Fatalf("same session should return the same instance")
	}
	games, _ := r.Games(ctx)
	action := games[0].Genres()[0]
	for _, g := range games {
		if g.Genres()[0] != action {
			t.Fatalf("game %d does not share the session genre", g.ID())
		}
	}

	if err := r.ResetSession(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	c, _ := r.GameByID(ctx, 7940)
	if c == a || !c.Equal(a) {
		t.Fatalf("reset should materialize a new, equal instance")
	}
}

func TestReingestDoesNotDuplicateRows(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := NewRepo(gdb)
	repotest.Load(t, ctx, r)
	repotest.Load(t, ctx, r)

	counts := map[string]int64{}
	for name, model := range map[string]any{
		"games":      &Game{},
		"genres":     &Genre{},
		"publishers": &Publisher{},
		"links":      &GameGenre{},
	} {
		var n int64
		if err := gdb.Model(model).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		counts[name] = n
	}
	want := map[string]int64{"games": fixtures.GamesCount, "genres": 1, "publishers": fixtures.GamesCount, "links": fixtures.GamesCount}
	for k, v := range want {
		if counts[k] != v {
			t.Fatalf("%s: got %d rows, want %d", k, counts[k], v)
		}
	}
}

func TestUsersSurviveNewRepo(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	first := NewRepo(gdb)
	repotest.Load(t, ctx, first)
	u, _ := domain.NewUser("Carol", "h")
	if err := first.AddUser(ctx, u); err != nil {
		t.Fatalf("add user: %v", err)
	}
	g, _ := first.GameByID(ctx, 655370)
	if err := first.AddWishGame(ctx, u, g); err != nil {
		t.Fatalf("wish: %v", err)
	}
	_ = first.Close()

	second := NewRepo(gdb)
	got, err := second.User(ctx, "carol")
	if err != nil || got == nil {
		t.Fatalf("user: %v %v", got, err)
	}
	if got == u || got.Wishlist().Size() != 1 || got.Wishlist().First().Title() != "Train Bandit" {
		t.Fatalf("wishlist not reloaded: %v", got.Wishlist().Games())
	}
}

func TestConcurrentIngest(t *testing.T) {
	ctx := context.Background()
	r := NewRepo(newTestDB(t))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 3 {
				st, err := datareader.New(r).Read(ctx, bytes.NewReader(fixtures.GamesCSV))
				if err == nil && st.Games != fixtures.GamesCount {
					err = errors.New("short ingest")
				}
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 10 {
			if _, err := r.Games(ctx); err != nil {
				errs <- err
				return
			}
			_ = r.ResetSession(ctx)
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent use: %v", err)
	}
	if n, err := r.NumberOfGames(ctx); err != nil || n != fixtures.GamesCount {
		t.Fatalf("games after concurrent ingest: %d %v", n, err)
	}
}

func TestUnreadableJSONColumnIsLogged(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	var logs bytes.Buffer
	r := NewRepo(gdb, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	repotest.Load(t, ctx, r)

	if err := gdb.Exec("UPDATE games SET languages = ? WHERE id = ?", "not json", 7940).Error; err != nil {
		t.Fatalf("corrupt row: %v", err)
	}
	if err := r.ResetSession(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	g, err := r.GameByID(ctx, 7940)
	if err != nil || g == nil {
		t.Fatalf("game: %v %v", g, err)
	}
	if len(g.Languages()) != 0 || !g.SystemSupport()["windows"] {
		t.Fatalf("languages %v support %v", g.Languages(), g.SystemSupport())
	}
	if out := logs.String(); !strings.Contains(out, "stored game column unreadable") || !strings.Contains(out, "game_id=7940") {
		t.Fatalf("decode failure not logged: %s", out)
	}
}
