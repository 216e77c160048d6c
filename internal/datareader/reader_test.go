package datareader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuihairu/gamelib/internal/fixtures"
	"github.com/cuihairu/gamelib/internal/hotreload"
	"github.com/cuihairu/gamelib/internal/objstore"
	"github.com/cuihairu/gamelib/internal/ports"
	"github.com/cuihairu/gamelib/internal/repo/memory"
)

const header = "AppID,Name,Release date,Price,About the game,Supported languages,Header image,Website,Windows,Mac,Linux,Publishers,Categories,Genres,Tags\n"

func TestReadFixture(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepo()
	st, err := New(repo).Read(ctx, bytes.NewReader(fixtures.GamesCSV))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.Rows != fixtures.GamesCount || st.Games != fixtures.GamesCount || st.Skipped != 0 || st.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.Genres != 1 || st.Publishers != fixtures.GamesCount {
		t.Fatalf("unexpected dedup counts: %+v", st)
	}

	g, err := repo.GameByID(ctx, 7940)
	if err != nil || g == nil {
		t.Fatalf("game 7940 missing: %v", err)
	}
	if g.Title() != "Call of Duty® 4: Modern Warfare®" {
		t.Fatalf("title %q", g.Title())
	}
	if p, ok := g.Price(); !ok || p != 9.99 {
		t.Fatalf("price %v %v", p, ok)
	}
	if g.ReleaseDate() != "Nov 12, 2007" {
		t.Fatalf("release date %q", g.ReleaseDate())
	}
	if g.Publisher() == nil || g.Publisher().Name() != "Activision" {
		t.Fatalf("publisher %v", g.Publisher())
	}
	langs := g.Languages()
	if len(langs) != 5 || langs[0] != "English" || langs[4] != "Spanish - Spain" {
		t.Fatalf("languages %q", langs)
	}
	sys := g.SystemSupport()
	if !sys["windows"] || !sys["mac"] || sys["linux"] {
		t.Fatalf("system support %v", sys)
	}
	if g.WebsiteURL() == "" || g.VideoURL() == "" {
		t.Fatalf("optional urls not read: %q %q", g.WebsiteURL(), g.VideoURL())
	}
	if cats := g.Categories(); len(cats) != 3 || cats[0] != "Single-player" {
		t.Fatalf("categories %q", cats)
	}
}

func TestReadSharesGenreInstances(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepo()
	if _, err := New(repo).Read(ctx, bytes.NewReader(fixtures.GamesCSV)); err != nil {
		t.Fatalf("read: %v", err)
	}
	games, _ := repo.Games(ctx)
	first := games[0].Genres()[0]
	for _, g := range games[1:] {
		if g.Genres()[0] != first {
			t.Fatalf("game %d has its own genre instance", g.ID())
		}
	}
	genres, _ := repo.Genres(ctx)
	if len(genres) != 1 || genres[0].Name() != "Action" {
		t.Fatalf("genres %v", genres)
	}
}

func TestReadSkipsBadRows(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepo()
	data := header +
		`1,Good,"Jan 1, 2020",1.50,About,['English'],img,,True,False,False,Pub,Single-player,"Action,Indie",Tag` + "\n" +
		`2,Bad price,"Jan 1, 2020",cheap,About,['English'],img,,True,False,False,Pub,Single-player,Action,Tag` + "\n" +
		`x,Bad id,"Jan 1, 2020",1.00,About,['English'],img,,True,False,False,Pub,Single-player,Action,Tag` + "\n" +
		`4,Negative,"Jan 1, 2020",-3,About,['English'],img,,True,False,False,Pub,Single-player,Action,Tag` + "\n" +
		`5,Bad date,"someday",1.00,About,['English'],img,,True,False,False,Pub,Single-player,Action,Tag` + "\n" +
		`6,Short row` + "\n" +
		`7,Also good,"Feb 2, 2021",0,About,['English'],img,,true,TRUE,false,Pub,Single-player,Action,Tag` + "\n"

	st, err := New(repo).Read(ctx, strings.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.Rows != 7 || st.Games != 2 || st.Skipped != 5 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.Publishers != 1 || st.Genres != 2 {
		t.Fatalf("unexpected dedup counts: %+v", st)
	}
	if n, _ := repo.NumberOfGames(ctx); n != 2 {
		t.Fatalf("expected 2 games, got %d", n)
	}
	g, _ := repo.GameByID(ctx, 7)
	if sys := g.SystemSupport(); !sys["windows"] || !sys["mac"] || sys["linux"] {
		t.Fatalf("system support %v", sys)
	}
	if g.WebsiteURL() != "" || g.VideoURL() != "" {
		t.Fatalf("expected empty optional fields")
	}
}

func TestReadWithoutBOM(t *testing.T) {
	data := bytes.TrimPrefix(fixtures.GamesCSV, []byte("\xef\xbb\xbf"))
	st, err := New(memory.NewRepo()).Read(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.Games != fixtures.GamesCount {
		t.Fatalf("expected %d games, got %+v", fixtures.GamesCount, st)
	}
}

func TestReadMissingColumnSkipsEveryRow(t *testing.T) {
	data := "AppID,Name,Price\n1,Game,1.00\n"
	st, err := New(memory.NewRepo()).Read(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.Games != 0 || st.Skipped != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestReadEmptyInput(t *testing.T) {
	if _, err := New(memory.NewRepo()).Read(context.Background(), strings.NewReader("")); err == nil {
		t.Fatalf("expected header error")
	}
}

func TestReadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(memory.NewRepo()).Read(ctx, bytes.NewReader(fixtures.GamesCSV))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepo()
	r := New(repo)
	for range 2 {
		if _, err := r.Read(ctx, bytes.NewReader(fixtures.GamesCSV)); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	n, _ := repo.NumberOfGames(ctx)
	pubs, _ := repo.Publishers(ctx)
	genres, _ := repo.Genres(ctx)
	if n != fixtures.GamesCount || len(pubs) != fixtures.GamesCount || len(genres) != 1 {
		t.Fatalf("duplicates after re-ingest: games=%d publishers=%d genres=%d", n, len(pubs), len(genres))
	}
}

func TestReadFileLocalAndBlob(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "games.csv")
	if err := os.WriteFile(path, fixtures.GamesCSV, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, err := New(memory.NewRepo()).ReadFile(ctx, path)
	if err != nil || st.Games != fixtures.GamesCount {
		t.Fatalf("local read: %+v %v", st, err)
	}

	opener := objstore.NewOpener(objstore.Config{})
	defer opener.Close()
	const loc = "mem://datasets/games.csv"
	if err := opener.Put(ctx, loc, fixtures.GamesCSV); err != nil {
		t.Fatalf("put: %v", err)
	}
	st, err = New(memory.NewRepo(), WithOpener(opener)).ReadFile(ctx, loc)
	if err != nil || st.Games != fixtures.GamesCount {
		t.Fatalf("blob read: %+v %v", st, err)
	}

	if _, err := New(memory.NewRepo()).ReadFile(ctx, filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.csv")
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := hotreload.New(hotreload.Config{DebounceTime: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	defer w.Close()

	repo := &resetCounter{Repository: memory.NewRepo()}
	results := make(chan Stats, 4)
	if err := New(repo).Watch(w, path, func(st Stats, err error) {
		if err == nil {
			results <- st
		}
	}); err != nil {
		t.Fatalf("watch: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(path, fixtures.GamesCSV, 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-results:
			if st.Games == fixtures.GamesCount {
				if repo.resets.Load() == 0 {
					t.Fatalf("reload did not start a fresh session")
				}
				return
			}
		case <-deadline:
			t.Fatalf("dataset was not reloaded")
		}
	}
}

type resetCounter struct {
	ports.Repository
	resets atomic.Int32
}

func (c *resetCounter) ResetSession(ctx context.Context) error {
	c.resets.Add(1)
	return c.Repository.ResetSession(ctx)
}
