package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuihairu/gamelib/internal/fixtures"
)

type env struct {
	dir  string
	data string
	db   string
	log  string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{
		dir:  dir,
		data: filepath.Join(dir, "games.csv"),
		db:   "file:" + filepath.ToSlash(filepath.Join(dir, "catalog.db")),
		log:  filepath.Join(dir, "gamelib.log"),
	}
	if err := os.WriteFile(e.data, fixtures.GamesCSV, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("GAMELIB_LOG_FILE", e.log)
	t.Setenv("GAMELIB_DATABASE_DSN", e.db)
	t.Setenv("GAMELIB_DATA_PATH", e.data)
	return e
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGamesFromMemory(t *testing.T) {
	newEnv(t)
	out, err := run(t, "games", "-o", "json")
	if err != nil {
		t.Fatalf("games: %v", err)
	}
	var views []map[string]any
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(views) != fixtures.GamesCount || views[0]["game_id"] != float64(7940) {
		t.Fatalf("unexpected output: %v", views)
	}

	out, err = run(t, "search", "--by", "tags", "steampunk")
	if err != nil || !strings.Contains(out, "242530") || !strings.Contains(out, "1228870") {
		t.Fatalf("search: %q %v", out, err)
	}
	out, err = run(t, "games", "418650")
	if err != nil || !strings.Contains(out, "Space Pirate Trainer") {
		t.Fatalf("show: %q %v", out, err)
	}
	if _, err := run(t, "games", "34242"); err == nil {
		t.Fatalf("expected error for unknown game")
	}
}

func TestDatabaseUserFlow(t *testing.T) {
	newEnv(t)
	db := []string{"--repository", "database"}
	steps := [][]string{
		{"ingest"},
		{"user", "register", "-u", "alice", "-p", "password1"},
		{"user", "login", "-u", "alice", "-p", "password1"},
		{"review", "add", "-u", "alice", "-p", "password1", "1355720", "5", "clever", "puzzles"},
		{"wishlist", "add", "-u", "alice", "-p", "password1", "655370"},
	}
	for _, s := range steps {
		if out, err := run(t, append(db, s...)...); err != nil {
			t.Fatalf("%v: %v\n%s", s, err, out)
		}
	}
	if _, err := run(t, append(db, "review", "add", "-u", "alice", "-p", "password1", "1355720", "1")...); err == nil {
		t.Fatalf("second review should fail")
	}
	if _, err := run(t, append(db, "user", "login", "-u", "alice", "-p", "wrong-password")...); err == nil {
		t.Fatalf("bad password should fail")
	}

	out, err := run(t, append(db, "review", "list", "-u", "alice")...)
	if err != nil || !strings.Contains(out, "clever puzzles") {
		t.Fatalf("review list: %q %v", out, err)
	}
	out, err = run(t, append(db, "wishlist", "list", "-u", "alice", "-o", "yaml")...)
	if err != nil || !strings.Contains(out, "game_id: 655370") {
		t.Fatalf("wishlist list: %q %v", out, err)
	}
}

func TestConfigCommands(t *testing.T) {
	newEnv(t)
	out, err := run(t, "config", "test")
	if err != nil || !strings.Contains(out, "config OK") {
		t.Fatalf("config test: %q %v", out, err)
	}
	out, err = run(t, "config", "show")
	if err != nil || !strings.Contains(out, "repository: memory") {
		t.Fatalf("config show: %q %v", out, err)
	}
	if _, err := run(t, "--repository", "cloud", "config", "test"); err == nil {
		t.Fatalf("expected validation error")
	}
}
