package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/cuihairu/gamelib/internal/domain"
	"github.com/cuihairu/gamelib/internal/ports"
	"github.com/cuihairu/gamelib/internal/repo/repotest"
)

func TestRepository(t *testing.T) {
	repotest.Run(t, func(*testing.T) ports.Repository { return NewRepo() })
}

func TestListingsAreCopies(t *testing.T) {
	ctx := context.Background()
	r := NewRepo()
	repotest.Load(t, ctx, r)

	games, _ := r.Games(ctx)
	games[0] = nil
	again, _ := r.Games(ctx)
	if again[0] == nil {
		t.Fatalf("Games exposed the internal slice")
	}
	genres, _ := r.Genres(ctx)
	genres[0] = domain.NewGenre("Mutated")
	again2, _ := r.Genres(ctx)
	if again2[0].Name() != "Action" {
		t.Fatalf("Genres exposed the internal slice")
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	r := NewRepo()
	repotest.Load(t, ctx, r)
	u, _ := domain.NewUser("alice", "h")
	if err := r.AddUser(ctx, u); err != nil {
		t.Fatalf("add user: %v", err)
	}
	games, _ := r.Games(ctx)

	var wg sync.WaitGroup
	for i, g := range games {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := r.AddWishGame(ctx, u, g); err != nil {
				t.Errorf("add wish: %v", err)
			}
			if _, err := r.AddReview(ctx, u, g, i%6, "ok"); err != nil {
				t.Errorf("review: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := r.SearchGamesByTitle(ctx, "a"); err != nil {
				t.Errorf("search: %v", err)
			}
			if _, err := r.Wishlist(ctx, u); err != nil {
				t.Errorf("wishlist: %v", err)
			}
		}()
	}
	wg.Wait()

	wish, _ := r.Wishlist(ctx, u)
	reviews, _ := r.Reviews(ctx)
	if len(wish) != len(games) || len(reviews) != len(games) {
		t.Fatalf("lost writes: wishlist=%d reviews=%d", len(wish), len(reviews))
	}
}
