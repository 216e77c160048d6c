package datareader

import (
	"context"

	"github.com/cuihairu/gamelib/internal/hotreload"
)

// Watch re-ingests path every time it changes. Games are upserted by id, so
// repeated runs over the same file do not duplicate anything. Each run starts
// a fresh repository session. done, when not nil, receives the result of
// each run.
func (r *Reader) Watch(w *hotreload.Watcher, path string, done func(Stats, error)) error {
	return w.Watch(path, func(ctx context.Context, ev hotreload.Event) error {
		r.log.Info("dataset changed, reloading", "path", ev.Path, "op", ev.Op.String())
		var st Stats
		err := r.repo.ResetSession(ctx)
		if err == nil {
			st, err = r.ReadFile(ctx, ev.Path)
		}
		if done != nil {
			done(st, err)
		}
		return err
	})
}
