package sessioncore

import (
	"context"
	"fmt"

	"github.com/worldline-go/hardloop"

	"github.com/rakunlabs/sshwarma/internal/broadcast"
	"github.com/rakunlabs/sshwarma/internal/script"
)

// RunTick drives the session's ~10 Hz frame loop: every tick, drain
// any pending script-reload events for this session's HUD module and
// re-render if anything is dirty. It blocks until ctx is cancelled.
func (s *Session) RunTick(ctx context.Context) error {
	sub := s.reloads.Subscribe()
	defer sub.Close()

	cronJob, err := hardloop.NewCron(hardloop.Cron{
		Name:  "session-tick",
		Specs: []string{"@every 100ms"},
		Func: func(tickCtx context.Context) error {
			s.drainReloads(sub)
			if s.dirty.Empty() {
				return nil
			}
			s.dirty.Take()
			return s.Render(tickCtx)
		},
	})
	if err != nil {
		return fmt.Errorf("build session tick: %w", err)
	}

	if err := cronJob.Start(ctx); err != nil {
		return fmt.Errorf("start session tick: %w", err)
	}
	<-ctx.Done()
	cronJob.Stop()
	return nil
}

// drainReloads invalidates every module this session has cached that a
// pending reload event names, non-blocking: a lagged subscriber simply
// catches up next tick since the loader re-resolves from storage
// regardless.
func (s *Session) drainReloads(sub *broadcast.Subscription[script.ReloadEvent]) {
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			s.scripts.Invalidate(ev.Module)
			s.dirty.Mark("script:" + ev.Module)
		default:
			return
		}
	}
}
