package display

import (
	"context"

	"eventflow/internal/flow"
	"eventflow/internal/mainloop"
	"eventflow/internal/runtime/scope"
)

// Watch collects sub within sc and appends every value to p on exec.
//
// The collector never touches p itself, so panel updates stay ordered with
// everything else on the delivery loop. Watch stops (and closes sub) when
// the scope ends, sub is closed, or exec stops accepting work. It reports
// false if the scope had already ended.
func Watch(sc *scope.Scope, exec mainloop.Executor, sub *flow.Subscription[int], p *Panel) bool {
	started := sc.Go("watch:"+p.Name(), func(ctx context.Context) error {
		defer sub.Close()
		err := flow.Collect(ctx, sub, func(v int) {
			if !exec.Post(func() { p.Append(v) }) {
				p.log.Debug("delivery loop stopped; closing panel watch")
				sub.Close()
			}
		})
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
	if !started {
		sub.Close()
		p.log.Debug("watch not started: scope ended")
	}
	return started
}
