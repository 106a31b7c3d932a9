package photo

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const rollbackTimeout = 30 * time.Second

// step is one stage of an ingestion. rollback, when set, undoes a completed run
// after a later step fails.
type step struct {
	name     string
	kind     Kind
	run      func(ctx context.Context) error
	rollback func(ctx context.Context) error
}

// pipeline runs steps strictly in order and stops at the first failure.
type pipeline struct {
	logger *slog.Logger
	steps  []step
}

func (p *pipeline) run(ctx context.Context) error {
	done := make([]step, 0, len(p.steps))
	for _, st := range p.steps {
		if err := ctx.Err(); err != nil {
			p.unwind(ctx, done)
			return &Error{Op: OpIngest, Kind: KindCanceled, Step: st.name, Err: err}
		}

		if err := st.run(ctx); err != nil {
			p.unwind(ctx, done)
			kind := st.kind
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				kind = KindCanceled
			}
			p.logger.Warn("ingestion step failed", "step", st.name, "kind", kind, "err", err)
			return &Error{Op: OpIngest, Kind: kind, Step: st.name, Err: err}
		}
		done = append(done, st)
	}
	return nil
}

// unwind rolls back completed steps in reverse order. Rollback runs detached from
// the request's cancellation and never replaces the original failure.
func (p *pipeline) unwind(ctx context.Context, done []step) {
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.rollback == nil {
			continue
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		if err := st.rollback(rctx); err != nil {
			p.logger.Error("rollback failed", "step", st.name, "err", err)
		}
		cancel()
	}
}
