package metrics

import (
	"context"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

type tallyKey struct{}

// tally buffers the signal counters touched by one attempt of a unit of work
type tally struct {
	emitted   []domain.SignalKind
	discarded []discard
}

type discard struct {
	kind   domain.SignalKind
	reason string
}

func (t *tally) record() {
	for _, kind := range t.emitted {
		SignalsEmitted.WithLabelValues(string(kind)).Inc()
	}
	for _, d := range t.discarded {
		SignalsDiscarded.WithLabelValues(string(d.kind), d.reason).Inc()
	}
}

// Atomic runs fn in a unit of work of store. Signals counted with
// CountEmitted and CountDiscarded inside fn are recorded only after the unit
// of work commits; rolled back and retried attempts leave no trace.
func Atomic(ctx context.Context, store domain.Store, fn func(ctx context.Context, tx domain.Tx) error) error {
	var t *tally
	err := store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		t = &tally{}
		return fn(context.WithValue(ctx, tallyKey{}, t), tx)
	})
	if err == nil && t != nil {
		t.record()
	}
	return err
}

// CountEmitted counts an outbound signal recorded in the outbox
func CountEmitted(ctx context.Context, kind domain.SignalKind) {
	if t, ok := ctx.Value(tallyKey{}).(*tally); ok {
		t.emitted = append(t.emitted, kind)
		return
	}
	SignalsEmitted.WithLabelValues(string(kind)).Inc()
}

// CountDiscarded counts an inbound signal that was ignored
func CountDiscarded(ctx context.Context, kind domain.SignalKind, reason string) {
	if t, ok := ctx.Value(tallyKey{}).(*tally); ok {
		t.discarded = append(t.discarded, discard{kind: kind, reason: reason})
		return
	}
	SignalsDiscarded.WithLabelValues(string(kind), reason).Inc()
}
