package booking

import (
	"context"
	"log"
	"meetups/src/monitoring"
	"meetups/src/types"
)

// ExpiryReaper reclaims seats from holds whose TTL lapsed. Capacity
// is derived live with a timestamp comparison, so a sweep only frees
// the rows sooner; correctness never depends on it running.
type ExpiryReaper struct {
	store OrderStore
	bus   *Bus
	clock Clock
	batch int
}

func NewExpiryReaper(store OrderStore, bus *Bus, clock Clock) *ExpiryReaper {
	return &ExpiryReaper{store: store, bus: bus, clock: clock, batch: 200}
}

// Sweep candidates are re-checked under their row lock, so a confirm
// that lands between the select and the cancel simply wins; the
// reaper observes the resolved order and moves on. Per-order failures
// are logged and never abort the rest of the sweep.
func (r *ExpiryReaper) Sweep(ctx context.Context) (released int) {
	now := r.clock.Now()
	expired, err := r.store.ExpiredHolds(ctx, now, r.batch)
	if err != nil {
		log.Printf("[reaper] error selecting expired holds: %s\n", err.Error())
		return 0
	}

	for _, candidate := range expired {
		var reaped bool
		err := r.store.WithTx(ctx, func(txCtx context.Context) error {
			order, err := r.store.GetOrderForUpdate(txCtx, candidate.ID)
			if err != nil {
				return err
			}
			if !order.HoldLapsed(now) {
				// Confirmed, cancelled, or extended since the select.
				return nil
			}
			if err := r.store.CancelOrder(txCtx, order.ID, types.CancelReasonExpired); err != nil {
				return err
			}
			reaped = true
			return nil
		})
		if err != nil {
			log.Printf("[reaper] error releasing hold %s: %s\n", candidate.ID, err.Error())
			continue
		}
		if reaped {
			released++
			r.bus.Publish(OrderEvent{Type: OrderExpired, OrderID: candidate.ID.String(), EventID: candidate.EventID})
		}
	}

	if released > 0 {
		monitoring.RecordReaped(released)
		log.Printf("[reaper] released %d expired holds\n", released)
	}
	return released
}
