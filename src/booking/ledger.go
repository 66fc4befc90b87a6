package booking

import (
	"context"
	"log"
	"meetups/src/models"
)

// CapacityLedger answers "is there room for one more seat" and, when
// there is, runs the caller's insert inside the same per-event
// critical section. The count is always derived live from order rows;
// nothing here keeps a counter that could drift.
type CapacityLedger struct {
	store OrderStore
	clock Clock
}

func NewCapacityLedger(store OrderStore, clock Clock) *CapacityLedger {
	return &CapacityLedger{store: store, clock: clock}
}

// TryAdmit locks the event, re-derives the active seat count and, if
// a seat is free, calls create with the locked event before the lock
// is released. Admission without the insert in the same critical
// section would reopen the race for the last seat.
//
// Store failures propagate as-is: the ledger fails closed and never
// admits optimistically.
func (l *CapacityLedger) TryAdmit(ctx context.Context, eventID uint, create func(ctx context.Context, event *models.Event) error) error {
	now := l.clock.Now()
	return l.store.WithTx(ctx, func(txCtx context.Context) error {
		event, err := l.store.GetEventForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}
		if !event.Unlimited() {
			active, err := l.store.CountActive(txCtx, eventID, now)
			if err != nil {
				return err
			}
			if active >= int64(*event.MaxParticipants) {
				log.Printf("[ledger] event %d full: %d/%d seats taken\n", eventID, active, *event.MaxParticipants)
				return ErrCapacityExceeded
			}
		}
		return create(txCtx, event)
	})
}

// HasRoom re-derives the capacity check for an order that is already
// counted: active may equal the cap exactly when the order itself
// holds the last seat. Used at confirmation time, where the cap may
// have been lowered after the hold was created.
func (l *CapacityLedger) HasRoom(ctx context.Context, event *models.Event) (bool, error) {
	if event.Unlimited() {
		return true, nil
	}
	active, err := l.store.CountActive(ctx, event.ID, l.clock.Now())
	if err != nil {
		return false, err
	}
	return active <= int64(*event.MaxParticipants), nil
}
