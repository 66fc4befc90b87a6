package booking

import (
	"context"
	"errors"
	"log"
	"meetups/src/models"
	"meetups/src/monitoring"
	"meetups/src/types"

	"github.com/google/uuid"
)

// Notifier delivers the confirmation side effect. A delivery failure
// never unwinds a confirmed order.
type Notifier interface {
	NotifyConfirmed(ctx context.Context, order *models.Order) error
}

// ConfirmationService finalizes a held order exactly once per unique
// payment reference.
type ConfirmationService struct {
	store    OrderStore
	ledger   *CapacityLedger
	bus      *Bus
	clock    Clock
	notifier Notifier
}

func NewConfirmationService(store OrderStore, ledger *CapacityLedger, bus *Bus, clock Clock, notifier Notifier) *ConfirmationService {
	return &ConfirmationService{
		store:    store,
		ledger:   ledger,
		bus:      bus,
		clock:    clock,
		notifier: notifier,
	}
}

// ConfirmPayment moves the order from held to confirmed. The second
// return value reports whether this call performed the transition;
// repeats with an already-applied reference observe false and the
// previously finalized order.
func (s *ConfirmationService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentReference string) (*models.Order, bool, error) {
	// Duplicate signals short-circuit on the idempotency key before
	// touching any lock.
	if existing, err := s.store.FindByPaymentReference(ctx, paymentReference); err != nil {
		return nil, false, err
	} else if existing != nil && existing.Status != types.ORDER_HELD {
		return existing, false, nil
	}

	now := s.clock.Now()
	var confirmed *models.Order
	var already *models.Order
	var capacityCancelled *models.Order

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.store.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		// The event lock serializes this against concurrent
		// admissions so the capacity re-check below stays exact.
		event, err := s.store.GetEventForUpdate(txCtx, order.EventID)
		if err != nil {
			return err
		}

		if order.Status != types.ORDER_HELD {
			// A concurrent call with the same reference won the lock
			// first; report its result instead of an error.
			if order.PaymentReference != nil && *order.PaymentReference == paymentReference {
				already = order
				return nil
			}
			return ErrAlreadyResolved
		}
		if order.HoldLapsed(now) {
			return ErrAlreadyResolved
		}

		// The hold is still counted, so this only fires when the cap
		// was lowered under it or the hold outlived its TTL through
		// reaper lag. The one path where a hold dies after creation.
		room, err := s.ledger.HasRoom(txCtx, event)
		if err != nil {
			return err
		}
		if !room {
			// The cancel must commit even though the confirmation is
			// rejected, so the error surfaces only after the
			// transaction closes.
			if err := s.store.CancelOrder(txCtx, orderID, "capacity re-check failed"); err != nil {
				return err
			}
			order.Status = types.ORDER_CANCELED
			capacityCancelled = order
			return nil
		}

		if err := s.store.ConfirmOrder(txCtx, orderID, paymentReference, now); err != nil {
			return err
		}
		order.Status = types.ORDER_CONFIRMED
		order.IsTemporaryHold = false
		order.HoldExpiresAt = nil
		order.PaymentReference = &paymentReference
		order.PaidAt = &now
		confirmed = order
		return nil
	})
	if err != nil {
		// Losing the payment_reference uniqueness race means a
		// concurrent call already finalized; fall back to the
		// idempotent read.
		if errors.Is(err, ErrPaymentReferenceConflict) {
			existing, rerr := s.store.FindByPaymentReference(ctx, paymentReference)
			if rerr != nil {
				return nil, false, rerr
			}
			if existing != nil && existing.Status != types.ORDER_HELD {
				return existing, false, nil
			}
		}
		monitoring.RecordConfirmation("error")
		return nil, false, err
	}
	if already != nil {
		return already, false, nil
	}
	if capacityCancelled != nil {
		monitoring.RecordConfirmation("capacity_rejected")
		s.bus.Publish(OrderEvent{Type: OrderCanceled, OrderID: orderID.String(), EventID: capacityCancelled.EventID, Order: capacityCancelled})
		return nil, false, ErrCapacityExceeded
	}

	monitoring.RecordConfirmation("confirmed")
	s.bus.Publish(OrderEvent{Type: OrderConfirmed, OrderID: orderID.String(), EventID: confirmed.EventID, Order: confirmed})
	if s.notifier != nil {
		if err := s.notifier.NotifyConfirmed(ctx, confirmed); err != nil {
			log.Printf("[confirm] notification for order %s failed: %s\n", orderID, err.Error())
		}
	}
	return confirmed, true, nil
}
