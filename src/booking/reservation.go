package booking

import (
	"context"
	"log"
	"meetups/src/models"
	"meetups/src/monitoring"
	"meetups/src/pricing"
	"meetups/src/types"
	"meetups/src/utils"
	"time"

	"github.com/google/uuid"
)

// DraftCheckout carries the participant data for an order that does
// not exist yet.
type DraftCheckout struct {
	EventID uint
	Name    string
	Email   string
	Phone   string
	UserID  *uint
	Options []string
}

type ReservationManager struct {
	store       OrderStore
	ledger      *CapacityLedger
	bus         *Bus
	clock       Clock
	holdTTL     time.Duration
	allowRepeat bool
}

type ReservationManagerOption func(*ReservationManager)

func WithHoldTTL(d time.Duration) ReservationManagerOption {
	return func(m *ReservationManager) {
		if d > 0 {
			m.holdTTL = d
		}
	}
}

// WithRepeatParticipation controls whether the same participant email
// may hold more than one active order on one event.
func WithRepeatParticipation(allow bool) ReservationManagerOption {
	return func(m *ReservationManager) {
		m.allowRepeat = allow
	}
}

func NewReservationManager(store OrderStore, ledger *CapacityLedger, bus *Bus, clock Clock, opts ...ReservationManagerOption) *ReservationManager {
	m := &ReservationManager{
		store:       store,
		ledger:      ledger,
		bus:         bus,
		clock:       clock,
		holdTTL:     15 * time.Minute,
		allowRepeat: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartCheckout admits one seat and creates the order for it. Paid
// events get a held order with a TTL; zero-price events confirm
// immediately with no hold phase. A full event is an ordinary
// ErrCapacityExceeded result, not a failure.
func (m *ReservationManager) StartCheckout(ctx context.Context, draft DraftCheckout) (*models.Order, error) {
	now := m.clock.Now()

	event, err := m.store.GetEvent(ctx, draft.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsActive || event.IsTemporarilyClosed || event.Status == types.EVENT_CLOSED || event.IsExpired(now) {
		return nil, ErrEventUnavailable
	}

	quote := pricing.ComputePrice(event, draft.Options, now)

	order := &models.Order{
		ID:               uuid.New(),
		Code:             utils.GenerateCode(8),
		EventID:          draft.EventID,
		ParticipantName:  draft.Name,
		ParticipantEmail: draft.Email,
		ParticipantPhone: draft.Phone,
		UserID:           draft.UserID,
		BasePrice:        quote.Base,
		Surcharge:        quote.Surcharge,
		DiscountRate:     quote.DiscountRate,
		Total:            quote.Total,
	}
	if len(draft.Options) > 0 {
		order.Metadata = types.JSONB{"options": draft.Options}
	}
	if quote.Free() {
		order.Status = types.ORDER_CONFIRMED
	} else {
		expires := now.Add(m.holdTTL)
		order.Status = types.ORDER_HELD
		order.IsTemporaryHold = true
		order.HoldExpiresAt = &expires
	}

	err = m.ledger.TryAdmit(ctx, draft.EventID, func(txCtx context.Context, ev *models.Event) error {
		if !m.allowRepeat {
			taken, err := m.store.HasActiveParticipant(txCtx, ev.ID, draft.Email, now)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateParticipant
			}
		}
		return m.store.CreateOrder(txCtx, order)
	})
	if err != nil {
		monitoring.RecordAdmission(draft.EventID, admissionOutcome(err))
		return nil, err
	}

	monitoring.RecordAdmission(draft.EventID, "admitted")
	if order.Status == types.ORDER_CONFIRMED {
		m.bus.Publish(OrderEvent{Type: OrderConfirmed, OrderID: order.ID.String(), EventID: order.EventID, Order: order})
	} else {
		m.bus.Publish(OrderEvent{Type: OrderHeld, OrderID: order.ID.String(), EventID: order.EventID, Order: order})
	}
	return order, nil
}

func admissionOutcome(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case Rejected(err):
		return "rejected"
	default:
		return "error"
	}
}

// CancelHold cancels a held order. On an order already confirmed or
// cancelled it is a no-op that reports the current state back.
func (m *ReservationManager) CancelHold(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	return m.cancel(ctx, id, reason, false)
}

// ForceCancel also releases confirmed seats.
func (m *ReservationManager) ForceCancel(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	return m.cancel(ctx, id, reason, true)
}

func (m *ReservationManager) cancel(ctx context.Context, id uuid.UUID, reason string, includeConfirmed bool) (*models.Order, error) {
	var result *models.Order
	var cancelled bool
	err := m.store.WithTx(ctx, func(txCtx context.Context) error {
		order, err := m.store.GetOrderForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		cancellable := order.Status == types.ORDER_HELD ||
			(includeConfirmed && order.Status == types.ORDER_CONFIRMED)
		if !cancellable {
			result = order
			return nil
		}
		if err := m.store.CancelOrder(txCtx, id, reason); err != nil {
			return err
		}
		order.Status = types.ORDER_CANCELED
		order.IsTemporaryHold = false
		order.HoldExpiresAt = nil
		order.CancellationReason = &reason
		result = order
		cancelled = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cancelled {
		m.bus.Publish(OrderEvent{Type: OrderCanceled, OrderID: id.String(), EventID: result.EventID, Order: result})
	}
	return result, nil
}

// ExtendHold pushes a live hold's expiry forward. A hold that already
// lapsed cannot be revived; the participant restarts checkout.
func (m *ReservationManager) ExtendHold(ctx context.Context, id uuid.UUID, additional time.Duration) (*models.Order, error) {
	return m.extend(ctx, id, additional, false)
}

// ForceExtend restarts the window from now even when the original TTL
// has lapsed.
func (m *ReservationManager) ForceExtend(ctx context.Context, id uuid.UUID, additional time.Duration) (*models.Order, error) {
	return m.extend(ctx, id, additional, true)
}

func (m *ReservationManager) extend(ctx context.Context, id uuid.UUID, additional time.Duration, force bool) (*models.Order, error) {
	now := m.clock.Now()
	var result *models.Order
	err := m.store.WithTx(ctx, func(txCtx context.Context) error {
		order, err := m.store.GetOrderForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if order.Status != types.ORDER_HELD {
			return ErrAlreadyResolved
		}
		if order.HoldLapsed(now) && !force {
			return ErrHoldExpired
		}
		until := now.Add(additional)
		if !force && order.HoldExpiresAt != nil {
			until = order.HoldExpiresAt.Add(additional)
		}
		if err := m.store.ExtendHold(txCtx, id, until); err != nil {
			return err
		}
		order.HoldExpiresAt = &until
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkImport creates pre-confirmed orders for manually added
// participants. Each one still goes through TryAdmit; a full-event
// rejection stops the import and returns what was created so far.
func (m *ReservationManager) BulkImport(ctx context.Context, eventID uint, participants []types.ImportParticipant) ([]*models.Order, error) {
	now := m.clock.Now()
	created := make([]*models.Order, 0, len(participants))
	for _, p := range participants {
		order := &models.Order{
			ID:               uuid.New(),
			Code:             utils.GenerateCode(8),
			EventID:          eventID,
			ParticipantName:  p.Name,
			ParticipantEmail: p.Email,
			ParticipantPhone: p.Phone,
			Status:           types.ORDER_CONFIRMED,
			PaidAt:           &now,
			Metadata:         types.JSONB{"source": "import"},
		}
		err := m.ledger.TryAdmit(ctx, eventID, func(txCtx context.Context, _ *models.Event) error {
			return m.store.CreateOrder(txCtx, order)
		})
		if err != nil {
			return created, err
		}
		monitoring.RecordAdmission(eventID, "admitted")
		m.bus.Publish(OrderEvent{Type: OrderConfirmed, OrderID: order.ID.String(), EventID: eventID, Order: order})
		created = append(created, order)
	}
	return created, nil
}

func (m *ReservationManager) MarkAttended(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	now := m.clock.Now()
	order, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != types.ORDER_CONFIRMED && order.Status != types.ORDER_COMPLETED {
		return nil, ErrAlreadyResolved
	}
	if err := m.store.MarkAttended(ctx, id, now); err != nil {
		return nil, err
	}
	order.Attended = true
	order.AttendedAt = &now
	return order, nil
}

// CompleteEvent rolls confirmed orders into the terminal completed
// state once the event has started.
func (m *ReservationManager) CompleteEvent(ctx context.Context, eventID uint) (int64, error) {
	now := m.clock.Now()
	event, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if !event.IsExpired(now) {
		return 0, ErrEventUnavailable
	}
	n, err := m.store.CompleteOrders(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[reservations] completed %d orders for event %d\n", n, eventID)
		m.bus.Publish(OrderEvent{Type: OrderCompleted, EventID: eventID})
	}
	return n, nil
}

func (m *ReservationManager) ListOrders(ctx context.Context, f ListFilter) ([]models.Order, error) {
	return m.store.ListOrders(ctx, f, m.clock.Now())
}
