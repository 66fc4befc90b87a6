package booking

import (
	"context"
	"errors"
	"meetups/src/models"
	"meetups/src/types"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory OrderStore whose GetEventForUpdate takes a
// real per-event mutex, so the concurrency tests exercise the same
// critical-section contract the row-locking store provides.
type memStore struct {
	mu        sync.Mutex
	events    map[uint]*models.Event
	orders    map[uuid.UUID]*models.Order
	refs      map[string]uuid.UUID
	eventMu   map[uint]*sync.Mutex
	orderMu   map[uuid.UUID]*sync.Mutex
	cancelErr map[uuid.UUID]error
}

func newMemStore(events ...*models.Event) *memStore {
	s := &memStore{
		events:    make(map[uint]*models.Event),
		orders:    make(map[uuid.UUID]*models.Order),
		refs:      make(map[string]uuid.UUID),
		eventMu:   make(map[uint]*sync.Mutex),
		orderMu:   make(map[uuid.UUID]*sync.Mutex),
		cancelErr: make(map[uuid.UUID]error),
	}
	for _, ev := range events {
		s.events[ev.ID] = ev
		s.eventMu[ev.ID] = &sync.Mutex{}
	}
	return s
}

func (s *memStore) setMaxParticipants(eventID uint, max *uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[eventID].MaxParticipants = max
}

func (s *memStore) failCancel(orderID uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelErr[orderID] = err
}

func (s *memStore) get(orderID uuid.UUID) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := *s.orders[orderID]
	return &o
}

func (s *memStore) countByStatus(eventID uint, status types.OrderStatus) (n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.EventID == eventID && o.Status == status {
			n++
		}
	}
	return n
}

type memTxKey struct{}

type memTx struct {
	held    map[*sync.Mutex]bool
	unlocks []*sync.Mutex
}

func memTxFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

func (tx *memTx) lock(mu *sync.Mutex) {
	if tx.held[mu] {
		return
	}
	mu.Lock()
	tx.held[mu] = true
	tx.unlocks = append(tx.unlocks, mu)
}

func (tx *memTx) release() {
	for i := len(tx.unlocks) - 1; i >= 0; i-- {
		tx.unlocks[i].Unlock()
	}
	tx.unlocks = nil
	tx.held = nil
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if memTxFrom(ctx) != nil {
		return fn(ctx)
	}
	tx := &memTx{held: make(map[*sync.Mutex]bool)}
	defer tx.release()
	return fn(context.WithValue(ctx, memTxKey{}, tx))
}

func (s *memStore) GetEvent(ctx context.Context, eventID uint) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (s *memStore) GetEventForUpdate(ctx context.Context, eventID uint) (*models.Event, error) {
	tx := memTxFrom(ctx)
	if tx == nil {
		return nil, errors.New("GetEventForUpdate outside transaction")
	}
	s.mu.Lock()
	ev, ok := s.events[eventID]
	mu := s.eventMu[eventID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrEventNotFound
	}
	tx.lock(mu)
	s.mu.Lock()
	cp := *ev
	s.mu.Unlock()
	return &cp, nil
}

func (s *memStore) UpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, ev := range s.events {
		if ev.IsActive && ev.StartsAt.After(now) {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (s *memStore) CountActive(ctx context.Context, eventID uint, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, o := range s.orders {
		if o.EventID == eventID && o.Active(now) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) HasActiveParticipant(ctx context.Context, eventID uint, email string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.EventID == eventID && o.ParticipantEmail == email && o.Active(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.PaymentReference != nil {
		if _, exists := s.refs[*order.PaymentReference]; exists {
			return ErrPaymentReferenceConflict
		}
		s.refs[*order.PaymentReference] = order.ID
	}
	cp := *order
	s.orders[order.ID] = &cp
	s.orderMu[order.ID] = &sync.Mutex{}
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	tx := memTxFrom(ctx)
	if tx == nil {
		return nil, errors.New("GetOrderForUpdate outside transaction")
	}
	s.mu.Lock()
	_, ok := s.orders[id]
	mu := s.orderMu[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	tx.lock(mu)
	s.mu.Lock()
	cp := *s.orders[id]
	s.mu.Unlock()
	return &cp, nil
}

func (s *memStore) FindByPaymentReference(ctx context.Context, ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refs[ref]
	if !ok {
		return nil, nil
	}
	cp := *s.orders[id]
	return &cp, nil
}

func (s *memStore) ConfirmOrder(ctx context.Context, id uuid.UUID, ref string, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, taken := s.refs[ref]; taken && existing != id {
		return ErrPaymentReferenceConflict
	}
	o, ok := s.orders[id]
	if !ok || o.Status != types.ORDER_HELD {
		return nil
	}
	s.refs[ref] = id
	r := ref
	at := paidAt
	o.Status = types.ORDER_CONFIRMED
	o.IsTemporaryHold = false
	o.HoldExpiresAt = nil
	o.PaymentReference = &r
	o.PaidAt = &at
	return nil
}

func (s *memStore) CancelOrder(ctx context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cancelErr[id]; err != nil {
		return err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	if o.Status != types.ORDER_HELD && o.Status != types.ORDER_CONFIRMED {
		return nil
	}
	r := reason
	o.Status = types.ORDER_CANCELED
	o.IsTemporaryHold = false
	o.HoldExpiresAt = nil
	o.CancellationReason = &r
	return nil
}

func (s *memStore) ExtendHold(ctx context.Context, id uuid.UUID, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != types.ORDER_HELD {
		return nil
	}
	u := until
	o.HoldExpiresAt = &u
	return nil
}

func (s *memStore) MarkAttended(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	a := at
	o.Attended = true
	o.AttendedAt = &a
	return nil
}

func (s *memStore) CompleteOrders(ctx context.Context, eventID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, o := range s.orders {
		if o.EventID == eventID && o.Status == types.ORDER_CONFIRMED {
			o.Status = types.ORDER_COMPLETED
			n++
		}
	}
	return n, nil
}

func (s *memStore) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.HoldLapsed(now) {
			out = append(out, *o)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) ListOrders(ctx context.Context, f ListFilter, now time.Time) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if f.EventID > 0 && o.EventID != f.EventID {
			continue
		}
		if f.Status != "" && o.Status != types.OrderStatus(f.Status) {
			continue
		}
		if f.ExpiredOnly && !o.HoldLapsed(now) {
			continue
		}
		out = append(out, *o)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}
