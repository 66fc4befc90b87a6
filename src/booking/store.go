package booking

import (
	"context"
	"meetups/src/models"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows admin order listings.
type ListFilter struct {
	EventID     uint
	Status      string
	ExpiredOnly bool
	Limit       int
}

// OrderStore is the persistence boundary for the reservation engine.
//
// WithTx runs fn inside a transaction; the context passed to fn
// carries it, and every other method picks it up when present.
// GetEventForUpdate takes the event's exclusive row lock for the rest
// of the transaction, which is the per-event critical section the
// ledger builds on.
type OrderStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetEvent(ctx context.Context, eventID uint) (*models.Event, error)
	GetEventForUpdate(ctx context.Context, eventID uint) (*models.Event, error)
	UpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error)

	// CountActive is the live seat count: confirmed + completed +
	// held-and-unexpired. There is no separate counter to drift.
	CountActive(ctx context.Context, eventID uint, now time.Time) (int64, error)
	HasActiveParticipant(ctx context.Context, eventID uint, email string, now time.Time) (bool, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, ref string) (*models.Order, error)

	// ConfirmOrder performs the held→confirmed write. It returns
	// ErrPaymentReferenceConflict when the unique index on
	// payment_reference rejects the row.
	ConfirmOrder(ctx context.Context, id uuid.UUID, ref string, paidAt time.Time) error
	CancelOrder(ctx context.Context, id uuid.UUID, reason string) error
	ExtendHold(ctx context.Context, id uuid.UUID, until time.Time) error
	MarkAttended(ctx context.Context, id uuid.UUID, at time.Time) error

	// CompleteOrders rolls confirmed orders of an already-started
	// event into the terminal completed state.
	CompleteOrders(ctx context.Context, eventID uint) (int64, error)

	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	ListOrders(ctx context.Context, f ListFilter, now time.Time) ([]models.Order, error)
}
