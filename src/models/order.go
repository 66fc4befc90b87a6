package models

import (
	"meetups/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is one reservation or purchase attempt. Rows are never
// deleted; every transition is a status change so the history stays
// auditable.
type Order struct {
	ID      uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	Code    string    `json:"code,omitempty"`
	EventID uint      `gorm:"index:idx_orders_sweep,priority:1" json:"event_id,omitempty"`

	ParticipantName  string `json:"participant_name,omitempty"`
	ParticipantEmail string `json:"participant_email,omitempty"`
	ParticipantPhone string `json:"participant_phone,omitempty"`
	UserID           *uint  `json:"user_id,omitempty"`

	Status          types.OrderStatus `gorm:"default:'held';index:idx_orders_sweep,priority:2" json:"status,omitempty"`
	IsTemporaryHold bool              `json:"is_temporary_hold"`
	HoldExpiresAt   *time.Time        `gorm:"index:idx_orders_sweep,priority:3" json:"hold_expires_at,omitempty"`

	PaymentReference *string    `gorm:"uniqueIndex" json:"payment_reference,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`

	// Pricing snapshot, captured at hold creation and never recomputed.
	BasePrice    decimal.Decimal `gorm:"type:numeric" json:"base_price"`
	Surcharge    decimal.Decimal `gorm:"type:numeric" json:"surcharge"`
	DiscountRate decimal.Decimal `gorm:"type:numeric" json:"discount_rate"`
	Total        decimal.Decimal `gorm:"type:numeric" json:"total"`

	Metadata types.JSONB `gorm:"type:jsonb" json:"metadata,omitempty"`

	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	Attended           bool       `json:"attended"`
	AttendedAt         *time.Time `json:"attended_at,omitempty"`

	Event *Event `gorm:"foreignKey:event_id" json:"event,omitempty"`

	types.Timestamps
}

// Active reports whether the order currently counts against event
// capacity. Held orders stop counting once their hold window lapses,
// even before the reaper cancels them.
func (o *Order) Active(now time.Time) bool {
	switch o.Status {
	case types.ORDER_CONFIRMED, types.ORDER_COMPLETED:
		return true
	case types.ORDER_HELD:
		return o.HoldExpiresAt == nil || o.HoldExpiresAt.After(now)
	default:
		return false
	}
}

// HoldLapsed reports whether a held order's TTL has passed.
func (o *Order) HoldLapsed(now time.Time) bool {
	return o.Status == types.ORDER_HELD && o.HoldExpiresAt != nil && !o.HoldExpiresAt.After(now)
}
