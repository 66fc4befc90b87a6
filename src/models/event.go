package models

import (
	"meetups/src/types"
	"time"

	"github.com/shopspring/decimal"
)

// Event is owned by the catalog subsystem; this engine only reads its
// capacity and pricing configuration.
type Event struct {
	ID                  uint              `gorm:"primarykey" json:"id"`
	Title               string            `json:"title,omitempty"`
	Location            string            `json:"location,omitempty"`
	StartsAt            time.Time         `json:"starts_at,omitempty"`
	Status              types.EventStatus `gorm:"default:'draft'" json:"status,omitempty"`
	MaxParticipants     *uint             `json:"max_participants,omitempty"`
	IsActive            bool              `gorm:"default:true" json:"is_active"`
	IsTemporarilyClosed bool              `json:"is_temporarily_closed"`

	BasePrice      decimal.Decimal `gorm:"type:numeric" json:"base_price"`
	EarlyBirdRate  decimal.Decimal `gorm:"type:numeric" json:"early_bird_rate,omitempty"`
	EarlyBirdUntil *time.Time      `json:"early_bird_until,omitempty"`

	Options []EventOption `gorm:"foreignKey:event_id" json:"options,omitempty"`

	types.Timestamps
}

type EventOption struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	EventID   uint            `json:"event_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Surcharge decimal.Decimal `gorm:"type:numeric" json:"surcharge"`

	types.Timestamps
}

// IsExpired reports whether the event has already started.
func (e *Event) IsExpired(now time.Time) bool {
	return !e.StartsAt.IsZero() && now.After(e.StartsAt)
}

// Unlimited reports whether no seat cap is configured.
func (e *Event) Unlimited() bool {
	return e.MaxParticipants == nil
}
