package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type OrderStatus string

const (
	ORDER_HELD      OrderStatus = "held"
	ORDER_CONFIRMED OrderStatus = "confirmed"
	ORDER_COMPLETED OrderStatus = "completed"
	ORDER_CANCELED  OrderStatus = "cancelled"
)

type EventStatus string

const (
	EVENT_DRAFT  EventStatus = "draft"
	EVENT_OPEN   EventStatus = "open"
	EVENT_CLOSED EventStatus = "closed"
)

type InvoiceStatus string

const (
	INVOICE_PENDING InvoiceStatus = "pending"
	INVOICE_PAID    InvoiceStatus = "paid"
	INVOICE_EXPIRED InvoiceStatus = "expired"
	INVOICE_ERROR   InvoiceStatus = "error"
)

const CancelReasonExpired = "expired"

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type StartCheckoutRequestBody struct {
	EventID uint     `json:"event" binding:"required"`
	Name    string   `json:"name" binding:"required"`
	Email   string   `json:"email" binding:"required,email"`
	Phone   string   `json:"phone,omitempty" binding:"omitempty,phone"`
	Options []string `json:"options,omitempty"`
}

type ConfirmPaymentRequestBody struct {
	PaymentReference string `json:"payment_reference" binding:"required"`
}

type CancelOrderRequestBody struct {
	Reason string `json:"reason,omitempty"`
}

type ExtendHoldRequestBody struct {
	Minutes uint `json:"minutes" binding:"required,max=60"`
}

type BulkImportRequestBody struct {
	EventID      uint                `json:"event" binding:"required"`
	Participants []ImportParticipant `json:"participants" binding:"required,min=1,dive"`
}

type ImportParticipant struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone,omitempty" binding:"omitempty,phone"`
}

type OrderQueryFilters struct {
	Status  string `form:"status,omitempty" binding:"omitempty,oneof=held confirmed completed cancelled"`
	Expired bool   `form:"expired,omitempty"`
}
