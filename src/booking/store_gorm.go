package booking

import (
	"context"
	"errors"
	"fmt"
	"meetups/src/models"
	"meetups/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists orders through gorm, mirroring the row-locking
// transaction style used across the event tables.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

type txKey struct{}

func (s *GormStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func txFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

func (s *GormStore) GetEvent(ctx context.Context, eventID uint) (*models.Event, error) {
	var event models.Event
	err := s.conn(ctx).
		Model(&models.Event{}).
		Where(&models.Event{ID: eventID}).
		Preload("Options").
		First(&event).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("loading event %d: %w", eventID, err)
	}
	return &event, nil
}

func (s *GormStore) GetEventForUpdate(ctx context.Context, eventID uint) (*models.Event, error) {
	var event models.Event
	err := s.conn(ctx).
		Clauses(clause.Locking{
			Strength: "UPDATE",
			Table:    clause.Table{Name: clause.CurrentTable},
		}).
		Where(&models.Event{ID: eventID}).
		First(&event).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("locking event %d: %w", eventID, err)
	}
	return &event, nil
}

func (s *GormStore) UpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	var events []models.Event
	err := s.conn(ctx).
		Model(&models.Event{}).
		Where("starts_at > ? AND is_active = ?", now, true).
		Find(&events).
		Error
	if err != nil {
		return nil, fmt.Errorf("selecting upcoming events: %w", err)
	}
	return events, nil
}

func activeScope(tx *gorm.DB, eventID uint, now time.Time) *gorm.DB {
	return tx.
		Model(&models.Order{}).
		Where("event_id = ?", eventID).
		Where(
			tx.Where("status IN (?)", []types.OrderStatus{types.ORDER_CONFIRMED, types.ORDER_COMPLETED}).
				Or("status = ? AND (hold_expires_at IS NULL OR hold_expires_at > ?)", types.ORDER_HELD, now),
		)
}

func (s *GormStore) CountActive(ctx context.Context, eventID uint, now time.Time) (int64, error) {
	var count int64
	if err := activeScope(s.conn(ctx), eventID, now).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting active orders for event %d: %w", eventID, err)
	}
	return count, nil
}

func (s *GormStore) HasActiveParticipant(ctx context.Context, eventID uint, email string, now time.Time) (bool, error) {
	var count int64
	err := activeScope(s.conn(ctx), eventID, now).
		Where("participant_email = ?", email).
		Count(&count).
		Error
	if err != nil {
		return false, fmt.Errorf("checking participant %s on event %d: %w", email, eventID, err)
	}
	return count > 0, nil
}

func (s *GormStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := s.conn(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrPaymentReferenceConflict
		}
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

func (s *GormStore) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.conn(ctx).
		Model(&models.Order{}).
		Where(&models.Order{ID: id}).
		Preload("Event").
		First(&order).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("loading order %s: %w", id, err)
	}
	return &order, nil
}

func (s *GormStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.conn(ctx).
		Clauses(clause.Locking{
			Strength: "UPDATE",
			Table:    clause.Table{Name: clause.CurrentTable},
		}).
		Where(&models.Order{ID: id}).
		First(&order).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("locking order %s: %w", id, err)
	}
	return &order, nil
}

func (s *GormStore) FindByPaymentReference(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := s.conn(ctx).
		Model(&models.Order{}).
		Where("payment_reference = ?", ref).
		First(&order).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up payment reference: %w", err)
	}
	return &order, nil
}

func (s *GormStore) ConfirmOrder(ctx context.Context, id uuid.UUID, ref string, paidAt time.Time) error {
	err := s.conn(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, types.ORDER_HELD).
		Updates(map[string]any{
			"status":            types.ORDER_CONFIRMED,
			"is_temporary_hold": false,
			"hold_expires_at":   nil,
			"payment_reference": ref,
			"paid_at":           paidAt,
		}).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrPaymentReferenceConflict
		}
		return fmt.Errorf("confirming order %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) CancelOrder(ctx context.Context, id uuid.UUID, reason string) error {
	err := s.conn(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN (?)", id, []types.OrderStatus{types.ORDER_HELD, types.ORDER_CONFIRMED}).
		Updates(map[string]any{
			"status":              types.ORDER_CANCELED,
			"is_temporary_hold":   false,
			"hold_expires_at":     nil,
			"cancellation_reason": reason,
		}).
		Error
	if err != nil {
		return fmt.Errorf("cancelling order %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) ExtendHold(ctx context.Context, id uuid.UUID, until time.Time) error {
	err := s.conn(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, types.ORDER_HELD).
		Update("hold_expires_at", until).
		Error
	if err != nil {
		return fmt.Errorf("extending hold %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) MarkAttended(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := s.conn(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN (?)", id, []types.OrderStatus{types.ORDER_CONFIRMED, types.ORDER_COMPLETED}).
		Updates(map[string]any{
			"attended":    true,
			"attended_at": at,
		}).
		Error
	if err != nil {
		return fmt.Errorf("marking attendance for %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) CompleteOrders(ctx context.Context, eventID uint) (int64, error) {
	res := s.conn(ctx).
		Model(&models.Order{}).
		Where("event_id = ? AND status = ?", eventID, types.ORDER_CONFIRMED).
		Update("status", types.ORDER_COMPLETED)
	if res.Error != nil {
		return 0, fmt.Errorf("completing orders for event %d: %w", eventID, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	q := s.conn(ctx).
		Model(&models.Order{}).
		Where("status = ? AND hold_expires_at < ?", types.ORDER_HELD, now).
		Order("hold_expires_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("selecting expired holds: %w", err)
	}
	return orders, nil
}

func (s *GormStore) ListOrders(ctx context.Context, f ListFilter, now time.Time) ([]models.Order, error) {
	q := s.conn(ctx).Model(&models.Order{})
	if f.EventID > 0 {
		q = q.Where("event_id = ?", f.EventID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ExpiredOnly {
		q = q.Where("status = ? AND hold_expires_at < ?", types.ORDER_HELD, now)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var orders []models.Order
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}
