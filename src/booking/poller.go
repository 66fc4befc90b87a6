package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"meetups/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Invoice is what the payment gateway hands back when asked to bill a
// hold. PaymentReference doubles as the confirmation idempotency key.
type Invoice struct {
	PaymentReference string
	InvoiceString    string
	ExpiresAt        time.Time
}

// PaymentGateway is the external Lightning collaborator. The engine
// only ever polls it; there is no webhook path.
type PaymentGateway interface {
	CreateInvoice(ctx context.Context, amount decimal.Decimal, memo string, expiry time.Duration) (*Invoice, error)
	CheckStatus(ctx context.Context, paymentReference string) (types.InvoiceStatus, error)
}

const pendingSetKey = "invoices:pending"

func invoiceKey(orderID uuid.UUID) string {
	return fmt.Sprintf("invoice:%s", orderID)
}

// PendingInvoices indexes open invoices in redis so the poller knows
// which references to check. Entries carry the hold TTL and fall out
// on their own when a checkout is abandoned.
type PendingInvoices struct {
	rd *redis.Client
}

func NewPendingInvoices(rd *redis.Client) *PendingInvoices {
	return &PendingInvoices{rd: rd}
}

func (p *PendingInvoices) Add(ctx context.Context, orderID uuid.UUID, paymentReference string, ttl time.Duration) error {
	if _, err := p.rd.SetEx(ctx, invoiceKey(orderID), paymentReference, ttl).Result(); err != nil {
		return fmt.Errorf("indexing invoice for order %s: %w", orderID, err)
	}
	if err := p.rd.SAdd(ctx, pendingSetKey, orderID.String()).Err(); err != nil {
		return fmt.Errorf("indexing invoice for order %s: %w", orderID, err)
	}
	return nil
}

func (p *PendingInvoices) Remove(ctx context.Context, orderID uuid.UUID) {
	if err := p.rd.SRem(ctx, pendingSetKey, orderID.String()).Err(); err != nil {
		log.Printf("[poller] error dropping pending invoice %s: %s\n", orderID, err.Error())
	}
	p.rd.Del(ctx, invoiceKey(orderID))
}

// Each returns the still-live (orderID, reference) pairs. Orders
// whose invoice key already expired are pruned from the set as a side
// effect.
func (p *PendingInvoices) Each(ctx context.Context) (map[uuid.UUID]string, error) {
	ids, err := p.rd.SMembers(ctx, pendingSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing pending invoices: %w", err)
	}
	live := make(map[uuid.UUID]string, len(ids))
	for _, raw := range ids {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			p.rd.SRem(ctx, pendingSetKey, raw)
			continue
		}
		ref, err := p.rd.Get(ctx, invoiceKey(orderID)).Result()
		if err == redis.Nil {
			p.rd.SRem(ctx, pendingSetKey, raw)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading invoice for order %s: %w", orderID, err)
		}
		live[orderID] = ref
	}
	return live, nil
}

// Poller drives the poll-based confirmation model: check every open
// invoice against the gateway and feed paid ones into the
// ConfirmationService.
type Poller struct {
	gateway   PaymentGateway
	pending   *PendingInvoices
	confirmer *ConfirmationService
}

func NewPoller(gateway PaymentGateway, pending *PendingInvoices, confirmer *ConfirmationService) *Poller {
	return &Poller{gateway: gateway, pending: pending, confirmer: confirmer}
}

func (p *Poller) Poll(ctx context.Context) {
	live, err := p.pending.Each(ctx)
	if err != nil {
		log.Printf("[poller] %s\n", err.Error())
		return
	}
	for orderID, ref := range live {
		status, err := p.gateway.CheckStatus(ctx, ref)
		if err != nil {
			log.Printf("[poller] error checking invoice %s: %s\n", ref, err.Error())
			continue
		}
		switch status {
		case types.INVOICE_PAID:
			_, newly, err := p.confirmer.ConfirmPayment(ctx, orderID, ref)
			if err != nil && !errors.Is(err, ErrAlreadyResolved) {
				log.Printf("[poller] error confirming order %s: %s\n", orderID, err.Error())
				continue
			}
			if newly {
				log.Printf("[poller] confirmed order %s from invoice %s\n", orderID, ref)
			}
			p.pending.Remove(ctx, orderID)
		case types.INVOICE_EXPIRED:
			p.pending.Remove(ctx, orderID)
		}
		// pending and transient errors stay in the index for the
		// next pass
	}
}
