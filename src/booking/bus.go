package booking

import (
	"context"
	"encoding/json"
	"log"
	"meetups/src/models"

	"github.com/redis/go-redis/v9"
)

type OrderEventType string

const (
	OrderHeld      OrderEventType = "order.held"
	OrderConfirmed OrderEventType = "order.confirmed"
	OrderCanceled  OrderEventType = "order.cancelled"
	OrderExpired   OrderEventType = "order.expired"
	OrderCompleted OrderEventType = "order.completed"
)

// OrderEvent is published on every order state transition.
type OrderEvent struct {
	Type    OrderEventType `json:"type"`
	OrderID string         `json:"order_id"`
	EventID uint           `json:"event_id"`
	Order   *models.Order  `json:"order,omitempty"`
}

// Bus fans OrderEvents out to in-process subscribers. Publishing
// never blocks the state transition that triggered it; slow
// subscribers drop events rather than stall a confirmation.
type Bus struct {
	subs []chan OrderEvent
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a buffered consumer channel. Not safe to call
// concurrently with Publish; wire all subscribers during startup.
func (b *Bus) Subscribe(buffer int) <-chan OrderEvent {
	ch := make(chan OrderEvent, buffer)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ev OrderEvent) {
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[bus] subscriber full, dropping %s for order %s\n", ev.Type, ev.OrderID)
		}
	}
}

// RedisBridge forwards bus events onto a redis channel so processes
// outside this one (cache invalidators, dashboards) can subscribe.
func RedisBridge(ctx context.Context, rd *redis.Client, channel string, events <-chan OrderEvent) {
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[bus] error serializing event: %s\n", err.Error())
			continue
		}
		if err := rd.Publish(ctx, channel, payload).Err(); err != nil {
			log.Printf("[bus] error publishing to %s: %s\n", channel, err.Error())
		}
	}
}
