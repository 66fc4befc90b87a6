package pricing

import (
	"meetups/src/models"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the price breakdown for one seat at a given instant. It is
// copied verbatim into the order's pricing snapshot, so later changes
// to the event's pricing configuration never affect existing orders.
type Quote struct {
	Base         decimal.Decimal `json:"base"`
	Surcharge    decimal.Decimal `json:"surcharge"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	Total        decimal.Decimal `json:"total"`
}

// Free reports whether the quote qualifies for the zero-price fast
// path.
func (q Quote) Free() bool {
	return q.Total.LessThanOrEqual(decimal.Zero)
}

// ComputePrice derives a quote from the event's pricing configuration
// and the selected option names. Pure: same inputs, same quote.
func ComputePrice(event *models.Event, options []string, at time.Time) Quote {
	base := event.BasePrice
	surcharge := decimal.Zero
	for _, name := range options {
		for _, opt := range event.Options {
			if opt.Name == name {
				surcharge = surcharge.Add(opt.Surcharge)
				break
			}
		}
	}

	discountRate := decimal.Zero
	if event.EarlyBirdUntil != nil && at.Before(*event.EarlyBirdUntil) {
		discountRate = event.EarlyBirdRate
	}

	discounted := base.Sub(base.Mul(discountRate)).Round(2)
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	total := discounted.Add(surcharge)

	return Quote{
		Base:         base,
		Surcharge:    surcharge,
		DiscountRate: discountRate,
		Total:        total,
	}
}
