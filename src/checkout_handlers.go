package main

import (
	"errors"
	"log"
	"meetups/src/booking"
	"meetups/src/types"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondOrderError maps engine errors onto the two user-visible
// categories: a definitive rejection for this attempt, or a temporary
// system error worth retrying.
func respondOrderError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrCapacityExceeded):
		ctx.JSON(http.StatusConflict, gin.H{"error": "no seats remaining", "retryable": false})
	case errors.Is(err, booking.ErrEventUnavailable):
		ctx.JSON(http.StatusConflict, gin.H{"error": "event is not open for registration", "retryable": false})
	case errors.Is(err, booking.ErrDuplicateParticipant):
		ctx.JSON(http.StatusConflict, gin.H{"error": "participant already registered", "retryable": false})
	case errors.Is(err, booking.ErrAlreadyResolved):
		ctx.JSON(http.StatusConflict, gin.H{"error": "order was already resolved", "retryable": false})
	case errors.Is(err, booking.ErrHoldExpired):
		ctx.JSON(http.StatusGone, gin.H{"error": "hold expired, restart checkout", "retryable": false})
	case errors.Is(err, booking.ErrOrderNotFound), errors.Is(err, booking.ErrEventNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("Could not complete request: %s\n", err.Error())
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary system error, please retry", "retryable": true})
	}
}

func orderID(ctx *gin.Context) (uuid.UUID, bool) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(params.ID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return uuid.Nil, false
	}
	return id, true
}

func checkoutHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/checkout", func(ctx *gin.Context) {
			var body types.StartCheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			order, err := manager.StartCheckout(ctx, booking.DraftCheckout{
				EventID: body.EventID,
				Name:    body.Name,
				Email:   body.Email,
				Phone:   body.Phone,
				Options: body.Options,
			})
			if err != nil {
				respondOrderError(ctx, err)
				return
			}
			if order.Status == types.ORDER_CONFIRMED {
				// Zero-price fast path: no invoice, seat already final.
				ctx.JSON(http.StatusCreated, gin.H{"data": order})
				return
			}

			ttl := time.Until(*order.HoldExpiresAt)
			invoice, err := gateway.CreateInvoice(ctx, order.Total, order.Code, ttl)
			if err != nil {
				// The hold stands; the reaper reclaims it if the
				// participant never retries the invoice.
				log.Printf("Could not issue invoice for order %s: %s\n", order.ID, err.Error())
				ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary system error, please retry", "retryable": true})
				return
			}
			if err := pending.Add(ctx, order.ID, invoice.PaymentReference, ttl); err != nil {
				log.Printf("Could not index invoice for order %s: %s\n", order.ID, err.Error())
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"data": order,
				"invoice": gin.H{
					"payment_reference": invoice.PaymentReference,
					"invoice_string":    invoice.InvoiceString,
					"expires_at":        invoice.ExpiresAt,
				},
			})
		}).
		GET("/orders/:id", func(ctx *gin.Context) {
			id, ok := orderID(ctx)
			if !ok {
				return
			}
			order, err := orderStore.GetOrder(ctx, id)
			if err != nil {
				respondOrderError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		POST("/orders/:id/confirm", func(ctx *gin.Context) {
			id, ok := orderID(ctx)
			if !ok {
				return
			}
			var body types.ConfirmPaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status, err := gateway.CheckStatus(ctx, body.PaymentReference)
			if err != nil {
				log.Printf("Could not check invoice %s: %s\n", body.PaymentReference, err.Error())
				ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary system error, please retry", "retryable": true})
				return
			}
			if status != types.INVOICE_PAID {
				ctx.JSON(http.StatusPaymentRequired, gin.H{"status": status})
				return
			}
			order, newlyConfirmed, err := confirmer.ConfirmPayment(ctx, id, body.PaymentReference)
			if err != nil {
				respondOrderError(ctx, err)
				return
			}
			if newlyConfirmed {
				pending.Remove(ctx, id)
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order, "newly_confirmed": newlyConfirmed})
		}).
		PUT("/orders/:id/cancel", func(ctx *gin.Context) {
			id, ok := orderID(ctx)
			if !ok {
				return
			}
			// Reason is optional; an empty body is fine.
			var body types.CancelOrderRequestBody
			_ = ctx.ShouldBindJSON(&body)
			reason := body.Reason
			if reason == "" {
				reason = "cancelled by participant"
			}
			order, err := manager.CancelHold(ctx, id, reason)
			if err != nil {
				respondOrderError(ctx, err)
				return
			}
			pending.Remove(ctx, id)
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		PUT("/orders/:id/extend", func(ctx *gin.Context) {
			id, ok := orderID(ctx)
			if !ok {
				return
			}
			var body types.ExtendHoldRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			order, err := manager.ExtendHold(ctx, id, time.Duration(body.Minutes)*time.Minute)
			if err != nil {
				respondOrderError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		})
	return g
}
