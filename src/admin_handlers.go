package main

import (
	"meetups/src/booking"
	"meetups/src/types"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func eventID(ctx *gin.Context) (uint, bool) {
	idParam := ctx.Params.ByName("id")
	atoi, err := strconv.Atoi(idParam)
	if err != nil || atoi <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return 0, false
	}
	return uint(atoi), true
}

func adminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events/:id/orders", func(ctx *gin.Context) {
			id, ok := eventID(ctx)
			if !ok {
				return
			}
			var filters types.OrderQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			orders, err := manager.ListOrders(ctx, booking.ListFilter{
				EventID:     id,
				Status:      filters.Status,
				ExpiredOnly: filters.Expired,
			})
			if err != nil {
				respondOrderError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": orders, "count": len(orders)})
		}).
		PUT("/orders/:id/cancel", func(ctx *gin.Context) {
			id, ok := orderID(ctx)
			if !ok {
				return
			}
			var body types.CancelOrderRequestBody
			_ = ctx.ShouldBindJSON(&body)
			reason := body.Reason
			if reason == "" {
				reason = "cancelled by admin"
			}
			order, err := manager.ForceCancel(ctx, id, reason)
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
			order, err := manager.ForceExtend(ctx, id, time.Duration(body.Minutes)*time.Minute)
			if err != nil {
				respondOrderError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		PUT("/orders/:id/attended", func(ctx *gin.Context) {
			id, ok := orderID(ctx)
			if !ok {
				return
			}
			order, err := manager.MarkAttended(ctx, id)
			if err != nil {
				respondOrderError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		POST("/orders/import", func(ctx *gin.Context) {
			var body types.BulkImportRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			created, err := manager.BulkImport(ctx, body.EventID, body.Participants)
			if err != nil {
				// Partial imports are reported, not rolled back; the
				// created seats are real admissions.
				ctx.JSON(http.StatusConflict, gin.H{
					"data":     created,
					"imported": len(created),
					"error":    err.Error(),
				})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": created, "imported": len(created)})
		}).
		PUT("/events/:id/complete", func(ctx *gin.Context) {
			id, ok := eventID(ctx)
			if !ok {
				return
			}
			n, err := manager.CompleteEvent(ctx, id)
			if err != nil {
				respondOrderError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"completed": n})
		}).
		POST("/sweep", func(ctx *gin.Context) {
			released := reaper.Sweep(ctx)
			ctx.JSON(http.StatusOK, gin.H{"released": released})
		})
	return g
}
