package handlers

import (
	"net/http"
	"strconv"

	"canteen-api/apperr"
	"canteen-api/middleware"
	"canteen-api/models"
	"canteen-api/services"

	"github.com/gin-gonic/gin"
)

type OrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Note   string             `json:"note"`
}

type PaymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus" binding:"required"`
}

// AdminGetAllOrders returns every order with a dashboard summary
func (h *Handler) AdminGetAllOrders(c *gin.Context) {
	filter := services.OrderFilter{Status: models.OrderStatus(c.Query("status"))}
	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.respondError(c, apperr.Validation("Invalid userId"))
			return
		}
		filter.UserID = uint(id)
	}

	orders, summary, err := h.orders.ListAll(c.Request.Context(), middleware.PrincipalFrom(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderSummary": summary.ByStatus,
		"totalRevenue": summary.TotalRevenue,
		"count":        summary.Count,
		"orders":       orders,
	})
}

// UpdateOrderStatus moves an order forward in the kitchen lifecycle
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var req OrderStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.orders.SetStatus(c.Request.Context(), middleware.PrincipalFrom(c), id, req.Status, req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order": order})
}

func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var req PaymentStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.orders.SetPaymentStatus(c.Request.Context(), middleware.PrincipalFrom(c), id, req.PaymentStatus)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment status updated", "order": order})
}

// AdminGetAllUsers returns all users, optionally by ?role=
func (h *Handler) AdminGetAllUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context(), middleware.PrincipalFrom(c), models.UserRole(c.Query("role")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}
