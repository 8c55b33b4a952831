package handlers

import (
	"net/http"

	"canteen-api/middleware"
	"canteen-api/models"
	"canteen-api/services"

	"github.com/gin-gonic/gin"
)

type OrderLineRequest struct {
	MenuItemID uint    `json:"menuItemId" binding:"required"`
	Quantity   int     `json:"quantity" binding:"required,min=1"`
	Price      float64 `json:"price"`
}

type PlaceOrderRequest struct {
	Items            []OrderLineRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryLocation struct {
		Block       string `json:"block"`
		ClassNumber string `json:"classNumber"`
	} `json:"deliveryLocation"`
	CustomerDetails struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email" binding:"omitempty,email"`
	} `json:"customerDetails"`
}

// PlaceOrder creates an order for the caller, or for a guest identified by
// customerDetails.phone when nobody is signed in
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lines := make([]services.OrderLineInput, len(req.Items))
	for i, it := range req.Items {
		lines[i] = services.OrderLineInput{MenuItemID: it.MenuItemID, Quantity: it.Quantity, Price: it.Price}
	}
	order, err := h.orders.Place(c.Request.Context(), middleware.PrincipalFrom(c), services.PlaceOrderInput{
		Items: lines,
		DeliveryLocation: models.DeliveryLocation{
			Block:       req.DeliveryLocation.Block,
			ClassNumber: req.DeliveryLocation.ClassNumber,
		},
		CustomerDetails: models.CustomerDetails{
			Name:  req.CustomerDetails.Name,
			Phone: req.CustomerDetails.Phone,
			Email: req.CustomerDetails.Email,
		},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "order": order})
}

// GetMyOrders returns the caller's orders, newest first
func (h *Handler) GetMyOrders(c *gin.Context) {
	orders, err := h.orders.ListMine(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(orders), "orders": orders})
}

// GetGuestOrders returns orders placed with a customer phone
func (h *Handler) GetGuestOrders(c *gin.Context) {
	orders, err := h.orders.ListByPhone(c.Request.Context(), c.Param("phone"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(orders), "orders": orders})
}

// GetOrderDetail returns a single order with its history
func (h *Handler) GetOrderDetail(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder cancels a pending order (owner or admin)
func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Cancel(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully", "order": order})
}
