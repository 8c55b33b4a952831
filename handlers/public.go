package handlers

import (
	"net/http"

	"canteen-api/models"
	"canteen-api/statemachine"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Campus Canteen API",
		"version": "1.0.0",
	})
}

// GetStateMachineInfo returns the full order lifecycle for informational purposes
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stateMachine":   statemachine.GetAllTransitions(),
		"terminalStates": []models.OrderStatus{models.StatusDelivered, models.StatusCancelled},
		"description":    "Canteen order lifecycle: admins move orders forward, owners may cancel while pending",
	})
}
