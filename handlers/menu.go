package handlers

import (
	"net/http"

	"canteen-api/models"
	"canteen-api/services"

	"github.com/gin-gonic/gin"
)

type MenuItemRequest struct {
	Name            string              `json:"name" binding:"required"`
	Description     string              `json:"description" binding:"required"`
	Price           float64             `json:"price" binding:"required,gt=0"`
	Category        models.MenuCategory `json:"category" binding:"required,oneof=breakfast lunch dinner snacks beverages"`
	Image           string              `json:"image" binding:"required"`
	IsAvailable     *bool               `json:"isAvailable"`
	PreparationTime int                 `json:"preparationTime" binding:"required,min=1"`
}

type MenuItemUpdateRequest struct {
	Name            *string              `json:"name" binding:"omitempty,min=1"`
	Description     *string              `json:"description" binding:"omitempty,min=1"`
	Price           *float64             `json:"price" binding:"omitempty,gt=0"`
	Category        *models.MenuCategory `json:"category" binding:"omitempty,oneof=breakfast lunch dinner snacks beverages"`
	Image           *string              `json:"image" binding:"omitempty,min=1"`
	IsAvailable     *bool                `json:"isAvailable"`
	PreparationTime *int                 `json:"preparationTime" binding:"omitempty,min=1"`
}

// GetMenu returns available items, optionally filtered by ?category= or the
// :category path segment
func (h *Handler) GetMenu(c *gin.Context) {
	category := c.Param("category")
	if category == "" {
		category = c.Query("category")
	}
	items, err := h.menu.ListAvailable(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "menu": items})
}

// GetFullMenu returns every item including unavailable ones (admin)
func (h *Handler) GetFullMenu(c *gin.Context) {
	items, err := h.menu.ListAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "menu": items})
}

func (h *Handler) GetMenuItem(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	item, err := h.menu.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// AddMenuItem adds an item to the catalog
func (h *Handler) AddMenuItem(c *gin.Context) {
	var req MenuItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	item, err := h.menu.Create(c.Request.Context(), services.MenuItemInput{
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		Category:        req.Category,
		Image:           req.Image,
		IsAvailable:     req.IsAvailable,
		PreparationTime: req.PreparationTime,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Menu item added", "item": item})
}

// UpdateMenuItem changes only the fields present in the body
func (h *Handler) UpdateMenuItem(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var req MenuItemUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	item, err := h.menu.Update(c.Request.Context(), id, services.MenuItemPatch{
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		Category:        req.Category,
		Image:           req.Image,
		IsAvailable:     req.IsAvailable,
		PreparationTime: req.PreparationTime,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "item": item})
}

// DeleteMenuItem removes an item. Existing orders keep their snapshot.
func (h *Handler) DeleteMenuItem(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	if err := h.menu.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted successfully"})
}

func (h *Handler) ToggleAvailability(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	item, err := h.menu.ToggleAvailability(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item availability updated", "item": item})
}
