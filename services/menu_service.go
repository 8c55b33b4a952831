package services

import (
	"context"
	"errors"
	"strings"

	"canteen-api/apperr"
	"canteen-api/models"

	"gorm.io/gorm"
)

type MenuItemInput struct {
	Name            string
	Description     string
	Price           float64
	Category        models.MenuCategory
	Image           string
	IsAvailable     *bool
	PreparationTime int
}

// MenuItemPatch carries only the fields being changed.
type MenuItemPatch struct {
	Name            *string
	Description     *string
	Price           *float64
	Category        *models.MenuCategory
	Image           *string
	IsAvailable     *bool
	PreparationTime *int
}

type MenuService struct {
	db *gorm.DB
}

func NewMenuService(db *gorm.DB) *MenuService {
	return &MenuService{db: db}
}

// ListAvailable returns available items in catalog order, optionally by category.
func (s *MenuService) ListAvailable(ctx context.Context, category string) ([]models.MenuItem, error) {
	query := s.db.WithContext(ctx).Where("is_available = ?", true)
	if category != "" {
		c := models.MenuCategory(strings.ToLower(category))
		if !c.Valid() {
			return nil, apperr.Validation("Unknown category %q", category)
		}
		query = query.Where("category = ?", c)
	}
	items := []models.MenuItem{}
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, apperr.Internal(err, "Error fetching menu items")
	}
	return items, nil
}

// ListAll returns every item including unavailable ones.
func (s *MenuService) ListAll(ctx context.Context) ([]models.MenuItem, error) {
	items := []models.MenuItem{}
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, apperr.Internal(err, "Error fetching menu items")
	}
	return items, nil
}

func (s *MenuService) Get(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := s.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Menu item not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Error fetching menu item")
	}
	return &item, nil
}

func (s *MenuService) Create(ctx context.Context, in MenuItemInput) (*models.MenuItem, error) {
	item := models.MenuItem{
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		Price:           in.Price,
		Category:        in.Category,
		Image:           strings.TrimSpace(in.Image),
		IsAvailable:     true,
		PreparationTime: in.PreparationTime,
	}
	if in.IsAvailable != nil {
		item.IsAvailable = *in.IsAvailable
	}
	if err := validateMenuItem(&item); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, apperr.Internal(err, "Error adding menu item")
	}
	return &item, nil
}

func (s *MenuService) Update(ctx context.Context, id uint, patch MenuItemPatch) (*models.MenuItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var fields []string
	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
		fields = append(fields, "Name")
	}
	if patch.Description != nil {
		item.Description = strings.TrimSpace(*patch.Description)
		fields = append(fields, "Description")
	}
	if patch.Price != nil {
		item.Price = *patch.Price
		fields = append(fields, "Price")
	}
	if patch.Category != nil {
		item.Category = *patch.Category
		fields = append(fields, "Category")
	}
	if patch.Image != nil {
		item.Image = strings.TrimSpace(*patch.Image)
		fields = append(fields, "Image")
	}
	if patch.IsAvailable != nil {
		item.IsAvailable = *patch.IsAvailable
		fields = append(fields, "IsAvailable")
	}
	if patch.PreparationTime != nil {
		item.PreparationTime = *patch.PreparationTime
		fields = append(fields, "PreparationTime")
	}
	if len(fields) == 0 {
		return item, nil
	}
	if err := validateMenuItem(item); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(item).Select(fields).Updates(item).Error; err != nil {
		return nil, apperr.Internal(err, "Error updating menu item")
	}
	return item, nil
}

// Delete removes the item. Placed orders keep their own snapshot.
func (s *MenuService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.MenuItem{}, id)
	if res.Error != nil {
		return apperr.Internal(res.Error, "Error deleting menu item")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Menu item not found")
	}
	return nil
}

func (s *MenuService) ToggleAvailability(ctx context.Context, id uint) (*models.MenuItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item.IsAvailable = !item.IsAvailable
	if err := s.db.WithContext(ctx).Model(item).Select("IsAvailable").Updates(item).Error; err != nil {
		return nil, apperr.Internal(err, "Error toggling menu item availability")
	}
	return item, nil
}

func validateMenuItem(item *models.MenuItem) error {
	var missing []string
	if item.Name == "" {
		missing = append(missing, "name")
	}
	if item.Description == "" {
		missing = append(missing, "description")
	}
	if item.Image == "" {
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		return apperr.Validation("Missing required fields: %s", strings.Join(missing, ", "))
	}
	if item.Price <= 0 {
		return apperr.Validation("Price must be a positive number")
	}
	if !item.Category.Valid() {
		return apperr.Validation("Category must be one of breakfast, lunch, dinner, snacks, beverages")
	}
	if item.PreparationTime < 1 {
		return apperr.Validation("Preparation time must be at least 1 minute")
	}
	return nil
}
