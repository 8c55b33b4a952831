package models

import "time"

// MenuCategory groups menu items the way the canteen serves them
type MenuCategory string

const (
	CategoryBreakfast MenuCategory = "breakfast"
	CategoryLunch     MenuCategory = "lunch"
	CategoryDinner    MenuCategory = "dinner"
	CategorySnacks    MenuCategory = "snacks"
	CategoryBeverages MenuCategory = "beverages"
)

var menuCategories = map[MenuCategory]bool{
	CategoryBreakfast: true,
	CategoryLunch:     true,
	CategoryDinner:    true,
	CategorySnacks:    true,
	CategoryBeverages: true,
}

// Valid reports whether c is one of the known categories.
func (c MenuCategory) Valid() bool {
	return menuCategories[c]
}

type MenuItem struct {
	ID              uint         `json:"id" gorm:"primaryKey"`
	Name            string       `json:"name" gorm:"not null"`
	Description     string       `json:"description" gorm:"not null"`
	Price           float64      `json:"price" gorm:"not null"`
	Category        MenuCategory `json:"category" gorm:"not null;index"`
	Image           string       `json:"image" gorm:"not null"`
	IsAvailable     bool         `json:"isAvailable" gorm:"not null"`
	PreparationTime int          `json:"preparationTime" gorm:"not null"` // minutes
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}
