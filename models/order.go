package models

import "time"

// OrderStatus represents all possible states of a canteen order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentPending || p == PaymentCompleted
}

// DeliveryLocation is where in the campus the order goes.
type DeliveryLocation struct {
	Block       string `json:"block" gorm:"column:delivery_block;not null"`
	ClassNumber string `json:"classNumber" gorm:"column:delivery_class_number;not null"`
}

type CustomerDetails struct {
	Name  string `json:"name" gorm:"column:customer_name;not null"`
	Phone string `json:"phone" gorm:"column:customer_phone;not null;index"`
	Email string `json:"email,omitempty" gorm:"column:customer_email"`
}

type Order struct {
	ID               uint                 `json:"id" gorm:"primaryKey"`
	UserID           uint                 `json:"userId" gorm:"not null;index"`
	Items            []OrderItem          `json:"items" gorm:"foreignKey:OrderID"`
	TotalAmount      float64              `json:"totalAmount" gorm:"not null"`
	Status           OrderStatus          `json:"status" gorm:"not null;default:'pending';index"`
	DeliveryLocation DeliveryLocation     `json:"deliveryLocation" gorm:"embedded"`
	CustomerDetails  CustomerDetails      `json:"customerDetails" gorm:"embedded"`
	PaymentStatus    PaymentStatus        `json:"paymentStatus" gorm:"not null;default:'pending'"`
	StatusHistory    []OrderStatusHistory `json:"statusHistory,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// OrderItem is a snapshot of a menu item at order time. MenuItemID is a
// plain reference with no constraint so the menu can be edited freely.
type OrderItem struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	OrderID    uint    `json:"-" gorm:"not null;index"`
	MenuItemID uint    `json:"menuItemId" gorm:"not null"`
	Name       string  `json:"name" gorm:"not null"`
	Price      float64 `json:"price" gorm:"not null"`
	Quantity   int     `json:"quantity" gorm:"not null"`
}

// LineTotal is Price×Quantity for this line.
func (i OrderItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

// OrderStatusHistory tracks every status change
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"orderId" gorm:"not null;index"`
	FromStatus OrderStatus `json:"fromStatus"`
	ToStatus   OrderStatus `json:"toStatus" gorm:"not null"`
	ChangedBy  uint        `json:"changedBy"`
	Note       string      `json:"note"`
	CreatedAt  time.Time   `json:"createdAt"`
}
