package services

import (
	"context"
	"errors"
	"strings"

	"canteen-api/apperr"
	"canteen-api/auth"
	"canteen-api/models"
	"canteen-api/statemachine"

	"gorm.io/gorm"
)

type OrderLineInput struct {
	MenuItemID uint
	Quantity   int
	// Price is accepted from clients but never used for pricing.
	Price float64
}

type PlaceOrderInput struct {
	Items            []OrderLineInput
	DeliveryLocation models.DeliveryLocation
	CustomerDetails  models.CustomerDetails
}

type OrderFilter struct {
	Status models.OrderStatus
	UserID uint
}

// OrderSummary is the admin dashboard aggregate over a listing.
type OrderSummary struct {
	ByStatus     map[models.OrderStatus]int `json:"byStatus"`
	TotalRevenue float64                    `json:"totalRevenue"`
	Count        int                        `json:"count"`
}

type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// Place prices every line from the live catalog, snapshots it, and saves the
// order with its items in one transaction. A nil principal is a guest
// checkout; the order is then owned by the guest account for the customer's
// phone, created on first use. Phones belonging to real accounts must sign in.
func (s *OrderService) Place(ctx context.Context, p *auth.Principal, in PlaceOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Validation("Order must contain at least one item")
	}
	for i, line := range in.Items {
		if line.MenuItemID == 0 {
			return nil, apperr.Validation("items[%d].menuItemId is required", i)
		}
		if line.Quantity < 1 {
			return nil, apperr.Validation("items[%d].quantity must be at least 1", i)
		}
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := s.resolveOwner(tx, p, in.CustomerDetails)
		if err != nil {
			return err
		}

		location := in.DeliveryLocation
		location.Block = strings.TrimSpace(location.Block)
		location.ClassNumber = strings.TrimSpace(location.ClassNumber)
		if p != nil && location.Block == "" && location.ClassNumber == "" && owner.ProfileCompleted {
			location = models.DeliveryLocation{Block: owner.Block, ClassNumber: owner.ClassNumber}
		}
		if location.Block == "" || location.ClassNumber == "" {
			return apperr.Validation("Delivery block and class number are required")
		}

		customer := in.CustomerDetails
		customer.Name = strings.TrimSpace(customer.Name)
		customer.Phone = strings.TrimSpace(customer.Phone)
		customer.Email = strings.TrimSpace(customer.Email)
		if p != nil {
			if customer.Name == "" {
				customer.Name = owner.Name
			}
			if customer.Phone == "" {
				customer.Phone = owner.Phone
			}
			if customer.Email == "" && owner.Email != nil {
				customer.Email = *owner.Email
			}
		}

		items, total, err := priceLines(tx, in.Items)
		if err != nil {
			return err
		}

		order = &models.Order{
			UserID:           owner.ID,
			Items:            items,
			TotalAmount:      total,
			Status:           models.StatusPending,
			DeliveryLocation: location,
			CustomerDetails:  customer,
			PaymentStatus:    models.PaymentPending,
		}
		if err := tx.Create(order).Error; err != nil {
			return apperr.Internal(err, "Error creating order")
		}

		history := models.OrderStatusHistory{
			OrderID:   order.ID,
			ToStatus:  models.StatusPending,
			ChangedBy: owner.ID,
			Note:      "Order placed",
		}
		if err := tx.Create(&history).Error; err != nil {
			return apperr.Internal(err, "Error recording order history")
		}
		order.StatusHistory = []models.OrderStatusHistory{history}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// priceLines looks every line up in the catalog. Any missing or unavailable
// item fails the whole order before anything is written.
func priceLines(tx *gorm.DB, lines []OrderLineInput) ([]models.OrderItem, float64, error) {
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.MenuItemID)
	}
	var menu []models.MenuItem
	if err := tx.Where("id IN ?", ids).Find(&menu).Error; err != nil {
		return nil, 0, apperr.Internal(err, "Error fetching menu items")
	}
	byID := make(map[uint]models.MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}

	items := make([]models.OrderItem, 0, len(lines))
	var total float64
	for _, l := range lines {
		m, ok := byID[l.MenuItemID]
		if !ok {
			return nil, 0, apperr.NotFound("Menu item %d not found", l.MenuItemID)
		}
		if !m.IsAvailable {
			return nil, 0, apperr.Validation("Menu item '%s' is not available", m.Name)
		}
		item := models.OrderItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			Price:      m.Price,
			Quantity:   l.Quantity,
		}
		total += item.LineTotal()
		items = append(items, item)
	}
	return items, total, nil
}

func (s *OrderService) resolveOwner(tx *gorm.DB, p *auth.Principal, customer models.CustomerDetails) (*models.User, error) {
	var user models.User
	if p != nil {
		err := tx.First(&user, p.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticated("Not authenticated")
		}
		if err != nil {
			return nil, apperr.Internal(err, "Failed to load user")
		}
		return &user, nil
	}

	name := strings.TrimSpace(customer.Name)
	phone := strings.TrimSpace(customer.Phone)
	if name == "" || phone == "" {
		return nil, apperr.Validation("Customer name and phone are required")
	}
	err := tx.Where("phone = ?", phone).First(&user).Error
	if err == nil {
		// only accounts provisioned by earlier guest checkouts take guest orders
		if user.Role != models.RoleUser || user.HasPassword() {
			return nil, apperr.Unauthenticated("An account exists for this phone number, please sign in to order")
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal(err, "Failed to load user")
	}
	user = models.User{Name: name, Phone: phone, Role: models.RoleUser}
	if err := tx.Create(&user).Error; err != nil {
		return nil, translateWriteErr(err, "Phone number already registered", "Failed to create guest user")
	}
	return &user, nil
}

// ListMine returns the principal's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, p *auth.Principal) ([]models.Order, error) {
	if p == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	return s.find(ctx, s.db.Where("user_id = ?", p.UserID))
}

// ListByPhone returns orders placed with the given customer phone.
func (s *OrderService) ListByPhone(ctx context.Context, phone string) ([]models.Order, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperr.Validation("Phone number is required")
	}
	return s.find(ctx, s.db.Where("customer_phone = ?", phone))
}

// ListAll is the admin listing with a per-status summary.
func (s *OrderService) ListAll(ctx context.Context, p *auth.Principal, f OrderFilter) ([]models.Order, *OrderSummary, error) {
	if !p.IsAdmin() {
		return nil, nil, apperr.Forbidden("Not authorized")
	}
	query := s.db
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, nil, apperr.Validation("Unknown status %q", f.Status)
		}
		query = query.Where("status = ?", f.Status)
	}
	if f.UserID != 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	orders, err := s.find(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	return orders, Summarize(orders), nil
}

// Summarize counts orders by status and sums delivered revenue.
func Summarize(orders []models.Order) *OrderSummary {
	sum := &OrderSummary{ByStatus: map[models.OrderStatus]int{}, Count: len(orders)}
	for _, o := range orders {
		sum.ByStatus[o.Status]++
		if o.Status == models.StatusDelivered {
			sum.TotalRevenue += o.TotalAmount
		}
	}
	return sum
}

// Get returns an order visible to its owner or an admin.
func (s *OrderService) Get(ctx context.Context, p *auth.Principal, id uint) (*models.Order, error) {
	if p == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Preload("StatusHistory").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Error fetching order")
	}
	if !p.Owns(order.UserID) && !p.IsAdmin() {
		return nil, apperr.Forbidden("This order does not belong to you")
	}
	return &order, nil
}

// SetStatus is the admin status change. Moves go forward only and terminal
// orders are immutable.
func (s *OrderService) SetStatus(ctx context.Context, p *auth.Principal, id uint, status models.OrderStatus, note string) (*models.Order, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("Not authorized")
	}
	if !status.Valid() {
		return nil, apperr.Validation("Unknown status %q", status)
	}
	if note == "" {
		note = "Status updated by admin"
	}
	return s.transition(ctx, p, id, status, statemachine.ActorAdmin, note)
}

// Cancel cancels a pending order for its owner or an admin.
func (s *OrderService) Cancel(ctx context.Context, p *auth.Principal, id uint) (*models.Order, error) {
	if p == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	actor := statemachine.ActorOwner
	if p.IsAdmin() {
		actor = statemachine.ActorAdmin
	}
	return s.transition(ctx, p, id, models.StatusCancelled, actor, "Order cancelled")
}

func (s *OrderService) transition(ctx context.Context, p *auth.Principal, id uint, to models.OrderStatus, actor statemachine.Actor, note string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&order, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Order not found")
		}
		if err != nil {
			return apperr.Internal(err, "Error fetching order")
		}
		if actor == statemachine.ActorOwner && !p.Owns(order.UserID) {
			return apperr.Forbidden("Not authorized")
		}
		if err := statemachine.CanTransition(order.Status, to, actor); err != nil {
			return apperr.Wrap(apperr.KindInvalidState, err, invalidStateMessage(order.Status, to))
		}

		from := order.Status
		// conditional update so a concurrent change of the same order loses cleanly
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, from).
			Update("status", to)
		if res.Error != nil {
			return apperr.Internal(res.Error, "Error updating order status")
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState("Order status changed concurrently, please retry")
		}
		order.Status = to

		history := models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   to,
			ChangedBy:  p.UserID,
			Note:       note,
		}
		if err := tx.Create(&history).Error; err != nil {
			return apperr.Internal(err, "Error recording order history")
		}
		return tx.Preload("Items").Preload("StatusHistory").First(&order, order.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func invalidStateMessage(from, to models.OrderStatus) string {
	if to == models.StatusCancelled {
		return "Order cannot be cancelled: only pending orders can be cancelled (current status: " + string(from) + ")"
	}
	if statemachine.IsTerminal(from) {
		return "Order is " + string(from) + " and can no longer change status"
	}
	return "Order status cannot move from " + string(from) + " to " + string(to)
}

// SetPaymentStatus records payment for an order. Admin only; cancelled
// orders are frozen.
func (s *OrderService) SetPaymentStatus(ctx context.Context, p *auth.Principal, id uint, status models.PaymentStatus) (*models.Order, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("Not authorized")
	}
	if !status.Valid() {
		return nil, apperr.Validation("Payment status must be pending or completed")
	}
	var order models.Order
	db := s.db.WithContext(ctx)
	err := db.First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Error fetching order")
	}
	if order.Status == models.StatusCancelled {
		return nil, apperr.InvalidState("Order is cancelled and can no longer change")
	}
	res := db.Model(&models.Order{}).
		Where("id = ? AND status <> ?", order.ID, models.StatusCancelled).
		Update("payment_status", status)
	if res.Error != nil {
		return nil, apperr.Internal(res.Error, "Error updating payment status")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.InvalidState("Order is cancelled and can no longer change")
	}
	order.PaymentStatus = status
	return &order, nil
}

func (s *OrderService) find(ctx context.Context, query *gorm.DB) ([]models.Order, error) {
	orders := []models.Order{}
	if err := query.WithContext(ctx).Preload("Items").Order("created_at desc, id desc").Find(&orders).Error; err != nil {
		return nil, apperr.Internal(err, "Error fetching orders")
	}
	return orders, nil
}
