package domain

import "time"

// OrderLine is one SKU/quantity requirement within an order.
type OrderLine struct {
	SKU      string
	Quantity int
}

// OrderStatus tracks fulfillment progress.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderWaved     OrderStatus = "waved"
	OrderPicking   OrderStatus = "picking"
	OrderCompleted OrderStatus = "completed"
)

// Order is a customer request composed of one or more lines, each
// ultimately backed by a TaskStream once waved.
type Order struct {
	ID        string
	Lines     []OrderLine
	Status    OrderStatus
	DeadlineAt time.Time
	CreatedAt time.Time
	WaveID    string
}

// NewOrder creates a Pending order with the given deadline.
func NewOrder(id string, lines []OrderLine, deadlineAt, createdAt time.Time) *Order {
	return &Order{ID: id, Lines: lines, Status: OrderPending, DeadlineAt: deadlineAt, CreatedAt: createdAt}
}

// IsOverdue reports whether the order's deadline has passed relative to now.
func (o *Order) IsOverdue(now time.Time) bool {
	return now.After(o.DeadlineAt) && o.Status != OrderCompleted
}
