package checkout

import (
	"fmt"
	"time"

	"github.com/Joseamica/avoqado-server-sub011/internal/platform/httpx"
)

// OrderStatus tracks the payment lifecycle of an order.
type OrderStatus string

const (
	// OrderStatusPending means no payment has been received.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusPartiallyPaid means payments exist but the total is not
	// covered yet. Partial payments never touch the stock ledger.
	OrderStatusPartiallyPaid OrderStatus = "PARTIALLY_PAID"
	// OrderStatusPaid means the total is covered. The fully-paid transition
	// is the sole trigger for stock deduction.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusCompleted means the deduction gate committed and the order
	// is fulfilled.
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// Order is the unit of sale. IDs are UUIDs issued at creation so external
// payment systems can reference orders before they settle.
type Order struct {
	ID         string      `json:"id"`
	VenueID    int64       `json:"venue_id"`
	Total      float64     `json:"total"`
	PaidAmount float64     `json:"paid_amount"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// OrderLine is one sold item. ProductName is denormalized at order creation so
// a later product deletion still leaves a readable line.
type OrderLine struct {
	ID                int64               `json:"id"`
	OrderID           string              `json:"order_id"`
	ProductID         int64               `json:"product_id"`
	ProductName       string              `json:"product_name"`
	Quantity          float64             `json:"quantity"`
	SelectedModifiers []ModifierSelection `json:"selected_modifiers,omitempty"`
}

// ModifierSelection is one chosen modifier on an order line with how many
// times it was selected.
type ModifierSelection struct {
	ModifierID int64   `json:"modifier_id"`
	Quantity   float64 `json:"quantity"`
}

// Payment is one settlement against an order.
type Payment struct {
	ID        int64     `json:"id"`
	VenueID   int64     `json:"venue_id"`
	OrderID   string    `json:"order_id"`
	Amount    float64   `json:"amount"`
	ActorID   int64     `json:"actor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InsufficientInventoryError is the aggregate failure of the deduction gate.
// It names the first order line that could not be fulfilled; everything the
// gate touched before that line has already been rolled back.
type InsufficientInventoryError struct {
	OrderID string
	Product string
	Cause   error
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("checkout: order %s cannot be fulfilled: %s: %v", e.OrderID, e.Product, e.Cause)
}

func (e *InsufficientInventoryError) Unwrap() error {
	return e.Cause
}

// ErrOrderNotFound indicates a missing order row.
var ErrOrderNotFound = fmt.Errorf("checkout: order %w", httpx.ErrNotFound)

// ErrOrderAlreadyPaid indicates a payment against an order that already
// crossed the fully-paid threshold.
var ErrOrderAlreadyPaid = fmt.Errorf("%w: order already fully paid", httpx.ErrDuplicate)

// ErrInvalidPayment indicates a non-positive payment amount.
var ErrInvalidPayment = fmt.Errorf("%w: payment amount must be positive", httpx.ErrValidation)

// ErrDeductionNotPending indicates a deduction retry against an order that is
// not sitting in PAID after a gate failure.
var ErrDeductionNotPending = fmt.Errorf("%w: order has no pending deduction", httpx.ErrValidation)
