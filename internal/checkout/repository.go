package checkout

import "context"

// Repository abstracts order and payment persistence for the checkout module.
type Repository interface {
	CreateOrder(ctx context.Context, order Order, lines []OrderLine) (Order, error)
	GetOrder(ctx context.Context, venueID int64, orderID string) (Order, error)
	GetOrderLines(ctx context.Context, venueID int64, orderID string) ([]OrderLine, error)

	// AddPayment inserts the payment and atomically increments the order's
	// paid amount, returning the new running total. The increment and the
	// insert share one transaction so two concurrent partial payments can
	// never both observe the same pre-payment balance.
	AddPayment(ctx context.Context, payment Payment) (float64, error)

	SetOrderStatus(ctx context.Context, venueID int64, orderID string, status OrderStatus) error
}
