package checkout

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists orders and payments in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CreateOrder(ctx context.Context, order Order, lines []OrderLine) (Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `INSERT INTO orders (id, venue_id, total, paid_amount, status, created_at, updated_at)
VALUES ($1,$2,$3,0,$4,NOW(),NOW()) RETURNING created_at, updated_at`,
		order.ID, order.VenueID, order.Total, string(order.Status)).
		Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	for i := range lines {
		lines[i].OrderID = order.ID
		err := tx.QueryRow(ctx, `INSERT INTO order_lines (order_id, venue_id, product_id, product_name, quantity)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			order.ID, order.VenueID, lines[i].ProductID, lines[i].ProductName, lines[i].Quantity).
			Scan(&lines[i].ID)
		if err != nil {
			return Order{}, err
		}
		for _, sel := range lines[i].SelectedModifiers {
			_, err := tx.Exec(ctx, `INSERT INTO order_line_modifiers (order_line_id, modifier_id, quantity)
VALUES ($1,$2,$3)`, lines[i].ID, sel.ModifierID, sel.Quantity)
			if err != nil {
				return Order{}, err
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (r *PGRepository) GetOrder(ctx context.Context, venueID int64, orderID string) (Order, error) {
	var order Order
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, venue_id, total, paid_amount, status, created_at, updated_at
FROM orders WHERE venue_id=$1 AND id=$2`, venueID, orderID).
		Scan(&order.ID, &order.VenueID, &order.Total, &order.PaidAmount, &status, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	order.Status = OrderStatus(status)
	return order, nil
}

func (r *PGRepository) GetOrderLines(ctx context.Context, venueID int64, orderID string) ([]OrderLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, product_name, quantity
FROM order_lines WHERE venue_id=$1 AND order_id=$2 ORDER BY id ASC`, venueID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []OrderLine{}
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.ProductName, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range lines {
		selRows, err := r.pool.Query(ctx, `SELECT modifier_id, quantity FROM order_line_modifiers WHERE order_line_id=$1 ORDER BY id ASC`, lines[i].ID)
		if err != nil {
			return nil, err
		}
		for selRows.Next() {
			var sel ModifierSelection
			if err := selRows.Scan(&sel.ModifierID, &sel.Quantity); err != nil {
				selRows.Close()
				return nil, err
			}
			lines[i].SelectedModifiers = append(lines[i].SelectedModifiers, sel)
		}
		if err := selRows.Err(); err != nil {
			selRows.Close()
			return nil, err
		}
		selRows.Close()
	}
	return lines, nil
}

// AddPayment inserts the payment and bumps the order's paid amount in one
// transaction. The increment is expressed in SQL so two concurrent payments
// serialize on the order row instead of racing a read-modify-write.
func (r *PGRepository) AddPayment(ctx context.Context, payment Payment) (float64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO payments (venue_id, order_id, amount, actor_id, created_at)
VALUES ($1,$2,$3,$4,NOW())`, payment.VenueID, payment.OrderID, payment.Amount, nullActor(payment.ActorID))
	if err != nil {
		return 0, err
	}
	var totalPaid float64
	err = tx.QueryRow(ctx, `UPDATE orders SET paid_amount = paid_amount + $3, updated_at = NOW()
WHERE venue_id=$1 AND id=$2 RETURNING paid_amount`, payment.VenueID, payment.OrderID, payment.Amount).
		Scan(&totalPaid)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrOrderNotFound
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return totalPaid, nil
}

func (r *PGRepository) SetOrderStatus(ctx context.Context, venueID int64, orderID string, status OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status=$3, updated_at=NOW() WHERE venue_id=$1 AND id=$2`,
		venueID, orderID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func nullActor(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
