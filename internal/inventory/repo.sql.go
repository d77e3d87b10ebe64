package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Joseamica/avoqado-server-sub011/internal/platform/db"
	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

// Postgres error codes the deduction path maps into domain errors.
const (
	pgCodeLockNotAvailable = "55P03" // FOR UPDATE NOWAIT on a held row
	pgCodeCheckViolation   = "23514" // remaining_qty/current_stock >= 0
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside one repeatable-read transaction. Any
// error from the callback rolls back every mutation it made.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const rawMaterialColumns = `id, venue_id, sku, name, unit, current_stock, minimum_stock, reorder_point, cost_per_unit, avg_cost_per_unit, is_active, created_at, updated_at`

func scanRawMaterial(row pgx.Row) (RawMaterial, error) {
	var m RawMaterial
	var unit string
	err := row.Scan(&m.ID, &m.VenueID, &m.SKU, &m.Name, &unit, &m.CurrentStock, &m.MinimumStock, &m.ReorderPoint, &m.CostPerUnit, &m.AvgCostPerUnit, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return RawMaterial{}, err
	}
	m.Unit = units.Unit(unit)
	return m, nil
}

func (r *Repository) GetRawMaterial(ctx context.Context, venueID, rawMaterialID int64) (RawMaterial, error) {
	m, err := scanRawMaterial(r.pool.QueryRow(ctx, `SELECT `+rawMaterialColumns+` FROM raw_materials WHERE venue_id=$1 AND id=$2`, venueID, rawMaterialID))
	if errors.Is(err, pgx.ErrNoRows) {
		return RawMaterial{}, ErrRawMaterialNotFound
	}
	return m, err
}

// GetRawMaterialUnit satisfies the catalog write-time validation lookup.
func (r *Repository) GetRawMaterialUnit(ctx context.Context, venueID, rawMaterialID int64) (units.Unit, error) {
	var unit string
	err := r.pool.QueryRow(ctx, `SELECT unit FROM raw_materials WHERE venue_id=$1 AND id=$2`, venueID, rawMaterialID).Scan(&unit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRawMaterialNotFound
		}
		return "", err
	}
	return units.Unit(unit), nil
}

func (r *Repository) ListRawMaterials(ctx context.Context, venueID int64) ([]RawMaterial, error) {
	return r.listRawMaterials(ctx, `SELECT `+rawMaterialColumns+` FROM raw_materials WHERE venue_id=$1 ORDER BY name ASC`, venueID)
}

func (r *Repository) ListBelowReorderPoint(ctx context.Context, venueID int64) ([]RawMaterial, error) {
	return r.listRawMaterials(ctx, `SELECT `+rawMaterialColumns+` FROM raw_materials
WHERE venue_id=$1 AND is_active AND reorder_point > 0 AND current_stock <= reorder_point
ORDER BY current_stock / reorder_point ASC`, venueID)
}

// ListBelowReorderPointAll is the cross-venue variant used by the scheduled
// low-stock scan.
func (r *Repository) ListBelowReorderPointAll(ctx context.Context) ([]RawMaterial, error) {
	return r.listRawMaterials(ctx, `SELECT `+rawMaterialColumns+` FROM raw_materials
WHERE is_active AND reorder_point > 0 AND current_stock <= reorder_point
ORDER BY venue_id ASC, current_stock / reorder_point ASC`)
}

func (r *Repository) listRawMaterials(ctx context.Context, query string, args ...any) ([]RawMaterial, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	materials := []RawMaterial{}
	for rows.Next() {
		m, err := scanRawMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (r *Repository) CreateRawMaterial(ctx context.Context, m RawMaterial) (RawMaterial, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO raw_materials (venue_id, sku, name, unit, current_stock, minimum_stock, reorder_point, cost_per_unit, avg_cost_per_unit, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,$5,$6,$7,$7,TRUE,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		m.VenueID, m.SKU, m.Name, string(m.Unit), m.MinimumStock, m.ReorderPoint, m.CostPerUnit).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return RawMaterial{}, err
	}
	m.IsActive = true
	m.AvgCostPerUnit = m.CostPerUnit
	return m, nil
}

func (r *Repository) GetInventoryLevel(ctx context.Context, venueID, productID int64) (InventoryLevel, error) {
	var level InventoryLevel
	err := r.pool.QueryRow(ctx, `SELECT product_id, venue_id, current_stock, minimum_stock, updated_at FROM inventory_levels WHERE venue_id=$1 AND product_id=$2`, venueID, productID).
		Scan(&level.ProductID, &level.VenueID, &level.CurrentStock, &level.MinimumStock, &level.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return InventoryLevel{}, ErrInventoryNotConfigured
	}
	return level, err
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, venue_id, COALESCE(raw_material_id, 0), COALESCE(product_id, 0), type, quantity, previous_stock, new_stock, unit_cost, COALESCE(reference, ''), COALESCE(reason, ''), COALESCE(created_by, 0), created_at
FROM raw_material_movements
WHERE venue_id=$1
  AND ($2::bigint = 0 OR raw_material_id=$2)
  AND ($3::bigint = 0 OR product_id=$3)
  AND ($4::text = '' OR type=$4)
  AND created_at BETWEEN COALESCE($5, '-infinity') AND COALESCE($6, 'infinity')
ORDER BY created_at DESC, id DESC
LIMIT $7`, filter.VenueID, filter.RawMaterialID, filter.ProductID, string(filter.Type), nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var movementType string
		if err := rows.Scan(&m.ID, &m.VenueID, &m.RawMaterialID, &m.ProductID, &movementType, &m.Quantity, &m.PreviousStock, &m.NewStock, &m.UnitCost, &m.Reference, &m.Reason, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(movementType)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetRawMaterialForUpdate(ctx context.Context, venueID, rawMaterialID int64) (RawMaterial, error) {
	m, err := scanRawMaterial(r.tx.QueryRow(ctx, `SELECT `+rawMaterialColumns+` FROM raw_materials WHERE venue_id=$1 AND id=$2 FOR UPDATE NOWAIT`, venueID, rawMaterialID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RawMaterial{}, ErrRawMaterialNotFound
		}
		if isLockNotAvailable(err) {
			return RawMaterial{}, &InsufficientStockError{Resource: fmt.Sprintf("raw material %d", rawMaterialID), Contention: true}
		}
		return RawMaterial{}, err
	}
	return m, nil
}

// ListActiveBatchesForUpdate locks a material's active batches oldest-first.
// NOWAIT converts lock waits into immediate failures, which removes lock-wait
// deadlocks between orders that touch overlapping ingredient sets in
// different orders.
func (r *txRepository) ListActiveBatchesForUpdate(ctx context.Context, venueID, rawMaterialID int64) ([]StockBatch, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, venue_id, raw_material_id, initial_qty, remaining_qty, cost_per_unit, received_date, status, created_at
FROM stock_batches
WHERE venue_id=$1 AND raw_material_id=$2 AND status='ACTIVE'
ORDER BY received_date ASC, created_at ASC, id ASC
FOR UPDATE NOWAIT`, venueID, rawMaterialID)
	if err != nil {
		if isLockNotAvailable(err) {
			return nil, &InsufficientStockError{Resource: fmt.Sprintf("raw material %d", rawMaterialID), Contention: true}
		}
		return nil, err
	}
	defer rows.Close()
	batches := []StockBatch{}
	for rows.Next() {
		var b StockBatch
		var status string
		if err := rows.Scan(&b.ID, &b.VenueID, &b.RawMaterialID, &b.InitialQuantity, &b.RemainingQuantity, &b.CostPerUnit, &b.ReceivedDate, &status, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Status = BatchStatus(status)
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		if isLockNotAvailable(err) {
			return nil, &InsufficientStockError{Resource: fmt.Sprintf("raw material %d", rawMaterialID), Contention: true}
		}
		return nil, err
	}
	return batches, nil
}

func (r *txRepository) UpdateBatch(ctx context.Context, batchID int64, remaining float64, status BatchStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_batches SET remaining_qty=$2, status=$3 WHERE id=$1`, batchID, remaining, string(status))
	if err != nil && isCheckViolation(err) {
		return &InsufficientStockError{Resource: fmt.Sprintf("batch %d", batchID), Requested: -remaining}
	}
	return err
}

func (r *txRepository) InsertBatch(ctx context.Context, batch StockBatch) (StockBatch, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_batches (venue_id, raw_material_id, initial_qty, remaining_qty, cost_per_unit, received_date, status, created_at)
VALUES ($1,$2,$3,$3,$4,$5,'ACTIVE',NOW()) RETURNING id, created_at`,
		batch.VenueID, batch.RawMaterialID, batch.InitialQuantity, batch.CostPerUnit, batch.ReceivedDate).
		Scan(&batch.ID, &batch.CreatedAt)
	if err != nil {
		return StockBatch{}, err
	}
	batch.RemainingQuantity = batch.InitialQuantity
	batch.Status = BatchStatusActive
	return batch, nil
}

func (r *txRepository) UpdateRawMaterialStock(ctx context.Context, venueID, rawMaterialID int64, currentStock, avgCost float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE raw_materials SET current_stock=$3, avg_cost_per_unit=$4, updated_at=NOW() WHERE venue_id=$1 AND id=$2`,
		venueID, rawMaterialID, currentStock, avgCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRawMaterialNotFound
	}
	return nil
}

// DecrementInventoryLevel performs the atomic conditional decrement for
// QUANTITY-method products. The stock check lives in the WHERE clause, so two
// concurrent decrements can never both pass a stale pre-check; the returned
// value is the post-image.
func (r *txRepository) DecrementInventoryLevel(ctx context.Context, venueID, productID int64, quantity float64) (float64, error) {
	var newStock float64
	err := r.tx.QueryRow(ctx, `UPDATE inventory_levels
SET current_stock = current_stock - $3, updated_at = NOW()
WHERE venue_id=$1 AND product_id=$2 AND current_stock >= $3
RETURNING current_stock`, venueID, productID, quantity).Scan(&newStock)
	if err == nil {
		return newStock, nil
	}
	if isCheckViolation(err) || errors.Is(err, pgx.ErrNoRows) {
		// Distinguish "row missing" from "row present but short" for the
		// error taxonomy; both leave the ledger untouched.
		level, lookupErr := r.GetInventoryLevel(ctx, venueID, productID)
		if lookupErr != nil {
			return 0, lookupErr
		}
		return 0, &InsufficientStockError{
			Resource:  fmt.Sprintf("product %d", productID),
			Requested: quantity,
			Available: level.CurrentStock,
		}
	}
	if isLockNotAvailable(err) {
		return 0, &InsufficientStockError{Resource: fmt.Sprintf("product %d", productID), Contention: true}
	}
	return 0, err
}

func (r *txRepository) GetInventoryLevel(ctx context.Context, venueID, productID int64) (InventoryLevel, error) {
	var level InventoryLevel
	err := r.tx.QueryRow(ctx, `SELECT product_id, venue_id, current_stock, minimum_stock, updated_at FROM inventory_levels WHERE venue_id=$1 AND product_id=$2`, venueID, productID).
		Scan(&level.ProductID, &level.VenueID, &level.CurrentStock, &level.MinimumStock, &level.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return InventoryLevel{}, ErrInventoryNotConfigured
	}
	return level, err
}

func (r *txRepository) UpsertInventoryLevel(ctx context.Context, level InventoryLevel) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_levels (venue_id, product_id, current_stock, minimum_stock, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (venue_id, product_id) DO UPDATE SET current_stock=EXCLUDED.current_stock, minimum_stock=EXCLUDED.minimum_stock, updated_at=NOW()`,
		level.VenueID, level.ProductID, level.CurrentStock, level.MinimumStock)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO raw_material_movements (venue_id, raw_material_id, product_id, type, quantity, previous_stock, new_stock, unit_cost, reference, reason, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())`,
		m.VenueID, nullInt(m.RawMaterialID), nullInt(m.ProductID), string(m.Type), m.Quantity, m.PreviousStock, m.NewStock, m.UnitCost, nullString(m.Reference), nullString(m.Reason), nullInt(m.CreatedBy))
	return err
}

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeLockNotAvailable
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeCheckViolation
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
