package inventory

import "context"

// RepositoryPort abstracts repository usage for the service and the checkout
// gate. WithTx opens one RepeatableRead transaction; every mutation of
// RawMaterial, StockBatch and InventoryLevel rows goes through the TxRepository
// it yields, never through direct field writes elsewhere.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetRawMaterial(ctx context.Context, venueID, rawMaterialID int64) (RawMaterial, error)
	ListRawMaterials(ctx context.Context, venueID int64) ([]RawMaterial, error)
	ListBelowReorderPoint(ctx context.Context, venueID int64) ([]RawMaterial, error)
	CreateRawMaterial(ctx context.Context, m RawMaterial) (RawMaterial, error)
	GetInventoryLevel(ctx context.Context, venueID, productID int64) (InventoryLevel, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// TxRepository exposes the transactional operations of one deduction or
// restock. Lock acquisition is fail-fast: methods suffixed ForUpdate return an
// InsufficientStockError with Contention=true instead of queueing when another
// transaction holds the row.
type TxRepository interface {
	GetRawMaterialForUpdate(ctx context.Context, venueID, rawMaterialID int64) (RawMaterial, error)
	ListActiveBatchesForUpdate(ctx context.Context, venueID, rawMaterialID int64) ([]StockBatch, error)
	UpdateBatch(ctx context.Context, batchID int64, remaining float64, status BatchStatus) error
	InsertBatch(ctx context.Context, batch StockBatch) (StockBatch, error)
	UpdateRawMaterialStock(ctx context.Context, venueID, rawMaterialID int64, currentStock, avgCost float64) error
	DecrementInventoryLevel(ctx context.Context, venueID, productID int64, quantity float64) (float64, error)
	GetInventoryLevel(ctx context.Context, venueID, productID int64) (InventoryLevel, error)
	UpsertInventoryLevel(ctx context.Context, level InventoryLevel) error
	InsertMovement(ctx context.Context, movement Movement) error
}
