package inventory

import (
	"fmt"
	"time"

	"github.com/Joseamica/avoqado-server-sub011/internal/platform/httpx"
	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

// MovementType enumerates supported ledger movements.
type MovementType string

const (
	// MovementTypeUsage represents consumption driven by a sale.
	MovementTypeUsage MovementType = "USAGE"
	// MovementTypeRestock represents an inbound receipt lot.
	MovementTypeRestock MovementType = "RESTOCK"
	// MovementTypeAdjustment indicates manual corrections.
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
)

// BatchStatus tracks a receipt lot's lifecycle.
type BatchStatus string

const (
	// BatchStatusActive means the batch still has remaining quantity.
	BatchStatusActive BatchStatus = "ACTIVE"
	// BatchStatusExhausted means the batch is fully consumed. Exhausted
	// batches are kept forever as the historical costing record.
	BatchStatusExhausted BatchStatus = "EXHAUSTED"
)

// RawMaterial is an ingredient tracked by the batch ledger. CurrentStock is a
// cached derivation: it must equal the sum of RemainingQuantity across the
// material's ACTIVE batches after every committed transaction.
type RawMaterial struct {
	ID             int64      `json:"id"`
	VenueID        int64      `json:"venue_id"`
	SKU            string     `json:"sku"`
	Name           string     `json:"name"`
	Unit           units.Unit `json:"unit"`
	CurrentStock   float64    `json:"current_stock"`
	MinimumStock   float64    `json:"minimum_stock"`
	ReorderPoint   float64    `json:"reorder_point"`
	CostPerUnit    float64    `json:"cost_per_unit"`
	AvgCostPerUnit float64    `json:"avg_cost_per_unit"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StockBatch is one receipt lot of a raw material. FIFO consumption walks
// batches by (ReceivedDate, CreatedAt, ID) ascending; ties on ReceivedDate
// break by creation order, never by cost or quantity.
type StockBatch struct {
	ID                int64       `json:"id"`
	VenueID           int64       `json:"venue_id"`
	RawMaterialID     int64       `json:"raw_material_id"`
	InitialQuantity   float64     `json:"initial_quantity"`
	RemainingQuantity float64     `json:"remaining_quantity"`
	CostPerUnit       float64     `json:"cost_per_unit"`
	ReceivedDate      time.Time   `json:"received_date"`
	Status            BatchStatus `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Movement is one append-only ledger entry. Quantity is signed (negative for
// consumption); PreviousStock and NewStock snapshot the cached balance around
// the mutation. Rows are immutable once written.
type Movement struct {
	ID            int64        `json:"id"`
	VenueID       int64        `json:"venue_id"`
	RawMaterialID int64        `json:"raw_material_id,omitempty"`
	ProductID     int64        `json:"product_id,omitempty"`
	Type          MovementType `json:"type"`
	Quantity      float64      `json:"quantity"`
	PreviousStock float64      `json:"previous_stock"`
	NewStock      float64      `json:"new_stock"`
	UnitCost      float64      `json:"unit_cost"`
	Reference     string       `json:"reference,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	CreatedBy     int64        `json:"created_by,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// InventoryLevel is the single-row counterpart to the batch ledger for
// QUANTITY-method products, mutated only by atomic conditional decrement.
type InventoryLevel struct {
	ProductID    int64     `json:"product_id"`
	VenueID      int64     `json:"venue_id"`
	CurrentStock float64   `json:"current_stock"`
	MinimumStock float64   `json:"minimum_stock"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MovementFilter pages the append-only ledger.
type MovementFilter struct {
	VenueID       int64
	RawMaterialID int64
	ProductID     int64
	Type          MovementType
	From          time.Time
	To            time.Time
	Limit         int
}

// InsufficientStockError is the business-expected failure of the deduction
// path. Lock contention on a hot ingredient is mapped into the same class
// (Contention=true) so callers see a single retryable failure mode.
type InsufficientStockError struct {
	Resource   string
	Requested  float64
	Available  float64
	Contention bool
}

func (e *InsufficientStockError) Error() string {
	if e.Contention {
		return fmt.Sprintf("inventory: %s is locked by a concurrent transaction", e.Resource)
	}
	return fmt.Sprintf("inventory: insufficient stock of %s: requested %.4f, available %.4f", e.Resource, e.Requested, e.Available)
}

// ErrInventoryNotConfigured indicates a QUANTITY-method product without an
// inventory level row. This is a data-integrity defect, not a business case.
var ErrInventoryNotConfigured = fmt.Errorf("inventory: inventory level %w for quantity-tracked product", httpx.ErrNotFound)

// ErrRawMaterialNotFound indicates a missing raw material row.
var ErrRawMaterialNotFound = fmt.Errorf("inventory: raw material %w", httpx.ErrNotFound)

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation)

// ErrInvalidUnitCost indicates a negative cost value.
var ErrInvalidUnitCost = fmt.Errorf("%w: unit cost must be >= 0", httpx.ErrValidation)
