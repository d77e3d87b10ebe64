package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Joseamica/avoqado-server-sub011/internal/platform/httpx"
	"github.com/Joseamica/avoqado-server-sub011/internal/shared"
	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

// Quantities are float64 end to end; epsilon guards the usual representation
// noise when a batch is drawn down to zero.
const qtyEpsilon = 1e-9

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations. Consumption entry points take an
// explicit TxRepository so the caller owns the transactional boundary: the
// checkout gate runs every line of an order inside one transaction.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// WithTx exposes the repository's transaction scope to orchestrating callers.
func (s *Service) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return s.repo.WithTx(ctx, fn)
}

// ConsumeInput describes one FIFO consumption of a raw material, stated in
// the material's own stocking unit.
type ConsumeInput struct {
	VenueID       int64
	RawMaterialID int64
	Quantity      float64
	Type          MovementType
	Reference     string
	Reason        string
	ActorID       int64
}

// ConsumeResult reports the blended cost of one consumption.
type ConsumeResult struct {
	QuantityConsumed float64
	WeightedCost     float64
}

// ConsumeFIFO draws quantity from the material's active batches oldest-first
// under fail-fast row locks. Either the full quantity is consumed or the
// caller's transaction is poisoned with an InsufficientStockError and every
// batch mutation rolls back; there is no partial-consumption outcome.
func (s *Service) ConsumeFIFO(ctx context.Context, tx TxRepository, input ConsumeInput) (ConsumeResult, error) {
	if input.Quantity <= 0 {
		return ConsumeResult{}, ErrInvalidQuantity
	}
	if input.Type == "" {
		input.Type = MovementTypeUsage
	}
	if err := validateReference(input.Reference); err != nil {
		return ConsumeResult{}, err
	}

	material, err := tx.GetRawMaterialForUpdate(ctx, input.VenueID, input.RawMaterialID)
	if err != nil {
		return ConsumeResult{}, err
	}
	batches, err := tx.ListActiveBatchesForUpdate(ctx, input.VenueID, input.RawMaterialID)
	if err != nil {
		return ConsumeResult{}, nameContention(err, material.Name)
	}

	remaining := input.Quantity
	available := 0.0
	cost := 0.0
	for i := range batches {
		available += batches[i].RemainingQuantity
	}
	if available+qtyEpsilon < input.Quantity {
		return ConsumeResult{}, &InsufficientStockError{
			Resource:  material.Name,
			Requested: input.Quantity,
			Available: available,
		}
	}

	remainingBatchQty := 0.0
	remainingBatchCost := 0.0
	for i := range batches {
		if remaining <= qtyEpsilon {
			remainingBatchQty += batches[i].RemainingQuantity
			remainingBatchCost += batches[i].RemainingQuantity * batches[i].CostPerUnit
			continue
		}
		take := batches[i].RemainingQuantity
		if take > remaining {
			take = remaining
		}
		left := batches[i].RemainingQuantity - take
		if left <= qtyEpsilon {
			left = 0
		}
		status := BatchStatusActive
		if left == 0 {
			status = BatchStatusExhausted
		}
		if err := tx.UpdateBatch(ctx, batches[i].ID, left, status); err != nil {
			return ConsumeResult{}, err
		}
		cost += take * batches[i].CostPerUnit
		remaining -= take
		remainingBatchQty += left
		remainingBatchCost += left * batches[i].CostPerUnit
	}

	newStock := material.CurrentStock - input.Quantity
	if newStock <= qtyEpsilon && newStock >= -qtyEpsilon {
		newStock = 0
	}
	newAvg := 0.0
	if remainingBatchQty > qtyEpsilon {
		newAvg = remainingBatchCost / remainingBatchQty
	}
	if err := tx.UpdateRawMaterialStock(ctx, input.VenueID, input.RawMaterialID, newStock, newAvg); err != nil {
		return ConsumeResult{}, err
	}

	unitCost := 0.0
	if input.Quantity > 0 {
		unitCost = cost / input.Quantity
	}
	// One summary movement per consumption, not one per batch.
	movement := Movement{
		VenueID:       input.VenueID,
		RawMaterialID: input.RawMaterialID,
		Type:          input.Type,
		Quantity:      -input.Quantity,
		PreviousStock: material.CurrentStock,
		NewStock:      newStock,
		UnitCost:      unitCost,
		Reference:     input.Reference,
		Reason:        input.Reason,
		CreatedBy:     input.ActorID,
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return ConsumeResult{}, err
	}
	return ConsumeResult{QuantityConsumed: input.Quantity, WeightedCost: cost}, nil
}

// DeductInput describes one atomic quantity deduction for a QUANTITY-method
// product.
type DeductInput struct {
	VenueID     int64
	ProductID   int64
	ProductName string
	Quantity    float64
	Reference   string
	Reason      string
	ActorID     int64
}

// DeductQuantity decrements the product's inventory level. The pre-check is
// advisory only; the conditional UPDATE inside DecrementInventoryLevel is the
// authoritative guard against over-selling.
func (s *Service) DeductQuantity(ctx context.Context, tx TxRepository, input DeductInput) (float64, error) {
	if input.Quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	if err := validateReference(input.Reference); err != nil {
		return 0, err
	}
	level, err := tx.GetInventoryLevel(ctx, input.VenueID, input.ProductID)
	if err != nil {
		if errors.Is(err, ErrInventoryNotConfigured) {
			s.logger.Error("quantity-tracked product missing inventory row",
				slog.Int64("venue_id", input.VenueID),
				slog.Int64("product_id", input.ProductID))
		}
		return 0, err
	}
	if level.CurrentStock+qtyEpsilon < input.Quantity {
		return 0, &InsufficientStockError{
			Resource:  resourceName(input.ProductName, input.ProductID),
			Requested: input.Quantity,
			Available: level.CurrentStock,
		}
	}
	newStock, err := tx.DecrementInventoryLevel(ctx, input.VenueID, input.ProductID, input.Quantity)
	if err != nil {
		return 0, nameContention(err, resourceName(input.ProductName, input.ProductID))
	}
	// Snapshot derived from the atomic post-image, never from a stale read.
	movement := Movement{
		VenueID:       input.VenueID,
		ProductID:     input.ProductID,
		Type:          MovementTypeUsage,
		Quantity:      -input.Quantity,
		PreviousStock: newStock + input.Quantity,
		NewStock:      newStock,
		Reference:     input.Reference,
		Reason:        input.Reason,
		CreatedBy:     input.ActorID,
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return 0, err
	}
	return newStock, nil
}

// RestockInput describes an inbound receipt lot.
type RestockInput struct {
	VenueID       int64
	RawMaterialID int64
	Quantity      float64
	CostPerUnit   float64
	ReceivedDate  time.Time
	Reason        string
	ActorID       int64
}

// Restock creates a batch, bumps the cached stock and recomputes the weighted
// average cost, all inside its own transaction.
func (s *Service) Restock(ctx context.Context, input RestockInput) (StockBatch, error) {
	if input.Quantity <= 0 {
		return StockBatch{}, ErrInvalidQuantity
	}
	if input.CostPerUnit < 0 {
		return StockBatch{}, ErrInvalidUnitCost
	}
	if input.ReceivedDate.IsZero() {
		input.ReceivedDate = time.Now().UTC()
	}
	var created StockBatch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		material, err := tx.GetRawMaterialForUpdate(ctx, input.VenueID, input.RawMaterialID)
		if err != nil {
			return err
		}
		created, err = tx.InsertBatch(ctx, StockBatch{
			VenueID:         input.VenueID,
			RawMaterialID:   input.RawMaterialID,
			InitialQuantity: input.Quantity,
			CostPerUnit:     input.CostPerUnit,
			ReceivedDate:    input.ReceivedDate,
		})
		if err != nil {
			return err
		}
		newStock := material.CurrentStock + input.Quantity
		newAvg := input.CostPerUnit
		if newStock > qtyEpsilon {
			newAvg = (material.CurrentStock*material.AvgCostPerUnit + input.Quantity*input.CostPerUnit) / newStock
		}
		if err := tx.UpdateRawMaterialStock(ctx, input.VenueID, input.RawMaterialID, newStock, newAvg); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			VenueID:       input.VenueID,
			RawMaterialID: input.RawMaterialID,
			Type:          MovementTypeRestock,
			Quantity:      input.Quantity,
			PreviousStock: material.CurrentStock,
			NewStock:      newStock,
			UnitCost:      input.CostPerUnit,
			Reason:        input.Reason,
			CreatedBy:     input.ActorID,
		})
	})
	if err != nil {
		return StockBatch{}, err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:RESTOCK", input.RawMaterialID, map[string]any{
		"venue_id": input.VenueID,
		"qty":      input.Quantity,
		"cost":     input.CostPerUnit,
	})
	return created, nil
}

// AdjustInput describes a signed manual correction with a mandatory reason.
type AdjustInput struct {
	VenueID       int64
	RawMaterialID int64
	Quantity      float64
	Reason        string
	ActorID       int64
}

// Adjust posts a manual correction. Negative adjustments consume FIFO so the
// batch invariant holds; positive adjustments enter as a synthetic batch at
// the current average cost.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) error {
	if input.Quantity > -qtyEpsilon && input.Quantity < qtyEpsilon {
		return ErrInvalidQuantity
	}
	if input.Reason == "" {
		return fmt.Errorf("%w: adjustment reason is required", httpx.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.Quantity < 0 {
			_, err := s.ConsumeFIFO(ctx, tx, ConsumeInput{
				VenueID:       input.VenueID,
				RawMaterialID: input.RawMaterialID,
				Quantity:      -input.Quantity,
				Type:          MovementTypeAdjustment,
				Reason:        input.Reason,
				ActorID:       input.ActorID,
			})
			return err
		}
		material, err := tx.GetRawMaterialForUpdate(ctx, input.VenueID, input.RawMaterialID)
		if err != nil {
			return err
		}
		cost := material.AvgCostPerUnit
		if cost == 0 {
			cost = material.CostPerUnit
		}
		if _, err := tx.InsertBatch(ctx, StockBatch{
			VenueID:         input.VenueID,
			RawMaterialID:   input.RawMaterialID,
			InitialQuantity: input.Quantity,
			CostPerUnit:     cost,
			ReceivedDate:    time.Now().UTC(),
		}); err != nil {
			return err
		}
		newStock := material.CurrentStock + input.Quantity
		if err := tx.UpdateRawMaterialStock(ctx, input.VenueID, input.RawMaterialID, newStock, material.AvgCostPerUnit); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			VenueID:       input.VenueID,
			RawMaterialID: input.RawMaterialID,
			Type:          MovementTypeAdjustment,
			Quantity:      input.Quantity,
			PreviousStock: material.CurrentStock,
			NewStock:      newStock,
			UnitCost:      cost,
			Reason:        input.Reason,
			CreatedBy:     input.ActorID,
		})
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:ADJUSTMENT", input.RawMaterialID, map[string]any{
		"venue_id": input.VenueID,
		"qty":      input.Quantity,
		"reason":   input.Reason,
	})
	return nil
}

// SetInventoryLevel configures or restocks the quantity ledger of a
// QUANTITY-method product.
func (s *Service) SetInventoryLevel(ctx context.Context, venueID, productID int64, stock, minimum float64, actorID int64) error {
	if stock < 0 || minimum < 0 {
		return ErrInvalidQuantity
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		previous := 0.0
		if level, err := tx.GetInventoryLevel(ctx, venueID, productID); err == nil {
			previous = level.CurrentStock
		} else if !errors.Is(err, ErrInventoryNotConfigured) {
			return err
		}
		if err := tx.UpsertInventoryLevel(ctx, InventoryLevel{
			VenueID:      venueID,
			ProductID:    productID,
			CurrentStock: stock,
			MinimumStock: minimum,
		}); err != nil {
			return err
		}
		if stock == previous {
			return nil
		}
		return tx.InsertMovement(ctx, Movement{
			VenueID:       venueID,
			ProductID:     productID,
			Type:          MovementTypeAdjustment,
			Quantity:      stock - previous,
			PreviousStock: previous,
			NewStock:      stock,
			Reason:        "inventory level set",
			CreatedBy:     actorID,
		})
	})
}

// CreateRawMaterialInput is the write DTO for ingredients.
type CreateRawMaterialInput struct {
	VenueID      int64
	SKU          string
	Name         string
	Unit         string
	MinimumStock float64
	ReorderPoint float64
	CostPerUnit  float64
}

// CreateRawMaterial registers an ingredient with zero opening stock; stock
// arrives through Restock.
func (s *Service) CreateRawMaterial(ctx context.Context, input CreateRawMaterialInput) (RawMaterial, error) {
	if input.Name == "" {
		return RawMaterial{}, fmt.Errorf("%w: raw material name is required", httpx.ErrValidation)
	}
	unit, err := units.Parse(input.Unit)
	if err != nil {
		return RawMaterial{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if input.CostPerUnit < 0 {
		return RawMaterial{}, ErrInvalidUnitCost
	}
	return s.repo.CreateRawMaterial(ctx, RawMaterial{
		VenueID:      input.VenueID,
		SKU:          input.SKU,
		Name:         input.Name,
		Unit:         unit,
		MinimumStock: input.MinimumStock,
		ReorderPoint: input.ReorderPoint,
		CostPerUnit:  input.CostPerUnit,
	})
}

// GetRawMaterial returns one ingredient.
func (s *Service) GetRawMaterial(ctx context.Context, venueID, rawMaterialID int64) (RawMaterial, error) {
	return s.repo.GetRawMaterial(ctx, venueID, rawMaterialID)
}

// ListRawMaterials returns a venue's ingredients.
func (s *Service) ListRawMaterials(ctx context.Context, venueID int64) ([]RawMaterial, error) {
	return s.repo.ListRawMaterials(ctx, venueID)
}

// ListBelowReorderPoint returns ingredients at or below their reorder point.
func (s *Service) ListBelowReorderPoint(ctx context.Context, venueID int64) ([]RawMaterial, error) {
	return s.repo.ListBelowReorderPoint(ctx, venueID)
}

// GetInventoryLevel returns a product's quantity ledger row.
func (s *Service) GetInventoryLevel(ctx context.Context, venueID, productID int64) (InventoryLevel, error) {
	return s.repo.GetInventoryLevel(ctx, venueID, productID)
}

// ListMovements pages the append-only ledger.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "raw_material",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}

func validateReference(ref string) error {
	if ref == "" {
		return nil
	}
	if _, err := uuid.Parse(ref); err != nil {
		return fmt.Errorf("inventory: invalid order reference: %w", err)
	}
	return nil
}

// nameContention rewrites a contention error raised by the repository with a
// human resource name for the caller's error message.
func nameContention(err error, name string) error {
	var insufficient *InsufficientStockError
	if errors.As(err, &insufficient) && insufficient.Contention {
		return &InsufficientStockError{Resource: name, Contention: true}
	}
	return err
}

func resourceName(name string, id int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("product %d", id)
}
