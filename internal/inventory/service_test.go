package inventory

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

type memoryRepo struct {
	materials map[int64]RawMaterial
	batches   map[int64]StockBatch
	levels    map[int64]InventoryLevel
	movements []Movement
	locked    map[int64]bool
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		materials: make(map[int64]RawMaterial),
		batches:   make(map[int64]StockBatch),
		levels:    make(map[int64]InventoryLevel),
		locked:    make(map[int64]bool),
	}
}

func (r *memoryRepo) snapshot() *memoryRepo {
	clone := newMemoryRepo()
	for k, v := range r.materials {
		clone.materials[k] = v
	}
	for k, v := range r.batches {
		clone.batches[k] = v
	}
	for k, v := range r.levels {
		clone.levels[k] = v
	}
	clone.movements = append(clone.movements, r.movements...)
	clone.nextID = r.nextID
	return clone
}

func (r *memoryRepo) restore(from *memoryRepo) {
	r.materials = from.materials
	r.batches = from.batches
	r.levels = from.levels
	r.movements = from.movements
	r.nextID = from.nextID
}

// WithTx mimics transactional rollback: on error every mutation made through
// the tx is discarded.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.restore(before)
		return err
	}
	return nil
}

func (r *memoryRepo) GetRawMaterial(ctx context.Context, venueID, id int64) (RawMaterial, error) {
	m, ok := r.materials[id]
	if !ok || m.VenueID != venueID {
		return RawMaterial{}, ErrRawMaterialNotFound
	}
	return m, nil
}

func (r *memoryRepo) ListRawMaterials(ctx context.Context, venueID int64) ([]RawMaterial, error) {
	var out []RawMaterial
	for _, m := range r.materials {
		if m.VenueID == venueID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListBelowReorderPoint(ctx context.Context, venueID int64) ([]RawMaterial, error) {
	var out []RawMaterial
	for _, m := range r.materials {
		if m.VenueID == venueID && m.ReorderPoint > 0 && m.CurrentStock <= m.ReorderPoint {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateRawMaterial(ctx context.Context, m RawMaterial) (RawMaterial, error) {
	r.nextID++
	m.ID = r.nextID
	m.IsActive = true
	m.AvgCostPerUnit = m.CostPerUnit
	r.materials[m.ID] = m
	return m, nil
}

func (r *memoryRepo) GetInventoryLevel(ctx context.Context, venueID, productID int64) (InventoryLevel, error) {
	level, ok := r.levels[productID]
	if !ok || level.VenueID != venueID {
		return InventoryLevel{}, ErrInventoryNotConfigured
	}
	return level, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if filter.RawMaterialID != 0 && m.RawMaterialID != filter.RawMaterialID {
			continue
		}
		if filter.ProductID != 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (tx *memoryTx) GetRawMaterialForUpdate(ctx context.Context, venueID, id int64) (RawMaterial, error) {
	if tx.repo.locked[id] {
		return RawMaterial{}, &InsufficientStockError{Resource: "raw material", Contention: true}
	}
	return tx.repo.GetRawMaterial(ctx, venueID, id)
}

func (tx *memoryTx) ListActiveBatchesForUpdate(ctx context.Context, venueID, rawMaterialID int64) ([]StockBatch, error) {
	var out []StockBatch
	for _, b := range tx.repo.batches {
		if b.VenueID == venueID && b.RawMaterialID == rawMaterialID && b.Status == BatchStatusActive {
			out = append(out, b)
		}
	}
	// FIFO order: received date, then creation order.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].ReceivedDate.Before(out[i].ReceivedDate) ||
				(out[j].ReceivedDate.Equal(out[i].ReceivedDate) && out[j].ID < out[i].ID) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (tx *memoryTx) UpdateBatch(ctx context.Context, batchID int64, remaining float64, status BatchStatus) error {
	b, ok := tx.repo.batches[batchID]
	if !ok {
		return errors.New("batch not found")
	}
	b.RemainingQuantity = remaining
	b.Status = status
	tx.repo.batches[batchID] = b
	return nil
}

func (tx *memoryTx) InsertBatch(ctx context.Context, batch StockBatch) (StockBatch, error) {
	tx.repo.nextID++
	batch.ID = tx.repo.nextID
	batch.RemainingQuantity = batch.InitialQuantity
	batch.Status = BatchStatusActive
	batch.CreatedAt = time.Now()
	tx.repo.batches[batch.ID] = batch
	return batch, nil
}

func (tx *memoryTx) UpdateRawMaterialStock(ctx context.Context, venueID, id int64, currentStock, avgCost float64) error {
	m, ok := tx.repo.materials[id]
	if !ok {
		return ErrRawMaterialNotFound
	}
	m.CurrentStock = currentStock
	m.AvgCostPerUnit = avgCost
	tx.repo.materials[id] = m
	return nil
}

func (tx *memoryTx) DecrementInventoryLevel(ctx context.Context, venueID, productID int64, quantity float64) (float64, error) {
	level, ok := tx.repo.levels[productID]
	if !ok {
		return 0, ErrInventoryNotConfigured
	}
	if level.CurrentStock < quantity {
		return 0, &InsufficientStockError{Resource: "product", Requested: quantity, Available: level.CurrentStock}
	}
	level.CurrentStock -= quantity
	tx.repo.levels[productID] = level
	return level.CurrentStock, nil
}

func (tx *memoryTx) GetInventoryLevel(ctx context.Context, venueID, productID int64) (InventoryLevel, error) {
	return tx.repo.GetInventoryLevel(ctx, venueID, productID)
}

func (tx *memoryTx) UpsertInventoryLevel(ctx context.Context, level InventoryLevel) error {
	tx.repo.levels[level.ProductID] = level
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement Movement) error {
	tx.repo.nextID++
	movement.ID = tx.repo.nextID
	movement.CreatedAt = time.Now()
	tx.repo.movements = append(tx.repo.movements, movement)
	return nil
}

func seedMaterial(repo *memoryRepo, id int64, name string, unit units.Unit) {
	repo.materials[id] = RawMaterial{ID: id, VenueID: 1, Name: name, Unit: unit, IsActive: true}
	if id > repo.nextID {
		repo.nextID = id
	}
}

func seedBatch(repo *memoryRepo, rawMaterialID int64, qty, cost float64, received time.Time) StockBatch {
	repo.nextID++
	b := StockBatch{
		ID:                repo.nextID,
		VenueID:           1,
		RawMaterialID:     rawMaterialID,
		InitialQuantity:   qty,
		RemainingQuantity: qty,
		CostPerUnit:       cost,
		ReceivedDate:      received,
		Status:            BatchStatusActive,
		CreatedAt:         time.Now(),
	}
	repo.batches[b.ID] = b
	m := repo.materials[rawMaterialID]
	m.CurrentStock += qty
	repo.materials[rawMaterialID] = m
	return b
}

func batchLedgerSum(repo *memoryRepo, rawMaterialID int64) float64 {
	sum := 0.0
	for _, b := range repo.batches {
		if b.RawMaterialID == rawMaterialID && b.Status == BatchStatusActive {
			sum += b.RemainingQuantity
		}
	}
	return sum
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, slog.Default())
}

func TestConsumeFIFOOrdering(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Coffee Beans", units.UnitGram)
	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	b1 := seedBatch(repo, 1, 5, 10, day1)
	b2 := seedBatch(repo, 1, 5, 12, day2)

	svc := newTestService(repo)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		result, err := svc.ConsumeFIFO(ctx, tx, ConsumeInput{VenueID: 1, RawMaterialID: 1, Quantity: 7})
		require.NoError(t, err)
		require.InDelta(t, 7, result.QuantityConsumed, qtyEpsilon)
		// 5 from the older batch at 10, 2 from the newer at 12.
		require.InDelta(t, 5*10+2*12, result.WeightedCost, 1e-6)
		return nil
	})
	require.NoError(t, err)

	require.InDelta(t, 0, repo.batches[b1.ID].RemainingQuantity, qtyEpsilon)
	require.Equal(t, BatchStatusExhausted, repo.batches[b1.ID].Status)
	require.InDelta(t, 3, repo.batches[b2.ID].RemainingQuantity, qtyEpsilon)
	require.Equal(t, BatchStatusActive, repo.batches[b2.ID].Status)

	material := repo.materials[1]
	require.InDelta(t, 3, material.CurrentStock, qtyEpsilon)
	require.InDelta(t, 12, material.AvgCostPerUnit, 1e-6)
	require.InDelta(t, batchLedgerSum(repo, 1), material.CurrentStock, qtyEpsilon)
}

func TestConsumeFIFOTieBreaksByCreationOrder(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Flour", units.UnitGram)
	sameDay := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	first := seedBatch(repo, 1, 4, 50, sameDay)
	second := seedBatch(repo, 1, 4, 5, sameDay)

	svc := newTestService(repo)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		result, err := svc.ConsumeFIFO(ctx, tx, ConsumeInput{VenueID: 1, RawMaterialID: 1, Quantity: 4})
		require.NoError(t, err)
		// Creation order wins over the cheaper batch.
		require.InDelta(t, 4*50, result.WeightedCost, 1e-6)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, BatchStatusExhausted, repo.batches[first.ID].Status)
	require.Equal(t, BatchStatusActive, repo.batches[second.ID].Status)
}

func TestConsumeFIFOInsufficientLeavesBatchesUntouched(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Beef Patty", units.UnitKilogram)
	b := seedBatch(repo, 1, 5, 80, time.Now())

	svc := newTestService(repo)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.ConsumeFIFO(ctx, tx, ConsumeInput{VenueID: 1, RawMaterialID: 1, Quantity: 10})
		return err
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "Beef Patty", insufficient.Resource)
	require.InDelta(t, 10, insufficient.Requested, qtyEpsilon)
	require.InDelta(t, 5, insufficient.Available, qtyEpsilon)

	require.InDelta(t, 5, repo.batches[b.ID].RemainingQuantity, qtyEpsilon)
	require.InDelta(t, 5, repo.materials[1].CurrentStock, qtyEpsilon)
	require.Empty(t, repo.movements)
}

func TestConsumeFIFOWritesOneSummaryMovement(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Milk", units.UnitMilliliter)
	seedBatch(repo, 1, 100, 0.02, time.Now().Add(-48*time.Hour))
	seedBatch(repo, 1, 100, 0.03, time.Now())

	orderRef := "0b502cbd-61f5-4bd2-8df3-650b4d9bfc24"
	svc := newTestService(repo)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.ConsumeFIFO(ctx, tx, ConsumeInput{VenueID: 1, RawMaterialID: 1, Quantity: 150, Reference: orderRef, ActorID: 9})
		return err
	})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
	m := repo.movements[0]
	require.Equal(t, MovementTypeUsage, m.Type)
	require.InDelta(t, -150, m.Quantity, qtyEpsilon)
	require.InDelta(t, 200, m.PreviousStock, qtyEpsilon)
	require.InDelta(t, 50, m.NewStock, qtyEpsilon)
	require.Equal(t, orderRef, m.Reference)
	require.Equal(t, int64(9), m.CreatedBy)
}

func TestConsumeFIFORejectsBadOrderReference(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Milk", units.UnitMilliliter)
	svc := newTestService(repo)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.ConsumeFIFO(ctx, tx, ConsumeInput{VenueID: 1, RawMaterialID: 1, Quantity: 1, Reference: "order-42"})
		return err
	})
	require.Error(t, err)
}

func TestConsumeFIFOContentionNamesMaterial(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Avocado", units.UnitPiece)
	repo.locked[1] = true

	svc := newTestService(repo)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.ConsumeFIFO(ctx, tx, ConsumeInput{VenueID: 1, RawMaterialID: 1, Quantity: 1})
		return err
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Contention)
}

func TestRestockRecomputesWeightedAverage(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Espresso Beans", units.UnitGram)
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Restock(ctx, RestockInput{VenueID: 1, RawMaterialID: 1, Quantity: 10, CostPerUnit: 100})
	require.NoError(t, err)
	_, err = svc.Restock(ctx, RestockInput{VenueID: 1, RawMaterialID: 1, Quantity: 5, CostPerUnit: 120})
	require.NoError(t, err)

	material := repo.materials[1]
	require.InDelta(t, 15, material.CurrentStock, qtyEpsilon)
	require.InDelta(t, 106.6667, material.AvgCostPerUnit, 1e-3)
	require.InDelta(t, batchLedgerSum(repo, 1), material.CurrentStock, qtyEpsilon)
	require.Len(t, repo.movements, 2)
	require.Equal(t, MovementTypeRestock, repo.movements[0].Type)
}

func TestAdjustNegativeConsumesFIFO(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Tomatoes", units.UnitKilogram)
	seedBatch(repo, 1, 8, 30, time.Now())

	svc := newTestService(repo)
	err := svc.Adjust(context.Background(), AdjustInput{VenueID: 1, RawMaterialID: 1, Quantity: -3, Reason: "spoilage", ActorID: 2})
	require.NoError(t, err)

	material := repo.materials[1]
	require.InDelta(t, 5, material.CurrentStock, qtyEpsilon)
	require.InDelta(t, batchLedgerSum(repo, 1), material.CurrentStock, qtyEpsilon)
	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementTypeAdjustment, repo.movements[0].Type)
	require.Equal(t, "spoilage", repo.movements[0].Reason)
}

func TestAdjustRequiresReason(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Tomatoes", units.UnitKilogram)
	svc := newTestService(repo)
	err := svc.Adjust(context.Background(), AdjustInput{VenueID: 1, RawMaterialID: 1, Quantity: -1})
	require.Error(t, err)
}

func TestDeductQuantity(t *testing.T) {
	repo := newMemoryRepo()
	repo.levels[7] = InventoryLevel{ProductID: 7, VenueID: 1, CurrentStock: 10}

	svc := newTestService(repo)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		remaining, err := svc.DeductQuantity(ctx, tx, DeductInput{VenueID: 1, ProductID: 7, ProductName: "Cola Can", Quantity: 4})
		require.NoError(t, err)
		require.InDelta(t, 6, remaining, qtyEpsilon)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
	require.InDelta(t, 10, repo.movements[0].PreviousStock, qtyEpsilon)
	require.InDelta(t, 6, repo.movements[0].NewStock, qtyEpsilon)
}

func TestDeductQuantityInsufficient(t *testing.T) {
	repo := newMemoryRepo()
	repo.levels[7] = InventoryLevel{ProductID: 7, VenueID: 1, CurrentStock: 2}

	svc := newTestService(repo)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.DeductQuantity(ctx, tx, DeductInput{VenueID: 1, ProductID: 7, ProductName: "Cola Can", Quantity: 4})
		return err
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "Cola Can", insufficient.Resource)
	require.InDelta(t, 2, insufficient.Available, qtyEpsilon)
	require.InDelta(t, 2, repo.levels[7].CurrentStock, qtyEpsilon)
	require.Empty(t, repo.movements)
}

func TestDeductQuantityMissingRowIsConfigurationDefect(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.DeductQuantity(ctx, tx, DeductInput{VenueID: 1, ProductID: 404, Quantity: 1})
		return err
	})
	require.ErrorIs(t, err, ErrInventoryNotConfigured)
}

func TestListMovementsFiltersByType(t *testing.T) {
	repo := newMemoryRepo()
	seedMaterial(repo, 1, "Espresso Beans", units.UnitGram)
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Restock(ctx, RestockInput{VenueID: 1, RawMaterialID: 1, Quantity: 10, CostPerUnit: 100})
	require.NoError(t, err)
	require.NoError(t, svc.Adjust(ctx, AdjustInput{VenueID: 1, RawMaterialID: 1, Quantity: -3, Reason: "spillage"}))

	all, err := svc.ListMovements(ctx, MovementFilter{VenueID: 1})
	require.NoError(t, err)
	require.Len(t, all, 2)

	restocks, err := svc.ListMovements(ctx, MovementFilter{VenueID: 1, Type: MovementTypeRestock})
	require.NoError(t, err)
	require.Len(t, restocks, 1)
	require.Equal(t, MovementTypeRestock, restocks[0].Type)

	adjustments, err := svc.ListMovements(ctx, MovementFilter{VenueID: 1, Type: MovementTypeAdjustment})
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	require.InDelta(t, -3, adjustments[0].Quantity, qtyEpsilon)
}

func TestSetInventoryLevelWritesAdjustmentMovement(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	require.NoError(t, svc.SetInventoryLevel(ctx, 1, 7, 20, 5, 3))
	require.InDelta(t, 20, repo.levels[7].CurrentStock, qtyEpsilon)
	require.Len(t, repo.movements, 1)
	require.InDelta(t, 20, repo.movements[0].Quantity, qtyEpsilon)

	// Setting the same stock again is movement-neutral.
	require.NoError(t, svc.SetInventoryLevel(ctx, 1, 7, 20, 5, 3))
	require.Len(t, repo.movements, 1)
}
