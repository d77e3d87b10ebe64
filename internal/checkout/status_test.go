package checkout

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Joseamica/avoqado-server-sub011/internal/catalog"
	"github.com/Joseamica/avoqado-server-sub011/internal/inventory"
	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

func newCachedFixture(t *testing.T) (*fixture, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture()
	f.service = NewService(f.orders, f.catalog, f.inventory, f.idem, nil, client, slog.Default())
	return f, mr
}

func TestStatusUntrackedProductIsAvailable(t *testing.T) {
	f := newFixture()
	f.catalog.products[1] = catalog.Product{ID: 1, VenueID: 1, Name: "Bottled Water", TrackInventory: false}

	status := f.service.GetInventoryStatus(context.Background(), 1, 1)
	require.Equal(t, catalog.MethodNone, status.Method)
	require.True(t, status.Available)
	require.Nil(t, status.CurrentStock)
	require.Nil(t, status.MaxPortions)
}

func TestStatusQuantityProduct(t *testing.T) {
	f := newFixture()
	f.catalog.products[1] = catalog.Product{ID: 1, VenueID: 1, Name: "Cola Can", TrackInventory: true, InventoryMethod: catalog.MethodQuantity}
	f.inventory.levels[1] = inventory.InventoryLevel{ProductID: 1, VenueID: 1, CurrentStock: 7}

	status := f.service.GetInventoryStatus(context.Background(), 1, 1)
	require.Equal(t, catalog.MethodQuantity, status.Method)
	require.True(t, status.Available)
	require.NotNil(t, status.CurrentStock)
	require.InDelta(t, 7, *status.CurrentStock, 1e-9)
}

func TestStatusRecipeBottleneck(t *testing.T) {
	f := newFixture()
	f.catalog.products[1] = catalog.Product{ID: 1, VenueID: 1, Name: "Burger", TrackInventory: true, InventoryMethod: catalog.MethodRecipe}
	f.material(10, "Beef Patty", units.UnitKilogram, 2.0)  // 0.2/portion -> 10 portions
	f.material(11, "Burger Bun", units.UnitPiece, 4)       // 1/portion  -> 4 portions
	f.material(12, "Pickles", units.UnitGram, 50)          // optional, ignored
	f.catalog.recipes[1] = catalog.Recipe{ProductID: 1, Lines: []catalog.RecipeLine{
		{RawMaterialID: 10, Quantity: 0.2, Unit: units.UnitKilogram},
		{RawMaterialID: 11, Quantity: 1, Unit: units.UnitPiece},
		{RawMaterialID: 12, Quantity: 10, Unit: units.UnitGram, IsOptional: true},
	}}

	status := f.service.GetInventoryStatus(context.Background(), 1, 1)
	require.Equal(t, catalog.MethodRecipe, status.Method)
	require.True(t, status.Available)
	require.NotNil(t, status.MaxPortions)
	require.Equal(t, 4, *status.MaxPortions)
	require.Equal(t, "Burger Bun", status.LimitingIngredient)
}

func TestStatusRecipeExhaustedIngredient(t *testing.T) {
	f := newFixture()
	f.catalog.products[1] = catalog.Product{ID: 1, VenueID: 1, Name: "Burger", TrackInventory: true, InventoryMethod: catalog.MethodRecipe}
	f.material(10, "Beef Patty", units.UnitKilogram, 0.1)
	f.catalog.recipes[1] = catalog.Recipe{ProductID: 1, Lines: []catalog.RecipeLine{
		{RawMaterialID: 10, Quantity: 0.2, Unit: units.UnitKilogram},
	}}

	status := f.service.GetInventoryStatus(context.Background(), 1, 1)
	require.False(t, status.Available)
	require.NotNil(t, status.MaxPortions)
	require.Zero(t, *status.MaxPortions)
	require.Equal(t, "Beef Patty", status.LimitingIngredient)
}

func TestStatusDegradesToUnavailableOnError(t *testing.T) {
	f := newFixture()
	// Unknown product, missing inventory row, missing recipe: all advisory
	// failures, none may propagate an error to the caller.
	status := f.service.GetInventoryStatus(context.Background(), 1, 404)
	require.False(t, status.Available)

	f.catalog.products[2] = catalog.Product{ID: 2, VenueID: 1, TrackInventory: true, InventoryMethod: catalog.MethodQuantity}
	require.False(t, f.service.GetInventoryStatus(context.Background(), 1, 2).Available)

	f.catalog.products[3] = catalog.Product{ID: 3, VenueID: 1, TrackInventory: true, InventoryMethod: catalog.MethodRecipe}
	require.False(t, f.service.GetInventoryStatus(context.Background(), 1, 3).Available)
}

func TestStatusIsCached(t *testing.T) {
	f, mr := newCachedFixture(t)
	f.catalog.products[1] = catalog.Product{ID: 1, VenueID: 1, Name: "Cola Can", TrackInventory: true, InventoryMethod: catalog.MethodQuantity}
	f.inventory.levels[1] = inventory.InventoryLevel{ProductID: 1, VenueID: 1, CurrentStock: 7}
	ctx := context.Background()

	first := f.service.GetInventoryStatus(ctx, 1, 1)
	require.InDelta(t, 7, *first.CurrentStock, 1e-9)

	// A direct mutation is invisible until the cache entry expires.
	f.inventory.levels[1] = inventory.InventoryLevel{ProductID: 1, VenueID: 1, CurrentStock: 1}
	cached := f.service.GetInventoryStatus(ctx, 1, 1)
	require.InDelta(t, 7, *cached.CurrentStock, 1e-9)

	mr.FastForward(statusTTL * 2)
	fresh := f.service.GetInventoryStatus(ctx, 1, 1)
	require.InDelta(t, 1, *fresh.CurrentStock, 1e-9)
}

func TestStatusInvalidatedAfterDeduction(t *testing.T) {
	f, _ := newCachedFixture(t)
	f.catalog.products[1] = catalog.Product{ID: 1, VenueID: 1, Name: "Cola Can", TrackInventory: true, InventoryMethod: catalog.MethodQuantity}
	f.inventory.levels[1] = inventory.InventoryLevel{ProductID: 1, VenueID: 1, CurrentStock: 10}
	ctx := context.Background()

	warm := f.service.GetInventoryStatus(ctx, 1, 1)
	require.InDelta(t, 10, *warm.CurrentStock, 1e-9)

	order, err := f.service.CreateOrder(ctx, CreateOrderInput{
		VenueID: 1,
		Total:   40,
		Lines:   []OrderLine{{ProductID: 1, ProductName: "Cola Can", Quantity: 4}},
	})
	require.NoError(t, err)
	_, err = f.service.RecordPayment(ctx, RecordPaymentInput{VenueID: 1, OrderID: order.ID, Amount: 40})
	require.NoError(t, err)

	after := f.service.GetInventoryStatus(ctx, 1, 1)
	require.InDelta(t, 6, *after.CurrentStock, 1e-9)
}
