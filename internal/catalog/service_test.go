package catalog

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

type memoryCatalog struct {
	products  map[int64]Product
	recipes   map[int64]Recipe
	modifiers map[int64]Modifier
	nextID    int64
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		products:  make(map[int64]Product),
		recipes:   make(map[int64]Recipe),
		modifiers: make(map[int64]Modifier),
	}
}

func (r *memoryCatalog) GetProduct(ctx context.Context, venueID, productID int64) (Product, error) {
	p, ok := r.products[productID]
	if !ok || p.VenueID != venueID {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryCatalog) ListProducts(ctx context.Context, venueID int64) ([]Product, error) {
	var out []Product
	for _, p := range r.products {
		if p.VenueID == venueID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryCatalog) CreateProduct(ctx context.Context, p Product) (Product, error) {
	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = p
	return p, nil
}

func (r *memoryCatalog) UpdateProduct(ctx context.Context, p Product) error {
	if _, ok := r.products[p.ID]; !ok {
		return ErrProductNotFound
	}
	r.products[p.ID] = p
	return nil
}

func (r *memoryCatalog) HasRecipe(ctx context.Context, venueID, productID int64) (bool, error) {
	_, ok := r.recipes[productID]
	return ok, nil
}

func (r *memoryCatalog) GetRecipeByProduct(ctx context.Context, venueID, productID int64) (Recipe, error) {
	recipe, ok := r.recipes[productID]
	if !ok {
		return Recipe{}, ErrRecipeNotFound
	}
	return recipe, nil
}

func (r *memoryCatalog) SaveRecipe(ctx context.Context, recipe Recipe) (Recipe, error) {
	r.nextID++
	recipe.ID = r.nextID
	r.recipes[recipe.ProductID] = recipe
	return recipe, nil
}

func (r *memoryCatalog) GetModifiers(ctx context.Context, venueID int64, ids []int64) ([]Modifier, error) {
	var out []Modifier
	for _, id := range ids {
		if m, ok := r.modifiers[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryCatalog) SaveModifier(ctx context.Context, m Modifier) (Modifier, error) {
	if m.ID == 0 {
		r.nextID++
		m.ID = r.nextID
	}
	r.modifiers[m.ID] = m
	return m, nil
}

type unitLookup map[int64]units.Unit

func (l unitLookup) GetRawMaterialUnit(ctx context.Context, venueID, rawMaterialID int64) (units.Unit, error) {
	return l[rawMaterialID], nil
}

func newTestService(lookup RawMaterialLookup) (*Service, *memoryCatalog) {
	repo := newMemoryCatalog()
	return NewService(repo, lookup, slog.Default()), repo
}

func TestSaveRecipeRejectsDimensionMismatch(t *testing.T) {
	svc, _ := newTestService(unitLookup{10: units.UnitGram})
	_, err := svc.SaveRecipe(context.Background(), SaveRecipeInput{
		VenueID:   1,
		ProductID: 2,
		Lines: []RecipeLineInput{
			{RawMaterialID: 10, Quantity: 0.15, Unit: "L"},
		},
	})
	require.Error(t, err)
	var incompatible *units.IncompatibleUnitsError
	require.ErrorAs(t, err, &incompatible)
}

func TestSaveRecipeConvertibleUnits(t *testing.T) {
	svc, repo := newTestService(unitLookup{10: units.UnitGram})
	recipe, err := svc.SaveRecipe(context.Background(), SaveRecipeInput{
		VenueID:   1,
		ProductID: 2,
		Lines: []RecipeLineInput{
			{RawMaterialID: 10, Quantity: 0.2, Unit: "kg"},
		},
	})
	require.NoError(t, err)
	require.Len(t, recipe.Lines, 1)
	require.Equal(t, units.UnitKilogram, recipe.Lines[0].Unit)
	require.Equal(t, 1, recipe.Lines[0].SortOrder)
	require.Contains(t, repo.recipes, int64(2))
}

func TestSaveRecipeVariableLineRequiresGroup(t *testing.T) {
	svc, _ := newTestService(unitLookup{10: units.UnitMilliliter})
	_, err := svc.SaveRecipe(context.Background(), SaveRecipeInput{
		VenueID:   1,
		ProductID: 2,
		Lines: []RecipeLineInput{
			{RawMaterialID: 10, Quantity: 0.15, Unit: "L", IsVariable: true},
		},
	})
	require.Error(t, err)
}

func TestSaveModifierSubstitutionRequiresPayload(t *testing.T) {
	svc, _ := newTestService(unitLookup{})
	_, err := svc.SaveModifier(context.Background(), SaveModifierInput{
		VenueID:       1,
		GroupID:       5,
		Name:          "Almond Milk",
		InventoryMode: ModeSubstitution,
	})
	require.Error(t, err)
}

func TestSaveModifierRejectsPartialPayload(t *testing.T) {
	svc, _ := newTestService(unitLookup{7: units.UnitGram})
	_, err := svc.SaveModifier(context.Background(), SaveModifierInput{
		VenueID:       1,
		GroupID:       5,
		Name:          "Extra Bacon",
		InventoryMode: ModeAddition,
		RawMaterialID: 7,
		// QuantityPerUnit missing
	})
	require.Error(t, err)
}

func TestSaveModifierAdditionWithoutStockEffect(t *testing.T) {
	// Purely cosmetic additions (e.g. "no ice") are legal with no payload.
	svc, _ := newTestService(unitLookup{})
	m, err := svc.SaveModifier(context.Background(), SaveModifierInput{
		VenueID:       1,
		GroupID:       5,
		Name:          "No Ice",
		InventoryMode: ModeAddition,
	})
	require.NoError(t, err)
	require.False(t, m.TracksStock())
}

func TestSaveModifierValidPayload(t *testing.T) {
	svc, _ := newTestService(unitLookup{7: units.UnitGram})
	m, err := svc.SaveModifier(context.Background(), SaveModifierInput{
		VenueID:         1,
		GroupID:         5,
		Name:            "Extra Bacon",
		InventoryMode:   ModeAddition,
		RawMaterialID:   7,
		QuantityPerUnit: 0.03,
		Unit:            "kg",
	})
	require.NoError(t, err)
	require.True(t, m.TracksStock())
	require.Equal(t, units.UnitKilogram, m.Unit)
}
