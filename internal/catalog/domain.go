package catalog

import (
	"fmt"
	"time"

	"github.com/Joseamica/avoqado-server-sub011/internal/platform/httpx"
	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

// Method enumerates how a product's stock is tracked.
type Method string

const (
	// MethodNone means the product has no ledger effect.
	MethodNone Method = "NONE"
	// MethodQuantity tracks a direct per-product count.
	MethodQuantity Method = "QUANTITY"
	// MethodRecipe tracks consumption through a bill of materials.
	MethodRecipe Method = "RECIPE"
)

// ModifierMode is the closed variant describing a modifier's ledger effect.
type ModifierMode string

const (
	// ModeAddition consumes stock on top of the base recipe.
	ModeAddition ModifierMode = "ADDITION"
	// ModeSubstitution replaces a variable recipe line's default ingredient.
	ModeSubstitution ModifierMode = "SUBSTITUTION"
)

// Product is a sale item. InventoryMethod may be empty on rows created before
// the explicit field existed; ResolveMethod handles that case.
type Product struct {
	ID              int64     `json:"id"`
	VenueID         int64     `json:"venue_id"`
	SKU             string    `json:"sku"`
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	TrackInventory  bool      `json:"track_inventory"`
	InventoryMethod Method    `json:"inventory_method,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Recipe is the bill of materials for exactly one product.
type Recipe struct {
	ID        int64        `json:"id"`
	VenueID   int64        `json:"venue_id"`
	ProductID int64        `json:"product_id"`
	Lines     []RecipeLine `json:"lines"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RecipeLine states one ingredient requirement per single portion. A variable
// line carries a default raw material that a SUBSTITUTION modifier from the
// linked group may override at sale time.
type RecipeLine struct {
	ID              int64      `json:"id"`
	RecipeID        int64      `json:"recipe_id"`
	RawMaterialID   int64      `json:"raw_material_id"`
	Quantity        float64    `json:"quantity"`
	Unit            units.Unit `json:"unit"`
	IsVariable      bool       `json:"is_variable"`
	ModifierGroupID int64      `json:"modifier_group_id,omitempty"`
	IsOptional      bool       `json:"is_optional"`
	SortOrder       int        `json:"sort_order"`
}

// Modifier is a selectable add-on or variant inside a modifier group.
type Modifier struct {
	ID              int64        `json:"id"`
	VenueID         int64        `json:"venue_id"`
	GroupID         int64        `json:"group_id"`
	Name            string       `json:"name"`
	InventoryMode   ModifierMode `json:"inventory_mode"`
	RawMaterialID   int64        `json:"raw_material_id,omitempty"`
	QuantityPerUnit float64      `json:"quantity_per_unit,omitempty"`
	Unit            units.Unit   `json:"unit,omitempty"`
	IsActive        bool         `json:"is_active"`
}

// TracksStock reports whether selecting the modifier touches the ledger.
func (m Modifier) TracksStock() bool {
	return m.RawMaterialID != 0 && m.QuantityPerUnit > 0
}

// ErrProductNotFound indicates the product row no longer exists.
var ErrProductNotFound = fmt.Errorf("catalog: product %w", httpx.ErrNotFound)

// ErrRecipeNotFound indicates the product has no recipe.
var ErrRecipeNotFound = fmt.Errorf("catalog: recipe %w", httpx.ErrNotFound)

// ErrModifierNotFound indicates an unknown modifier id.
var ErrModifierNotFound = fmt.Errorf("catalog: modifier %w", httpx.ErrNotFound)
