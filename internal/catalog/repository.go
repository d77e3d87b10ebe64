package catalog

import "context"

// Repository abstracts catalog persistence for the service and the checkout
// engine. Reads are venue-scoped on every query; callers are trusted to have
// authenticated the venue already.
type Repository interface {
	GetProduct(ctx context.Context, venueID, productID int64) (Product, error)
	ListProducts(ctx context.Context, venueID int64) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error

	HasRecipe(ctx context.Context, venueID, productID int64) (bool, error)
	GetRecipeByProduct(ctx context.Context, venueID, productID int64) (Recipe, error)
	SaveRecipe(ctx context.Context, recipe Recipe) (Recipe, error)

	GetModifiers(ctx context.Context, venueID int64, ids []int64) ([]Modifier, error)
	SaveModifier(ctx context.Context, m Modifier) (Modifier, error)
}
