package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

// RawMaterialLookup resolves the stocking unit of a raw material so recipe and
// modifier configuration can be dimension-checked at write time instead of at
// the deduction path.
type RawMaterialLookup interface {
	GetRawMaterialUnit(ctx context.Context, venueID, rawMaterialID int64) (units.Unit, error)
}

// Service coordinates catalog writes and reads.
type Service struct {
	repo      Repository
	materials RawMaterialLookup
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo Repository, materials RawMaterialLookup, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		materials: materials,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// CreateProductInput is the write DTO for products.
type CreateProductInput struct {
	VenueID         int64   `validate:"required"`
	SKU             string  `validate:"required,max=64"`
	Name            string  `validate:"required,max=255"`
	Price           float64 `validate:"gte=0"`
	TrackInventory  bool
	InventoryMethod Method `validate:"omitempty,oneof=NONE QUANTITY RECIPE"`
}

// RecipeLineInput is one ingredient requirement in a recipe write.
type RecipeLineInput struct {
	RawMaterialID   int64   `validate:"required"`
	Quantity        float64 `validate:"gt=0"`
	Unit            string  `validate:"required"`
	IsVariable      bool
	ModifierGroupID int64 `validate:"required_if=IsVariable true"`
	IsOptional      bool
}

// SaveRecipeInput replaces a product's bill of materials.
type SaveRecipeInput struct {
	VenueID   int64             `validate:"required"`
	ProductID int64             `validate:"required"`
	Lines     []RecipeLineInput `validate:"required,min=1,dive"`
}

// SaveModifierInput writes a modifier with its strongly-typed consumption
// payload. The mode is a closed variant; dynamic JSON presets are not
// accepted.
type SaveModifierInput struct {
	ID              int64
	VenueID         int64        `validate:"required"`
	GroupID         int64        `validate:"required"`
	Name            string       `validate:"required,max=255"`
	InventoryMode   ModifierMode `validate:"required,oneof=ADDITION SUBSTITUTION"`
	RawMaterialID   int64
	QuantityPerUnit float64 `validate:"gte=0"`
	Unit            string
}

// CreateProduct validates and persists a product.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	if err := s.validate.Struct(input); err != nil {
		return Product{}, fmt.Errorf("catalog: invalid product: %w", err)
	}
	p := Product{
		VenueID:         input.VenueID,
		SKU:             input.SKU,
		Name:            input.Name,
		Price:           input.Price,
		TrackInventory:  input.TrackInventory,
		InventoryMethod: input.InventoryMethod,
		IsActive:        true,
	}
	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.logger.Info("product created",
		slog.Int64("venue_id", created.VenueID),
		slog.Int64("product_id", created.ID),
		slog.String("method", string(created.InventoryMethod)))
	return created, nil
}

// SaveRecipe validates every line against the raw material's stocking unit and
// replaces the product's recipe.
func (s *Service) SaveRecipe(ctx context.Context, input SaveRecipeInput) (Recipe, error) {
	if err := s.validate.Struct(input); err != nil {
		return Recipe{}, fmt.Errorf("catalog: invalid recipe: %w", err)
	}
	recipe := Recipe{VenueID: input.VenueID, ProductID: input.ProductID}
	for i, lineInput := range input.Lines {
		unit, err := units.Parse(lineInput.Unit)
		if err != nil {
			return Recipe{}, fmt.Errorf("catalog: recipe line %d: %w", i+1, err)
		}
		if err := s.checkDimension(ctx, input.VenueID, lineInput.RawMaterialID, unit); err != nil {
			return Recipe{}, fmt.Errorf("catalog: recipe line %d: %w", i+1, err)
		}
		recipe.Lines = append(recipe.Lines, RecipeLine{
			RawMaterialID:   lineInput.RawMaterialID,
			Quantity:        lineInput.Quantity,
			Unit:            unit,
			IsVariable:      lineInput.IsVariable,
			ModifierGroupID: lineInput.ModifierGroupID,
			IsOptional:      lineInput.IsOptional,
			SortOrder:       i + 1,
		})
	}
	return s.repo.SaveRecipe(ctx, recipe)
}

// SaveModifier validates the consumption payload at write time so the
// deduction path never meets a half-configured modifier.
func (s *Service) SaveModifier(ctx context.Context, input SaveModifierInput) (Modifier, error) {
	if err := s.validate.Struct(input); err != nil {
		return Modifier{}, fmt.Errorf("catalog: invalid modifier: %w", err)
	}
	m := Modifier{
		ID:            input.ID,
		VenueID:       input.VenueID,
		GroupID:       input.GroupID,
		Name:          input.Name,
		InventoryMode: input.InventoryMode,
		IsActive:      true,
	}
	consumes := input.RawMaterialID != 0 || input.QuantityPerUnit != 0 || input.Unit != ""
	if input.InventoryMode == ModeSubstitution && !consumes {
		return Modifier{}, fmt.Errorf("catalog: substitution modifier %q requires a raw material payload", input.Name)
	}
	if consumes {
		if input.RawMaterialID == 0 || input.QuantityPerUnit <= 0 || input.Unit == "" {
			return Modifier{}, fmt.Errorf("catalog: modifier %q has an incomplete consumption payload", input.Name)
		}
		unit, err := units.Parse(input.Unit)
		if err != nil {
			return Modifier{}, fmt.Errorf("catalog: modifier %q: %w", input.Name, err)
		}
		if err := s.checkDimension(ctx, input.VenueID, input.RawMaterialID, unit); err != nil {
			return Modifier{}, fmt.Errorf("catalog: modifier %q: %w", input.Name, err)
		}
		m.RawMaterialID = input.RawMaterialID
		m.QuantityPerUnit = input.QuantityPerUnit
		m.Unit = unit
	}
	return s.repo.SaveModifier(ctx, m)
}

// GetProduct returns a venue's product.
func (s *Service) GetProduct(ctx context.Context, venueID, productID int64) (Product, error) {
	return s.repo.GetProduct(ctx, venueID, productID)
}

// ListProducts returns all of a venue's products.
func (s *Service) ListProducts(ctx context.Context, venueID int64) ([]Product, error) {
	return s.repo.ListProducts(ctx, venueID)
}

// GetRecipe returns a product's recipe.
func (s *Service) GetRecipe(ctx context.Context, venueID, productID int64) (Recipe, error) {
	return s.repo.GetRecipeByProduct(ctx, venueID, productID)
}

func (s *Service) checkDimension(ctx context.Context, venueID, rawMaterialID int64, unit units.Unit) error {
	if s.materials == nil {
		return nil
	}
	stockUnit, err := s.materials.GetRawMaterialUnit(ctx, venueID, rawMaterialID)
	if err != nil {
		return err
	}
	if _, err := units.Convert(1, unit, stockUnit); err != nil {
		return err
	}
	return nil
}
