package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Joseamica/avoqado-server-sub011/internal/catalog"
	"github.com/Joseamica/avoqado-server-sub011/internal/inventory"
	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

// Menu UIs poll status far more often than sales occur; a short cache TTL
// absorbs that read volume while the gate stays the only source of truth.
const statusTTL = 5 * time.Second

// InventoryStatus is the advisory availability snapshot for one product. It
// never gates a sale; the pre-flight transaction does.
type InventoryStatus struct {
	ProductID          int64          `json:"product_id"`
	Method             catalog.Method `json:"method"`
	Available          bool           `json:"available"`
	CurrentStock       *float64       `json:"current_stock,omitempty"`
	MaxPortions        *int           `json:"max_portions,omitempty"`
	LimitingIngredient string         `json:"limiting_ingredient,omitempty"`
}

func statusKey(venueID, productID int64) string {
	return fmt.Sprintf("checkout:status:%d:%d", venueID, productID)
}

// GetInventoryStatus reports whether a product can currently be sold and, for
// recipe products, how many portions remain. Failures degrade to "not
// available" instead of propagating; this path is advisory.
func (s *Service) GetInventoryStatus(ctx context.Context, venueID, productID int64) InventoryStatus {
	key := statusKey(venueID, productID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached InventoryStatus
			if json.Unmarshal(raw, &cached) == nil {
				return cached
			}
		}
	}
	// Collapse a stampede of identical lookups into one computation.
	v, _, _ := s.sf.Do(key, func() (any, error) {
		status := s.computeStatus(ctx, venueID, productID)
		if s.cache != nil {
			if raw, err := json.Marshal(status); err == nil {
				s.cache.Set(ctx, key, raw, statusTTL)
			}
		}
		return status, nil
	})
	return v.(InventoryStatus)
}

func (s *Service) computeStatus(ctx context.Context, venueID, productID int64) InventoryStatus {
	unavailable := InventoryStatus{ProductID: productID, Method: catalog.MethodNone}

	product, err := s.catalog.GetProduct(ctx, venueID, productID)
	if err != nil {
		s.logger.Warn("status lookup failed, degrading to unavailable",
			slog.Int64("product_id", productID), slog.Any("error", err))
		return unavailable
	}
	method, err := s.resolveMethod(ctx, product)
	if err != nil {
		s.logger.Warn("status method resolution failed, degrading to unavailable",
			slog.Int64("product_id", productID), slog.Any("error", err))
		return unavailable
	}

	status := InventoryStatus{ProductID: productID, Method: method}
	switch method {
	case catalog.MethodNone:
		status.Available = true
		return status
	case catalog.MethodQuantity:
		level, err := s.inventory.GetInventoryLevel(ctx, venueID, productID)
		if err != nil {
			if errors.Is(err, inventory.ErrInventoryNotConfigured) {
				s.logger.Error("quantity-tracked product missing inventory row",
					slog.Int64("venue_id", venueID),
					slog.Int64("product_id", productID))
			}
			return unavailable
		}
		stock := level.CurrentStock
		status.CurrentStock = &stock
		status.Available = stock > 0
		return status
	case catalog.MethodRecipe:
		return s.recipeStatus(ctx, venueID, product, status)
	default:
		return unavailable
	}
}

// recipeStatus computes the bottleneck yield: the floor of the minimum over
// non-optional lines of available stock divided by per-portion requirement.
func (s *Service) recipeStatus(ctx context.Context, venueID int64, product catalog.Product, status InventoryStatus) InventoryStatus {
	recipe, err := s.catalog.GetRecipeByProduct(ctx, venueID, product.ID)
	if err != nil {
		s.logger.Warn("status recipe lookup failed, degrading to unavailable",
			slog.Int64("product_id", product.ID), slog.Any("error", err))
		return InventoryStatus{ProductID: product.ID, Method: catalog.MethodRecipe}
	}

	maxPortions := math.MaxInt
	limiting := ""
	constrained := false
	for _, line := range recipe.Lines {
		if line.IsOptional || line.Quantity <= 0 {
			continue
		}
		material, err := s.inventory.GetRawMaterial(ctx, venueID, line.RawMaterialID)
		if err != nil {
			s.logger.Warn("status ingredient lookup failed, degrading to unavailable",
				slog.Int64("raw_material_id", line.RawMaterialID), slog.Any("error", err))
			return InventoryStatus{ProductID: product.ID, Method: catalog.MethodRecipe}
		}
		perPortion, err := units.Convert(line.Quantity, line.Unit, material.Unit)
		if err != nil || perPortion <= 0 {
			return InventoryStatus{ProductID: product.ID, Method: catalog.MethodRecipe}
		}
		portions := int(math.Floor(material.CurrentStock / perPortion))
		if portions < 0 {
			portions = 0
		}
		if portions < maxPortions {
			maxPortions = portions
			limiting = material.Name
		}
		constrained = true
	}
	if !constrained {
		// Every line is optional; the product is never the bottleneck.
		status.Available = true
		return status
	}
	status.MaxPortions = &maxPortions
	status.LimitingIngredient = limiting
	status.Available = maxPortions > 0
	return status
}

// invalidateStatus drops cached status for every product in a committed
// order. Best effort; a stale entry expires within the TTL anyway.
func (s *Service) invalidateStatus(ctx context.Context, venueID int64, lines []OrderLine) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(lines))
	for _, line := range lines {
		keys = append(keys, statusKey(venueID, line.ProductID))
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("status cache invalidation failed", slog.Any("error", err))
	}
}
