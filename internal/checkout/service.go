package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Joseamica/avoqado-server-sub011/internal/catalog"
	"github.com/Joseamica/avoqado-server-sub011/internal/inventory"
	"github.com/Joseamica/avoqado-server-sub011/internal/shared"
	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

// Money comparisons tolerate cent-level representation noise.
const paymentEpsilon = 1e-6

// CatalogPort is the slice of catalog persistence the gate needs.
type CatalogPort interface {
	GetProduct(ctx context.Context, venueID, productID int64) (catalog.Product, error)
	HasRecipe(ctx context.Context, venueID, productID int64) (bool, error)
	GetRecipeByProduct(ctx context.Context, venueID, productID int64) (catalog.Recipe, error)
	GetModifiers(ctx context.Context, venueID int64, ids []int64) ([]catalog.Modifier, error)
}

// InventoryPort is the deduction engine surface. WithTx hands the gate one
// transaction handle that every line of an order shares, so a failure on line
// k rolls back lines 1..k-1 as well.
type InventoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error
	ConsumeFIFO(ctx context.Context, tx inventory.TxRepository, input inventory.ConsumeInput) (inventory.ConsumeResult, error)
	DeductQuantity(ctx context.Context, tx inventory.TxRepository, input inventory.DeductInput) (float64, error)
	GetRawMaterial(ctx context.Context, venueID, rawMaterialID int64) (inventory.RawMaterial, error)
	GetInventoryLevel(ctx context.Context, venueID, productID int64) (inventory.InventoryLevel, error)
}

// IdempotencyPort guards the fully-paid transition against re-delivery.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the payment threshold tracking and the pre-flight deduction
// gate that fires on the fully-paid transition.
type Service struct {
	repo        Repository
	catalog     CatalogPort
	inventory   InventoryPort
	idempotency IdempotencyPort
	audit       AuditPort
	cache       *redis.Client
	sf          singleflight.Group
	logger      *slog.Logger
}

// NewService builds Service. idempotency, audit and cache may be nil in tests.
func NewService(repo Repository, cat CatalogPort, inv InventoryPort, idem IdempotencyPort, audit AuditPort, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		catalog:     cat,
		inventory:   inv,
		idempotency: idem,
		audit:       audit,
		cache:       cache,
		logger:      logger,
	}
}

// CreateOrderInput is the write DTO for new orders.
type CreateOrderInput struct {
	VenueID int64
	Total   float64
	Lines   []OrderLine
}

// CreateOrder registers an order in PENDING status. Order IDs are UUIDs so
// they double as ledger movement references.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if input.Total < 0 {
		return Order{}, errors.New("checkout: order total must be >= 0")
	}
	if len(input.Lines) == 0 {
		return Order{}, errors.New("checkout: order needs at least one line")
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Order{}, fmt.Errorf("checkout: line for product %d has non-positive quantity", line.ProductID)
		}
	}
	order := Order{
		ID:      uuid.NewString(),
		VenueID: input.VenueID,
		Total:   input.Total,
		Status:  OrderStatusPending,
	}
	return s.repo.CreateOrder(ctx, order, input.Lines)
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, venueID int64, orderID string) (Order, error) {
	return s.repo.GetOrder(ctx, venueID, orderID)
}

// RecordPaymentInput describes one settlement against an order.
type RecordPaymentInput struct {
	VenueID int64
	OrderID string
	Amount  float64
	ActorID int64
}

// RecordPayment applies a payment and, if it crosses the fully-paid
// threshold, fires the deduction gate. Partial payments are ledger-neutral.
// A gate failure leaves the order PAID but not COMPLETED; the money has been
// taken and staff resolve the shortage through RetryDeduction.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (Order, error) {
	if input.Amount <= 0 {
		return Order{}, ErrInvalidPayment
	}
	order, err := s.repo.GetOrder(ctx, input.VenueID, input.OrderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status == OrderStatusPaid || order.Status == OrderStatusCompleted {
		return order, ErrOrderAlreadyPaid
	}
	totalPaid, err := s.repo.AddPayment(ctx, Payment{
		VenueID: input.VenueID,
		OrderID: input.OrderID,
		Amount:  input.Amount,
		ActorID: input.ActorID,
	})
	if err != nil {
		return Order{}, err
	}
	order.PaidAmount = totalPaid

	if totalPaid+paymentEpsilon < order.Total {
		if err := s.repo.SetOrderStatus(ctx, input.VenueID, input.OrderID, OrderStatusPartiallyPaid); err != nil {
			return Order{}, err
		}
		order.Status = OrderStatusPartiallyPaid
		return order, nil
	}

	// Threshold crossed. Two racing final payments can both reach this
	// point; the idempotency key inside OnOrderFullyPaid makes the loser a
	// no-op.
	if err := s.repo.SetOrderStatus(ctx, input.VenueID, input.OrderID, OrderStatusPaid); err != nil {
		return Order{}, err
	}
	order.Status = OrderStatusPaid

	lines, err := s.repo.GetOrderLines(ctx, input.VenueID, input.OrderID)
	if err != nil {
		return order, err
	}
	if err := s.OnOrderFullyPaid(ctx, input.VenueID, input.OrderID, lines, input.ActorID); err != nil {
		return order, err
	}
	if err := s.repo.SetOrderStatus(ctx, input.VenueID, input.OrderID, OrderStatusCompleted); err != nil {
		return order, err
	}
	order.Status = OrderStatusCompleted
	return order, nil
}

// RetryDeduction re-fires the gate for an order a shortage left in PAID. The
// idempotency key was released when the gate failed, so once stock is
// restored the retry deducts and completes the order. Any other status is
// rejected: PENDING and PARTIALLY_PAID have nothing to deduct yet, COMPLETED
// already deducted.
func (s *Service) RetryDeduction(ctx context.Context, venueID int64, orderID string, actorID int64) (Order, error) {
	order, err := s.repo.GetOrder(ctx, venueID, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status != OrderStatusPaid {
		return order, ErrDeductionNotPending
	}
	lines, err := s.repo.GetOrderLines(ctx, venueID, orderID)
	if err != nil {
		return order, err
	}
	if err := s.OnOrderFullyPaid(ctx, venueID, orderID, lines, actorID); err != nil {
		return order, err
	}
	if err := s.repo.SetOrderStatus(ctx, venueID, orderID, OrderStatusCompleted); err != nil {
		return order, err
	}
	order.Status = OrderStatusCompleted
	return order, nil
}

// OnOrderFullyPaid is the sole mutation entrypoint of the deduction engine.
// All lines of the order are deducted inside one transaction; any failure
// rolls back every mutation and surfaces a single InsufficientInventoryError
// naming the first line that could not be fulfilled.
func (s *Service) OnOrderFullyPaid(ctx context.Context, venueID int64, orderID string, lines []OrderLine, actorID int64) error {
	if _, err := uuid.Parse(orderID); err != nil {
		return fmt.Errorf("checkout: invalid order id: %w", err)
	}
	key := "checkout:order:" + orderID
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "checkout"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				s.logger.Warn("fully-paid event re-delivered, skipping deduction",
					slog.String("order_id", orderID))
				return nil
			}
			return err
		}
	}

	err := s.inventory.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		for _, line := range lines {
			if err := s.deductLine(ctx, tx, venueID, orderID, line, actorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The key must not survive a failed gate: the caller may retry
		// the whole call once the shortage is resolved.
		if s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}

	s.invalidateStatus(ctx, venueID, lines)
	s.recordAudit(ctx, actorID, "checkout:ORDER_DEDUCTED", orderID, map[string]any{
		"venue_id": venueID,
		"lines":    len(lines),
	})
	return nil
}

func (s *Service) deductLine(ctx context.Context, tx inventory.TxRepository, venueID int64, orderID string, line OrderLine, actorID int64) error {
	product, err := s.catalog.GetProduct(ctx, venueID, line.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		// Deliberate leniency for POS-synced data: the product was deleted
		// after the order was taken. The denormalized name keeps the line
		// readable; the kitchen already made the item.
		s.logger.Warn("order line references deleted product, skipping",
			slog.String("order_id", orderID),
			slog.Int64("product_id", line.ProductID),
			slog.String("product_name", line.ProductName))
		return nil
	}
	if err != nil {
		return err
	}

	method, err := s.resolveMethod(ctx, product)
	if err != nil {
		return err
	}
	switch method {
	case catalog.MethodNone:
		return nil
	case catalog.MethodQuantity:
		_, err := s.inventory.DeductQuantity(ctx, tx, inventory.DeductInput{
			VenueID:     venueID,
			ProductID:   product.ID,
			ProductName: lineName(line, product),
			Quantity:    line.Quantity,
			Reference:   orderID,
			ActorID:     actorID,
		})
		return wrapShortage(orderID, lineName(line, product), err)
	case catalog.MethodRecipe:
		return s.deductRecipe(ctx, tx, venueID, orderID, product, line, actorID)
	default:
		return fmt.Errorf("checkout: unknown inventory method %q", method)
	}
}

// resolveMethod re-evaluates the method on every call; configuration can
// change between sales.
func (s *Service) resolveMethod(ctx context.Context, product catalog.Product) (catalog.Method, error) {
	hasRecipe := false
	if product.TrackInventory && product.InventoryMethod == "" {
		var err error
		hasRecipe, err = s.catalog.HasRecipe(ctx, product.VenueID, product.ID)
		if err != nil {
			return catalog.MethodNone, err
		}
	}
	return catalog.ResolveMethod(product, hasRecipe), nil
}

// materialDemand is one ingredient's total required quantity for an order
// line, already converted into the material's stocking unit.
type materialDemand struct {
	rawMaterialID int64
	quantity      float64
}

func (s *Service) deductRecipe(ctx context.Context, tx inventory.TxRepository, venueID int64, orderID string, product catalog.Product, line OrderLine, actorID int64) error {
	recipe, err := s.catalog.GetRecipeByProduct(ctx, venueID, product.ID)
	if err != nil {
		// A product resolved to RECIPE without a recipe row is a
		// configuration defect, not a business case.
		return fmt.Errorf("checkout: product %d resolved to recipe tracking: %w", product.ID, err)
	}

	modifiers, selections, err := s.loadSelections(ctx, venueID, orderID, line)
	if err != nil {
		return err
	}
	// A variable line is overridden by at most one SUBSTITUTION selection
	// from its linked group.
	substitutions := make(map[int64]catalog.Modifier)
	for _, sel := range selections {
		m, ok := modifiers[sel.ModifierID]
		if !ok {
			continue
		}
		if m.InventoryMode == catalog.ModeSubstitution && m.TracksStock() {
			substitutions[m.GroupID] = m
		}
	}

	portions := line.Quantity
	var demands []materialDemand
	index := make(map[int64]int)
	add := func(rawMaterialID int64, quantity float64, from units.Unit) error {
		material, err := s.inventory.GetRawMaterial(ctx, venueID, rawMaterialID)
		if err != nil {
			return err
		}
		converted, err := units.Convert(quantity, from, material.Unit)
		if err != nil {
			return err
		}
		if i, ok := index[rawMaterialID]; ok {
			demands[i].quantity += converted
			return nil
		}
		index[rawMaterialID] = len(demands)
		demands = append(demands, materialDemand{rawMaterialID: rawMaterialID, quantity: converted})
		return nil
	}

	for _, rl := range recipe.Lines {
		if rl.IsVariable && rl.ModifierGroupID != 0 {
			if m, ok := substitutions[rl.ModifierGroupID]; ok {
				// Substitution replaces the default ingredient entirely.
				if err := add(m.RawMaterialID, m.QuantityPerUnit*portions, m.Unit); err != nil {
					return err
				}
				continue
			}
		}
		if err := add(rl.RawMaterialID, rl.Quantity*portions, rl.Unit); err != nil {
			return err
		}
	}
	for _, sel := range selections {
		m, ok := modifiers[sel.ModifierID]
		if !ok || m.InventoryMode != catalog.ModeAddition || !m.TracksStock() {
			continue
		}
		if err := add(m.RawMaterialID, m.QuantityPerUnit*sel.Quantity*portions, m.Unit); err != nil {
			return err
		}
	}

	for _, d := range demands {
		_, err := s.inventory.ConsumeFIFO(ctx, tx, inventory.ConsumeInput{
			VenueID:       venueID,
			RawMaterialID: d.rawMaterialID,
			Quantity:      d.quantity,
			Type:          inventory.MovementTypeUsage,
			Reference:     orderID,
			ActorID:       actorID,
		})
		if err != nil {
			return wrapShortage(orderID, lineName(line, product), err)
		}
	}
	return nil
}

// loadSelections merges duplicate selections and fetches their modifier
// definitions, preserving the line's selection order so demand scheduling
// stays deterministic.
func (s *Service) loadSelections(ctx context.Context, venueID int64, orderID string, line OrderLine) (map[int64]catalog.Modifier, []ModifierSelection, error) {
	var selections []ModifierSelection
	index := make(map[int64]int, len(line.SelectedModifiers))
	ids := make([]int64, 0, len(line.SelectedModifiers))
	for _, sel := range line.SelectedModifiers {
		if sel.Quantity <= 0 {
			sel.Quantity = 1
		}
		if i, ok := index[sel.ModifierID]; ok {
			selections[i].Quantity += sel.Quantity
			continue
		}
		index[sel.ModifierID] = len(selections)
		selections = append(selections, sel)
		ids = append(ids, sel.ModifierID)
	}
	if len(ids) == 0 {
		return map[int64]catalog.Modifier{}, nil, nil
	}
	mods, err := s.catalog.GetModifiers(ctx, venueID, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[int64]catalog.Modifier, len(mods))
	for _, m := range mods {
		byID[m.ID] = m
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			s.logger.Warn("order line references unknown modifier, skipping",
				slog.String("order_id", orderID),
				slog.Int64("modifier_id", id))
		}
	}
	return byID, selections, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: entityID,
		Meta:     meta,
	})
}

func lineName(line OrderLine, product catalog.Product) string {
	if product.Name != "" {
		return product.Name
	}
	if line.ProductName != "" {
		return line.ProductName
	}
	return fmt.Sprintf("product %d", line.ProductID)
}

// wrapShortage converts the engine's per-resource shortage into the gate's
// aggregate error. Other failures pass through untouched.
func wrapShortage(orderID, product string, err error) error {
	if err == nil {
		return nil
	}
	var short *inventory.InsufficientStockError
	if errors.As(err, &short) {
		return &InsufficientInventoryError{OrderID: orderID, Product: product, Cause: short}
	}
	return err
}
