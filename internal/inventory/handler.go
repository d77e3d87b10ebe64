package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Joseamica/avoqado-server-sub011/internal/platform/httpx"
)

// ScanEnqueuer queues an ad-hoc low-stock sweep on the job queue.
type ScanEnqueuer interface {
	EnqueueLowStockScan(ctx context.Context) error
}

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	scans   ScanEnqueuer
}

// NewHandler constructs inventory handler. scans may be nil when no job queue
// is attached.
func NewHandler(logger *slog.Logger, service *Service, scans ScanEnqueuer) *Handler {
	return &Handler{logger: logger, service: service, scans: scans}
}

// MountRoutes registers inventory routes under /venues/{venueID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/raw-materials", h.handleListRawMaterials)
	r.Post("/raw-materials", h.handleCreateRawMaterial)
	r.Get("/raw-materials/low-stock", h.handleLowStock)
	r.Post("/raw-materials/low-stock/scan", h.handleEnqueueLowStockScan)
	r.Get("/raw-materials/{materialID}", h.handleGetRawMaterial)
	r.Post("/raw-materials/{materialID}/batches", h.handleRestock)
	r.Post("/raw-materials/{materialID}/adjustments", h.handleAdjust)
	r.Get("/movements", h.handleListMovements)
	r.Put("/products/{productID}/inventory-level", h.handleSetInventoryLevel)
	r.Get("/products/{productID}/inventory-level", h.handleGetInventoryLevel)
}

type createRawMaterialRequest struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	MinimumStock float64 `json:"minimum_stock"`
	ReorderPoint float64 `json:"reorder_point"`
	CostPerUnit  float64 `json:"cost_per_unit"`
}

type restockRequest struct {
	Quantity     float64    `json:"quantity"`
	CostPerUnit  float64    `json:"cost_per_unit"`
	ReceivedDate *time.Time `json:"received_date"`
	Reason       string     `json:"reason"`
	ActorID      int64      `json:"actor_id"`
}

type adjustRequest struct {
	Quantity float64 `json:"quantity"`
	Reason   string  `json:"reason"`
	ActorID  int64   `json:"actor_id"`
}

type setInventoryLevelRequest struct {
	CurrentStock float64 `json:"current_stock"`
	MinimumStock float64 `json:"minimum_stock"`
	ActorID      int64   `json:"actor_id"`
}

func (h *Handler) handleListRawMaterials(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	materials, err := h.service.ListRawMaterials(r.Context(), venueID)
	if err != nil {
		h.logger.Error("list raw materials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materials)
}

func (h *Handler) handleCreateRawMaterial(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	var req createRawMaterialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	material, err := h.service.CreateRawMaterial(r.Context(), CreateRawMaterialInput{
		VenueID:      venueID,
		SKU:          req.SKU,
		Name:         req.Name,
		Unit:         req.Unit,
		MinimumStock: req.MinimumStock,
		ReorderPoint: req.ReorderPoint,
		CostPerUnit:  req.CostPerUnit,
	})
	if err != nil {
		h.logger.Warn("create raw material rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, material)
}

func (h *Handler) handleGetRawMaterial(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	materialID, ok := pathID(w, r, "materialID")
	if !ok {
		return
	}
	material, err := h.service.GetRawMaterial(r.Context(), venueID, materialID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, material)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	materials, err := h.service.ListBelowReorderPoint(r.Context(), venueID)
	if err != nil {
		h.logger.Error("list low stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materials)
}

// handleEnqueueLowStockScan queues a sweep across all venues; the venue in the
// path only identifies the caller, the scan itself is global.
func (h *Handler) handleEnqueueLowStockScan(w http.ResponseWriter, r *http.Request) {
	if _, ok := venueParam(w, r); !ok {
		return
	}
	if h.scans == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Scan Unavailable", "job queue is not configured")
		return
	}
	if err := h.scans.EnqueueLowStockScan(r.Context()); err != nil {
		h.logger.Error("enqueue low stock scan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	materialID, ok := pathID(w, r, "materialID")
	if !ok {
		return
	}
	var req restockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	input := RestockInput{
		VenueID:       venueID,
		RawMaterialID: materialID,
		Quantity:      req.Quantity,
		CostPerUnit:   req.CostPerUnit,
		Reason:        req.Reason,
		ActorID:       req.ActorID,
	}
	if req.ReceivedDate != nil {
		input.ReceivedDate = *req.ReceivedDate
	}
	batch, err := h.service.Restock(r.Context(), input)
	if err != nil {
		h.logger.Warn("restock rejected", slog.Int64("raw_material_id", materialID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	materialID, ok := pathID(w, r, "materialID")
	if !ok {
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	err := h.service.Adjust(r.Context(), AdjustInput{
		VenueID:       venueID,
		RawMaterialID: materialID,
		Quantity:      req.Quantity,
		Reason:        req.Reason,
		ActorID:       req.ActorID,
	})
	if err != nil {
		var insufficient *InsufficientStockError
		if errors.As(err, &insufficient) {
			httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
			return
		}
		h.logger.Warn("adjustment rejected", slog.Int64("raw_material_id", materialID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	filter := MovementFilter{VenueID: venueID, Limit: 100}
	q := r.URL.Query()
	if v := q.Get("raw_material_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid raw_material_id")
			return
		}
		filter.RawMaterialID = id
	}
	if v := q.Get("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product_id")
			return
		}
		filter.ProductID = id
	}
	if v := q.Get("type"); v != "" {
		filter.Type = MovementType(v)
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > 500 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid limit")
			return
		}
		filter.Limit = limit
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleSetInventoryLevel(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req setInventoryLevelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SetInventoryLevel(r.Context(), venueID, productID, req.CurrentStock, req.MinimumStock, req.ActorID); err != nil {
		h.logger.Warn("set inventory level rejected", slog.Int64("product_id", productID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleGetInventoryLevel(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	level, err := h.service.GetInventoryLevel(r.Context(), venueID, productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, level)
}

func venueParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "venueID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid venue id")
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}
