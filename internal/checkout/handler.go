package checkout

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Joseamica/avoqado-server-sub011/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the checkout module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs checkout handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers checkout routes under /venues/{venueID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders", h.handleCreateOrder)
	r.Get("/orders/{orderID}", h.handleGetOrder)
	r.Post("/orders/{orderID}/payments", h.handleRecordPayment)
	r.Post("/orders/{orderID}/deduction/retry", h.handleRetryDeduction)
	r.Get("/products/{productID}/status", h.handleGetStatus)
}

type createOrderRequest struct {
	Total float64            `json:"total"`
	Lines []orderLineRequest `json:"lines"`
}

type orderLineRequest struct {
	ProductID         int64                      `json:"product_id"`
	ProductName       string                     `json:"product_name"`
	Quantity          float64                    `json:"quantity"`
	SelectedModifiers []modifierSelectionRequest `json:"selected_modifiers"`
}

type modifierSelectionRequest struct {
	ModifierID int64   `json:"modifier_id"`
	Quantity   float64 `json:"quantity"`
}

type recordPaymentRequest struct {
	Amount  float64 `json:"amount"`
	ActorID int64   `json:"actor_id"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	input := CreateOrderInput{VenueID: venueID, Total: req.Total}
	for _, line := range req.Lines {
		l := OrderLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
		}
		for _, sel := range line.SelectedModifiers {
			l.SelectedModifiers = append(l.SelectedModifiers, ModifierSelection(sel))
		}
		input.Lines = append(input.Lines, l)
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.logger.Warn("create order rejected", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	order, err := h.service.GetOrder(r.Context(), venueID, chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderID")
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.RecordPayment(r.Context(), RecordPaymentInput{
		VenueID: venueID,
		OrderID: orderID,
		Amount:  req.Amount,
		ActorID: req.ActorID,
	})
	if err != nil {
		var short *InsufficientInventoryError
		if errors.As(err, &short) {
			// Payment was captured but stock could not cover the order;
			// the caller needs the shortage details for staff resolution.
			httpx.Problem(w, http.StatusConflict, "Insufficient Inventory", err.Error())
			return
		}
		h.logger.Warn("record payment failed", slog.String("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type retryDeductionRequest struct {
	ActorID int64 `json:"actor_id"`
}

// handleRetryDeduction is the staff-resolution path for orders stuck in PAID
// after a shortage: restock first, then retry the deduction here.
func (h *Handler) handleRetryDeduction(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderID")
	var req retryDeductionRequest
	// Body is optional; an empty or absent body retries as the system actor.
	_ = httpx.DecodeJSON(r, &req)
	order, err := h.service.RetryDeduction(r.Context(), venueID, orderID, req.ActorID)
	if err != nil {
		var short *InsufficientInventoryError
		if errors.As(err, &short) {
			httpx.Problem(w, http.StatusConflict, "Insufficient Inventory", err.Error())
			return
		}
		h.logger.Warn("deduction retry failed", slog.String("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.GetInventoryStatus(r.Context(), venueID, productID))
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
