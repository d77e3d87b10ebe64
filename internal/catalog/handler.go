package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Joseamica/avoqado-server-sub011/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes under /venues/{venueID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.handleListProducts)
	r.Post("/products", h.handleCreateProduct)
	r.Get("/products/{productID}", h.handleGetProduct)
	r.Put("/products/{productID}/recipe", h.handleSaveRecipe)
	r.Get("/products/{productID}/recipe", h.handleGetRecipe)
	r.Post("/modifiers", h.handleSaveModifier)
}

type createProductRequest struct {
	SKU             string  `json:"sku"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	TrackInventory  bool    `json:"track_inventory"`
	InventoryMethod string  `json:"inventory_method"`
}

type saveRecipeRequest struct {
	Lines []recipeLineRequest `json:"lines"`
}

type recipeLineRequest struct {
	RawMaterialID   int64   `json:"raw_material_id"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit"`
	IsVariable      bool    `json:"is_variable"`
	ModifierGroupID int64   `json:"modifier_group_id"`
	IsOptional      bool    `json:"is_optional"`
}

type saveModifierRequest struct {
	ID              int64   `json:"id"`
	GroupID         int64   `json:"group_id"`
	Name            string  `json:"name"`
	InventoryMode   string  `json:"inventory_mode"`
	RawMaterialID   int64   `json:"raw_material_id"`
	QuantityPerUnit float64 `json:"quantity_per_unit"`
	Unit            string  `json:"unit"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	products, err := h.service.ListProducts(r.Context(), venueID)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	product, err := h.service.GetProduct(r.Context(), venueID, productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	product, err := h.service.CreateProduct(r.Context(), CreateProductInput{
		VenueID:         venueID,
		SKU:             req.SKU,
		Name:            req.Name,
		Price:           req.Price,
		TrackInventory:  req.TrackInventory,
		InventoryMethod: Method(req.InventoryMethod),
	})
	if err != nil {
		h.logger.Warn("create product rejected", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	recipe, err := h.service.GetRecipe(r.Context(), venueID, productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recipe)
}

func (h *Handler) handleSaveRecipe(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req saveRecipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	input := SaveRecipeInput{VenueID: venueID, ProductID: productID}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, RecipeLineInput(line))
	}
	recipe, err := h.service.SaveRecipe(r.Context(), input)
	if err != nil {
		h.logger.Warn("save recipe rejected", slog.Int64("product_id", productID), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, recipe)
}

func (h *Handler) handleSaveModifier(w http.ResponseWriter, r *http.Request) {
	venueID, ok := venueParam(w, r)
	if !ok {
		return
	}
	var req saveModifierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	modifier, err := h.service.SaveModifier(r.Context(), SaveModifierInput{
		ID:              req.ID,
		VenueID:         venueID,
		GroupID:         req.GroupID,
		Name:            req.Name,
		InventoryMode:   ModifierMode(req.InventoryMode),
		RawMaterialID:   req.RawMaterialID,
		QuantityPerUnit: req.QuantityPerUnit,
		Unit:            req.Unit,
	})
	if err != nil {
		h.logger.Warn("save modifier rejected", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, modifier)
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
