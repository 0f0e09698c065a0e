package transport

import (
	"net/http"
	"strconv"
	"strings"

	"plant-market/internal/domain"
	"plant-market/internal/middleware"
	"plant-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateProductRequest represents a new catalog listing
type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Category    string          `json:"category" validate:"required,max=100"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Stock       int             `json:"stock" validate:"gte=0"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
}

// UpdateProductRequest lists the only fields a seller may change. Anything
// else in the body is rejected.
type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Category    *string          `json:"category" validate:"omitempty,min=1,max=100"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,url"`
}

// ProductListResponse is one page of the catalog
type ProductListResponse struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ProductHandler serves the catalog
type ProductHandler struct {
	productService service.ProductService
	exposeDetail   bool
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, exposeDetail bool, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		exposeDetail:   exposeDetail,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/categories", h.Categories)
		r.Get("/{productID}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.With(middleware.RequireRole([]string{domain.RoleSeller}, h.logger)).Post("/", h.Create)
			r.With(middleware.RequireRole([]string{domain.RoleSeller}, h.logger)).Put("/{productID}", h.Update)
			r.With(middleware.RequireRole([]string{domain.RoleSeller, domain.RoleAdmin}, h.logger)).Delete("/{productID}", h.Delete)
		})
	})
}

// List handles catalog search with pagination
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.ProductFilter{
		Search:   strings.TrimSpace(query.Get("search")),
		Category: strings.TrimSpace(query.Get("category")),
		Page:     1,
		PageSize: 20,
	}

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			middleware.RespondWithDomainError(w, &domain.ValidationError{Field: "page", Message: "page must be a positive integer"}, h.exposeDetail)
			return
		}
		filter.Page = page
	}
	if raw := query.Get("limit"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > 100 {
			middleware.RespondWithDomainError(w, &domain.ValidationError{Field: "limit", Message: "limit must be between 1 and 100"}, h.exposeDetail)
			return
		}
		filter.PageSize = size
	}

	products, total, err := h.productService.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list products", err, h.exposeDetail)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// Categories lists category names with their product counts
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productService.Categories(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list categories", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// Get handles a single product lookup
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get product", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Create handles listing a new product
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.Create(r.Context(), actor, &domain.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondServiceError(w, h.logger, "Failed to create product", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update handles a partial product update
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product update validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.Update(r.Context(), actor, id, domain.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondServiceError(w, h.logger, "Failed to update product", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete handles product removal
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), actor, id); err != nil {
		respondServiceError(w, h.logger, "Failed to delete product", err, h.exposeDetail)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
