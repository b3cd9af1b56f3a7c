package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/flenzi/company-service/internal/domain"
	"github.com/flenzi/company-service/internal/service"
	"github.com/flenzi/company-service/pkg/response"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	products service.ProductService
}

// NewProductHandler creates a new product handler.
func NewProductHandler(products service.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// RegisterRoutes registers the product routes under rg.
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	{
		products.POST("", h.Create)
		products.GET("", h.List)
		products.GET("/available", h.ListAvailable)
		products.GET("/search", h.Search)
		products.GET("/:id", h.Get)
		products.PUT("/:id", h.Update)
		products.PATCH("/:id/stock", h.UpdateStock)
		products.DELETE("/:id", h.Delete)
	}
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req domain.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.products.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err, "create product")
		return
	}

	response.Created(c, result)
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get product")
		return
	}

	response.Success(c, result)
}

// List returns all products, or those at most max_price, or those in stock
// when in_stock=true. max_price wins when both are given.
func (h *ProductHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		result []domain.ProductResponse
		err    error
	)
	switch {
	case c.Query("max_price") != "":
		maxPrice, perr := decimal.NewFromString(c.Query("max_price"))
		if perr != nil {
			response.BadRequest(c, "max_price must be a decimal number")
			return
		}
		result, err = h.products.ListProductsByMaxPrice(ctx, maxPrice)

	case c.Query("in_stock") != "":
		inStock, perr := strconv.ParseBool(c.Query("in_stock"))
		if perr != nil {
			response.BadRequest(c, "in_stock must be a boolean")
			return
		}
		if inStock {
			result, err = h.products.ListInStockProducts(ctx)
		} else {
			result, err = h.products.ListProducts(ctx)
		}

	default:
		result, err = h.products.ListProducts(ctx)
	}
	if err != nil {
		writeError(c, err, "list products")
		return
	}

	response.Success(c, result)
}

func (h *ProductHandler) ListAvailable(c *gin.Context) {
	result, err := h.products.ListAvailableProducts(c.Request.Context())
	if err != nil {
		writeError(c, err, "list available products")
		return
	}

	response.Success(c, result)
}

func (h *ProductHandler) Search(c *gin.Context) {
	result, err := h.products.SearchProducts(c.Request.Context(), c.Query("name"))
	if err != nil {
		writeError(c, err, "search products")
		return
	}

	response.Success(c, result)
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req domain.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.products.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, err, "update product")
		return
	}

	response.Success(c, result)
}

func (h *ProductHandler) UpdateStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req domain.UpdateStockRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.products.UpdateStock(c.Request.Context(), id, *req.Quantity)
	if err != nil {
		writeError(c, err, "update stock")
		return
	}

	response.Success(c, result)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.products.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, err, "delete product")
		return
	}

	response.NoContent(c)
}
