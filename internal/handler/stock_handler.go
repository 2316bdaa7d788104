package handler

import (
	"errors"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StockHandler struct {
	stockService service.StockService
}

func NewStockHandler(stockService service.StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	stocks := router.Group("/stocks")
	stocks.Use(middleware.RequireRole(model.RoleAdmin, model.RoleStaff))
	{
		stocks.GET("", h.ListStocks)
		stocks.GET("/summary", h.StockSummary)
		stocks.GET("/:id", h.GetStock)
		stocks.POST("", h.CreateStock)
		stocks.PUT("/:id", h.UpdateStock)
		stocks.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteStock)
	}
}

// CreateStock handles POST /stocks
// @Summary      Create a stock batch
// @Description  Registers an incoming stock batch; remaining quantity starts equal to entry quantity
// @Tags         stocks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateStockRequest  true  "Create Stock Payload"
// @Success      201      {object}  response.Response{data=service.StockResponse}
// @Failure      400      {object}  response.Response
// @Router       /stocks [post]
func (h *StockHandler) CreateStock(c *gin.Context) {
	var req service.CreateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	stock, err := h.stockService.CreateStock(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, stock))
}

// ListStocks handles GET /stocks
// @Summary      List stock batches
// @Description  Retrieves stock batches ordered oldest entry date first, optionally filtered
// @Tags         stocks
// @Produce      json
// @Security     BearerAuth
// @Param        page     query     int     false  "Page number (default 1)"
// @Param        limit    query     int     false  "Number of items per page (default 20)"
// @Param        crab_id  query     string  false  "Filter by crab product ID"
// @Param        status   query     string  false  "Filter by stock status (AVAILABLE or EMPTY)"
// @Success      200      {object}  response.Response{data=object}
// @Router       /stocks [get]
func (h *StockHandler) ListStocks(c *gin.Context) {
	params := pagination.Parse(c)

	var filter repository.StockFilter
	if crabID := c.Query("crab_id"); crabID != "" {
		id, err := uuid.Parse(crabID)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid crab_id"))
			return
		}
		filter.CrabID = &id
	}
	filter.StockStatus = c.Query("status")

	stocks, total, err := h.stockService.ListStocks(c.Request.Context(), params.Page, params.Limit, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch stocks"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"stocks": stocks,
		"total":  total,
		"page":   params.Page,
		"limit":  params.Limit,
	}))
}

// StockSummary handles GET /stocks/summary
// @Summary      Remaining stock per crab product
// @Description  Aggregates remaining quantity and batch count grouped by crab product
// @Tags         stocks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.StockSummary}
// @Router       /stocks/summary [get]
func (h *StockHandler) StockSummary(c *gin.Context) {
	summary, err := h.stockService.StockSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch stock summary"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// GetStock handles GET /stocks/:id
// @Summary      Get stock batch by ID
// @Tags         stocks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Stock ID"
// @Success      200  {object}  response.Response{data=service.StockResponse}
// @Failure      404  {object}  response.Response
// @Router       /stocks/{id} [get]
func (h *StockHandler) GetStock(c *gin.Context) {
	stock, err := h.stockService.GetStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stock))
}

// UpdateStock handles PUT /stocks/:id
// @Summary      Update stock batch
// @Description  Updates batch metadata; entry quantity cannot drop below the quantity already sold
// @Tags         stocks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Stock ID"
// @Param        payload  body      service.UpdateStockRequest  true  "Update Stock Payload"
// @Success      200      {object}  response.Response{data=service.StockResponse}
// @Failure      400      {object}  response.Response
// @Router       /stocks/{id} [put]
func (h *StockHandler) UpdateStock(c *gin.Context) {
	var req service.UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	stock, err := h.stockService.UpdateStock(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stock))
}

// DeleteStock handles DELETE /stocks/:id
// @Summary      Delete stock batch
// @Description  Deletes a batch; rejected with 409 when sales reference the batch
// @Tags         stocks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Stock ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /stocks/{id} [delete]
func (h *StockHandler) DeleteStock(c *gin.Context) {
	err := h.stockService.DeleteStock(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrStockReferenced) {
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Stock deleted successfully"))
}
