package handler

import (
	"errors"
	"net/http"
	"time"

	"backend/internal/costing"
	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SaleHandler struct {
	saleService service.SaleService
}

func NewSaleHandler(saleService service.SaleService) *SaleHandler {
	return &SaleHandler{saleService: saleService}
}

func (h *SaleHandler) RegisterRoutes(router *gin.RouterGroup) {
	sales := router.Group("/sales")
	sales.Use(middleware.RequireRole(model.RoleAdmin, model.RoleStaff))
	{
		sales.GET("", h.ListSales)
		sales.GET("/:id", h.GetSale)
		sales.POST("", h.CreateSale)
		sales.POST("/:id/cancel", h.CancelSale)
		sales.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteSale)
	}
}

// CreateSale handles POST /sales
// @Summary      Create a sale
// @Description  Records a sale, drawing stock from the oldest available batches of each crab product and computing cost of goods sold. The whole sale fails if any item cannot be fully covered.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateSaleRequest  true  "Create Sale Payload"
// @Success      201      {object}  response.Response{data=service.SaleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "Insufficient stock"
// @Router       /sales [post]
func (h *SaleHandler) CreateSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	sale, err := h.saleService.CreateSale(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		var insufficient *costing.InsufficientStockError
		if errors.As(err, &insufficient) {
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sale))
}

// ListSales handles GET /sales
// @Summary      List sales
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Param        customer_id  query     string  false  "Filter by customer ID"
// @Param        status       query     string  false  "Filter by sale status (COMPLETED or CANCELLED)"
// @Param        start_date   query     string  false  "Filter sales on or after this date (RFC3339)"
// @Param        end_date     query     string  false  "Filter sales on or before this date (RFC3339)"
// @Success      200          {object}  response.Response{data=object}
// @Router       /sales [get]
func (h *SaleHandler) ListSales(c *gin.Context) {
	params := pagination.Parse(c)

	var filter repository.SaleFilter
	if customerID := c.Query("customer_id"); customerID != "" {
		id, err := uuid.Parse(customerID)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid customer_id"))
			return
		}
		filter.CustomerID = &id
	}
	filter.SaleStatus = c.Query("status")
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339"))
			return
		}
		filter.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339"))
			return
		}
		filter.EndDate = &t
	}

	sales, total, err := h.saleService.ListSales(c.Request.Context(), params.Page, params.Limit, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch sales"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"sales": sales,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// GetSale handles GET /sales/:id
// @Summary      Get sale by ID
// @Description  Fetch a single sale with its line items and batch draw details
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Sale ID"
// @Success      200  {object}  response.Response{data=service.SaleResponse}
// @Failure      404  {object}  response.Response
// @Router       /sales/{id} [get]
func (h *SaleHandler) GetSale(c *gin.Context) {
	sale, err := h.saleService.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sale))
}

// CancelSale handles POST /sales/:id/cancel
// @Summary      Cancel a sale
// @Description  Cancels a completed sale and restores the drawn quantities back to their original stock batches
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Sale ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response  "Sale already cancelled"
// @Router       /sales/{id}/cancel [post]
func (h *SaleHandler) CancelSale(c *gin.Context) {
	err := h.saleService.CancelSale(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSaleNotFound):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		case errors.Is(err, service.ErrAlreadyCancelled):
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
		default:
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Sale cancelled successfully"))
}

// DeleteSale handles DELETE /sales/:id
// @Summary      Delete a sale
// @Description  Deletes a cancelled sale; completed sales must be cancelled first
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Sale ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /sales/{id} [delete]
func (h *SaleHandler) DeleteSale(c *gin.Context) {
	err := h.saleService.DeleteSale(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Sale deleted successfully"))
}
