package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CrabHandler struct {
	crabService service.CrabService
}

func NewCrabHandler(crabService service.CrabService) *CrabHandler {
	return &CrabHandler{crabService: crabService}
}

func (h *CrabHandler) RegisterRoutes(router *gin.RouterGroup) {
	crabs := router.Group("/crabs")
	crabs.Use(middleware.RequireRole(model.RoleAdmin, model.RoleStaff))
	{
		crabs.GET("", h.ListCrabs)
		crabs.GET("/:id", h.GetCrab)
		crabs.POST("", h.CreateCrab)
		crabs.PUT("/:id", h.UpdateCrab)
		crabs.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteCrab)
	}
}

// currentUserID pulls the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CreateCrab handles POST /crabs
// @Summary      Create a crab product
// @Description  Registers a new crab product with a unique crab code
// @Tags         crabs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateCrabRequest  true  "Create Crab Payload"
// @Success      201      {object}  response.Response{data=service.CrabResponse}
// @Failure      400      {object}  response.Response
// @Router       /crabs [post]
func (h *CrabHandler) CreateCrab(c *gin.Context) {
	var req service.CreateCrabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	crab, err := h.crabService.CreateCrab(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, crab))
}

// ListCrabs handles GET /crabs
// @Summary      List crab products
// @Description  Retrieves a paginated list of crab products, optionally filtered by search term
// @Tags         crabs
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by name or crab code"
// @Success      200     {object}  response.Response{data=object}
// @Router       /crabs [get]
func (h *CrabHandler) ListCrabs(c *gin.Context) {
	params := pagination.Parse(c)
	search := c.Query("search")

	crabs, total, err := h.crabService.ListCrabs(c.Request.Context(), params.Page, params.Limit, search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch crabs"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"crabs": crabs,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// GetCrab handles GET /crabs/:id
// @Summary      Get crab product by ID
// @Tags         crabs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Crab ID"
// @Success      200  {object}  response.Response{data=service.CrabResponse}
// @Failure      404  {object}  response.Response
// @Router       /crabs/{id} [get]
func (h *CrabHandler) GetCrab(c *gin.Context) {
	crab, err := h.crabService.GetCrab(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, crab))
}

// UpdateCrab handles PUT /crabs/:id
// @Summary      Update crab product
// @Tags         crabs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Crab ID"
// @Param        payload  body      service.UpdateCrabRequest  true  "Update Crab Payload"
// @Success      200      {object}  response.Response{data=service.CrabResponse}
// @Failure      400      {object}  response.Response
// @Router       /crabs/{id} [put]
func (h *CrabHandler) UpdateCrab(c *gin.Context) {
	var req service.UpdateCrabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	crab, err := h.crabService.UpdateCrab(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, crab))
}

// DeleteCrab handles DELETE /crabs/:id
// @Summary      Delete crab product
// @Description  Soft deletes a crab product by ID
// @Tags         crabs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Crab ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /crabs/{id} [delete]
func (h *CrabHandler) DeleteCrab(c *gin.Context) {
	if err := h.crabService.DeleteCrab(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Crab deleted successfully"))
}
