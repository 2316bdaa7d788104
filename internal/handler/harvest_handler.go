package handler

import (
	"net/http"
	"time"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type HarvestHandler struct {
	harvestService service.HarvestService
}

func NewHarvestHandler(harvestService service.HarvestService) *HarvestHandler {
	return &HarvestHandler{harvestService: harvestService}
}

func (h *HarvestHandler) RegisterRoutes(router *gin.RouterGroup) {
	weathers := router.Group("/weathers")
	weathers.Use(middleware.RequireRole(model.RoleAdmin, model.RoleStaff))
	{
		weathers.GET("", h.ListWeathers)
		weathers.POST("", middleware.RequireRole(model.RoleAdmin), h.CreateWeather)
	}

	harvests := router.Group("/harvests")
	harvests.Use(middleware.RequireRole(model.RoleAdmin, model.RoleStaff))
	{
		harvests.GET("", h.ListHarvests)
		harvests.POST("", h.CreateHarvest)
		harvests.PUT("/:id", h.UpdateHarvest)
		harvests.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteHarvest)
	}
}

// CreateWeather handles POST /weathers
// @Summary      Create a weather category
// @Description  Registers a weather category with its numeric encoding used by the prediction model
// @Tags         harvests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.WeatherRequest  true  "Create Weather Payload"
// @Success      201      {object}  response.Response{data=service.WeatherResponse}
// @Failure      400      {object}  response.Response
// @Router       /weathers [post]
func (h *HarvestHandler) CreateWeather(c *gin.Context) {
	var req service.WeatherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	weather, err := h.harvestService.CreateWeather(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, weather))
}

// ListWeathers handles GET /weathers
// @Summary      List weather categories
// @Tags         harvests
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.WeatherResponse}
// @Router       /weathers [get]
func (h *HarvestHandler) ListWeathers(c *gin.Context) {
	weathers, err := h.harvestService.ListWeathers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch weathers"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, weathers))
}

// CreateHarvest handles POST /harvests
// @Summary      Create a harvest record
// @Description  Records a harvest observation (date, weather, production cost, harvest amount) used as training data
// @Tags         harvests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.HarvestRequest  true  "Create Harvest Payload"
// @Success      201      {object}  response.Response{data=service.HarvestResponse}
// @Failure      400      {object}  response.Response
// @Router       /harvests [post]
func (h *HarvestHandler) CreateHarvest(c *gin.Context) {
	var req service.HarvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	harvest, err := h.harvestService.CreateHarvest(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, harvest))
}

// ListHarvests handles GET /harvests
// @Summary      List harvest records
// @Tags         harvests
// @Produce      json
// @Security     BearerAuth
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Param        start_date  query     string  false  "Filter records on or after this date (RFC3339)"
// @Param        end_date    query     string  false  "Filter records on or before this date (RFC3339)"
// @Success      200         {object}  response.Response{data=object}
// @Router       /harvests [get]
func (h *HarvestHandler) ListHarvests(c *gin.Context) {
	params := pagination.Parse(c)

	var startDate, endDate *time.Time
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339"))
			return
		}
		startDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339"))
			return
		}
		endDate = &t
	}

	harvests, total, err := h.harvestService.ListHarvests(c.Request.Context(), params.Page, params.Limit, startDate, endDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch harvests"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"harvests": harvests,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// UpdateHarvest handles PUT /harvests/:id
// @Summary      Update harvest record
// @Tags         harvests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Harvest ID"
// @Param        payload  body      service.HarvestRequest  true  "Update Harvest Payload"
// @Success      200      {object}  response.Response{data=service.HarvestResponse}
// @Failure      400      {object}  response.Response
// @Router       /harvests/{id} [put]
func (h *HarvestHandler) UpdateHarvest(c *gin.Context) {
	var req service.HarvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	harvest, err := h.harvestService.UpdateHarvest(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, harvest))
}

// DeleteHarvest handles DELETE /harvests/:id
// @Summary      Delete harvest record
// @Tags         harvests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Harvest ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /harvests/{id} [delete]
func (h *HarvestHandler) DeleteHarvest(c *gin.Context) {
	if err := h.harvestService.DeleteHarvest(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Harvest record deleted successfully"))
}
