package handler

import (
	"errors"
	"net/http"
	"time"

	"backend/internal/middleware"
	"backend/internal/mlr"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RegressionHandler struct {
	regressionService service.RegressionService
}

func NewRegressionHandler(regressionService service.RegressionService) *RegressionHandler {
	return &RegressionHandler{regressionService: regressionService}
}

func (h *RegressionHandler) RegisterRoutes(router *gin.RouterGroup) {
	predictions := router.Group("/predictions")
	predictions.Use(middleware.RequireRole(model.RoleAdmin, model.RoleStaff))
	{
		predictions.POST("/train", middleware.RequireRole(model.RoleAdmin), h.Train)
		predictions.GET("/model", h.GetActiveModel)
		predictions.POST("/predict", h.Predict)
		predictions.POST("/predict-batch", h.PredictBatch)
		predictions.GET("/evaluate", h.Evaluate)
	}
}

// Train handles POST /predictions/train
// @Summary      Train the harvest prediction model
// @Description  Fits a linear model predicting harvest amount from weather value and production cost over all harvest records, replacing the active model
// @Tags         predictions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.TrainingResponse}
// @Failure      422  {object}  response.Response  "Not enough data or degenerate predictors"
// @Router       /predictions/train [post]
func (h *RegressionHandler) Train(c *gin.Context) {
	result, err := h.regressionService.Train(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, mlr.ErrInsufficientTrainingData) || errors.Is(err, mlr.ErrSingularDesignMatrix) {
			c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetActiveModel handles GET /predictions/model
// @Summary      Get the active prediction model
// @Description  Returns the coefficients and quality metrics of the currently active model
// @Tags         predictions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.ModelInfoResponse}
// @Failure      404  {object}  response.Response  "No model trained yet"
// @Router       /predictions/model [get]
func (h *RegressionHandler) GetActiveModel(c *gin.Context) {
	info, err := h.regressionService.GetActiveModel(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoActiveModel) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, info))
}

// Predict handles POST /predictions/predict
// @Summary      Predict harvest amount
// @Description  Predicts harvest amount for a single weather value and production cost using the active model
// @Tags         predictions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.PredictionRequest  true  "Prediction Input"
// @Success      200      {object}  response.Response{data=service.PredictionResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response  "No model trained yet"
// @Router       /predictions/predict [post]
func (h *RegressionHandler) Predict(c *gin.Context) {
	var req service.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	prediction, err := h.regressionService.Predict(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveModel):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, prediction))
}

// PredictBatch handles POST /predictions/predict-batch
// @Summary      Predict harvest amounts for multiple inputs
// @Description  Runs the active model over a list of inputs. A single invalid input fails the whole batch; results preserve input order.
// @Tags         predictions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      []service.PredictionRequest  true  "Prediction Inputs"
// @Success      200      {object}  response.Response{data=[]service.PredictionResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response  "No model trained yet"
// @Router       /predictions/predict-batch [post]
func (h *RegressionHandler) PredictBatch(c *gin.Context) {
	var reqs []service.PredictionRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	predictions, err := h.regressionService.PredictBatch(c.Request.Context(), reqs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveModel):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, predictions))
}

// Evaluate handles GET /predictions/evaluate
// @Summary      Evaluate the active model against recorded harvests
// @Description  Compares model predictions against actual harvest amounts per record, with aggregate error metrics
// @Tags         predictions
// @Produce      json
// @Security     BearerAuth
// @Param        start_date  query     string  false  "Evaluate records on or after this date (RFC3339)"
// @Param        end_date    query     string  false  "Evaluate records on or before this date (RFC3339)"
// @Success      200         {object}  response.Response{data=service.EvaluationResponse}
// @Failure      404         {object}  response.Response  "No model trained yet"
// @Router       /predictions/evaluate [get]
func (h *RegressionHandler) Evaluate(c *gin.Context) {
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

	evaluation, err := h.regressionService.Evaluate(c.Request.Context(), startDate, endDate)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveModel) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, evaluation))
}
