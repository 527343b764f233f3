package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type updateSettingsRequest struct {
	AutoUpdatePrices    *bool   `json:"auto_update_prices"`
	PriceUpdateInterval *int    `json:"price_update_interval"`
	AutoRunAnalysis     *bool   `json:"auto_run_analysis"`
	AnalysisInterval    *int    `json:"analysis_interval"`
	OllamaBaseURL       *string `json:"ollama_base_url"`
	OllamaModel         *string `json:"ollama_model"`
	HistoricalDays      *int    `json:"historical_days"`
}

// GetSettings godoc
// @Summary      Get pipeline settings
// @Description  Returns the live scheduler and reasoning-service configuration
// @Tags         settings
// @Produce      json
// @Success      200  {object}  domain.Settings
// @Router       /api/settings [get]
func (h *Handler) GetSettings(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-settings")
	defer span.End()

	settings, err := h.settings.Load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary      Update pipeline settings
// @Description  Applies a partial settings update and restarts the background loops so the new values take effect immediately
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        settings  body  updateSettingsRequest  true  "Fields to change; omitted fields keep their value"
// @Success      200  {object}  domain.Settings
// @Failure      400  {object}  map[string]string
// @Router       /api/settings [put]
func (h *Handler) UpdateSettings(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.update-settings")
	defer span.End()

	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.PriceUpdateInterval != nil && *req.PriceUpdateInterval < 1) ||
		(req.AnalysisInterval != nil && *req.AnalysisInterval < 1) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "intervals must be at least one minute"})
		return
	}
	if req.HistoricalDays != nil && (*req.HistoricalDays < 1 || *req.HistoricalDays > 365) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "historical_days must be within 1-365"})
		return
	}

	settings, err := h.settings.Load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.AutoUpdatePrices != nil {
		settings.AutoUpdatePrices = *req.AutoUpdatePrices
	}
	if req.PriceUpdateInterval != nil {
		settings.PriceUpdateInterval = *req.PriceUpdateInterval
	}
	if req.AutoRunAnalysis != nil {
		settings.AutoRunAnalysis = *req.AutoRunAnalysis
	}
	if req.AnalysisInterval != nil {
		settings.AnalysisInterval = *req.AnalysisInterval
	}
	if req.OllamaBaseURL != nil {
		settings.OllamaBaseURL = *req.OllamaBaseURL
	}
	if req.OllamaModel != nil {
		settings.OllamaModel = *req.OllamaModel
	}
	if req.HistoricalDays != nil {
		settings.HistoricalDays = *req.HistoricalDays
	}

	if err := h.settings.Save(ctx, settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.scheduler.Restart(c.Request.Context())

	c.JSON(http.StatusOK, settings)
}
