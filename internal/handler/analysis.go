package handler

import (
	"errors"
	"net/http"

	"coin-compass/internal/marketdata"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetAnalysis godoc
// @Summary      Get the stored analysis for an asset
// @Description  Returns the latest persisted recommendation without recomputing anything
// @Tags         analysis
// @Produce      json
// @Param        symbol  path  string  true  "Asset symbol"
// @Success      200  {object}  domain.AnalysisRecord
// @Failure      404  {object}  map[string]string
// @Router       /api/analysis/{symbol} [get]
func (h *Handler) GetAnalysis(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-analysis")
	defer span.End()

	symbol := marketdata.NormalizeSymbol(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	rec, err := h.analysisService.GetStored(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis for " + symbol})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// RunAnalysis godoc
// @Summary      Run analysis for an asset
// @Description  Returns a recommendation, reusing a fresh stored verdict unless refresh=1 forces a full run
// @Tags         analysis
// @Produce      json
// @Param        symbol   path   string  true   "Asset symbol"
// @Param        refresh  query  string  false  "Force a full pipeline run (1/true)"
// @Success      200  {object}  domain.AnalysisRecord
// @Failure      404  {object}  map[string]string
// @Router       /api/analysis/{symbol} [post]
func (h *Handler) RunAnalysis(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-analysis")
	defer span.End()

	symbol := marketdata.NormalizeSymbol(c.Param("symbol"))
	refresh := c.Query("refresh")
	force := refresh == "1" || refresh == "true"
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Bool("force", force))

	rec, err := h.analysisService.Analyze(ctx, symbol, force)
	if err != nil {
		if errors.Is(err, marketdata.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no market data for " + symbol})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// GetIndicators godoc
// @Summary      Get indicator series for charting
// @Description  Returns full aligned indicator series plus the latest snapshot, without consulting the reasoning service
// @Tags         analysis
// @Produce      json
// @Param        symbol  path   string  true   "Asset symbol"
// @Param        days    query  int     false  "Window size in days (1-365)"  default(30)
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/indicators/{symbol} [get]
func (h *Handler) GetIndicators(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-indicators")
	defer span.End()

	symbol := marketdata.NormalizeSymbol(c.Param("symbol"))
	days := queryDays(c, 30)
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("days", days))

	series, snapshot, err := h.analysisService.Indicators(ctx, symbol, days)
	if err != nil {
		if errors.Is(err, marketdata.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no market data for " + symbol})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"days":     days,
		"series":   series,
		"snapshot": snapshot,
	})
}
