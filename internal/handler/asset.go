package handler

import (
	"net/http"
	"time"

	"coin-compass/internal/domain"
	"coin-compass/internal/marketdata"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type createAssetRequest struct {
	Symbol        string    `json:"symbol" binding:"required"`
	Name          string    `json:"name"`
	Amount        float64   `json:"amount"`
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  time.Time `json:"purchase_date"`
}

// ListAssets godoc
// @Summary      List tracked assets
// @Description  Returns every asset in the portfolio
// @Tags         assets
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/assets [get]
func (h *Handler) ListAssets(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-assets")
	defer span.End()

	assets, err := h.assets.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

// CreateAsset godoc
// @Summary      Track a new asset
// @Description  Adds an asset to the portfolio so the background loops pick it up
// @Tags         assets
// @Accept       json
// @Produce      json
// @Param        asset  body  createAssetRequest  true  "Asset to track"
// @Success      201  {object}  domain.Asset
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/assets [post]
func (h *Handler) CreateAsset(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-asset")
	defer span.End()

	var req createAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbol := marketdata.NormalizeSymbol(req.Symbol)
	span.SetAttributes(attribute.String("symbol", symbol))

	existing, err := h.assets.GetBySymbol(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "asset already tracked: " + symbol})
		return
	}

	name := req.Name
	if name == "" {
		name = symbol
	}
	purchaseDate := req.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now().UTC()
	}

	asset := &domain.Asset{
		Symbol:        symbol,
		Name:          name,
		Amount:        req.Amount,
		PurchasePrice: req.PurchasePrice,
		PurchaseDate:  purchaseDate,
	}
	if err := h.assets.Create(ctx, asset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, asset)
}

// DeleteAsset godoc
// @Summary      Stop tracking an asset
// @Description  Removes the asset from the portfolio
// @Tags         assets
// @Produce      json
// @Param        symbol  path  string  true  "Asset symbol"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]string
// @Router       /api/assets/{symbol} [delete]
func (h *Handler) DeleteAsset(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.delete-asset")
	defer span.End()

	symbol := marketdata.NormalizeSymbol(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	existing, err := h.assets.GetBySymbol(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not tracked: " + symbol})
		return
	}

	if err := h.assets.Delete(ctx, symbol); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
