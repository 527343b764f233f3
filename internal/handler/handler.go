package handler

import (
	"context"

	"coin-compass/internal/domain"
	"coin-compass/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// AssetStore is the portfolio surface the asset endpoints use.
type AssetStore interface {
	List(ctx context.Context) ([]domain.Asset, error)
	GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error)
	Create(ctx context.Context, asset *domain.Asset) error
	Delete(ctx context.Context, symbol string) error
}

// SettingsStore is the settings surface the settings endpoints use.
type SettingsStore interface {
	Load(ctx context.Context) (*domain.Settings, error)
	Save(ctx context.Context, s *domain.Settings) error
}

// SchedulerControl lets the settings endpoint bounce the background loops
// after a configuration change.
type SchedulerControl interface {
	Restart(ctx context.Context)
	Running() bool
}

type Handler struct {
	tracer          trace.Tracer
	priceService    *service.PriceService
	analysisService *service.AnalysisService
	assets          AssetStore
	settings        SettingsStore
	scheduler       SchedulerControl
}

func New(
	tracer trace.Tracer,
	priceService *service.PriceService,
	analysisService *service.AnalysisService,
	assets AssetStore,
	settings SettingsStore,
	sched SchedulerControl,
) *Handler {
	return &Handler{
		tracer:          tracer,
		priceService:    priceService,
		analysisService: analysisService,
		assets:          assets,
		settings:        settings,
		scheduler:       sched,
	}
}

// RegisterRoutes wires all endpoints. Only /api is behind the API key;
// health and swagger stay open.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.Use(APIKeyAuth(apiKey))
	api.GET("/prices", h.GetPrices)
	api.GET("/prices/:symbol", h.GetPrice)
	api.GET("/history/:symbol", h.GetHistory)
	api.GET("/stats/:symbol", h.GetStats)
	api.GET("/search", h.Search)
	api.GET("/indicators/:symbol", h.GetIndicators)

	api.GET("/assets", h.ListAssets)
	api.POST("/assets", h.CreateAsset)
	api.DELETE("/assets/:symbol", h.DeleteAsset)

	api.GET("/analysis/:symbol", h.GetAnalysis)
	api.POST("/analysis/:symbol", h.RunAnalysis)

	api.GET("/settings", h.GetSettings)
	api.PUT("/settings", h.UpdateSettings)
}
