package domain

import "time"

// Asset is a tracked cryptocurrency holding. Identity fields are owned by
// whoever manages the portfolio; the pipeline only reads Symbol and Amount.
type Asset struct {
	ID            int64     `json:"id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Amount        float64   `json:"amount"`
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  time.Time `json:"purchase_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Recommendation string

const (
	RecommendBuy  Recommendation = "buy"
	RecommendSell Recommendation = "sell"
	RecommendHold Recommendation = "hold"
)

func (r Recommendation) IsValid() bool {
	return r == RecommendBuy || r == RecommendSell || r == RecommendHold
}

// AnalysisRecord is the latest analysis for one asset: the indicator snapshot
// at analysis time plus the advisor's verdict. Upserted as a whole, keyed by
// symbol; prior recommendations are not retained.
type AnalysisRecord struct {
	Symbol         string            `json:"symbol"`
	Snapshot       IndicatorSnapshot `json:"snapshot"`
	Recommendation Recommendation    `json:"recommendation"`
	Confidence     float64           `json:"confidence"`
	Reasoning      string            `json:"reasoning"`
	AnalyzedAt     time.Time         `json:"analyzed_at"`
}

// Settings is the singleton pipeline configuration. Loaded fresh at the top of
// every scheduler cycle so edits apply without a restart. LastPriceUpdate and
// LastAnalysisRun are the only fields the scheduler writes.
type Settings struct {
	AutoUpdatePrices    bool       `json:"auto_update_prices"`
	PriceUpdateInterval int        `json:"price_update_interval"` // minutes
	AutoRunAnalysis     bool       `json:"auto_run_analysis"`
	AnalysisInterval    int        `json:"analysis_interval"` // minutes
	OllamaBaseURL       string     `json:"ollama_base_url"`
	OllamaModel         string     `json:"ollama_model"`
	HistoricalDays      int        `json:"historical_days"`
	LastPriceUpdate     *time.Time `json:"last_price_update,omitempty"`
	LastAnalysisRun     *time.Time `json:"last_analysis_run,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DefaultSettings mirrors the defaults applied when the settings row is first
// created.
func DefaultSettings() *Settings {
	return &Settings{
		PriceUpdateInterval: 60,
		AnalysisInterval:    360,
		OllamaBaseURL:       "http://localhost:11434",
		OllamaModel:         "plutus",
		HistoricalDays:      30,
	}
}
