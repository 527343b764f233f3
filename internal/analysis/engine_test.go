package analysis

import (
	"context"
	"testing"
	"time"

	"coin-compass/internal/domain"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func sampleSeries(n int, start float64, step float64) []domain.PriceSample {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]domain.PriceSample, n)
	for i := 0; i < n; i++ {
		price := start + step*float64(i)
		samples[i] = domain.PriceSample{
			Symbol:    "BTC",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
			Source:    domain.SourceBinance,
		}
	}
	return samples
}

func TestComputeEmptyInput(t *testing.T) {
	t.Parallel()

	engine := NewEngine(sdktrace.NewTracerProvider().Tracer("test"))
	if _, _, err := engine.Compute(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestComputeShortWindowLeavesIndicatorsAbsent(t *testing.T) {
	t.Parallel()

	engine := NewEngine(sdktrace.NewTracerProvider().Tracer("test"))
	_, snapshot, err := engine.Compute(context.Background(), sampleSeries(10, 100, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.SMA20 != nil || snapshot.SMA50 != nil {
		t.Fatal("SMAs must be absent with only 10 samples")
	}
	if snapshot.RSI14 != nil {
		t.Fatal("RSI must be absent with only 10 samples")
	}
	// EMAs are seeded from the first value and always defined.
	if snapshot.EMA12 == nil || snapshot.EMA26 == nil {
		t.Fatal("EMAs should be defined from the first sample")
	}
	if snapshot.CurrentPrice != 109 {
		t.Fatalf("current price should be the last close, got %f", snapshot.CurrentPrice)
	}
}

func TestComputeLongWindowFillsSnapshot(t *testing.T) {
	t.Parallel()

	engine := NewEngine(sdktrace.NewTracerProvider().Tracer("test"))
	series, snapshot, err := engine.Compute(context.Background(), sampleSeries(60, 100, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.SMA20 == nil || snapshot.SMA50 == nil || snapshot.RSI14 == nil ||
		snapshot.MACD == nil || snapshot.BBUpper == nil || snapshot.StochK == nil ||
		snapshot.ADX14 == nil || snapshot.VolumeRatio == nil || snapshot.OBV == nil {
		t.Fatalf("expected a fully populated snapshot with 60 samples: %+v", snapshot)
	}
	if *snapshot.RSI14 != 100 {
		t.Fatalf("monotonic rise should read RSI 100, got %f", *snapshot.RSI14)
	}
	if snapshot.Support == nil || snapshot.Resistance == nil || snapshot.Pivot == nil {
		t.Fatal("expected support/resistance levels")
	}
	if len(series.SMA20) != 60 {
		t.Fatalf("series must align with input, got %d", len(series.SMA20))
	}
}

func TestComputeNormalizesPriceOnlySamples(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]domain.PriceSample, 30)
	for i := range samples {
		samples[i] = domain.PriceSample{
			Symbol:    "BTC",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Close:     100 + float64(i),
			Source:    domain.SourceCoinGecko,
		}
	}

	engine := NewEngine(sdktrace.NewTracerProvider().Tracer("test"))
	_, snapshot, err := engine.Compute(context.Background(), samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// With open=high=low=close the close always sits at the window high.
	if snapshot.StochK == nil || *snapshot.StochK != 100 {
		t.Fatalf("normalized price-only samples should read stochastic 100: %+v", snapshot.StochK)
	}
	if snapshot.SMA20 == nil {
		t.Fatal("close-based indicators should still be defined")
	}
	if snapshot.Resistance == nil || *snapshot.Resistance != 129 {
		t.Fatalf("resistance should come from normalized highs: %+v", snapshot.Resistance)
	}
}

func TestComputeMACDFlipsOnTrendReversal(t *testing.T) {
	t.Parallel()

	// 30 days of hourly bars: rising for 360 bars, then falling back down.
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	const peak = 360
	samples := make([]domain.PriceSample, 720)
	for i := range samples {
		price := 100 + float64(i)
		if i >= peak {
			price = 100 + float64(peak) - float64(i-peak) - 1
		}
		samples[i] = domain.PriceSample{
			Symbol:    "BTC",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
			Source:    domain.SourceBinance,
		}
	}

	engine := NewEngine(sdktrace.NewTracerProvider().Tracer("test"))
	series, snapshot, err := engine.Compute(context.Background(), samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hist := series.MACDHistogram
	for i := 1; i < peak; i++ {
		if hist[i] < 0 {
			t.Fatalf("histogram negative at bar %d during the rising leg: %f", i, hist[i])
		}
	}

	flip := -1
	for i := peak; i < len(hist); i++ {
		if hist[i] < 0 {
			flip = i
			break
		}
	}
	if flip == -1 {
		t.Fatal("histogram never turned negative after the reversal")
	}
	if last := hist[len(hist)-1]; last >= 0 {
		t.Fatalf("histogram should stay negative into the falling leg, got %f", last)
	}

	if snapshot.MACD == nil || snapshot.MACDSignal == nil {
		t.Fatal("expected MACD and signal in the snapshot")
	}
	if *snapshot.MACD >= *snapshot.MACDSignal {
		t.Fatalf("MACD should sit below its signal after the downtrend: macd=%f signal=%f",
			*snapshot.MACD, *snapshot.MACDSignal)
	}
}

func TestComputeSortsUnorderedSamples(t *testing.T) {
	t.Parallel()

	samples := sampleSeries(25, 100, 1)
	// Reverse so the newest bar comes first.
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}

	engine := NewEngine(sdktrace.NewTracerProvider().Tracer("test"))
	_, snapshot, err := engine.Compute(context.Background(), samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.CurrentPrice != 124 {
		t.Fatalf("current price must be the chronologically last close, got %f", snapshot.CurrentPrice)
	}
}
