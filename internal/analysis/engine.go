// Package analysis turns an ordered OHLCV series into indicator series and a
// latest-values snapshot for the recommendation engine.
package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"coin-compass/internal/domain"
	"coin-compass/internal/ta"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	smaShortPeriod  = 20
	smaLongPeriod   = 50
	emaFastPeriod   = 12
	emaSlowPeriod   = 26
	macdSignalSpan  = 9
	rsiPeriod       = 14
	bollingerPeriod = 20
	bollingerStdDev = 2.0
	stochKPeriod    = 14
	stochDPeriod    = 3
	adxPeriod       = 14
	volumePeriod    = 20
	levelsWindow    = 20
)

type Engine struct {
	tracer trace.Tracer
}

func NewEngine(tracer trace.Tracer) *Engine {
	return &Engine{tracer: tracer}
}

// Compute calculates every indicator over the samples and extracts the latest
// values. Samples are sorted ascending by timestamp first; price-only samples
// (zero open/high/low) are normalized to open=high=low=close so degraded
// sources flow through the same math. Indicators whose window exceeds the
// series length come back nil in the snapshot, never zero.
func (e *Engine) Compute(ctx context.Context, samples []domain.PriceSample) (*domain.IndicatorSeries, *domain.IndicatorSnapshot, error) {
	_, span := e.tracer.Start(ctx, "analysis.compute")
	defer span.End()
	span.SetAttributes(attribute.Int("sample_count", len(samples)))

	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("no samples to analyze")
	}

	ordered := make([]domain.PriceSample, len(samples))
	copy(ordered, samples)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	n := len(ordered)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, s := range ordered {
		c := s.Close
		opens[i] = s.Open
		highs[i] = s.High
		lows[i] = s.Low
		closes[i] = c
		volumes[i] = s.Volume
		if opens[i] == 0 {
			opens[i] = c
		}
		if highs[i] == 0 {
			highs[i] = c
		}
		if lows[i] == 0 {
			lows[i] = c
		}
	}

	series := &domain.IndicatorSeries{
		SMA20: ta.SMASeries(closes, smaShortPeriod),
		SMA50: ta.SMASeries(closes, smaLongPeriod),
		EMA12: ta.EMASeries(closes, emaFastPeriod),
		EMA26: ta.EMASeries(closes, emaSlowPeriod),
		RSI14: ta.RSISeries(closes, rsiPeriod),
		ADX14: ta.ADXSeries(highs, lows, closes, adxPeriod),
		OBV:   ta.OBVSeries(closes, volumes),
	}
	series.MACD, series.MACDSignal, series.MACDHistogram = ta.MACDSeries(closes, emaFastPeriod, emaSlowPeriod, macdSignalSpan)
	series.BBMiddle, series.BBUpper, series.BBLower = ta.BollingerSeries(closes, bollingerPeriod, bollingerStdDev)
	series.StochK, series.StochD = ta.StochasticSeries(highs, lows, closes, stochKPeriod, stochDPeriod)
	series.VolumeSMA, series.VolumeRatio = ta.VolumeRatioSeries(volumes, volumePeriod)

	snapshot := &domain.IndicatorSnapshot{
		SMA20:         last(series.SMA20),
		SMA50:         last(series.SMA50),
		EMA12:         last(series.EMA12),
		EMA26:         last(series.EMA26),
		RSI14:         last(series.RSI14),
		MACD:          last(series.MACD),
		MACDSignal:    last(series.MACDSignal),
		MACDHistogram: last(series.MACDHistogram),
		BBUpper:       last(series.BBUpper),
		BBMiddle:      last(series.BBMiddle),
		BBLower:       last(series.BBLower),
		StochK:        last(series.StochK),
		StochD:        last(series.StochD),
		ADX14:         last(series.ADX14),
		VolumeSMA:     last(series.VolumeSMA),
		VolumeRatio:   last(series.VolumeRatio),
		OBV:           last(series.OBV),
		CurrentPrice:  closes[n-1],
		CurrentVolume: volumes[n-1],
	}

	if levels, ok := ta.SupportResistance(highs, lows, closes, levelsWindow); ok {
		snapshot.Support = ptr(levels.Support)
		snapshot.Resistance = ptr(levels.Resistance)
		snapshot.Pivot = ptr(levels.Pivot)
		snapshot.R1 = ptr(levels.R1)
		snapshot.R2 = ptr(levels.R2)
		snapshot.S1 = ptr(levels.S1)
		snapshot.S2 = ptr(levels.S2)
	}

	return series, snapshot, nil
}

// last converts the final series element to an optional value; NaN (window
// never filled) becomes nil.
func last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func ptr(v float64) *float64 { return &v }
