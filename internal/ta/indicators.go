// Package ta implements the rolling/windowed indicator math used by the
// analysis engine. Series are aligned with their inputs; positions where the
// window is not yet full hold NaN.
package ta

import "math"

func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// RollingMean is the n-sample arithmetic mean; NaN until n samples exist, and
// NaN whenever the window contains a NaN.
func RollingMean(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		var sum float64
		ok := true
		for _, v := range values[i-period+1 : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += v
		}
		if ok {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// SMASeries is RollingMean under its conventional name.
func SMASeries(values []float64, period int) []float64 {
	return RollingMean(values, period)
}

// EMASeries seeds with the first value and updates recursively with
// alpha = 2/(period+1), so it is defined from the first sample.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSISeries computes RSI from rolling means of gains and losses over the
// window. A window with no losses reads 100 (fully overbought), not an error.
func RSISeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	for i := period; i < len(closes); i++ {
		var gainSum, lossSum float64
		for j := i - period + 1; j <= i; j++ {
			delta := closes[j] - closes[j-1]
			if delta > 0 {
				gainSum += delta
			} else {
				lossSum -= delta
			}
		}
		avgGain := gainSum / float64(period)
		avgLoss := lossSum / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}

// MACDSeries returns the MACD line (fast EMA - slow EMA), its signal EMA, and
// the histogram (line - signal).
func MACDSeries(values []float64, fast, slow, signal int) ([]float64, []float64, []float64) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMASeries(macdLine, signal)
	histogram := make([]float64, len(values))
	for i := range values {
		histogram[i] = macdLine[i] - signalLine[i]
	}
	return macdLine, signalLine, histogram
}

func BollingerSeries(values []float64, period int, stdDevs float64) ([]float64, []float64, []float64) {
	middle := nanSeries(len(values))
	upper := nanSeries(len(values))
	lower := nanSeries(len(values))
	if period <= 0 {
		return middle, upper, lower
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean, std := MeanStd(window)
		middle[i] = mean
		upper[i] = mean + stdDevs*std
		lower[i] = mean - stdDevs*std
	}
	return middle, upper, lower
}

// StochasticSeries computes %K over the kPeriod high/low range and %D as a
// dPeriod SMA of %K. A flat range leaves %K undefined rather than zero.
func StochasticSeries(highs, lows, closes []float64, kPeriod, dPeriod int) ([]float64, []float64) {
	k := nanSeries(len(closes))
	if kPeriod <= 0 {
		return k, nanSeries(len(closes))
	}
	for i := kPeriod - 1; i < len(closes); i++ {
		lowMin := math.Inf(1)
		highMax := math.Inf(-1)
		for j := i - kPeriod + 1; j <= i; j++ {
			lowMin = math.Min(lowMin, lows[j])
			highMax = math.Max(highMax, highs[j])
		}
		if highMax == lowMin {
			continue
		}
		k[i] = 100 * (closes[i] - lowMin) / (highMax - lowMin)
	}
	d := RollingMean(k, dPeriod)
	return k, d
}

// TrueRangeSeries is max(high-low, |high-prevClose|, |low-prevClose|);
// undefined for the first sample.
func TrueRangeSeries(highs, lows, closes []float64) []float64 {
	out := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ADXSeries computes the classic directional-movement index with rolling-mean
// smoothing of DM, TR and DX.
func ADXSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 || n == 0 {
		return nanSeries(n)
	}
	plusDM := nanSeries(n)
	minusDM := nanSeries(n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		plusDM[i] = 0
		minusDM[i] = 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	atr := RollingMean(TrueRangeSeries(highs, lows, closes), period)
	plusSmooth := RollingMean(plusDM, period)
	minusSmooth := RollingMean(minusDM, period)

	dx := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || atr[i] == 0 || math.IsNaN(plusSmooth[i]) || math.IsNaN(minusSmooth[i]) {
			continue
		}
		plusDI := 100 * plusSmooth[i] / atr[i]
		minusDI := 100 * minusSmooth[i] / atr[i]
		if plusDI+minusDI == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	return RollingMean(dx, period)
}

// OBVSeries is the cumulative volume signed by the close-to-close direction.
// A flat close contributes nothing.
func OBVSeries(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	var obv float64
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			obv += volumes[i]
		case closes[i] < closes[i-1]:
			obv -= volumes[i]
		}
		out[i] = obv
	}
	return out
}

// VolumeRatioSeries divides each volume by its period rolling mean.
func VolumeRatioSeries(volumes []float64, period int) ([]float64, []float64) {
	sma := RollingMean(volumes, period)
	ratio := nanSeries(len(volumes))
	for i := range volumes {
		if math.IsNaN(sma[i]) || sma[i] == 0 {
			continue
		}
		ratio[i] = volumes[i] / sma[i]
	}
	return sma, ratio
}

// Levels are support/resistance and pivot points over a trailing window.
type Levels struct {
	Support    float64
	Resistance float64
	Pivot      float64
	R1         float64
	R2         float64
	S1         float64
	S2         float64
}

// SupportResistance derives levels from the trailing window samples: support
// and resistance from the window extremes, pivots from the last bar.
func SupportResistance(highs, lows, closes []float64, window int) (Levels, bool) {
	n := len(closes)
	if n == 0 {
		return Levels{}, false
	}
	start := n - window
	if start < 0 {
		start = 0
	}
	resistance := math.Inf(-1)
	support := math.Inf(1)
	for i := start; i < n; i++ {
		resistance = math.Max(resistance, highs[i])
		support = math.Min(support, lows[i])
	}
	lastHigh := highs[n-1]
	lastLow := lows[n-1]
	lastClose := closes[n-1]
	pivot := (lastHigh + lastLow + lastClose) / 3
	return Levels{
		Support:    support,
		Resistance: resistance,
		Pivot:      pivot,
		R1:         2*pivot - lastLow,
		R2:         pivot + (lastHigh - lastLow),
		S1:         2*pivot - lastHigh,
		S2:         pivot - (lastHigh - lastLow),
	}, true
}
