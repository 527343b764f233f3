package domain

import (
	"math"
	"strconv"
)

// IndicatorSnapshot holds the latest value of every computed indicator. A nil
// field means the input window was too short to define that indicator; callers
// must treat nil as "do not use", never as zero.
type IndicatorSnapshot struct {
	SMA20         *float64 `json:"sma_20,omitempty"`
	SMA50         *float64 `json:"sma_50,omitempty"`
	EMA12         *float64 `json:"ema_12,omitempty"`
	EMA26         *float64 `json:"ema_26,omitempty"`
	RSI14         *float64 `json:"rsi_14,omitempty"`
	MACD          *float64 `json:"macd,omitempty"`
	MACDSignal    *float64 `json:"macd_signal,omitempty"`
	MACDHistogram *float64 `json:"macd_histogram,omitempty"`
	BBUpper       *float64 `json:"bb_upper,omitempty"`
	BBMiddle      *float64 `json:"bb_middle,omitempty"`
	BBLower       *float64 `json:"bb_lower,omitempty"`
	StochK        *float64 `json:"stoch_k,omitempty"`
	StochD        *float64 `json:"stoch_d,omitempty"`
	ADX14         *float64 `json:"adx_14,omitempty"`
	VolumeSMA     *float64 `json:"volume_sma,omitempty"`
	VolumeRatio   *float64 `json:"volume_ratio,omitempty"`
	OBV           *float64 `json:"obv,omitempty"`
	Support       *float64 `json:"support,omitempty"`
	Resistance    *float64 `json:"resistance,omitempty"`
	Pivot         *float64 `json:"pivot,omitempty"`
	R1            *float64 `json:"r1,omitempty"`
	R2            *float64 `json:"r2,omitempty"`
	S1            *float64 `json:"s1,omitempty"`
	S2            *float64 `json:"s2,omitempty"`
	CurrentPrice  float64  `json:"current_price"`
	CurrentVolume float64  `json:"current_volume"`
}

// FloatSeries is a []float64 that serializes NaN and infinities as JSON null,
// which encoding/json otherwise refuses to emit.
type FloatSeries []float64

func (s FloatSeries) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(s)*8+2)
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

// IndicatorSeries carries the full per-sample history of each indicator for
// charting. Slices are aligned with the input samples; undefined positions
// hold NaN.
type IndicatorSeries struct {
	SMA20         FloatSeries `json:"sma_20"`
	SMA50         FloatSeries `json:"sma_50"`
	EMA12         FloatSeries `json:"ema_12"`
	EMA26         FloatSeries `json:"ema_26"`
	RSI14         FloatSeries `json:"rsi_14"`
	MACD          FloatSeries `json:"macd"`
	MACDSignal    FloatSeries `json:"macd_signal"`
	MACDHistogram FloatSeries `json:"macd_histogram"`
	BBUpper       FloatSeries `json:"bb_upper"`
	BBMiddle      FloatSeries `json:"bb_middle"`
	BBLower       FloatSeries `json:"bb_lower"`
	StochK        FloatSeries `json:"stoch_k"`
	StochD        FloatSeries `json:"stoch_d"`
	ADX14         FloatSeries `json:"adx_14"`
	VolumeSMA     FloatSeries `json:"volume_sma"`
	VolumeRatio   FloatSeries `json:"volume_ratio"`
	OBV           FloatSeries `json:"obv"`
}
