package advisor

import (
	"fmt"
	"strings"

	"coin-compass/internal/domain"
)

// BuildPrompt renders the indicator brief and the fixed decision rules the
// reasoning model must apply. Absent indicators are simply omitted so the
// model never sees a fabricated zero.
func BuildPrompt(s *domain.IndicatorSnapshot, symbol string, currentPrice float64) string {
	var sb strings.Builder

	sb.WriteString("You are an expert cryptocurrency technical analyst with 20+ years of experience. ")
	fmt.Fprintf(&sb, "Analyze the following technical indicators for %s and provide a trading recommendation.\n\n", symbol)
	sb.WriteString(formatIndicators(s, symbol, currentPrice))

	sb.WriteString(`
ANALYSIS RULES:
1. BUY recommendation requires at least 2 of:
   - RSI < 40 (oversold territory)
   - MACD bullish crossover (MACD > Signal) with positive histogram
   - Price below lower Bollinger Band (oversold)
   - Strong bullish trend (SMA 20 > SMA 50, ADX > 25)

2. SELL recommendation requires at least 2 of:
   - RSI > 60 (overbought territory)
   - MACD bearish crossover (MACD < Signal) with negative histogram
   - Price above upper Bollinger Band (overbought)
   - Strong bearish trend (SMA 20 < SMA 50, ADX > 25)

3. HOLD recommendation when signals are mixed, neutral, or waiting for confirmation.

4. Confidence Score Guidelines:
   - 80-100: Very strong signal, multiple indicators align
   - 60-79: Strong signal, 2-3 indicators align
   - 40-59: Moderate signal, some indicators align
   - 20-39: Weak signal, conflicting indicators
   - 0-19: Very weak or no clear signal

Provide:
1. A clear recommendation: BUY, SELL, or HOLD
2. A confidence score from 0 to 100
3. A detailed reasoning explaining your decision based on the technical indicators

Format your response as JSON with the following structure:
{
    "recommendation": "BUY|SELL|HOLD",
    "confidence_score": <number between 0 and 100>,
    "reasoning": "<detailed explanation mentioning specific indicator values>"
}

Respond ONLY with valid JSON, no additional text.`)

	return sb.String()
}

func formatIndicators(s *domain.IndicatorSnapshot, symbol string, currentPrice float64) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "CRYPTO: %s\nCURRENT PRICE: $%.2f\n\nTECHNICAL INDICATORS:\n", symbol, currentPrice)

	if s.RSI14 != nil {
		rsi := *s.RSI14
		status := "NEUTRAL"
		if rsi < 30 {
			status = "OVERSOLD"
		} else if rsi > 70 {
			status = "OVERBOUGHT"
		}
		fmt.Fprintf(&sb, "- RSI (14): %.2f (%s)\n", rsi, status)
	}

	if s.MACD != nil && s.MACDSignal != nil {
		trend := "BEARISH"
		if *s.MACD > *s.MACDSignal {
			trend = "BULLISH"
		}
		histogram := 0.0
		if s.MACDHistogram != nil {
			histogram = *s.MACDHistogram
		}
		fmt.Fprintf(&sb, "- MACD: %.4f, Signal: %.4f, Histogram: %.4f (%s)\n",
			*s.MACD, *s.MACDSignal, histogram, trend)
	}

	if s.SMA20 != nil && s.SMA50 != nil {
		trend := "BEARISH"
		if *s.SMA20 > *s.SMA50 {
			trend = "BULLISH"
		}
		fmt.Fprintf(&sb, "- SMA 20: $%.2f, SMA 50: $%.2f (%s)\n", *s.SMA20, *s.SMA50, trend)
	}

	if s.BBUpper != nil && s.BBLower != nil {
		middle := 0.0
		if s.BBMiddle != nil {
			middle = *s.BBMiddle
		}
		position := "WITHIN BANDS"
		if currentPrice > *s.BBUpper {
			position = "ABOVE UPPER BAND (Overbought)"
		} else if currentPrice < *s.BBLower {
			position = "BELOW LOWER BAND (Oversold)"
		}
		fmt.Fprintf(&sb, "- Bollinger Bands: Upper $%.2f, Middle $%.2f, Lower $%.2f - Price is %s\n",
			*s.BBUpper, middle, *s.BBLower, position)
	}

	if s.StochK != nil && s.StochD != nil {
		status := "NEUTRAL"
		if *s.StochK < 20 {
			status = "OVERSOLD"
		} else if *s.StochK > 80 {
			status = "OVERBOUGHT"
		}
		fmt.Fprintf(&sb, "- Stochastic: K=%.2f, D=%.2f (%s)\n", *s.StochK, *s.StochD, status)
	}

	if s.ADX14 != nil {
		strength := "MODERATE"
		if *s.ADX14 > 25 {
			strength = "STRONG"
		} else if *s.ADX14 < 20 {
			strength = "WEAK"
		}
		fmt.Fprintf(&sb, "- ADX: %.2f (Trend Strength: %s)\n", *s.ADX14, strength)
	}

	if s.VolumeRatio != nil {
		status := "NORMAL"
		if *s.VolumeRatio > 1.5 {
			status = "HIGH"
		} else if *s.VolumeRatio < 0.5 {
			status = "LOW"
		}
		fmt.Fprintf(&sb, "- Volume Ratio: %.2fx (%s volume)\n", *s.VolumeRatio, status)
	}

	if s.Support != nil && s.Resistance != nil {
		fmt.Fprintf(&sb, "- Support Level: $%.2f\n", *s.Support)
		fmt.Fprintf(&sb, "- Resistance Level: $%.2f\n", *s.Resistance)
	}

	return sb.String()
}
