package advisor

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"coin-compass/internal/domain"
)

var (
	jsonObjectPattern = regexp.MustCompile(`(?s)\{[^{}]*"recommendation"[^{}]*\}`)
	confidencePattern = regexp.MustCompile(`(?i)confidence[:\s]+(\d+)`)
)

// parseResponse extracts a verdict from whatever text the model produced.
// Preference order: a JSON object containing a "recommendation" key, then
// keyword scanning of the raw text. The result is always normalized and
// clamped.
func parseResponse(raw string) Advice {
	recommendation, confidence, reasoning := "HOLD", 50.0, raw

	if match := jsonObjectPattern.FindString(raw); match != "" {
		var fields map[string]any
		if err := json.Unmarshal([]byte(match), &fields); err == nil {
			if v, ok := fields["recommendation"].(string); ok {
				recommendation = v
			}
			if v, ok := toFloat(fields["confidence_score"]); ok {
				confidence = v
			}
			if v, ok := fields["reasoning"].(string); ok && v != "" {
				reasoning = v
			}
			return Advice{
				Recommendation: normalizeRecommendation(recommendation),
				Confidence:     clampConfidence(confidence),
				Reasoning:      reasoning,
				Raw:            raw,
			}
		}
	}

	// No parseable JSON: scan the raw text.
	recommendation, confidence = scanKeywords(raw)
	return Advice{
		Recommendation: normalizeRecommendation(recommendation),
		Confidence:     clampConfidence(confidence),
		Reasoning:      reasoning,
		Raw:            raw,
	}
}

func scanKeywords(raw string) (string, float64) {
	recommendation := "HOLD"
	upper := strings.ToUpper(raw)
	if strings.Contains(upper, "BUY") {
		recommendation = "BUY"
	} else if strings.Contains(upper, "SELL") {
		recommendation = "SELL"
	}

	confidence := 50.0
	if m := confidencePattern.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			confidence = v
		}
	}
	return recommendation, confidence
}

// normalizeRecommendation maps arbitrary upstream verdicts onto the three
// valid values by substring: "STRONG_BUY" is still a buy; anything with
// neither BUY nor SELL in it is a hold.
func normalizeRecommendation(value string) domain.Recommendation {
	upper := strings.ToUpper(strings.TrimSpace(value))
	switch {
	case strings.Contains(upper, "BUY"):
		return domain.RecommendBuy
	case strings.Contains(upper, "SELL"):
		return domain.RecommendSell
	default:
		return domain.RecommendHold
	}
}

// clampConfidence bounds the score to [0,100] at one decimal of precision.
func clampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 50
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return math.Round(v*10) / 10
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
