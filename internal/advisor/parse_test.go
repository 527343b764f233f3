package advisor

import (
	"math"
	"testing"

	"coin-compass/internal/domain"
)

func TestParseResponseValidJSON(t *testing.T) {
	t.Parallel()

	raw := `{"recommendation": "BUY", "confidence_score": 78, "reasoning": "RSI oversold with bullish MACD crossover"}`
	advice := parseResponse(raw)

	if advice.Recommendation != domain.RecommendBuy {
		t.Fatalf("expected buy, got %s", advice.Recommendation)
	}
	if advice.Confidence != 78 {
		t.Fatalf("expected confidence 78, got %f", advice.Confidence)
	}
	if advice.Reasoning != "RSI oversold with bullish MACD crossover" {
		t.Fatalf("unexpected reasoning: %q", advice.Reasoning)
	}
}

func TestParseResponseJSONEmbeddedInProse(t *testing.T) {
	t.Parallel()

	raw := "Here is my analysis:\n{\"recommendation\": \"SELL\", \"confidence_score\": 65, \"reasoning\": \"overbought\"}\nThanks!"
	advice := parseResponse(raw)

	if advice.Recommendation != domain.RecommendSell || advice.Confidence != 65 {
		t.Fatalf("unexpected advice: %+v", advice)
	}
}

func TestParseResponseKeywordFallback(t *testing.T) {
	t.Parallel()

	advice := parseResponse("I would buy here, confidence: 72 out of 100")
	if advice.Recommendation != domain.RecommendBuy {
		t.Fatalf("expected buy from keyword scan, got %s", advice.Recommendation)
	}
	if advice.Confidence != 72 {
		t.Fatalf("expected confidence 72 from text, got %f", advice.Confidence)
	}
}

func TestParseResponseGarbageDefaultsToHold(t *testing.T) {
	t.Parallel()

	advice := parseResponse("the weather is nice today")
	if advice.Recommendation != domain.RecommendHold {
		t.Fatalf("expected hold default, got %s", advice.Recommendation)
	}
	if advice.Confidence != 50 {
		t.Fatalf("expected default confidence 50, got %f", advice.Confidence)
	}
	if advice.Reasoning != "the weather is nice today" {
		t.Fatalf("raw text should be kept as reasoning, got %q", advice.Reasoning)
	}
}

func TestNormalizeRecommendationSubstrings(t *testing.T) {
	t.Parallel()

	cases := map[string]domain.Recommendation{
		"BUY":         domain.RecommendBuy,
		"STRONG_BUY":  domain.RecommendBuy,
		"strong buy":  domain.RecommendBuy,
		"SELL":        domain.RecommendSell,
		"STRONG_SELL": domain.RecommendSell,
		"HOLD":        domain.RecommendHold,
		"NEUTRAL":     domain.RecommendHold,
		"":            domain.RecommendHold,
		"garbage":     domain.RecommendHold,
	}
	for in, want := range cases {
		if got := normalizeRecommendation(in); got != want {
			t.Fatalf("normalizeRecommendation(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{50, 50},
		{150, 100},
		{100, 100},
		{87.3456, 87.3},
		{math.NaN(), 50},
	}
	for _, tc := range cases {
		if got := clampConfidence(tc.in); got != tc.want {
			t.Fatalf("clampConfidence(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestParseResponseStringConfidence(t *testing.T) {
	t.Parallel()

	raw := `{"recommendation": "HOLD", "confidence_score": "45", "reasoning": "mixed signals"}`
	advice := parseResponse(raw)
	if advice.Confidence != 45 {
		t.Fatalf("expected string confidence parsed to 45, got %f", advice.Confidence)
	}
}
