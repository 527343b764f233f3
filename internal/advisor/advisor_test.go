package advisor

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"

	"coin-compass/internal/domain"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type stubLLM struct {
	response string
	err      error
	prompts  []string
	models   []string
}

func (s *stubLLM) Generate(ctx context.Context, model, prompt string) (string, error) {
	s.models = append(s.models, model)
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func newTestEngine(llm *stubLLM) *Engine {
	e := NewEngine(sdktrace.NewTracerProvider().Tracer("test"))
	e.newClient = func(baseURL string) LLMClient { return llm }
	return e
}

func testSnapshot() *domain.IndicatorSnapshot {
	rsi, macd, signal := 25.0, 1.5, 1.0
	return &domain.IndicatorSnapshot{
		RSI14:        &rsi,
		MACD:         &macd,
		MACDSignal:   &signal,
		CurrentPrice: 50000,
	}
}

func TestRecommendParsesModelVerdict(t *testing.T) {
	t.Parallel()

	llm := &stubLLM{response: `{"recommendation": "BUY", "confidence_score": 80, "reasoning": "oversold"}`}
	engine := newTestEngine(llm)

	advice := engine.Recommend(context.Background(), ServiceConfig{Model: "plutus"}, testSnapshot(), "BTC", 50000)

	if advice.Recommendation != domain.RecommendBuy || advice.Confidence != 80 {
		t.Fatalf("unexpected advice: %+v", advice)
	}
	if len(llm.models) != 1 || llm.models[0] != "plutus" {
		t.Fatalf("expected configured model to be used, got %v", llm.models)
	}
}

func TestRecommendConnectivityFailureDegradesToHold(t *testing.T) {
	t.Parallel()

	llm := &stubLLM{err: syscall.ECONNREFUSED}
	engine := newTestEngine(llm)

	advice := engine.Recommend(context.Background(), ServiceConfig{}, testSnapshot(), "BTC", 50000)

	if advice.Recommendation != domain.RecommendHold || advice.Confidence != 0 {
		t.Fatalf("expected neutral hold, got %+v", advice)
	}
	if !strings.Contains(advice.Reasoning, "not available") {
		t.Fatalf("expected service-unavailable reasoning, got %q", advice.Reasoning)
	}
}

func TestRecommendOtherFailureNamesTheError(t *testing.T) {
	t.Parallel()

	llm := &stubLLM{err: errors.New("model not found")}
	engine := newTestEngine(llm)

	advice := engine.Recommend(context.Background(), ServiceConfig{}, testSnapshot(), "BTC", 50000)

	if advice.Recommendation != domain.RecommendHold || advice.Confidence != 0 {
		t.Fatalf("expected neutral hold, got %+v", advice)
	}
	if !strings.Contains(advice.Reasoning, "model not found") {
		t.Fatalf("expected error detail in reasoning, got %q", advice.Reasoning)
	}
}

func TestIsConnectivityError(t *testing.T) {
	t.Parallel()

	if !isConnectivityError(errors.New("dial tcp: connection refused")) {
		t.Fatal("connection refused should count as connectivity")
	}
	if !isConnectivityError(errors.New("context deadline exceeded")) {
		t.Fatal("deadline exceeded should count as connectivity")
	}
	if isConnectivityError(errors.New("invalid model")) {
		t.Fatal("model errors are not connectivity failures")
	}
}

func TestBuildPromptIncludesIndicatorsAndRules(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(testSnapshot(), "BTC", 50000)

	for _, want := range []string{
		"BTC",
		"RSI (14): 25.00 (OVERSOLD)",
		"MACD: 1.5000",
		"BULLISH",
		"ANALYSIS RULES",
		`"recommendation": "BUY|SELL|HOLD"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptLabelsBearishMACD(t *testing.T) {
	t.Parallel()

	macd, signal := -2.5, -1.0
	prompt := BuildPrompt(&domain.IndicatorSnapshot{
		MACD:         &macd,
		MACDSignal:   &signal,
		CurrentPrice: 100,
	}, "BTC", 100)

	if !strings.Contains(prompt, "MACD: -2.5000, Signal: -1.0000") {
		t.Fatalf("prompt missing MACD values:\n%s", prompt)
	}
	if !strings.Contains(prompt, "(BEARISH)") {
		t.Fatalf("MACD below signal should read BEARISH:\n%s", prompt)
	}
}

func TestBuildPromptOmitsAbsentIndicators(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(&domain.IndicatorSnapshot{CurrentPrice: 100}, "DOGE", 100)

	for _, unwanted := range []string{"RSI", "Bollinger", "Stochastic", "ADX", "Support Level"} {
		if strings.Contains(prompt, unwanted) {
			t.Fatalf("prompt should omit absent indicator %q:\n%s", unwanted, prompt)
		}
	}
}
