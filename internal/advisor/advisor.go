// Package advisor turns an indicator snapshot into a trading recommendation
// by briefing a reasoning model and defensively parsing whatever comes back.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"coin-compass/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LLMClient abstracts the reasoning service: one prompt in, raw text out.
type LLMClient interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// ServiceConfig is the live reasoning-service endpoint and model, re-read
// from settings each analysis cycle.
type ServiceConfig struct {
	BaseURL string
	Model   string
}

// Advice is the engine's verdict. Recommendation is always one of
// buy/sell/hold and Confidence is always within [0,100].
type Advice struct {
	Recommendation domain.Recommendation `json:"recommendation"`
	Confidence     float64               `json:"confidence"`
	Reasoning      string                `json:"reasoning"`
	Raw            string                `json:"-"`
}

type Engine struct {
	tracer    trace.Tracer
	newClient func(baseURL string) LLMClient
}

func NewEngine(tracer trace.Tracer) *Engine {
	return &Engine{
		tracer: tracer,
		newClient: func(baseURL string) LLMClient {
			return NewOllamaClient(baseURL)
		},
	}
}

// Recommend asks the reasoning service for a verdict on the snapshot. It
// never fails: any error degrades to a neutral hold with zero confidence and
// a reasoning message naming the failure class, so a dead model server only
// costs recommendation quality, never the pipeline.
func (e *Engine) Recommend(ctx context.Context, cfg ServiceConfig, snapshot *domain.IndicatorSnapshot, symbol string, currentPrice float64) Advice {
	ctx, span := e.tracer.Start(ctx, "advisor.recommend")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("llm.model", cfg.Model),
	)

	prompt := BuildPrompt(snapshot, symbol, currentPrice)

	raw, err := e.newClient(cfg.BaseURL).Generate(ctx, cfg.Model, prompt)
	if err != nil {
		span.RecordError(err)
		log.Printf("reasoning service call failed for %s: %v", symbol, err)
		return failureAdvice(err)
	}

	advice := parseResponse(raw)
	span.SetAttributes(
		attribute.String("recommendation", string(advice.Recommendation)),
		attribute.Float64("confidence", advice.Confidence),
	)
	return advice
}

// failureAdvice distinguishes "service down" from everything else so an
// operator reading the stored reasoning knows which problem to chase.
func failureAdvice(err error) Advice {
	reasoning := fmt.Sprintf("Error during analysis: %v. Please check the reasoning service configuration.", err)
	if isConnectivityError(err) {
		reasoning = "Reasoning service is not available. Please check the Ollama connection settings."
	}
	return Advice{
		Recommendation: domain.RecommendHold,
		Confidence:     0,
		Reasoning:      reasoning,
	}
}

func isConnectivityError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded")
}

// OllamaClient speaks to an Ollama server through its OpenAI-compatible /v1
// endpoint using the official OpenAI SDK.
type OllamaClient struct {
	client openai.Client
}

func NewOllamaClient(baseURL string) *OllamaClient {
	url := strings.TrimSpace(baseURL)
	if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	url = strings.TrimRight(url, "/")

	client := openai.NewClient(
		option.WithBaseURL(url+"/v1"),
		// Ollama ignores the key but the SDK requires one.
		option.WithAPIKey("ollama"),
	)
	return &OllamaClient{client: client}
}

func (c *OllamaClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in reasoning response")
	}
	return completion.Choices[0].Message.Content, nil
}
