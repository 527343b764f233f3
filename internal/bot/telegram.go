package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"coin-compass/internal/marketdata"
	"coin-compass/internal/service"

	tele "gopkg.in/telebot.v3"
)

func StartTelegramBot(priceService *service.PriceService, analysisService *service.AnalysisService) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/price", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /price BTC")
		}
		symbol := marketdata.NormalizeSymbol(args[0])
		quote, err := priceService.GetQuote(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("No price available for %s", symbol))
		}
		msg := fmt.Sprintf(
			"%s (%s)\nPrice: $%.2f\n24h Change: %.2f%%\n24h Volume: $%.0f",
			symbol, quote.Source, quote.Price, quote.Change24hPct, quote.Volume24h,
		)
		return c.Send(msg)
	})

	b.Handle("/analysis", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /analysis BTC")
		}
		symbol := marketdata.NormalizeSymbol(args[0])
		rec, err := analysisService.Analyze(context.Background(), symbol, false)
		if err != nil {
			return c.Send(fmt.Sprintf("Analysis failed for %s: %v", symbol, err))
		}
		msg := fmt.Sprintf(
			"%s Analysis\nRecommendation: %s\nConfidence: %.1f%%\nAs of: %s\n\n%s",
			symbol,
			strings.ToUpper(string(rec.Recommendation)),
			rec.Confidence,
			rec.AnalyzedAt.Format(time.RFC822),
			rec.Reasoning,
		)
		return c.Send(msg)
	})

	log.Println("Telegram bot started")
	go b.Start()
}
