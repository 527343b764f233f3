// Package scheduler drives the two background loops: periodic price refresh
// and periodic technical analysis. Each loop re-reads settings at the top of
// every cycle, so interval and toggle edits apply without a process restart;
// the settings endpoint additionally restarts the scheduler so a shortened
// interval cuts any in-flight sleep short.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"coin-compass/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	// Floor for any computed wait so a zero interval can never spin the loop.
	minWait = time.Second

	priceBackoff    = 60 * time.Second
	analysisBackoff = 300 * time.Second

	stopTimeout = 5 * time.Second
)

// SettingsStore is the live configuration surface the loops poll.
type SettingsStore interface {
	Load(ctx context.Context) (*domain.Settings, error)
	MarkPriceUpdate(ctx context.Context, at time.Time) error
	MarkAnalysisRun(ctx context.Context, at time.Time) error
}

// PriceUpdater refreshes quotes and price history for every tracked asset.
type PriceUpdater interface {
	UpdatePrices(ctx context.Context) error
}

// AnalysisRunner recomputes indicators and recommendations for every tracked
// asset.
type AnalysisRunner interface {
	RunAnalysis(ctx context.Context) error
}

type Scheduler struct {
	tracer   trace.Tracer
	settings SettingsStore
	prices   PriceUpdater
	analyses AnalysisRunner

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	now func() time.Time
}

func New(tracer trace.Tracer, settings SettingsStore, prices PriceUpdater, analyses AnalysisRunner) *Scheduler {
	return &Scheduler{
		tracer:   tracer,
		settings: settings,
		prices:   prices,
		analyses: analyses,
		now:      time.Now,
	}
}

// Start launches both loops. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.priceLoop(loopCtx)
	}()
	go func() {
		defer wg.Done()
		s.analysisLoop(loopCtx)
	}()
	go func(done chan struct{}) {
		wg.Wait()
		close(done)
	}(s.done)

	log.Println("scheduler started")
}

// Stop cancels both loops and waits up to five seconds for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.Println("scheduler stop timed out waiting for loops")
	}
	log.Println("scheduler stopped")
}

// Restart bounces both loops, typically after a settings update.
func (s *Scheduler) Restart(ctx context.Context) {
	s.Stop()
	s.Start(ctx)
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// priceLoop refreshes prices whenever auto-update is on and the configured
// interval has elapsed since the last successful run. Settings are read once
// per cycle, the loop then sleeps until the next run is due; errors back off
// for a minute instead of killing the loop.
func (s *Scheduler) priceLoop(ctx context.Context) {
	for {
		settings, err := s.settings.Load(ctx)
		if err != nil {
			log.Printf("price loop: load settings: %v", err)
			if !s.sleep(ctx, priceBackoff) {
				return
			}
			continue
		}

		interval := time.Duration(settings.PriceUpdateInterval) * time.Minute
		wait := interval
		if settings.AutoUpdatePrices && s.due(settings.LastPriceUpdate, settings.PriceUpdateInterval) {
			runCtx, span := s.tracer.Start(ctx, "scheduler.price-cycle")
			err := s.prices.UpdatePrices(runCtx)
			if err != nil {
				span.RecordError(err)
			}
			span.End()
			if err != nil {
				log.Printf("price loop: update failed: %v", err)
				if !s.sleep(ctx, priceBackoff) {
					return
				}
				continue
			}
			if err := s.settings.MarkPriceUpdate(ctx, s.now()); err != nil {
				log.Printf("price loop: mark update: %v", err)
			}
		} else if settings.AutoUpdatePrices && settings.LastPriceUpdate != nil {
			wait = interval - s.now().Sub(*settings.LastPriceUpdate)
		}

		if wait < minWait {
			wait = minWait
		}
		if !s.sleep(ctx, wait) {
			return
		}
	}
}

// analysisLoop mirrors priceLoop for the analysis pipeline with a longer
// backoff, since a broken reasoning service is slower to recover.
func (s *Scheduler) analysisLoop(ctx context.Context) {
	for {
		settings, err := s.settings.Load(ctx)
		if err != nil {
			log.Printf("analysis loop: load settings: %v", err)
			if !s.sleep(ctx, analysisBackoff) {
				return
			}
			continue
		}

		interval := time.Duration(settings.AnalysisInterval) * time.Minute
		wait := interval
		if settings.AutoRunAnalysis && s.due(settings.LastAnalysisRun, settings.AnalysisInterval) {
			runCtx, span := s.tracer.Start(ctx, "scheduler.analysis-cycle")
			err := s.analyses.RunAnalysis(runCtx)
			if err != nil {
				span.RecordError(err)
			}
			span.End()
			if err != nil {
				log.Printf("analysis loop: run failed: %v", err)
				if !s.sleep(ctx, analysisBackoff) {
					return
				}
				continue
			}
			if err := s.settings.MarkAnalysisRun(ctx, s.now()); err != nil {
				log.Printf("analysis loop: mark run: %v", err)
			}
		} else if settings.AutoRunAnalysis && settings.LastAnalysisRun != nil {
			wait = interval - s.now().Sub(*settings.LastAnalysisRun)
		}

		if wait < minWait {
			wait = minWait
		}
		if !s.sleep(ctx, wait) {
			return
		}
	}
}

// due reports whether intervalMinutes has elapsed since last. A nil last means
// the loop has never run and is due immediately.
func (s *Scheduler) due(last *time.Time, intervalMinutes int) bool {
	if last == nil {
		return true
	}
	return s.now().Sub(*last) >= time.Duration(intervalMinutes)*time.Minute
}

// sleep waits for d or until ctx cancels, returning false on cancellation.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
