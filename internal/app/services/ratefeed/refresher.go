package ratefeed

import (
	"context"
	"sync"
	"time"

	"github.com/agilewallet/backend/internal/app/services/currencies"
	"github.com/agilewallet/backend/internal/app/system"
	"github.com/agilewallet/backend/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher periodically refreshes the exchange rate of every catalogued
// currency through the attached fetcher.
type Refresher struct {
	service  *currencies.Service
	log      *logger.Logger
	interval time.Duration
	fetcher  Fetcher

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed rate refresher. interval defaults
// to one minute when zero.
func NewRefresher(service *currencies.Service, interval time.Duration, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("ratefeed")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		service:  service,
		log:      log,
		interval: interval,
	}
}

// WithFetcher assigns the fetcher used to retrieve external rates.
func (r *Refresher) WithFetcher(fetcher Fetcher) {
	r.mu.Lock()
	r.fetcher = fetcher
	r.mu.Unlock()
}

func (r *Refresher) Name() string { return "ratefeed-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("rate refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("rate refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r.mu.Lock()
	fetcher := r.fetcher
	r.mu.Unlock()
	if fetcher == nil {
		return
	}

	catalogue, err := r.service.List(ctx)
	if err != nil {
		r.log.WithError(err).Warn("rate refresher tick failed")
		return
	}

	for _, c := range catalogue {
		rate, source, err := fetcher.Fetch(ctx, c)
		if err != nil {
			r.log.WithError(err).
				WithField("currency", c.ID).
				Warn("rate fetch failed")
			continue
		}
		if _, err := r.service.UpdateExchangeRate(ctx, c.ID, rate); err != nil {
			r.log.WithError(err).
				WithField("currency", c.ID).
				Warn("rate update failed")
			continue
		}
		r.log.WithFields(map[string]interface{}{
			"currency": c.ID,
			"rate":     rate,
			"source":   source,
		}).Debug("exchange rate refreshed")
	}
}
