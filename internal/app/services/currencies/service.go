// Package currencies manages the catalogue of supported currencies and
// their USD exchange rates.
package currencies

import (
	"context"
	"errors"
	"fmt"

	"github.com/agilewallet/backend/internal/app/domain/currency"
	"github.com/agilewallet/backend/internal/app/storage"
	"github.com/agilewallet/backend/pkg/logger"
)

// ErrCurrencyNotFound indicates the referenced currency does not exist.
var ErrCurrencyNotFound = errors.New("currency not found")

// Service manages the currency catalogue.
type Service struct {
	store storage.CurrencyStore
	log   *logger.Logger
}

// New constructs a currency service.
func New(store storage.CurrencyStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("currencies")
	}
	return &Service{store: store, log: log}
}

// Create registers a currency in the catalogue.
func (s *Service) Create(ctx context.Context, c currency.Currency) (currency.Currency, error) {
	if c.ID == "" {
		return currency.Currency{}, fmt.Errorf("id is required")
	}
	if c.Name == "" || c.Symbol == "" {
		return currency.Currency{}, fmt.Errorf("name and symbol are required")
	}
	if c.ExchangeRate < 0 {
		return currency.Currency{}, fmt.Errorf("exchange rate must not be negative")
	}

	created, err := s.store.CreateCurrency(ctx, c)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("create currency: %w", err)
	}
	s.log.WithField("currency", created.ID).Info("currency registered")
	return created, nil
}

// Get retrieves a currency by identifier.
func (s *Service) Get(ctx context.Context, id string) (currency.Currency, error) {
	c, err := s.store.GetCurrency(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return currency.Currency{}, fmt.Errorf("currency %s: %w", id, ErrCurrencyNotFound)
		}
		return currency.Currency{}, err
	}
	return c, nil
}

// List returns the catalogue in registration order.
func (s *Service) List(ctx context.Context) ([]currency.Currency, error) {
	return s.store.ListCurrencies(ctx)
}

// UpdateExchangeRate sets the USD rate for a currency.
func (s *Service) UpdateExchangeRate(ctx context.Context, id string, rate float64) (currency.Currency, error) {
	if rate <= 0 {
		return currency.Currency{}, fmt.Errorf("exchange rate must be positive")
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return currency.Currency{}, err
	}

	c.ExchangeRate = rate
	updated, err := s.store.UpdateCurrency(ctx, c)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("persist rate: %w", err)
	}
	s.log.WithFields(map[string]interface{}{
		"currency": id,
		"rate":     rate,
	}).Info("exchange rate updated")
	return updated, nil
}
