package currencies

import (
	"context"
	"errors"
	"testing"

	"github.com/agilewallet/backend/internal/app/domain/currency"
	"github.com/agilewallet/backend/internal/app/storage/memory"
)

func TestService_CatalogueLifecycle(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	btc, err := svc.Create(context.Background(), currency.Currency{
		ID:           "btc",
		Name:         "Bitcoin",
		Symbol:       "BTC",
		Decimals:     8,
		ExchangeRate: 40000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(context.Background(), currency.Currency{ID: "eth", Name: "Ethereum", Symbol: "ETH", Decimals: 18, ExchangeRate: 2000}); err != nil {
		t.Fatalf("create eth: %v", err)
	}

	got, err := svc.Get(context.Background(), "btc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != btc.Name {
		t.Fatalf("unexpected currency: %+v", got)
	}

	all, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != "btc" || all[1].ID != "eth" {
		t.Fatalf("registration order not preserved: %+v", all)
	}

	if _, err := svc.Get(context.Background(), "doge"); !errors.Is(err, ErrCurrencyNotFound) {
		t.Fatalf("expected ErrCurrencyNotFound, got %v", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	cases := []currency.Currency{
		{Name: "Bitcoin", Symbol: "BTC"},
		{ID: "btc", Symbol: "BTC"},
		{ID: "btc", Name: "Bitcoin"},
		{ID: "btc", Name: "Bitcoin", Symbol: "BTC", ExchangeRate: -1},
	}
	for i, c := range cases {
		if _, err := svc.Create(context.Background(), c); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestService_UpdateExchangeRate(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	if _, err := svc.Create(context.Background(), currency.Currency{ID: "btc", Name: "Bitcoin", Symbol: "BTC", ExchangeRate: 40000}); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateExchangeRate(context.Background(), "btc", 42000)
	if err != nil {
		t.Fatalf("update rate: %v", err)
	}
	if updated.ExchangeRate != 42000 {
		t.Fatalf("rate not applied: %v", updated.ExchangeRate)
	}

	if _, err := svc.UpdateExchangeRate(context.Background(), "btc", 0); err == nil {
		t.Fatal("expected validation error for non-positive rate")
	}
	if _, err := svc.UpdateExchangeRate(context.Background(), "doge", 1); !errors.Is(err, ErrCurrencyNotFound) {
		t.Fatalf("expected ErrCurrencyNotFound, got %v", err)
	}
}
