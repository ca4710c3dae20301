package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/agilewallet/backend/internal/app/domain/currency"
	"github.com/agilewallet/backend/internal/app/domain/user"
	"github.com/agilewallet/backend/internal/app/services/currencies"
	"github.com/agilewallet/backend/internal/app/services/ledger"
	"github.com/agilewallet/backend/internal/app/services/notifications"
	"github.com/agilewallet/backend/internal/app/services/ratefeed"
	supportsvc "github.com/agilewallet/backend/internal/app/services/support"
	"github.com/agilewallet/backend/internal/app/services/users"
	"github.com/agilewallet/backend/internal/app/storage"
	"github.com/agilewallet/backend/internal/app/storage/memory"
	"github.com/agilewallet/backend/internal/app/system"
	"github.com/agilewallet/backend/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Transactions  storage.TransactionStore
	Currencies    storage.CurrencyStore
	Notifications storage.NotificationStore
	Support       storage.SupportStore
}

// Config carries the application-level settings the composition layer
// needs. The zero value is usable for tests.
type Config struct {
	AuthSecret       string
	TokenTTL         time.Duration
	RateFeedURL      string
	RateFeedKey      string
	RateFeedInterval time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	stores  Stores

	Users         *users.Service
	Ledger        *ledger.Service
	Currencies    *currencies.Service
	Notifications *notifications.Service
	Support       *supportsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, cfg Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}
	if stores.Currencies == nil {
		stores.Currencies = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Support == nil {
		stores.Support = mem
	}

	manager := system.NewManager()

	userService := users.New(stores.Users, []byte(cfg.AuthSecret), cfg.TokenTTL, log)
	currencyService := currencies.New(stores.Currencies, log)
	notificationService := notifications.New(stores.Notifications, log)
	supportService := supportsvc.New(stores.Support, log)
	ledgerService := ledger.New(stores.Users, stores.Transactions, log)
	ledgerService.AttachNotifier(notificationService)

	for _, name := range []string{"users", "ledger", "currencies", "notifications", "support"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if endpoint := strings.TrimSpace(cfg.RateFeedURL); endpoint != "" {
		httpClient := &http.Client{Timeout: 10 * time.Second}
		refresher := ratefeed.NewRefresher(currencyService, cfg.RateFeedInterval, log)
		fetcher, err := ratefeed.NewHTTPFetcher(httpClient, endpoint, cfg.RateFeedKey, log)
		if err != nil {
			log.WithError(err).Warn("configure rate fetcher")
		} else {
			refresher.WithFetcher(fetcher)
			if err := manager.Register(refresher); err != nil {
				return nil, fmt.Errorf("register %s: %w", refresher.Name(), err)
			}
		}
	} else {
		log.Info("rate feed url not set; exchange rate refresher disabled")
	}

	return &Application{
		manager:       manager,
		log:           log,
		stores:        stores,
		Users:         userService,
		Ledger:        ledgerService,
		Currencies:    currencyService,
		Notifications: notificationService,
		Support:       supportService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// seedCurrencies is the demo catalogue with indicative USD rates.
var seedCurrencies = []currency.Currency{
	{ID: "btc", Name: "Bitcoin", Symbol: "BTC", Decimals: 8, Color: "#F7931A", ExchangeRate: 40000, LogoURL: "https://cryptologos.cc/logos/bitcoin-btc-logo.png"},
	{ID: "eth", Name: "Ethereum", Symbol: "ETH", Decimals: 18, Color: "#627EEA", ExchangeRate: 2000, LogoURL: "https://cryptologos.cc/logos/ethereum-eth-logo.png"},
	{ID: "usdt", Name: "Tether", Symbol: "USDT", Decimals: 6, Color: "#26A17B", ExchangeRate: 1, LogoURL: "https://cryptologos.cc/logos/tether-usdt-logo.png"},
	{ID: "usdc", Name: "USD Coin", Symbol: "USDC", Decimals: 6, Color: "#2775CA", ExchangeRate: 1, LogoURL: "https://cryptologos.cc/logos/usd-coin-usdc-logo.png"},
	{ID: "bnb", Name: "Binance Coin", Symbol: "BNB", Decimals: 18, Color: "#F3BA2F", ExchangeRate: 350, LogoURL: "https://cryptologos.cc/logos/bnb-bnb-logo.png"},
	{ID: "sol", Name: "Solana", Symbol: "SOL", Decimals: 9, Color: "#00FFA3", ExchangeRate: 100, LogoURL: "https://cryptologos.cc/logos/solana-sol-logo.png"},
	{ID: "ada", Name: "Cardano", Symbol: "ADA", Decimals: 6, Color: "#0033AD", ExchangeRate: 0.5, LogoURL: "https://cryptologos.cc/logos/cardano-ada-logo.png"},
	{ID: "xrp", Name: "XRP", Symbol: "XRP", Decimals: 6, Color: "#23292F", ExchangeRate: 0.6, LogoURL: "https://cryptologos.cc/logos/xrp-xrp-logo.png"},
}

// SeedDemoData populates the currency catalogue and two demo accounts (an
// admin and a funded test user). Intended for fresh in-memory deployments;
// it is not idempotent against an already seeded store.
func (a *Application) SeedDemoData(ctx context.Context) error {
	for _, c := range seedCurrencies {
		if _, err := a.Currencies.Create(ctx, c); err != nil {
			return fmt.Errorf("seed currency %s: %w", c.ID, err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("adminpassword"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	demoUsers := []user.User{
		{
			Name:         "Admin User",
			Email:        "admin@example.com",
			PasswordHash: string(hash),
			WalletAddresses: map[string]string{
				"btc":  "0xadmin1234567890abcdef1234567890abcdef1234",
				"eth":  "0xadmin4567890abcdef1234567890abcdef123456",
				"usdt": "0xadmin7890abcdef1234567890abcdef123456789",
			},
			Balances:  map[string]float64{"btc": 10, "eth": 100, "usdt": 50000},
			KYCStatus: user.KYCVerified,
			IsAdmin:   true,
		},
		{
			Name:         "Test User",
			Email:        "user@example.com",
			PasswordHash: string(hash),
			WalletAddresses: map[string]string{
				"btc":  "0xuser1234567890abcdef1234567890abcdef1234",
				"eth":  "0xuser4567890abcdef1234567890abcdef123456",
				"usdt": "0xuser7890abcdef1234567890abcdef123456789",
			},
			Balances:  map[string]float64{"btc": 2.5, "eth": 30, "usdt": 10000},
			KYCStatus: user.KYCVerified,
		},
	}
	for _, u := range demoUsers {
		if _, err := a.stores.Users.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}

	a.log.Info("demo data seeded")
	return nil
}
