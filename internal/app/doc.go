// Package app composes the wallet backend services into a running
// application. It is not a business logic layer; business rules live in
// internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Account holders, balances, KYC
//	│   ├── transaction/    # Transfers and settlement state
//	│   ├── currency/       # Currency catalogue
//	│   ├── notification/   # Per-user event feed
//	│   └── support/        # Support tickets
//	├── storage/            # Store interfaces and the memory implementation
//	├── services/           # Business logic (users, ledger, currencies, ...)
//	├── httpapi/            # RPC-over-HTTP handlers and middleware
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/walletserver → internal/app → internal/app/services → internal/app/storage
//
// Services depend on store interfaces, never on each other's storage.
// Cross-service collaboration happens through narrow interfaces wired in
// application.go, such as the ledger's settlement notifier.
package app
