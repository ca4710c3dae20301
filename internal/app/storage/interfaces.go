package storage

import (
	"context"

	"github.com/agilewallet/backend/internal/app/domain/currency"
	"github.com/agilewallet/backend/internal/app/domain/notification"
	"github.com/agilewallet/backend/internal/app/domain/support"
	"github.com/agilewallet/backend/internal/app/domain/transaction"
	"github.com/agilewallet/backend/internal/app/domain/user"
)

// UserStore persists user records and the balance ledger attached to them.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByWalletAddress(ctx context.Context, currencyID, address string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// TransactionStore persists the transaction log. Entries are never deleted;
// the full history is retained for display.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	GetTransaction(ctx context.Context, id string) (transaction.Transaction, error)
	ListTransactions(ctx context.Context) ([]transaction.Transaction, error)
	ListPendingTransactions(ctx context.Context) ([]transaction.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]transaction.Transaction, error)
}

// CurrencyStore persists supported currencies.
type CurrencyStore interface {
	CreateCurrency(ctx context.Context, c currency.Currency) (currency.Currency, error)
	UpdateCurrency(ctx context.Context, c currency.Currency) (currency.Currency, error)
	GetCurrency(ctx context.Context, id string) (currency.Currency, error)
	ListCurrencies(ctx context.Context) ([]currency.Currency, error)
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	GetNotification(ctx context.Context, id string) (notification.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID string) ([]notification.Notification, error)
}

// SupportStore persists support tickets.
type SupportStore interface {
	CreateTicket(ctx context.Context, t support.Ticket) (support.Ticket, error)
	UpdateTicket(ctx context.Context, t support.Ticket) (support.Ticket, error)
	GetTicket(ctx context.Context, id string) (support.Ticket, error)
	ListTickets(ctx context.Context) ([]support.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID string) ([]support.Ticket, error)
}
