// Package ledger implements transaction submission and settlement.
//
// Settlement (approve/reject) is the only path that mutates user balances.
// Every decision runs under a single service-level mutex so the
// read-check-mutate sequence over both counterparties is atomic with
// respect to concurrent decisions and balance adjustments.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agilewallet/backend/internal/app/domain/transaction"
	"github.com/agilewallet/backend/internal/app/domain/user"
	"github.com/agilewallet/backend/internal/app/metrics"
	"github.com/agilewallet/backend/internal/app/storage"
	"github.com/agilewallet/backend/pkg/logger"
)

var (
	// ErrTransactionNotFound indicates the referenced transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrNotPending indicates a settlement decision targeted a transaction
	// that already reached a terminal status.
	ErrNotPending = errors.New("transaction is not pending")
	// ErrUserNotFound indicates a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Notifier receives settlement outcomes. Implementations must not block;
// failures are logged and never abort settlement.
type Notifier interface {
	TransactionSettled(ctx context.Context, tx transaction.Transaction)
}

// Service coordinates transaction submission and settlement.
type Service struct {
	users    storage.UserStore
	store    storage.TransactionStore
	log      *logger.Logger
	notifier Notifier

	// settleMu serializes approve/reject/adjust so balance reads and writes
	// across two users form one critical section.
	settleMu sync.Mutex
}

// New constructs a ledger service.
func New(users storage.UserStore, store storage.TransactionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{users: users, store: store, log: log}
}

// AttachNotifier wires a settlement notifier.
func (s *Service) AttachNotifier(n Notifier) {
	s.notifier = n
}

// SubmitInput describes a transfer request. FromUserID may be empty for
// inbound transfers with no resolvable sender.
type SubmitInput struct {
	FromUserID  string
	FromAddress string
	ToAddress   string
	Amount      float64
	Currency    string
	Description string
}

// Submit validates and records a pending transaction. No balances move
// until an admin settles it. The recipient is resolved by wallet address
// at submission time when a matching user exists; external addresses are
// recorded verbatim with an empty recipient id.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (transaction.Transaction, error) {
	if in.Amount <= 0 {
		return transaction.Transaction{}, fmt.Errorf("amount must be positive")
	}
	if in.Currency == "" {
		return transaction.Transaction{}, fmt.Errorf("currency is required")
	}
	if in.FromAddress == "" {
		return transaction.Transaction{}, fmt.Errorf("source address is required")
	}
	if in.ToAddress == "" {
		return transaction.Transaction{}, fmt.Errorf("destination address is required")
	}

	tx := transaction.Transaction{
		FromUserID:  in.FromUserID,
		FromAddress: in.FromAddress,
		ToAddress:   in.ToAddress,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Status:      transaction.StatusPending,
		Description: in.Description,
	}

	if recipient, err := s.users.GetUserByWalletAddress(ctx, in.Currency, in.ToAddress); err == nil {
		tx.ToUserID = recipient.ID
	} else if !errors.Is(err, storage.ErrNotFound) {
		return transaction.Transaction{}, fmt.Errorf("resolve recipient: %w", err)
	}

	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}

	metrics.RecordTransactionSubmitted(created.Currency)
	s.log.WithFields(map[string]any{
		"transaction_id": created.ID,
		"from_user":      created.FromUserID,
		"to_user":        created.ToUserID,
		"currency":       created.Currency,
		"amount":         created.Amount,
	}).Info("transaction submitted")
	return created, nil
}

// SettlementResult reports the balance effects of a settlement decision.
type SettlementResult struct {
	Transaction   transaction.Transaction `json:"transaction"`
	AmountDebited float64                 `json:"amountDebited"`
	Refunded      bool                    `json:"refunded"`
}

// Approve settles a pending transaction: the sender, when it resolves to a
// known user, is debited with the result clamped at zero; the recipient,
// when resolved, is credited the full amount; the status becomes approved.
// A counterparty that does not resolve is skipped, so a transaction with
// neither side known only changes status. Any storage failure leaves the
// transaction pending with balances rolled back.
func (s *Service) Approve(ctx context.Context, id string) (SettlementResult, error) {
	start := time.Now()

	s.settleMu.Lock()
	defer s.settleMu.Unlock()

	tx, err := s.loadPending(ctx, id)
	if err != nil {
		return SettlementResult{}, err
	}

	var (
		debited      float64
		sender       user.User
		senderLoaded bool
		recipient    user.User
		credited     bool
	)
	if tx.FromUserID != "" {
		sender, err = s.users.GetUser(ctx, tx.FromUserID)
		switch {
		case err == nil:
			senderLoaded = true
			debited = applyDebit(&sender, tx.Currency, tx.Amount)
			if _, err := s.users.UpdateUser(ctx, sender); err != nil {
				return SettlementResult{}, fmt.Errorf("debit sender: %w", err)
			}
		case errors.Is(err, storage.ErrNotFound):
			// Unresolvable sender: settle without a debit.
		default:
			return SettlementResult{}, fmt.Errorf("load sender: %w", err)
		}
	}

	if tx.ToUserID != "" {
		recipient, err = s.users.GetUser(ctx, tx.ToUserID)
		switch {
		case err == nil:
			applyCredit(&recipient, tx.Currency, tx.Amount)
			if _, err := s.users.UpdateUser(ctx, recipient); err != nil {
				s.rollbackDebit(ctx, sender, senderLoaded, tx.Currency, debited)
				return SettlementResult{}, fmt.Errorf("credit recipient: %w", err)
			}
			credited = true
		case errors.Is(err, storage.ErrNotFound):
			// Recipient resolved at submission but has since vanished.
		default:
			s.rollbackDebit(ctx, sender, senderLoaded, tx.Currency, debited)
			return SettlementResult{}, fmt.Errorf("load recipient: %w", err)
		}
	}

	tx.Status = transaction.StatusApproved
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		s.rollbackCredit(ctx, recipient, credited, tx.Currency, tx.Amount)
		s.rollbackDebit(ctx, sender, senderLoaded, tx.Currency, debited)
		return SettlementResult{}, fmt.Errorf("mark approved: %w", err)
	}

	metrics.RecordSettlement(string(transaction.StatusApproved), time.Since(start))
	s.log.WithFields(map[string]any{
		"transaction_id": updated.ID,
		"amount_debited": debited,
	}).Info("transaction approved")
	s.notify(ctx, updated)

	return SettlementResult{Transaction: updated, AmountDebited: debited}, nil
}

// Reject settles a pending transaction as rejected, recording the optional
// reason. When the sender resolves to a known user the amount is credited
// back to their balance and the result reports Refunded.
func (s *Service) Reject(ctx context.Context, id, reason string) (SettlementResult, error) {
	start := time.Now()

	s.settleMu.Lock()
	defer s.settleMu.Unlock()

	tx, err := s.loadPending(ctx, id)
	if err != nil {
		return SettlementResult{}, err
	}

	var (
		refunded bool
		sender   user.User
	)
	if tx.FromUserID != "" {
		sender, err = s.users.GetUser(ctx, tx.FromUserID)
		switch {
		case err == nil:
			applyCredit(&sender, tx.Currency, tx.Amount)
			if _, err := s.users.UpdateUser(ctx, sender); err != nil {
				return SettlementResult{}, fmt.Errorf("refund sender: %w", err)
			}
			refunded = true
		case errors.Is(err, storage.ErrNotFound):
			// No sender to refund.
		default:
			return SettlementResult{}, fmt.Errorf("load sender: %w", err)
		}
	}

	tx.Status = transaction.StatusRejected
	tx.RejectionReason = reason
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		if refunded {
			applyDebit(&sender, tx.Currency, tx.Amount)
			if _, rbErr := s.users.UpdateUser(ctx, sender); rbErr != nil {
				s.log.WithError(rbErr).Error("rollback of sender refund failed")
			}
		}
		return SettlementResult{}, fmt.Errorf("mark rejected: %w", err)
	}

	metrics.RecordSettlement(string(transaction.StatusRejected), time.Since(start))
	s.log.WithFields(map[string]any{
		"transaction_id": updated.ID,
		"refunded":       refunded,
		"reason":         reason,
	}).Info("transaction rejected")
	s.notify(ctx, updated)

	return SettlementResult{Transaction: updated, Refunded: refunded}, nil
}

// AdjustBalance shifts a user's balance in one currency by delta, lazily
// creating the entry and clamping the result at zero.
func (s *Service) AdjustBalance(ctx context.Context, userID, currency string, delta float64) (user.User, error) {
	if currency == "" {
		return user.User{}, fmt.Errorf("currency is required")
	}

	s.settleMu.Lock()
	defer s.settleMu.Unlock()

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
		}
		return user.User{}, fmt.Errorf("load user: %w", err)
	}

	if delta >= 0 {
		applyCredit(&u, currency, delta)
	} else {
		applyDebit(&u, currency, -delta)
	}

	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, fmt.Errorf("persist balance: %w", err)
	}

	s.log.WithFields(map[string]any{
		"user_id":  userID,
		"currency": currency,
		"delta":    delta,
		"balance":  updated.Balances[currency],
	}).Info("balance adjusted")
	return updated, nil
}

// Get retrieves a transaction by identifier.
func (s *Service) Get(ctx context.Context, id string) (transaction.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrTransactionNotFound)
		}
		return transaction.Transaction{}, err
	}
	return tx, nil
}

// List returns all transactions in submission order.
func (s *Service) List(ctx context.Context) ([]transaction.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

// ListPending returns pending transactions in submission order.
func (s *Service) ListPending(ctx context.Context) ([]transaction.Transaction, error) {
	return s.store.ListPendingTransactions(ctx)
}

// ListByUser returns transactions where the user is sender or recipient.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]transaction.Transaction, error) {
	return s.store.ListTransactionsByUser(ctx, userID)
}

func (s *Service) loadPending(ctx context.Context, id string) (transaction.Transaction, error) {
	if id == "" {
		return transaction.Transaction{}, fmt.Errorf("transaction id is required")
	}
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrTransactionNotFound)
		}
		return transaction.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}
	if tx.Status.Terminal() {
		return transaction.Transaction{}, fmt.Errorf("transaction %s is %s: %w", id, tx.Status, ErrNotPending)
	}
	return tx, nil
}

func (s *Service) rollbackDebit(ctx context.Context, sender user.User, loaded bool, currency string, debited float64) {
	if !loaded || debited == 0 {
		return
	}
	applyCredit(&sender, currency, debited)
	if _, err := s.users.UpdateUser(ctx, sender); err != nil {
		s.log.WithError(err).Error("rollback of sender debit failed")
	}
}

func (s *Service) rollbackCredit(ctx context.Context, recipient user.User, credited bool, currency string, amount float64) {
	if !credited {
		return
	}
	applyDebit(&recipient, currency, amount)
	if _, err := s.users.UpdateUser(ctx, recipient); err != nil {
		s.log.WithError(err).Error("rollback of recipient credit failed")
	}
}

func (s *Service) notify(ctx context.Context, tx transaction.Transaction) {
	if s.notifier == nil {
		return
	}
	s.notifier.TransactionSettled(ctx, tx)
}

// applyDebit subtracts amount from the user's balance in currency, lazily
// creating the entry and clamping the result at zero. It returns the amount
// actually removed.
func applyDebit(u *user.User, currency string, amount float64) float64 {
	if u.Balances == nil {
		u.Balances = make(map[string]float64)
	}
	current := u.Balances[currency]
	debited := amount
	if debited > current {
		debited = current
	}
	u.Balances[currency] = current - debited
	return debited
}

// applyCredit adds amount to the user's balance in currency.
func applyCredit(u *user.User, currency string, amount float64) {
	if u.Balances == nil {
		u.Balances = make(map[string]float64)
	}
	u.Balances[currency] += amount
}
