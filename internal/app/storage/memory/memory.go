package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agilewallet/backend/internal/app/domain/currency"
	"github.com/agilewallet/backend/internal/app/domain/notification"
	"github.com/agilewallet/backend/internal/app/domain/support"
	"github.com/agilewallet/backend/internal/app/domain/transaction"
	"github.com/agilewallet/backend/internal/app/domain/user"
	"github.com/agilewallet/backend/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and backs both tests and the default single-process
// deployment; nothing is persisted across restarts.
type Store struct {
	mu             sync.RWMutex
	users          map[string]user.User
	usersByEmail   map[string]string
	usersByAddress map[string]string // currency|address -> user id
	transactions   map[string]transaction.Transaction
	txOrder        []string
	currencies     map[string]currency.Currency
	currencyOrder  []string
	notifications  map[string]notification.Notification
	notifOrder     []string
	tickets        map[string]support.Ticket
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)
var _ storage.CurrencyStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.SupportStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:          make(map[string]user.User),
		usersByEmail:   make(map[string]string),
		usersByAddress: make(map[string]string),
		transactions:   make(map[string]transaction.Transaction),
		currencies:     make(map[string]currency.Currency),
		notifications:  make(map[string]notification.Notification),
		tickets:        make(map[string]support.Ticket),
	}
}

func addressKey(currencyID, address string) string {
	return strings.ToLower(strings.TrimSpace(currencyID)) + "|" + strings.TrimSpace(address)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrConflict)
	}

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email != "" {
		if _, taken := s.usersByEmail[email]; taken {
			return user.User{}, fmt.Errorf("email %s: %w", u.Email, storage.ErrConflict)
		}
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u = cloneUser(u)

	s.users[u.ID] = u
	if email != "" {
		s.usersByEmail[email] = u.ID
	}
	for cur, addr := range u.WalletAddresses {
		s.usersByAddress[addressKey(cur, addr)] = u.ID
	}
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}

	newEmail := strings.ToLower(strings.TrimSpace(u.Email))
	oldEmail := strings.ToLower(strings.TrimSpace(original.Email))
	if newEmail != oldEmail {
		if owner, taken := s.usersByEmail[newEmail]; taken && owner != u.ID {
			return user.User{}, fmt.Errorf("email %s: %w", u.Email, storage.ErrConflict)
		}
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u = cloneUser(u)

	for cur, addr := range original.WalletAddresses {
		delete(s.usersByAddress, addressKey(cur, addr))
	}
	if oldEmail != "" {
		delete(s.usersByEmail, oldEmail)
	}

	s.users[u.ID] = u
	if newEmail != "" {
		s.usersByEmail[newEmail] = u.ID
	}
	for cur, addr := range u.WalletAddresses {
		s.usersByAddress[addressKey(cur, addr)] = u.ID
	}
	return cloneUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, fmt.Errorf("user with email %s: %w", email, storage.ErrNotFound)
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) GetUserByWalletAddress(_ context.Context, currencyID, address string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByAddress[addressKey(currencyID, address)]
	if !ok {
		return user.User{}, fmt.Errorf("no user holds %s address %s: %w", currencyID, address, storage.ErrNotFound)
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, cloneUser(u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// TransactionStore implementation ---------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	} else if _, exists := s.transactions[tx.ID]; exists {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	s.transactions[tx.ID] = tx
	s.txOrder = append(s.txOrder, tx.ID)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.transactions[tx.ID]
	if !ok {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, storage.ErrNotFound)
	}

	tx.CreatedAt = original.CreatedAt
	tx.UpdatedAt = time.Now().UTC()
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]transaction.Transaction, 0, len(s.txOrder))
	for _, id := range s.txOrder {
		result = append(result, s.transactions[id])
	}
	return result, nil
}

func (s *Store) ListPendingTransactions(_ context.Context) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]transaction.Transaction, 0)
	for _, id := range s.txOrder {
		if tx := s.transactions[id]; tx.Status == transaction.StatusPending {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *Store) ListTransactionsByUser(_ context.Context, userID string) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]transaction.Transaction, 0)
	for _, id := range s.txOrder {
		tx := s.transactions[id]
		if userID != "" && (tx.FromUserID == userID || tx.ToUserID == userID) {
			result = append(result, tx)
		}
	}
	return result, nil
}

// CurrencyStore implementation ------------------------------------------------

func (s *Store) CreateCurrency(_ context.Context, c currency.Currency) (currency.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, exists := s.currencies[c.ID]; exists {
		return currency.Currency{}, fmt.Errorf("currency %s: %w", c.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.currencies[c.ID] = c
	s.currencyOrder = append(s.currencyOrder, c.ID)
	return c, nil
}

func (s *Store) UpdateCurrency(_ context.Context, c currency.Currency) (currency.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.currencies[c.ID]
	if !ok {
		return currency.Currency{}, fmt.Errorf("currency %s: %w", c.ID, storage.ErrNotFound)
	}

	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.currencies[c.ID] = c
	return c, nil
}

func (s *Store) GetCurrency(_ context.Context, id string) (currency.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.currencies[id]
	if !ok {
		return currency.Currency{}, fmt.Errorf("currency %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCurrencies(_ context.Context) ([]currency.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]currency.Currency, 0, len(s.currencyOrder))
	for _, id := range s.currencyOrder {
		result = append(result, s.currencies[id])
	}
	return result, nil
}

// NotificationStore implementation --------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	} else if _, exists := s.notifications[n.ID]; exists {
		return notification.Notification{}, fmt.Errorf("notification %s: %w", n.ID, storage.ErrConflict)
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.notifications[n.ID] = n
	s.notifOrder = append(s.notifOrder, n.ID)
	return n, nil
}

func (s *Store) UpdateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.notifications[n.ID]
	if !ok {
		return notification.Notification{}, fmt.Errorf("notification %s: %w", n.ID, storage.ErrNotFound)
	}
	n.CreatedAt = original.CreatedAt
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, fmt.Errorf("notification %s: %w", id, storage.ErrNotFound)
	}
	return n, nil
}

func (s *Store) ListNotificationsByUser(_ context.Context, userID string) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Reverse insertion order gives a stable newest-first feed even when
	// entries share a timestamp.
	result := make([]notification.Notification, 0)
	for i := len(s.notifOrder) - 1; i >= 0; i-- {
		if n := s.notifications[s.notifOrder[i]]; n.UserID == userID {
			result = append(result, n)
		}
	}
	return result, nil
}

// SupportStore implementation -------------------------------------------------

func (s *Store) CreateTicket(_ context.Context, t support.Ticket) (support.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if _, exists := s.tickets[t.ID]; exists {
		return support.Ticket{}, fmt.Errorf("ticket %s: %w", t.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Messages = cloneMessages(t.Messages)

	s.tickets[t.ID] = t
	return cloneTicket(t), nil
}

func (s *Store) UpdateTicket(_ context.Context, t support.Ticket) (support.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tickets[t.ID]
	if !ok {
		return support.Ticket{}, fmt.Errorf("ticket %s: %w", t.ID, storage.ErrNotFound)
	}

	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	t.Messages = cloneMessages(t.Messages)

	s.tickets[t.ID] = t
	return cloneTicket(t), nil
}

func (s *Store) GetTicket(_ context.Context, id string) (support.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return support.Ticket{}, fmt.Errorf("ticket %s: %w", id, storage.ErrNotFound)
	}
	return cloneTicket(t), nil
}

func (s *Store) ListTickets(_ context.Context) ([]support.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]support.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		result = append(result, cloneTicket(t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListTicketsByUser(_ context.Context, userID string) ([]support.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]support.Ticket, 0)
	for _, t := range s.tickets {
		if t.UserID == userID {
			result = append(result, cloneTicket(t))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// Clone helpers ---------------------------------------------------------------

func cloneUser(u user.User) user.User {
	out := u
	out.WalletAddresses = cloneStringMap(u.WalletAddresses)
	out.Balances = cloneFloatMap(u.Balances)
	if u.KYCData != nil {
		data := *u.KYCData
		out.KYCData = &data
	}
	return out
}

func cloneTicket(t support.Ticket) support.Ticket {
	out := t
	out.Messages = cloneMessages(t.Messages)
	return out
}

func cloneMessages(msgs []support.Message) []support.Message {
	if msgs == nil {
		return nil
	}
	out := make([]support.Message, len(msgs))
	copy(out, msgs)
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
