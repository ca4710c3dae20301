// Package notifications records per-user events and read state. It also
// implements the ledger's settlement notifier so balance-moving decisions
// surface in the user's feed without coupling settlement to delivery.
package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/agilewallet/backend/internal/app/domain/notification"
	"github.com/agilewallet/backend/internal/app/domain/transaction"
	"github.com/agilewallet/backend/internal/app/storage"
	"github.com/agilewallet/backend/pkg/logger"
)

// ErrNotificationNotFound indicates the referenced notification does not exist.
var ErrNotificationNotFound = errors.New("notification not found")

// Service manages notification records.
type Service struct {
	store storage.NotificationStore
	log   *logger.Logger
}

// New constructs a notification service.
func New(store storage.NotificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{store: store, log: log}
}

// Create records a notification for a user.
func (s *Service) Create(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.UserID == "" {
		return notification.Notification{}, fmt.Errorf("user id is required")
	}
	if n.Title == "" {
		return notification.Notification{}, fmt.Errorf("title is required")
	}
	if n.Type == "" {
		n.Type = notification.TypeSystem
	}

	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return notification.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return created, nil
}

// Get retrieves a notification by identifier.
func (s *Service) Get(ctx context.Context, id string) (notification.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notification.Notification{}, fmt.Errorf("notification %s: %w", id, ErrNotificationNotFound)
		}
		return notification.Notification{}, err
	}
	return n, nil
}

// ListByUser returns a user's notifications, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]notification.Notification, error) {
	return s.store.ListNotificationsByUser(ctx, userID)
}

// UnreadCount returns the number of unread notifications for a user.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	all, err := s.store.ListNotificationsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range all {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) (notification.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notification.Notification{}, fmt.Errorf("notification %s: %w", id, ErrNotificationNotFound)
		}
		return notification.Notification{}, err
	}

	if n.Read {
		return n, nil
	}
	n.Read = true
	updated, err := s.store.UpdateNotification(ctx, n)
	if err != nil {
		return notification.Notification{}, fmt.Errorf("persist read state: %w", err)
	}
	return updated, nil
}

// MarkAllRead marks every notification of a user as read and returns the
// updated feed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) ([]notification.Notification, error) {
	all, err := s.store.ListNotificationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i, n := range all {
		if n.Read {
			continue
		}
		n.Read = true
		updated, err := s.store.UpdateNotification(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("persist read state: %w", err)
		}
		all[i] = updated
	}
	return all, nil
}

// TransactionSettled records feed entries for the parties of a settled
// transaction. Fire-and-forget: failures are logged, never propagated.
func (s *Service) TransactionSettled(ctx context.Context, tx transaction.Transaction) {
	var title, message string
	switch tx.Status {
	case transaction.StatusApproved:
		title = "Transaction approved"
		message = fmt.Sprintf("Your transaction of %g %s was approved.", tx.Amount, tx.Currency)
	case transaction.StatusRejected:
		title = "Transaction rejected"
		message = fmt.Sprintf("Your transaction of %g %s was rejected.", tx.Amount, tx.Currency)
		if tx.RejectionReason != "" {
			message = fmt.Sprintf("%s Reason: %s.", message, tx.RejectionReason)
		}
	default:
		return
	}

	for _, userID := range []string{tx.FromUserID, tx.ToUserID} {
		if userID == "" {
			continue
		}
		_, err := s.store.CreateNotification(ctx, notification.Notification{
			UserID:        userID,
			Type:          notification.TypeTransaction,
			Title:         title,
			Message:       message,
			TransactionID: tx.ID,
		})
		if err != nil {
			s.log.WithError(err).WithFields(map[string]interface{}{
				"user_id":        userID,
				"transaction_id": tx.ID,
			}).Warn("settlement notification failed")
		}
	}
}
