package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agilewallet/backend/internal/app/domain/notification"
	"github.com/agilewallet/backend/internal/app/domain/transaction"
	"github.com/agilewallet/backend/internal/app/storage/memory"
)

func TestService_CreateAndReadState(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	first, err := svc.Create(context.Background(), notification.Notification{
		UserID: "u1",
		Title:  "Welcome",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Type != notification.TypeSystem {
		t.Fatalf("type should default to system: %s", first.Type)
	}
	if _, err := svc.Create(context.Background(), notification.Notification{
		UserID: "u1",
		Type:   notification.TypeSecurity,
		Title:  "New login",
	}); err != nil {
		t.Fatalf("create second: %v", err)
	}

	count, err := svc.UnreadCount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Fatalf("unexpected unread count: %d", count)
	}

	read, err := svc.MarkRead(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !read.Read {
		t.Fatal("notification not marked read")
	}
	if count, _ = svc.UnreadCount(context.Background(), "u1"); count != 1 {
		t.Fatalf("unread count after mark: %d", count)
	}

	all, err := svc.MarkAllRead(context.Background(), "u1")
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	for _, n := range all {
		if !n.Read {
			t.Fatalf("notification %s still unread", n.ID)
		}
	}
	if count, _ = svc.UnreadCount(context.Background(), "u1"); count != 0 {
		t.Fatalf("unread count after mark all: %d", count)
	}

	if _, err := svc.MarkRead(context.Background(), "missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	if _, err := svc.Create(context.Background(), notification.Notification{Title: "no user"}); err == nil {
		t.Fatal("expected validation error for missing user")
	}
	if _, err := svc.Create(context.Background(), notification.Notification{UserID: "u1"}); err == nil {
		t.Fatal("expected validation error for missing title")
	}
}

func TestService_TransactionSettled(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	svc.TransactionSettled(context.Background(), transaction.Transaction{
		ID:         "tx1",
		FromUserID: "u1",
		ToUserID:   "u2",
		Amount:     5,
		Currency:   "btc",
		Status:     transaction.StatusApproved,
	})

	for _, userID := range []string{"u1", "u2"} {
		feed, err := svc.ListByUser(context.Background(), userID)
		if err != nil {
			t.Fatalf("list %s: %v", userID, err)
		}
		if len(feed) != 1 {
			t.Fatalf("%s should have one entry, got %d", userID, len(feed))
		}
		if feed[0].Type != notification.TypeTransaction || feed[0].TransactionID != "tx1" {
			t.Fatalf("unexpected entry: %+v", feed[0])
		}
	}

	svc.TransactionSettled(context.Background(), transaction.Transaction{
		ID:              "tx2",
		FromUserID:      "u1",
		Amount:          2,
		Currency:        "eth",
		Status:          transaction.StatusRejected,
		RejectionReason: "fraud",
	})

	feed, _ := svc.ListByUser(context.Background(), "u1")
	if len(feed) != 2 {
		t.Fatalf("unexpected feed size: %d", len(feed))
	}
	// Newest first.
	if feed[0].TransactionID != "tx2" {
		t.Fatalf("feed not sorted newest first: %+v", feed[0])
	}
	if !strings.Contains(feed[0].Message, "fraud") {
		t.Fatalf("rejection reason missing from message: %q", feed[0].Message)
	}

	// Pending transactions never notify.
	svc.TransactionSettled(context.Background(), transaction.Transaction{
		ID:         "tx3",
		FromUserID: "u1",
		Status:     transaction.StatusPending,
	})
	if feed, _ = svc.ListByUser(context.Background(), "u1"); len(feed) != 2 {
		t.Fatalf("pending transaction must not notify: %d", len(feed))
	}
}
