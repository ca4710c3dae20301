// Package support manages support tickets and their message threads.
package support

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agilewallet/backend/internal/app/domain/support"
	"github.com/agilewallet/backend/internal/app/storage"
	"github.com/agilewallet/backend/pkg/logger"
)

var (
	// ErrTicketNotFound indicates the referenced ticket does not exist.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrTicketClosed indicates a reply targeted a closed ticket.
	ErrTicketClosed = errors.New("ticket is closed")
)

// Service manages support tickets.
type Service struct {
	store storage.SupportStore
	log   *logger.Logger
}

// New constructs a support service.
func New(store storage.SupportStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("support")
	}
	return &Service{store: store, log: log}
}

// Open creates a ticket with the user's initial message.
func (s *Service) Open(ctx context.Context, userID, subject, message string) (support.Ticket, error) {
	if userID == "" {
		return support.Ticket{}, fmt.Errorf("user id is required")
	}
	if subject == "" {
		return support.Ticket{}, fmt.Errorf("subject is required")
	}
	if message == "" {
		return support.Ticket{}, fmt.Errorf("message is required")
	}

	created, err := s.store.CreateTicket(ctx, support.Ticket{
		UserID:  userID,
		Subject: subject,
		Status:  support.StatusOpen,
		Messages: []support.Message{{
			ID:        uuid.NewString(),
			Sender:    support.SenderUser,
			Content:   message,
			CreatedAt: time.Now().UTC(),
		}},
	})
	if err != nil {
		return support.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	s.log.WithFields(map[string]interface{}{
		"ticket_id": created.ID,
		"user_id":   userID,
	}).Info("support ticket opened")
	return created, nil
}

// Get retrieves a ticket by identifier.
func (s *Service) Get(ctx context.Context, id string) (support.Ticket, error) {
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return support.Ticket{}, fmt.Errorf("ticket %s: %w", id, ErrTicketNotFound)
		}
		return support.Ticket{}, err
	}
	return t, nil
}

// List returns all tickets.
func (s *Service) List(ctx context.Context) ([]support.Ticket, error) {
	return s.store.ListTickets(ctx)
}

// ListByUser returns the tickets a user opened.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]support.Ticket, error) {
	return s.store.ListTicketsByUser(ctx, userID)
}

// Respond appends a message to a ticket's thread. The first admin reply to
// an open ticket moves it to in progress.
func (s *Service) Respond(ctx context.Context, ticketID, message string, fromAdmin bool) (support.Ticket, error) {
	if message == "" {
		return support.Ticket{}, fmt.Errorf("message is required")
	}
	t, err := s.Get(ctx, ticketID)
	if err != nil {
		return support.Ticket{}, err
	}
	if t.Status == support.StatusClosed {
		return support.Ticket{}, fmt.Errorf("ticket %s: %w", ticketID, ErrTicketClosed)
	}

	sender := support.SenderUser
	if fromAdmin {
		sender = support.SenderAdmin
		if t.Status == support.StatusOpen {
			t.Status = support.StatusInProgress
		}
	}
	t.Messages = append(t.Messages, support.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Content:   message,
		CreatedAt: time.Now().UTC(),
	})

	updated, err := s.store.UpdateTicket(ctx, t)
	if err != nil {
		return support.Ticket{}, fmt.Errorf("persist reply: %w", err)
	}
	return updated, nil
}

// Close marks a ticket as resolved.
func (s *Service) Close(ctx context.Context, ticketID string) (support.Ticket, error) {
	t, err := s.Get(ctx, ticketID)
	if err != nil {
		return support.Ticket{}, err
	}

	t.Status = support.StatusClosed
	updated, err := s.store.UpdateTicket(ctx, t)
	if err != nil {
		return support.Ticket{}, fmt.Errorf("persist close: %w", err)
	}
	s.log.WithField("ticket_id", ticketID).Info("support ticket closed")
	return updated, nil
}
