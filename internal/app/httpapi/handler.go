// Package httpapi exposes the wallet services over RPC-style HTTP
// endpoints. Every operation is a POST to /rpc/<entity>.<op> with a JSON
// body; errors come back as {"error": "..."} with a taxonomy-mapped status.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agilewallet/backend/internal/app"
	"github.com/agilewallet/backend/internal/app/domain/notification"
	"github.com/agilewallet/backend/internal/app/domain/user"
	"github.com/agilewallet/backend/internal/app/metrics"
	"github.com/agilewallet/backend/internal/app/services/currencies"
	"github.com/agilewallet/backend/internal/app/services/ledger"
	"github.com/agilewallet/backend/internal/app/services/notifications"
	supportsvc "github.com/agilewallet/backend/internal/app/services/support"
	"github.com/agilewallet/backend/internal/app/services/users"
	"github.com/agilewallet/backend/pkg/logger"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	Logger         *logger.Logger
}

// skipAuthPaths are served without a bearer token: signup, login and the
// public currency catalogue, plus the operational endpoints.
var skipAuthPaths = []string{
	"/rpc/users.register",
	"/rpc/users.login",
	"/rpc/users.adminLogin",
	"/rpc/currencies.list",
	"/rpc/currencies.get",
}

type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns the router exposing the wallet RPC API.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := chi.NewRouter()
	r.Use(metrics.InstrumentHandler)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(newCORSMiddleware(opts.AllowedOrigins).Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	auth := newAuthMiddleware(application.Users, log, skipAuthPaths)
	r.Route("/rpc", func(r chi.Router) {
		r.Use(auth.Handler)

		r.Post("/users.register", h.register)
		r.Post("/users.login", h.login)
		r.Post("/users.adminLogin", h.adminLogin)
		r.Post("/users.get", h.userGet)
		r.Post("/users.list", h.userList)
		r.Post("/users.updateProfile", h.updateProfile)
		r.Post("/users.changePassword", h.changePassword)
		r.Post("/users.generateWalletAddress", h.generateWalletAddress)
		r.Post("/users.submitKyc", h.submitKYC)
		r.Post("/users.approveKyc", h.approveKYC)
		r.Post("/users.rejectKyc", h.rejectKYC)

		r.Post("/transactions.submit", h.submitTransaction)
		r.Post("/transactions.approve", h.approveTransaction)
		r.Post("/transactions.reject", h.rejectTransaction)
		r.Post("/transactions.adjustBalance", h.adjustBalance)
		r.Post("/transactions.get", h.transactionGet)
		r.Post("/transactions.list", h.transactionList)
		r.Post("/transactions.listPending", h.transactionListPending)
		r.Post("/transactions.listByUser", h.transactionListByUser)

		r.Post("/currencies.list", h.currencyList)
		r.Post("/currencies.get", h.currencyGet)
		r.Post("/currencies.updateRate", h.currencyUpdateRate)

		r.Post("/notifications.list", h.notificationList)
		r.Post("/notifications.unreadCount", h.notificationUnreadCount)
		r.Post("/notifications.markRead", h.notificationMarkRead)
		r.Post("/notifications.markAllRead", h.notificationMarkAllRead)
		r.Post("/notifications.create", h.notificationCreate)

		r.Post("/support.open", h.supportOpen)
		r.Post("/support.get", h.supportGet)
		r.Post("/support.list", h.supportList)
		r.Post("/support.listByUser", h.supportListByUser)
		r.Post("/support.respond", h.supportRespond)
		r.Post("/support.close", h.supportClose)
	})

	return r
}

// authResponse is the login/register payload: the user plus a bearer token.
type authResponse struct {
	User  user.User `json:"user"`
	Token string    `json:"token"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, token, err := h.app.Users.Register(r.Context(), users.RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{User: created, Token: token})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, token, err := h.app.Users.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

func (h *handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, token, err := h.app.Users.AdminLogin(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

func (h *handler) userGet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !h.authorizeUser(w, r, payload.ID) {
		return
	}

	u, err := h.app.Users.Get(r.Context(), payload.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) userList(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	all, err := h.app.Users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
		Email  string `json:"email"`
		Avatar string `json:"avatar"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID, ok := h.resolveSubject(w, r, payload.UserID)
	if !ok {
		return
	}

	updated, err := h.app.Users.UpdateProfile(r.Context(), userID, users.UpdateProfileInput{
		Name:   payload.Name,
		Email:  payload.Email,
		Avatar: payload.Avatar,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.app.Users.ChangePassword(r.Context(), claims.UserID, payload.CurrentPassword, payload.NewPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handler) generateWalletAddress(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID   string `json:"userId"`
		Currency string `json:"currency"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID, ok := h.resolveSubject(w, r, payload.UserID)
	if !ok {
		return
	}

	address, err := h.app.Users.GenerateWalletAddress(r.Context(), userID, payload.Currency)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": address})
}

func (h *handler) submitKYC(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID  string       `json:"userId"`
		KYCData user.KYCData `json:"kycData"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID, ok := h.resolveSubject(w, r, payload.UserID)
	if !ok {
		return
	}

	updated, err := h.app.Users.SubmitKYC(r.Context(), userID, payload.KYCData)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) approveKYC(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Users.ApproveKYC(r.Context(), payload.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) rejectKYC(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var payload struct {
		UserID string `json:"userId"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Users.RejectKYC(r.Context(), payload.UserID, payload.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) submitTransaction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FromUserID  string  `json:"fromUserId"`
		FromAddress string  `json:"fromAddress"`
		ToAddress   string  `json:"toAddress"`
		Amount      float64 `json:"amount"`
		Currency    string  `json:"currency"`
		Description string  `json:"description"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fromUserID, ok := h.resolveSubject(w, r, payload.FromUserID)
	if !ok {
		return
	}

	tx, err := h.app.Ledger.Submit(r.Context(), ledger.SubmitInput{
		FromUserID:  fromUserID,
		FromAddress: payload.FromAddress,
		ToAddress:   payload.ToAddress,
		Amount:      payload.Amount,
		Currency:    payload.Currency,
		Description: payload.Description,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *handler) approveTransaction(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.Ledger.Approve(r.Context(), payload.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) rejectTransaction(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var payload struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.Ledger.Reject(r.Context(), payload.ID, payload.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) adjustBalance(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var payload struct {
		UserID   string  `json:"userId"`
		Currency string  `json:"currency"`
		Delta    float64 `json:"delta"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Ledger.AdjustBalance(r.Context(), payload.UserID, payload.Currency, payload.Delta)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) transactionGet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := h.app.Ledger.Get(r.Context(), payload.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	claims, ok := claimsFromContext(r.Context())
	if !ok || (!claims.IsAdmin && claims.UserID != tx.FromUserID && claims.UserID != tx.ToUserID) {
		writeErrorMessage(w, http.StatusForbidden, "not a participant of this transaction")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *handler) transactionList(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	all, err := h.app.Ledger.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) transactionListPending(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	pending, err := h.app.Ledger.ListPending(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *handler) transactionListByUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID, ok := h.resolveSubject(w, r, payload.UserID)
	if !ok {
		return
	}

	txs, err := h.app.Ledger.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handler) currencyList(w http.ResponseWriter, r *http.Request) {
	all, err := h.app.Currencies.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) currencyGet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.app.Currencies.Get(r.Context(), payload.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) currencyUpdateRate(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var payload struct {
		ID           string  `json:"id"`
		ExchangeRate float64 `json:"exchangeRate"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Currencies.UpdateExchangeRate(r.Context(), payload.ID, payload.ExchangeRate)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) notificationList(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID, ok := h.resolveSubject(w, r, payload.UserID)
	if !ok {
		return
	}

	feed, err := h.app.Notifications.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *handler) notificationUnreadCount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID, ok := h.resolveSubject(w, r, payload.UserID)
	if !ok {
		return
	}

	count, err := h.app.Notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *handler) notificationMarkRead(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	existing, err := h.app.Notifications.Get(r.Context(), payload.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !h.authorizeUser(w, r, existing.UserID) {
		return
	}

	updated, err := h.app.Notifications.MarkRead(r.Context(), payload.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) notificationMarkAllRead(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID, ok := h.resolveSubject(w, r, payload.UserID)
	if !ok {
		return
	}

	feed, err := h.app.Notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *handler) notificationCreate(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var payload struct {
		UserID        string `json:"userId"`
		Type          string `json:"type"`
		Title         string `json:"title"`
		Message       string `json:"message"`
		TransactionID string `json:"transactionId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Notifications.Create(r.Context(), notification.Notification{
		UserID:        payload.UserID,
		Type:          notification.Type(payload.Type),
		Title:         payload.Title,
		Message:       payload.Message,
		TransactionID: payload.TransactionID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) supportOpen(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ticket, err := h.app.Support.Open(r.Context(), claims.UserID, payload.Subject, payload.Message)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *handler) supportGet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ticket, err := h.app.Support.Get(r.Context(), payload.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !h.authorizeUser(w, r, ticket.UserID) {
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *handler) supportList(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	all, err := h.app.Support.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) supportListByUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID, ok := h.resolveSubject(w, r, payload.UserID)
	if !ok {
		return
	}

	tickets, err := h.app.Support.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *handler) supportRespond(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TicketID string `json:"ticketId"`
		Message  string `json:"message"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if !claims.IsAdmin {
		ticket, err := h.app.Support.Get(r.Context(), payload.TicketID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		if ticket.UserID != claims.UserID {
			writeErrorMessage(w, http.StatusForbidden, "not your ticket")
			return
		}
	}

	updated, err := h.app.Support.Respond(r.Context(), payload.TicketID, payload.Message, claims.IsAdmin)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) supportClose(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ticket, err := h.app.Support.Get(r.Context(), payload.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !h.authorizeUser(w, r, ticket.UserID) {
		return
	}

	closed, err := h.app.Support.Close(r.Context(), payload.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, closed)
}

// requireAdmin rejects the request unless the token carries the admin flag.
func (h *handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !claims.IsAdmin {
		writeErrorMessage(w, http.StatusForbidden, "admin access required")
		return false
	}
	return true
}

// authorizeUser allows the request when it targets the authenticated user
// or comes from an admin.
func (h *handler) authorizeUser(w http.ResponseWriter, r *http.Request, userID string) bool {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !claims.IsAdmin && claims.UserID != userID {
		writeErrorMessage(w, http.StatusForbidden, "access denied")
		return false
	}
	return true
}

// resolveSubject returns the user the operation acts on: the requested id
// for admins, otherwise the authenticated user, rejecting mismatches.
func (h *handler) resolveSubject(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	if requested == "" || requested == claims.UserID {
		return claims.UserID, true
	}
	if !claims.IsAdmin {
		writeErrorMessage(w, http.StatusForbidden, "access denied")
		return "", false
	}
	return requested, true
}

// writeServiceError maps service sentinel errors onto the HTTP taxonomy:
// not-found 404, invalid-state and conflicts 409, bad credentials 401,
// anything else a validation 400.
func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, currencies.ErrCurrencyNotFound),
		errors.Is(err, notifications.ErrNotificationNotFound),
		errors.Is(err, supportsvc.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ledger.ErrNotPending),
		errors.Is(err, users.ErrKYCNotPending),
		errors.Is(err, users.ErrEmailInUse),
		errors.Is(err, supportsvc.ErrTicketClosed):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, users.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeErrorMessage(w, status, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
