// Package users manages wallet account holders: registration, credential
// checks, token issuance, profile maintenance and the KYC state machine.
package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/agilewallet/backend/internal/app/domain/user"
	"github.com/agilewallet/backend/internal/app/storage"
	"github.com/agilewallet/backend/pkg/logger"
)

var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailInUse indicates the email is already registered.
	ErrEmailInUse = errors.New("email already in use")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords
	// so login failures do not reveal which part was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrKYCNotPending indicates a KYC decision targeted a user whose
	// verification is not awaiting review.
	ErrKYCNotPending = errors.New("kyc is not pending")
)

// DefaultCurrencies are the currencies every new account receives a wallet
// address and a zero balance entry for.
var DefaultCurrencies = []string{"btc", "eth", "usdt"}

const bcryptCost = 10

// Claims are the JWT claims issued on login and registration.
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Service manages user accounts and authentication.
type Service struct {
	store    storage.UserStore
	log      *logger.Logger
	secret   []byte
	tokenTTL time.Duration
}

// New constructs a user service. secret signs issued tokens; ttl controls
// their lifetime and defaults to seven days when zero.
func New(store storage.UserStore, secret []byte, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{store: store, log: log, secret: secret, tokenTTL: ttl}
}

// RegisterInput describes a signup request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a new account with generated wallet addresses and zero
// balances for the default currencies, and returns it with a signed token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, string, error) {
	if len(strings.TrimSpace(in.Name)) < 2 {
		return user.User{}, "", fmt.Errorf("name must be at least 2 characters")
	}
	if !strings.Contains(in.Email, "@") {
		return user.User{}, "", fmt.Errorf("email is invalid")
	}
	if len(in.Password) < 8 {
		return user.User{}, "", fmt.Errorf("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, in.Email); err == nil {
		return user.User{}, "", ErrEmailInUse
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, "", fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return user.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	addresses := make(map[string]string, len(DefaultCurrencies))
	balances := make(map[string]float64, len(DefaultCurrencies))
	for _, cur := range DefaultCurrencies {
		addresses[cur] = newWalletAddress(cur)
		balances[cur] = 0
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Name:            strings.TrimSpace(in.Name),
		Email:           in.Email,
		PasswordHash:    string(hash),
		WalletAddresses: addresses,
		Balances:        balances,
		KYCStatus:       user.KYCUnverified,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return user.User{}, "", ErrEmailInUse
		}
		return user.User{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.issueToken(created)
	if err != nil {
		return user.User{}, "", err
	}

	s.log.WithField("user_id", created.ID).Info("user registered")
	return created, token, nil
}

// Login checks credentials and returns the user with a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, string, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return user.User{}, "", err
	}
	token, err := s.issueToken(u)
	if err != nil {
		return user.User{}, "", err
	}
	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, token, nil
}

// AdminLogin checks credentials and additionally requires the admin flag.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (user.User, string, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return user.User{}, "", err
	}
	if !u.IsAdmin {
		return user.User{}, "", ErrInvalidCredentials
	}
	token, err := s.issueToken(u)
	if err != nil {
		return user.User{}, "", err
	}
	s.log.WithField("user_id", u.ID).Info("admin logged in")
	return u, token, nil
}

func (s *Service) authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return user.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// VerifyToken parses and validates a token issued by this service.
func (s *Service) VerifyToken(tokenString string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, fmt.Errorf("invalid token claims")
	}
	return *claims, nil
}

func (s *Service) issueToken(u user.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  u.ID,
		Email:   u.Email,
		IsAdmin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Get retrieves a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, fmt.Errorf("user %s: %w", id, ErrUserNotFound)
		}
		return user.User{}, err
	}
	return u, nil
}

// List returns all users ordered by creation time.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// GenerateWalletAddress creates a fresh receiving address for the user in
// the given currency, replacing any previous one.
func (s *Service) GenerateWalletAddress(ctx context.Context, userID, currency string) (string, error) {
	if currency == "" {
		return "", fmt.Errorf("currency is required")
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	address := newWalletAddress(currency)
	if u.WalletAddresses == nil {
		u.WalletAddresses = make(map[string]string)
	}
	u.WalletAddresses[currency] = address
	if _, err := s.store.UpdateUser(ctx, u); err != nil {
		return "", fmt.Errorf("persist address: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"user_id":  userID,
		"currency": currency,
	}).Info("wallet address generated")
	return address, nil
}

// UpdateProfileInput carries optional profile changes. Empty fields are
// left untouched.
type UpdateProfileInput struct {
	Name   string
	Email  string
	Avatar string
}

// UpdateProfile applies the provided profile changes.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (user.User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return user.User{}, err
	}

	if in.Email != "" && in.Email != u.Email {
		if other, err := s.store.GetUserByEmail(ctx, in.Email); err == nil && other.ID != userID {
			return user.User{}, ErrEmailInUse
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return user.User{}, fmt.Errorf("check email: %w", err)
		}
		u.Email = in.Email
	}
	if in.Name != "" {
		if len(strings.TrimSpace(in.Name)) < 2 {
			return user.User{}, fmt.Errorf("name must be at least 2 characters")
		}
		u.Name = strings.TrimSpace(in.Name)
	}
	if in.Avatar != "" {
		u.Avatar = in.Avatar
	}

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, fmt.Errorf("persist profile: %w", err)
	}
	s.log.WithField("user_id", userID).Info("profile updated")
	return updated, nil
}

// ChangePassword verifies the current password and stores a hash of the
// new one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return fmt.Errorf("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if _, err := s.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("persist password: %w", err)
	}
	s.log.WithField("user_id", userID).Info("password changed")
	return nil
}

// SubmitKYC records verification documents and moves the user to pending.
func (s *Service) SubmitKYC(ctx context.Context, userID string, data user.KYCData) (user.User, error) {
	if data.FullName == "" || data.IDNumber == "" {
		return user.User{}, fmt.Errorf("full name and id number are required")
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return user.User{}, err
	}

	if data.SubmittedAt.IsZero() {
		data.SubmittedAt = time.Now()
	}
	u.KYCStatus = user.KYCPending
	u.KYCData = &data

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, fmt.Errorf("persist kyc: %w", err)
	}
	s.log.WithField("user_id", userID).Info("kyc submitted")
	return updated, nil
}

// ApproveKYC marks a pending verification as verified.
func (s *Service) ApproveKYC(ctx context.Context, userID string) (user.User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if u.KYCStatus != user.KYCPending {
		return user.User{}, fmt.Errorf("user %s: %w", userID, ErrKYCNotPending)
	}

	u.KYCStatus = user.KYCVerified
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, fmt.Errorf("persist kyc: %w", err)
	}
	s.log.WithField("user_id", userID).Info("kyc approved")
	return updated, nil
}

// RejectKYC returns a pending verification to unverified, recording the
// reason on the submitted documents.
func (s *Service) RejectKYC(ctx context.Context, userID, reason string) (user.User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if u.KYCStatus != user.KYCPending {
		return user.User{}, fmt.Errorf("user %s: %w", userID, ErrKYCNotPending)
	}

	u.KYCStatus = user.KYCUnverified
	if u.KYCData != nil {
		u.KYCData.RejectionReason = reason
	}
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, fmt.Errorf("persist kyc: %w", err)
	}
	s.log.WithFields(map[string]interface{}{
		"user_id": userID,
		"reason":  reason,
	}).Info("kyc rejected")
	return updated, nil
}

// newWalletAddress produces a demo receiving address shaped like the real
// thing for the given currency. Addresses are random, not derived from keys.
func newWalletAddress(currency string) string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform source is broken.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	suffix := hex.EncodeToString(buf)
	if currency == "btc" {
		return "bc1" + suffix
	}
	return "0x" + suffix
}
