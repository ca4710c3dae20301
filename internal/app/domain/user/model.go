package user

import "time"

// KYCStatus tracks identity verification progress for a user.
type KYCStatus string

const (
	KYCUnverified KYCStatus = "unverified"
	KYCPending    KYCStatus = "pending"
	KYCVerified   KYCStatus = "verified"
)

// KYCData holds the documents a user submits for verification.
type KYCData struct {
	FullName        string    `json:"full_name"`
	DateOfBirth     string    `json:"date_of_birth"`
	Address         string    `json:"address"`
	IDType          string    `json:"id_type,omitempty"`
	IDNumber        string    `json:"id_number"`
	IDFrontImage    string    `json:"id_front_image"`
	IDBackImage     string    `json:"id_back_image"`
	SelfieImage     string    `json:"selfie_image"`
	SubmittedAt     time.Time `json:"submitted_at"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
}

// User is a wallet account holder. WalletAddresses maps a currency code to
// the receiving address for that currency; Balances maps a currency code to
// a non-negative amount and is created lazily on first reference.
type User struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Email           string             `json:"email"`
	PasswordHash    string             `json:"-"`
	WalletAddresses map[string]string  `json:"wallet_addresses"`
	Balances        map[string]float64 `json:"balances"`
	KYCStatus       KYCStatus          `json:"kyc_status"`
	KYCData         *KYCData           `json:"kyc_data,omitempty"`
	IsAdmin         bool               `json:"is_admin"`
	Avatar          string             `json:"avatar,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}
