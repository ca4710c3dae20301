package transaction

import "time"

// Status is the settlement state of a transaction. Pending transactions move
// exactly once, to either approved or rejected; both are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Transaction records a transfer between two wallet addresses. FromUserID
// and ToUserID are account references and may be empty when an address does
// not resolve to a known user; balances are only adjusted for resolved
// sides at settlement time.
type Transaction struct {
	ID              string    `json:"id"`
	FromUserID      string    `json:"from_user_id,omitempty"`
	ToUserID        string    `json:"to_user_id,omitempty"`
	FromAddress     string    `json:"from_address"`
	ToAddress       string    `json:"to_address"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Status          Status    `json:"status"`
	Description     string    `json:"description,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
