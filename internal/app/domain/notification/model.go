package notification

import "time"

// Type classifies a notification for client rendering.
type Type string

const (
	TypeTransaction Type = "transaction"
	TypeKYC         Type = "kyc"
	TypeSecurity    Type = "security"
	TypeSupport     Type = "support"
	TypeSystem      Type = "system"
	TypeAdmin       Type = "admin"
)

// Notification is an event recorded for a user. Delivery is fire-and-forget;
// nothing in the system blocks on a notification being written.
type Notification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Type          Type      `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Read          bool      `json:"read"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
