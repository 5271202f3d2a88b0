package transactions

import "time"

// Payment statuses. Completed and failed are final.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const defaultCurrency = "USD"

// Transaction is a bill payment record. Amount is in minor units.
type Transaction struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	BillID           string         `json:"bill_id,omitempty"`
	Amount           int64          `json:"amount"`
	Currency         string         `json:"currency"`
	Status           string         `json:"status"`
	PaymentMethod    string         `json:"payment_method"`
	RecipientDetails map[string]any `json:"recipient_details,omitempty"`
	ReceiptURL       string         `json:"receipt_url,omitempty"`
	PaymentIntentID  string         `json:"payment_intent_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Bill             *BillSummary   `json:"user_bills,omitempty"`
}

// BillSummary is the slice of the paid bill shown next to a transaction.
type BillSummary struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
	Provider      ProviderSummary `json:"service_providers"`
}

// ProviderSummary names the biller of a transaction.
type ProviderSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

// NewTransaction is the input for Create.
type NewTransaction struct {
	BillID           string         `json:"bill_id" validate:"omitempty,max=64"`
	Amount           int64          `json:"amount" validate:"gt=0"`
	Currency         string         `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentMethod    string         `json:"payment_method" validate:"required,max=32"`
	RecipientDetails map[string]any `json:"recipient_details"`
}

// StatusChange moves a transaction forward and records processor references.
type StatusChange struct {
	Status          string `json:"status" validate:"required"`
	ReceiptURL      string `json:"receipt_url,omitempty" validate:"omitempty,url,max=2048"`
	PaymentIntentID string `json:"payment_intent_id,omitempty" validate:"omitempty,max=255"`
}

// Stats summarizes a user's transactions. TotalAmount sums completed ones.
type Stats struct {
	Total       int   `json:"total"`
	Completed   int   `json:"completed"`
	Pending     int   `json:"pending"`
	Failed      int   `json:"failed"`
	TotalAmount int64 `json:"totalAmount"`
}

var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func canMove(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
