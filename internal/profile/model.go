package profile

import "time"

// KYC verification states.
const (
	KYCPending  = "pending"
	KYCVerified = "verified"
	KYCRejected = "rejected"
)

// Profile is the application record attached to an identity.
type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	KYCStatus string    `json:"kyc_status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Complete reports whether the profile holds everything the main app needs.
func (p *Profile) Complete() bool {
	return p != nil && p.FullName != "" && p.Phone != ""
}

// Update carries the fields to change. Empty fields are left untouched.
type Update struct {
	FullName  string `json:"full_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	KYCStatus string `json:"kyc_status,omitempty"`
}

func validKYC(status string) bool {
	switch status {
	case KYCPending, KYCVerified, KYCRejected:
		return true
	}
	return false
}
