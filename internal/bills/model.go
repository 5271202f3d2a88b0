package bills

import "time"

// Category groups service providers (electricity, water, airtime).
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Provider is a biller within a category.
type Provider struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CategoryID  string    `json:"category_id"`
	LogoURL     string    `json:"logo_url,omitempty"`
	APIEndpoint string    `json:"api_endpoint,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryWithProviders is a category and every provider filed under it.
type CategoryWithProviders struct {
	Category
	Providers []Provider `json:"service_providers"`
}

// UserBill is an account a user pays through a provider.
type UserBill struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	ServiceProviderID string    `json:"service_provider_id"`
	AccountNumber     string    `json:"account_number"`
	AccountName       string    `json:"account_name"`
	IsSaved           bool      `json:"is_saved"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Provider          *Provider `json:"service_providers,omitempty"`
}

// NewBill is the input for AddBill.
type NewBill struct {
	ServiceProviderID string `json:"service_provider_id" validate:"required,max=64"`
	AccountNumber     string `json:"account_number" validate:"required,max=64"`
	AccountName       string `json:"account_name" validate:"required,max=120"`
	IsSaved           *bool  `json:"is_saved,omitempty"`
}

// BillUpdate lists the fields to change; nil fields are kept.
type BillUpdate struct {
	ServiceProviderID *string `json:"service_provider_id,omitempty" validate:"omitnil,min=1,max=64"`
	AccountNumber     *string `json:"account_number,omitempty" validate:"omitnil,min=1,max=64"`
	AccountName       *string `json:"account_name,omitempty" validate:"omitnil,min=1,max=120"`
	IsSaved           *bool   `json:"is_saved,omitempty"`
}

func (u BillUpdate) apply(b *UserBill) {
	if u.ServiceProviderID != nil {
		b.ServiceProviderID = *u.ServiceProviderID
	}
	if u.AccountNumber != nil {
		b.AccountNumber = *u.AccountNumber
	}
	if u.AccountName != nil {
		b.AccountName = *u.AccountName
	}
	if u.IsSaved != nil {
		b.IsSaved = *u.IsSaved
	}
}
