package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/onebills/onebills/internal/backend"
	"github.com/onebills/onebills/internal/validation"
)

// Service manages account lifecycle for the local auth backend. Failures are
// reported as backend errors so clients see the same identifiers a hosted
// auth service would return.
type Service struct {
	repo       Repository
	bcryptCost int
}

// NewService creates a new identity service.
func NewService(repo Repository, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, bcryptCost: bcryptCost}
}

// Register creates a password account.
func (s *Service) Register(ctx context.Context, creds Credentials) (Account, error) {
	email := strings.TrimSpace(creds.Email)
	if !validation.Email(email) {
		return Account{}, backend.NewError(backend.CodeInvalidEmail, "Unable to validate email address: invalid format")
	}
	if ok, msg := validation.Password(creds.Password); !ok {
		return Account{}, backend.NewError(backend.CodeWeakPassword, msg)
	}
	// The sign-up phone is contact metadata; only phone sign-in enforces the
	// E.164 length rules.
	phone := ""
	if strings.TrimSpace(creds.Phone) != "" {
		phone = validation.FormatPhone(creds.Phone)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.bcryptCost)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:           uuid.New().String(),
		Email:        email,
		Phone:        phone,
		FullName:     strings.TrimSpace(creds.FullName),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.create(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Authenticate verifies an email/password pair. Unknown accounts and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return Account{}, backend.NewError(backend.CodeInvalidCredentials, "Invalid login credentials")
	}
	if err != nil {
		return Account{}, err
	}
	if len(account.PasswordHash) == 0 {
		return Account{}, backend.NewError(backend.CodeInvalidCredentials, "Invalid login credentials")
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return Account{}, backend.NewError(backend.CodeInvalidCredentials, "Invalid login credentials")
	}
	return account, nil
}

// EnsurePhoneAccount returns the account bound to phone, creating a
// passwordless one on first use.
func (s *Service) EnsurePhoneAccount(ctx context.Context, phone string) (Account, error) {
	account, err := s.repo.FindByPhone(ctx, phone)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}
	account = Account{
		ID:        uuid.New().String(),
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.create(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Get returns the account with id.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) create(ctx context.Context, account Account) error {
	err := s.repo.Create(ctx, account)
	switch {
	case errors.Is(err, ErrEmailTaken):
		return backend.NewError(backend.CodeUserAlreadyRegistered, "User already registered")
	case errors.Is(err, ErrPhoneTaken):
		return backend.NewError(backend.CodePhoneAlreadyRegistered, "Phone number already registered")
	}
	return err
}

// ToUser converts an account into the identity handed to clients.
func ToUser(account Account) *backend.User {
	meta := map[string]string{}
	if account.FullName != "" {
		meta["full_name"] = account.FullName
	}
	if account.Phone != "" {
		meta["phone"] = account.Phone
	}
	return &backend.User{
		ID:        account.ID,
		Email:     account.Email,
		Phone:     account.Phone,
		Metadata:  meta,
		CreatedAt: account.CreatedAt,
	}
}
