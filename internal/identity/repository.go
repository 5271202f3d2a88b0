package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken and ErrPhoneTaken report uniqueness conflicts on Create.
	ErrEmailTaken = errors.New("email already registered")
	ErrPhoneTaken = errors.New("phone already registered")
)

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByID(ctx context.Context, id string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByPhone(ctx context.Context, phone string) (Account, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, COALESCE(email, ''), COALESCE(phone, ''), full_name, password_hash, created_at`

// Create inserts a new account. Empty email or phone are stored as NULL so
// the unique indexes only apply to real values.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	id, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO auth_accounts (id, email, phone, full_name, password_hash, created_at)
        VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6)`,
		id, account.Email, account.Phone, account.FullName, account.PasswordHash, account.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "auth_accounts_phone_key" {
			return ErrPhoneTaken
		}
		return ErrEmailTaken
	}
	return err
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM auth_accounts WHERE id = $1`, accountID)
}

// FindByEmail fetches an account by email, case-insensitively.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM auth_accounts WHERE lower(email) = lower($1)`, email)
}

// FindByPhone fetches an account by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM auth_accounts WHERE phone = $1`, phone)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (Account, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		account   Account
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&id, &account.Email, &account.Phone, &account.FullName, &account.PasswordHash, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = createdAt.UTC()
	return account, nil
}
