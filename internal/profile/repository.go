package profile

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onebills/onebills/internal/backend"
)

// Repository persists profiles, one per user. Missing rows are reported as
// the backend no-rows error. Upsert overwrites an existing KYC status only
// when setKYC is true.
type Repository interface {
	FindByUserID(ctx context.Context, userID string) (Profile, error)
	Upsert(ctx context.Context, p Profile, setKYC bool) (Profile, error)
	Update(ctx context.Context, userID string, u Update, at time.Time) (Profile, error)
}

// PostgresRepository stores profiles in the user_profiles table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed profile repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `id::text, user_id::text, COALESCE(full_name, ''), COALESCE(phone, ''), kyc_status, created_at, updated_at`

// FindByUserID returns the profile owned by userID.
func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) (Profile, error) {
	row := r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

// Upsert inserts the profile or merges non-empty fields into the existing
// row for the same user.
func (r *PostgresRepository) Upsert(ctx context.Context, p Profile, setKYC bool) (Profile, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO user_profiles (id, user_id, full_name, phone, kyc_status, created_at, updated_at)
        VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $6)
        ON CONFLICT (user_id) DO UPDATE SET
            full_name = COALESCE(EXCLUDED.full_name, user_profiles.full_name),
            phone = COALESCE(EXCLUDED.phone, user_profiles.phone),
            kyc_status = CASE WHEN $7 THEN EXCLUDED.kyc_status ELSE user_profiles.kyc_status END,
            updated_at = EXCLUDED.updated_at
        RETURNING `+profileColumns,
		p.ID, p.UserID, p.FullName, p.Phone, p.KYCStatus, p.UpdatedAt.UTC(), setKYC)
	return scanProfile(row)
}

// Update changes the non-empty fields of the user's profile.
func (r *PostgresRepository) Update(ctx context.Context, userID string, u Update, at time.Time) (Profile, error) {
	row := r.db.QueryRow(ctx, `UPDATE user_profiles SET
            full_name = COALESCE(NULLIF($2, ''), full_name),
            phone = COALESCE(NULLIF($3, ''), phone),
            kyc_status = COALESCE(NULLIF($4, ''), kyc_status),
            updated_at = $5
        WHERE user_id = $1
        RETURNING `+profileColumns,
		userID, u.FullName, u.Phone, u.KYCStatus, at.UTC())
	return scanProfile(row)
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	if err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Phone, &p.KYCStatus, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Profile{}, backend.FromPg(err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
