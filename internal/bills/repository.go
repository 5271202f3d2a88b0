package bills

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onebills/onebills/internal/backend"
)

// Repository reads the catalog and persists user bills. Bill operations are
// scoped to the owning user.
type Repository interface {
	Categories(ctx context.Context) ([]Category, error)
	Providers(ctx context.Context, categoryID string, activeOnly bool) ([]Provider, error)
	BillsByUser(ctx context.Context, userID string) ([]UserBill, error)
	BillByID(ctx context.Context, userID, id string) (UserBill, error)
	CreateBill(ctx context.Context, bill UserBill) (UserBill, error)
	UpdateBill(ctx context.Context, userID, id string, u BillUpdate, at time.Time) (UserBill, error)
	DeleteBill(ctx context.Context, userID, id string) error
}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed bills repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	categoryColumns = `id::text, name, COALESCE(icon, ''), COALESCE(description, ''), created_at, updated_at`
	providerColumns = `p.id::text, p.name, p.category_id::text, COALESCE(p.logo_url, ''), COALESCE(p.api_endpoint, ''), p.is_active, p.created_at, p.updated_at`
	billColumns     = `b.id::text, b.user_id::text, b.service_provider_id::text, b.account_number, b.account_name, b.is_saved, b.created_at, b.updated_at`
)

// Categories lists all categories by name.
func (r *PostgresRepository) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT `+categoryColumns+` FROM bill_categories ORDER BY name`)
	if err != nil {
		return nil, backend.FromPg(err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, backend.FromPg(err)
		}
		out = append(out, c)
	}
	return out, backend.FromPg(rows.Err())
}

// Providers lists providers by name, optionally within one category.
func (r *PostgresRepository) Providers(ctx context.Context, categoryID string, activeOnly bool) ([]Provider, error) {
	rows, err := r.db.Query(ctx, `SELECT `+providerColumns+` FROM service_providers p
        WHERE ($1 = '' OR p.category_id::text = $1) AND (NOT $2 OR p.is_active)
        ORDER BY p.name`, categoryID, activeOnly)
	if err != nil {
		return nil, backend.FromPg(err)
	}
	defer rows.Close()

	out := []Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, backend.FromPg(rows.Err())
}

// BillsByUser lists the user's bills, newest first, with their provider.
func (r *PostgresRepository) BillsByUser(ctx context.Context, userID string) ([]UserBill, error) {
	rows, err := r.db.Query(ctx, `SELECT `+billColumns+`, `+providerColumns+`
        FROM user_bills b JOIN service_providers p ON p.id = b.service_provider_id
        WHERE b.user_id = $1
        ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, backend.FromPg(err)
	}
	defer rows.Close()

	out := []UserBill{}
	for rows.Next() {
		b, err := scanBillWithProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, backend.FromPg(rows.Err())
}

// BillByID returns one of the user's bills with its provider.
func (r *PostgresRepository) BillByID(ctx context.Context, userID, id string) (UserBill, error) {
	row := r.db.QueryRow(ctx, `SELECT `+billColumns+`, `+providerColumns+`
        FROM user_bills b JOIN service_providers p ON p.id = b.service_provider_id
        WHERE b.id = $1 AND b.user_id = $2`, id, userID)
	return scanBillWithProvider(row)
}

// CreateBill inserts a bill.
func (r *PostgresRepository) CreateBill(ctx context.Context, bill UserBill) (UserBill, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO user_bills AS b (id, user_id, service_provider_id, account_number, account_name, is_saved, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        RETURNING `+billColumns,
		bill.ID, bill.UserID, bill.ServiceProviderID, bill.AccountNumber, bill.AccountName, bill.IsSaved, bill.CreatedAt.UTC())
	return scanBill(row)
}

// UpdateBill changes the non-nil fields of a bill.
func (r *PostgresRepository) UpdateBill(ctx context.Context, userID, id string, u BillUpdate, at time.Time) (UserBill, error) {
	row := r.db.QueryRow(ctx, `UPDATE user_bills AS b SET
            service_provider_id = COALESCE($3::uuid, b.service_provider_id),
            account_number = COALESCE($4, b.account_number),
            account_name = COALESCE($5, b.account_name),
            is_saved = COALESCE($6, b.is_saved),
            updated_at = $7
        WHERE b.id = $1 AND b.user_id = $2
        RETURNING `+billColumns,
		id, userID, u.ServiceProviderID, u.AccountNumber, u.AccountName, u.IsSaved, at.UTC())
	return scanBill(row)
}

// DeleteBill removes a bill. Deleting a missing bill is not an error.
func (r *PostgresRepository) DeleteBill(ctx context.Context, userID, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM user_bills WHERE id = $1 AND user_id = $2`, id, userID)
	return backend.FromPg(err)
}

func scanProvider(row pgx.Row) (Provider, error) {
	var p Provider
	if err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.LogoURL, &p.APIEndpoint, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Provider{}, backend.FromPg(err)
	}
	return p, nil
}

func scanBill(row pgx.Row) (UserBill, error) {
	var b UserBill
	if err := row.Scan(&b.ID, &b.UserID, &b.ServiceProviderID, &b.AccountNumber, &b.AccountName, &b.IsSaved, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return UserBill{}, backend.FromPg(err)
	}
	return b, nil
}

func scanBillWithProvider(row pgx.Row) (UserBill, error) {
	var (
		b UserBill
		p Provider
	)
	err := row.Scan(&b.ID, &b.UserID, &b.ServiceProviderID, &b.AccountNumber, &b.AccountName, &b.IsSaved, &b.CreatedAt, &b.UpdatedAt,
		&p.ID, &p.Name, &p.CategoryID, &p.LogoURL, &p.APIEndpoint, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return UserBill{}, backend.FromPg(err)
	}
	b.Provider = &p
	return b, nil
}
