package transactions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onebills/onebills/internal/backend"
)

// Repository persists transactions. Reads and writes are scoped to the
// owning user.
type Repository interface {
	List(ctx context.Context, userID, status string, limit int) ([]Transaction, error)
	ByID(ctx context.Context, userID, id string) (Transaction, error)
	Create(ctx context.Context, tx Transaction) (Transaction, error)
	// UpdateStatus applies change only while the row is still in status from.
	UpdateStatus(ctx context.Context, userID, id, from string, change StatusChange, at time.Time) (Transaction, error)
	Stats(ctx context.Context, userID string) (Stats, error)
}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed transaction repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	txColumns = `t.id::text, t.user_id::text, COALESCE(t.bill_id::text, ''), t.amount, t.currency, t.status,
        t.payment_method, t.recipient_details, COALESCE(t.receipt_url, ''), COALESCE(t.payment_intent_id, ''),
        t.created_at, t.updated_at`
	billJoin = `, b.id::text, b.account_number, b.account_name, p.id::text, p.name, COALESCE(p.logo_url, '')
        FROM transactions t
        LEFT JOIN user_bills b ON b.id = t.bill_id
        LEFT JOIN service_providers p ON p.id = b.service_provider_id`
)

// List returns the user's transactions newest first, optionally filtered by
// status. limit <= 0 means no limit.
func (r *PostgresRepository) List(ctx context.Context, userID, status string, limit int) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+txColumns+billJoin+`
        WHERE t.user_id = $1 AND ($2 = '' OR t.status = $2)
        ORDER BY t.created_at DESC
        LIMIT NULLIF($3, 0)`, userID, status, max(limit, 0))
	if err != nil {
		return nil, backend.FromPg(err)
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		tx, err := scanWithBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, backend.FromPg(rows.Err())
}

// ByID returns one of the user's transactions.
func (r *PostgresRepository) ByID(ctx context.Context, userID, id string) (Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+txColumns+billJoin+` WHERE t.id = $1 AND t.user_id = $2`, id, userID)
	return scanWithBill(row)
}

// Create inserts a transaction.
func (r *PostgresRepository) Create(ctx context.Context, tx Transaction) (Transaction, error) {
	details, err := encodeDetails(tx.RecipientDetails)
	if err != nil {
		return Transaction{}, err
	}
	row := r.db.QueryRow(ctx, `INSERT INTO transactions AS t (id, user_id, bill_id, amount, currency, status, payment_method, recipient_details, created_at, updated_at)
        VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $9)
        RETURNING `+txColumns,
		tx.ID, tx.UserID, tx.BillID, tx.Amount, tx.Currency, tx.Status, tx.PaymentMethod, details, tx.CreatedAt.UTC())
	return scan(row)
}

// UpdateStatus moves a transaction out of status from.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, userID, id, from string, change StatusChange, at time.Time) (Transaction, error) {
	row := r.db.QueryRow(ctx, `UPDATE transactions AS t SET
            status = $4,
            receipt_url = COALESCE(NULLIF($5, ''), t.receipt_url),
            payment_intent_id = COALESCE(NULLIF($6, ''), t.payment_intent_id),
            updated_at = $7
        WHERE t.id = $1 AND t.user_id = $2 AND t.status = $3
        RETURNING `+txColumns,
		id, userID, from, change.Status, change.ReceiptURL, change.PaymentIntentID, at.UTC())
	return scan(row)
}

// Stats aggregates the user's transactions.
func (r *PostgresRepository) Stats(ctx context.Context, userID string) (Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status = 'completed'),
            COUNT(*) FILTER (WHERE status = 'pending'),
            COUNT(*) FILTER (WHERE status = 'failed'),
            COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0)
        FROM transactions WHERE user_id = $1`, userID).
		Scan(&s.Total, &s.Completed, &s.Pending, &s.Failed, &s.TotalAmount)
	if err != nil {
		return Stats{}, backend.FromPg(err)
	}
	return s, nil
}

func encodeDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	return json.Marshal(details)
}

func scanInto(tx *Transaction, details *[]byte) []any {
	return []any{&tx.ID, &tx.UserID, &tx.BillID, &tx.Amount, &tx.Currency, &tx.Status,
		&tx.PaymentMethod, details, &tx.ReceiptURL, &tx.PaymentIntentID, &tx.CreatedAt, &tx.UpdatedAt}
}

func scan(row pgx.Row) (Transaction, error) {
	var (
		tx      Transaction
		details []byte
	)
	if err := row.Scan(scanInto(&tx, &details)...); err != nil {
		return Transaction{}, backend.FromPg(err)
	}
	return tx, decodeDetails(&tx, details)
}

func scanWithBill(row pgx.Row) (Transaction, error) {
	var (
		tx      Transaction
		details []byte
		// Bill columns are NULL when the payment is not tied to a bill.
		billID, number, name                   *string
		providerID, providerName, providerLogo *string
	)
	dest := append(scanInto(&tx, &details), &billID, &number, &name, &providerID, &providerName, &providerLogo)
	if err := row.Scan(dest...); err != nil {
		return Transaction{}, backend.FromPg(err)
	}
	if billID != nil {
		tx.Bill = &BillSummary{ID: *billID, AccountNumber: deref(number), AccountName: deref(name),
			Provider: ProviderSummary{ID: deref(providerID), Name: deref(providerName), LogoURL: deref(providerLogo)}}
	}
	return tx, decodeDetails(&tx, details)
}

func decodeDetails(tx *Transaction, details []byte) error {
	if len(details) == 0 {
		return nil
	}
	return json.Unmarshal(details, &tx.RecipientDetails)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
