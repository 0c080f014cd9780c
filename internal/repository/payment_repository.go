package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/astroline/astroline-bot/internal/domain"
)

// PaymentRepository persists payment events keyed by the provider-assigned
// payment id.
type PaymentRepository interface {
	// Upsert records a payment event. A replay of the same payment id
	// overwrites the existing row instead of inserting a duplicate; this is
	// the idempotency boundary against redelivered payment confirmations.
	Upsert(ctx context.Context, record *domain.PaymentRecord) error
}

type paymentRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPaymentRepository creates a new SQL-backed payment repository.
func NewPaymentRepository(db *sql.DB, log *slog.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log,
	}
}

func (r *paymentRepository) Upsert(ctx context.Context, record *domain.PaymentRecord) error {
	const query = `
		INSERT INTO payments (payment_id, user_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at
	`

	if _, err := r.db.ExecContext(ctx, query,
		record.PaymentID,
		record.UserID,
		record.Amount,
		record.Currency,
		record.Status,
		record.CreatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert payment",
				slog.String("payment_id", record.PaymentID),
				slog.Int64("user_id", record.UserID),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("upsert payment: %w", err)
	}

	return nil
}

