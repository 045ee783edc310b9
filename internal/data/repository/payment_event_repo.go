package repository

import (
	"context"
	"fmt"

	"stay-booking/internal/data/entity"
	"stay-booking/pkg/database"

	"go.uber.org/zap"
)

// PaymentEventRepository is an append-only log of inbound payment
// notifications.
type PaymentEventRepository interface {
	Record(ctx context.Context, event *entity.PaymentEvent) error
}

type paymentEventRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentEventRepository(db database.PgxIface, log *zap.Logger) PaymentEventRepository {
	return &paymentEventRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_event")),
	}
}

func (r *paymentEventRepository) Record(ctx context.Context, e *entity.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (id, provider_transaction_id, booking_id, status, amount,
			source, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := database.Conn(ctx, r.db).Exec(ctx, query,
		e.ID,
		e.ProviderTransactionID,
		e.BookingID,
		e.Status,
		e.Amount,
		e.Source,
		e.Outcome,
		e.Detail,
		e.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to record payment event",
			zap.Error(err),
			zap.String("provider_transaction_id", e.ProviderTransactionID),
			zap.String("outcome", e.Outcome),
		)
		return fmt.Errorf("record payment event for %s: %w", e.ProviderTransactionID, err)
	}

	return nil
}
