package repository

import (
	"context"
	"fmt"
	"time"

	"stay-booking/internal/data/entity"
	"stay-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error)
	FindByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error)
	FindByProviderTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error)

	// Business queries
	SetIntent(ctx context.Context, paymentID uuid.UUID, transactionID string, paymentURL *string) error
	MarkPaid(ctx context.Context, paymentID uuid.UUID, paidAt time.Time) error
	MarkFailed(ctx context.Context, paymentID uuid.UUID) error
}

type paymentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRepository(db database.PgxIface, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `id, booking_id, method, status, amount, currency,
	provider_transaction_id, payment_url, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.Method,
		&p.Status,
		&p.Amount,
		&p.Currency,
		&p.ProviderTransactionID,
		&p.PaymentURL,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return &p, err
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := database.Conn(ctx, r.db).Exec(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.Method,
		payment.Status,
		payment.Amount,
		payment.Currency,
		payment.ProviderTransactionID,
		payment.PaymentURL,
		payment.PaidAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("booking_id", payment.BookingID.String()),
			zap.String("method", payment.Method),
		)
		return fmt.Errorf("create payment for booking %s: %w", payment.BookingID.String(), err)
	}

	return nil
}

func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1`, bookingID, "booking_id")
}

func (r *paymentRepository) FindByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 FOR UPDATE`, bookingID, "booking_id")
}

func (r *paymentRepository) FindByProviderTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_transaction_id = $1`,
		transactionID, "provider_transaction_id")
}

func (r *paymentRepository) findOne(ctx context.Context, query string, arg any, by string) (*entity.Payment, error) {
	payment, err := scanPayment(database.Conn(ctx, r.db).QueryRow(ctx, query, arg))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment", zap.Error(err), zap.Any(by, arg))
		return nil, fmt.Errorf("find payment by %s %v: %w", by, arg, err)
	}

	return payment, nil
}

func (r *paymentRepository) SetIntent(ctx context.Context, paymentID uuid.UUID, transactionID string, paymentURL *string) error {
	query := `
		UPDATE payments
		SET provider_transaction_id = $2, payment_url = $3, updated_at = NOW()
		WHERE id = $1 AND status <> 'paid'
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, paymentID, transactionID, paymentURL)
	if err != nil {
		r.log.Error("Failed to set payment intent",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
			zap.String("provider_transaction_id", transactionID),
		)
		return fmt.Errorf("set intent of payment %s: %w", paymentID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found or already paid", paymentID.String())
	}

	return nil
}

func (r *paymentRepository) MarkPaid(ctx context.Context, paymentID uuid.UUID, paidAt time.Time) error {
	return r.updateStatus(ctx, paymentID, entity.PaymentStatusPaid, &paidAt)
}

func (r *paymentRepository) MarkFailed(ctx context.Context, paymentID uuid.UUID) error {
	return r.updateStatus(ctx, paymentID, entity.PaymentStatusFailed, nil)
}

func (r *paymentRepository) updateStatus(ctx context.Context, paymentID uuid.UUID, status entity.PaymentStatus, paidAt *time.Time) error {
	query := `
		UPDATE payments
		SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
		WHERE id = $1
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, paymentID, status, paidAt)
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update payment %s status to %s: %w", paymentID.String(), string(status), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found", paymentID.String())
	}

	return nil
}
