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

const (
	// ConstraintBookingIdempotencyKey guards one booking per (customer, key).
	ConstraintBookingIdempotencyKey = "bookings_customer_idempotency_key"
	ConstraintBookingCode           = "bookings_code_key"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	// FindByIDForUpdate row-locks the booking inside the ambient transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*entity.Booking, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByCustomerID(ctx context.Context, customerID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, bookingID uuid.UUID, status entity.BookingStatus) error

	// Sweeper queries
	ListExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error)
	ListCompletable(ctx context.Context, checkOutBy time.Time, limit int) ([]uuid.UUID, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `id, code, customer_id, check_in, check_out, total_price, currency, status,
	note, reservation_id, idempotency_key, created_at, updated_at`

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.Code,
		&b.CustomerID,
		&b.CheckIn,
		&b.CheckOut,
		&b.TotalPrice,
		&b.Currency,
		&b.Status,
		&b.Note,
		&b.ReservationID,
		&b.IdempotencyKey,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return &b, err
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := database.Conn(ctx, r.db).Exec(ctx, query,
		booking.ID,
		booking.Code,
		booking.CustomerID,
		booking.CheckIn,
		booking.CheckOut,
		booking.TotalPrice,
		booking.Currency,
		booking.Status,
		booking.Note,
		booking.ReservationID,
		booking.IdempotencyKey,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, ConstraintBookingIdempotencyKey) {
			r.log.Info("Duplicate idempotency key", zap.String("customer_id", booking.CustomerID.String()))
		} else {
			r.log.Error("Failed to create booking",
				zap.Error(err),
				zap.String("code", booking.Code),
				zap.String("customer_id", booking.CustomerID.String()),
			)
		}
		return fmt.Errorf("create booking %s: %w", booking.Code, err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *bookingRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*entity.Booking, error) {
	booking, err := scanBooking(database.Conn(ctx, r.db).QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID", zap.Error(err), zap.String("booking_id", id.String()))
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_id = $1 AND idempotency_key = $2`

	booking, err := scanBooking(database.Conn(ctx, r.db).QueryRow(ctx, query, customerID, key))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by idempotency key",
			zap.Error(err),
			zap.String("customer_id", customerID.String()),
		)
		return nil, fmt.Errorf("find booking by idempotency key: %w", err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, customerID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by customer ID",
			zap.Error(err),
			zap.String("customer_id", customerID.String()),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find bookings by customer ID %s: %w", customerID.String(), err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) CountByCustomerID(ctx context.Context, customerID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE customer_id = $1`

	var count int64
	if err := database.Conn(ctx, r.db).QueryRow(ctx, query, customerID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by customer ID",
			zap.Error(err),
			zap.String("customer_id", customerID.String()),
		)
		return 0, fmt.Errorf("count bookings by customer ID %s: %w", customerID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, bookingID uuid.UUID, status entity.BookingStatus) error {
	query := `UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, bookingID, status)
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update booking %s status to %s: %w", bookingID.String(), string(status), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking %s not found", bookingID.String())
	}

	return nil
}

func (r *bookingRepository) ListExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT b.id
		FROM bookings b
		JOIN payments p ON p.booking_id = b.id
		WHERE b.status = $1 AND b.created_at < $2 AND p.status <> $3
		ORDER BY b.created_at
		LIMIT $4
	`

	return r.listIDs(ctx, "expirable", query,
		entity.BookingStatusPendingPayment, createdBefore, entity.PaymentStatusPaid, limit)
}

func (r *bookingRepository) ListCompletable(ctx context.Context, checkOutBy time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM bookings
		WHERE status = $1 AND check_out <= $2
		ORDER BY check_out
		LIMIT $3
	`

	return r.listIDs(ctx, "completable", query, entity.BookingStatusConfirmed, checkOutBy, limit)
}

func (r *bookingRepository) listIDs(ctx context.Context, what, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list bookings", zap.Error(err), zap.String("list", what))
		return nil, fmt.Errorf("list %s bookings: %w", what, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan %s booking ids: %w", what, err)
	}
	return ids, nil
}
