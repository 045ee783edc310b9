package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"stay-booking/internal/data/entity"
	"stay-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type LineItemRepository interface {
	CreateBatch(ctx context.Context, items []entity.LineItem) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]entity.LineItem, error)
}

type lineItemRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewLineItemRepository(db database.PgxIface, log *zap.Logger) LineItemRepository {
	return &lineItemRepository{
		db:  db,
		log: log.With(zap.String("repository", "line_item")),
	}
}

// lineDetails is the JSONB column; only the payload matching kind is set.
type lineDetails struct {
	Stay  *entity.StayDetail  `json:"stay,omitempty"`
	Combo *entity.ComboDetail `json:"combo,omitempty"`
}

func (r *lineItemRepository) CreateBatch(ctx context.Context, items []entity.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO booking_items (id, booking_id, position, kind, resource_id, name, quantity,
			unit_price, subtotal, check_in, check_out, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	q := database.Conn(ctx, r.db)
	for _, item := range items {
		details, err := json.Marshal(lineDetails{Stay: item.Stay, Combo: item.Combo})
		if err != nil {
			return fmt.Errorf("encode details of line %d: %w", item.Position, err)
		}
		_, err = q.Exec(ctx, query,
			item.ID,
			item.BookingID,
			item.Position,
			item.Kind,
			item.ResourceID,
			item.Name,
			item.Quantity,
			item.UnitPrice,
			item.Subtotal,
			item.CheckIn,
			item.CheckOut,
			details,
			item.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to create booking item",
				zap.Error(err),
				zap.String("booking_id", item.BookingID.String()),
				zap.Int("position", item.Position),
			)
			return fmt.Errorf("create item %d of booking %s: %w", item.Position, item.BookingID.String(), err)
		}
	}

	return nil
}

func (r *lineItemRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]entity.LineItem, error) {
	query := `
		SELECT id, booking_id, position, kind, resource_id, name, quantity,
			unit_price, subtotal, check_in, check_out, details, created_at
		FROM booking_items
		WHERE booking_id = $1
		ORDER BY position
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find booking items", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("find items of booking %s: %w", bookingID.String(), err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.LineItem, error) {
		var (
			item    entity.LineItem
			raw     []byte
			details lineDetails
		)
		err := row.Scan(
			&item.ID,
			&item.BookingID,
			&item.Position,
			&item.Kind,
			&item.ResourceID,
			&item.Name,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CheckIn,
			&item.CheckOut,
			&raw,
			&item.CreatedAt,
		)
		if err != nil {
			return item, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &details); err != nil {
				return item, fmt.Errorf("decode details of line %d: %w", item.Position, err)
			}
		}
		item.Stay, item.Combo = details.Stay, details.Combo
		return item, nil
	})
	if err != nil {
		r.log.Error("Failed to scan booking items", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("scan items of booking %s: %w", bookingID.String(), err)
	}

	return items, nil
}
