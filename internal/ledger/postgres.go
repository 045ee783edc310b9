package ledger

import (
	"context"
	"fmt"
	"time"

	"stay-booking/internal/data/entity"
	apperrors "stay-booking/internal/errors"
	"stay-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("stay-booking/ledger")

// Postgres keeps slots in capacity_slots and serializes each key with a row
// lock. Reserve and Release join the transaction carried by ctx, so callers
// can commit capacity together with their own rows.
type Postgres struct {
	db       database.PgxIface
	tx       database.Transactor
	capacity CapacitySource
	log      *zap.Logger
}

func NewPostgres(db database.PgxIface, tx database.Transactor, capacity CapacitySource, log *zap.Logger) *Postgres {
	return &Postgres{
		db:       db,
		tx:       tx,
		capacity: capacity,
		log:      log.With(zap.String("ledger", "postgres")),
	}
}

// JoinsTransaction is always true: every statement runs on database.Conn(ctx).
func (p *Postgres) JoinsTransaction() bool { return true }

func (p *Postgres) Reserve(ctx context.Context, demands []Demand) (*Handle, error) {
	ctx, span := tracer.Start(ctx, "ledger.Reserve")
	defer span.End()

	batch, err := Normalize(demands)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("ledger.slots", len(batch)))

	totals := make(map[uuid.UUID]int)
	for _, d := range batch {
		if _, ok := totals[d.ResourceID]; ok {
			continue
		}
		total, err := p.capacity.DefaultCapacity(ctx, d.ResourceID)
		if err != nil {
			return nil, err
		}
		totals[d.ResourceID] = total
	}

	handle := &Handle{ID: uuid.New(), Lines: batch}
	err = p.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := database.Conn(ctx, p.db)

		// lock every key in canonical order before checking any of them
		for _, d := range batch {
			if _, err := q.Exec(ctx, `
				INSERT INTO capacity_slots (resource_id, slot_date, total_capacity, reserved_count)
				VALUES ($1, $2, $3, 0)
				ON CONFLICT (resource_id, slot_date) DO NOTHING
			`, d.ResourceID, d.Date, totals[d.ResourceID]); err != nil {
				return p.wrap(err, "create slot", d)
			}

			var total, reserved int
			if err := q.QueryRow(ctx, `
				SELECT total_capacity, reserved_count
				FROM capacity_slots
				WHERE resource_id = $1 AND slot_date = $2
				FOR UPDATE
			`, d.ResourceID, d.Date).Scan(&total, &reserved); err != nil {
				return p.wrap(err, "lock slot", d)
			}

			if avail := available(total, reserved); d.Count > avail {
				return apperrors.NewCapacityExceededError(d.ResourceID, d.Date, d.Count, avail)
			}
		}

		if _, err := q.Exec(ctx, `INSERT INTO reservations (id, created_at) VALUES ($1, NOW())`, handle.ID); err != nil {
			return p.wrap(err, "create reservation", Demand{})
		}

		for _, d := range batch {
			if _, err := q.Exec(ctx, `
				UPDATE capacity_slots
				SET reserved_count = reserved_count + $3, updated_at = NOW()
				WHERE resource_id = $1 AND slot_date = $2
			`, d.ResourceID, d.Date, d.Count); err != nil {
				return p.wrap(err, "increment slot", d)
			}

			if _, err := q.Exec(ctx, `
				INSERT INTO reservation_lines (reservation_id, resource_id, slot_date, count)
				VALUES ($1, $2, $3, $4)
			`, handle.ID, d.ResourceID, d.Date, d.Count); err != nil {
				return p.wrap(err, "create reservation line", d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.Debug("Capacity reserved", zap.String("handle_id", handle.ID.String()), zap.Int("slots", len(batch)))
	return handle, nil
}

func (p *Postgres) Release(ctx context.Context, handleID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "ledger.Release")
	defer span.End()

	return p.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := database.Conn(ctx, p.db)

		tag, err := q.Exec(ctx, `
			UPDATE reservations SET released_at = NOW()
			WHERE id = $1 AND released_at IS NULL
		`, handleID)
		if err != nil {
			return p.wrap(err, "mark reservation released", Demand{})
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		rows, err := q.Query(ctx, `
			SELECT resource_id, slot_date, count
			FROM reservation_lines
			WHERE reservation_id = $1
			ORDER BY resource_id, slot_date
		`, handleID)
		if err != nil {
			return p.wrap(err, "load reservation lines", Demand{})
		}
		lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Demand, error) {
			var d Demand
			err := row.Scan(&d.ResourceID, &d.Date, &d.Count)
			return d, err
		})
		if err != nil {
			return p.wrap(err, "scan reservation lines", Demand{})
		}

		for _, d := range lines {
			tag, err := q.Exec(ctx, `
				UPDATE capacity_slots
				SET reserved_count = reserved_count - $3, updated_at = NOW()
				WHERE resource_id = $1 AND slot_date = $2 AND reserved_count >= $3
			`, d.ResourceID, d.Date, d.Count)
			if err != nil {
				return p.wrap(err, "decrement slot", d)
			}
			if tag.RowsAffected() == 0 {
				p.log.Error("Capacity slot underflow on release",
					zap.String("handle_id", handleID.String()),
					zap.String("resource_id", d.ResourceID.String()),
					zap.Time("date", d.Date))
				return apperrors.NewInconsistencyError(
					fmt.Sprintf("release %s: slot %s/%s would go negative", handleID, d.ResourceID, d.Date.Format(time.DateOnly)), nil)
			}
		}

		p.log.Debug("Capacity released", zap.String("handle_id", handleID.String()), zap.Int("slots", len(lines)))
		return nil
	})
}

func (p *Postgres) AvailableOn(ctx context.Context, resourceID uuid.UUID, date time.Time) (int, error) {
	date = entity.DateOf(date)

	var total, reserved int
	err := database.Conn(ctx, p.db).QueryRow(ctx, `
		SELECT total_capacity, reserved_count
		FROM capacity_slots
		WHERE resource_id = $1 AND slot_date = $2
	`, resourceID, date).Scan(&total, &reserved)
	if err == pgx.ErrNoRows {
		return p.capacity.DefaultCapacity(ctx, resourceID)
	}
	if err != nil {
		p.log.Error("Failed to read capacity slot", zap.Error(err), zap.String("resource_id", resourceID.String()))
		return 0, fmt.Errorf("read slot %s/%s: %w", resourceID, date.Format(time.DateOnly), err)
	}

	return available(total, reserved), nil
}

// wrap turns lock and serialization failures into ConcurrentModificationError
// so the caller retries them; everything else is reported as is.
func (p *Postgres) wrap(err error, op string, d Demand) error {
	if database.IsRetryable(err) {
		p.log.Warn("Ledger conflict", zap.String("op", op), zap.Error(err))
		return apperrors.NewConcurrentModificationError(fmt.Errorf("%s: %w", op, err))
	}
	p.log.Error("Ledger operation failed",
		zap.String("op", op),
		zap.Error(err),
		zap.String("resource_id", d.ResourceID.String()))
	return fmt.Errorf("%s: %w", op, err)
}
