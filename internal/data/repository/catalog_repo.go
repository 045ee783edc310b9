package repository

import (
	"context"
	"fmt"

	"stay-booking/internal/data/entity"
	"stay-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CatalogRepository reads services, combos and equipment. Catalog edits are
// owned by another system; the upserts exist for seeding.
type CatalogRepository interface {
	// Snapshot loads the requested entries plus every service a requested
	// combo refers to. Missing ids are simply absent from the maps.
	Snapshot(ctx context.Context, serviceIDs, comboIDs, equipmentIDs []uuid.UUID) (*entity.Catalog, error)
	FindServiceByID(ctx context.Context, id uuid.UUID) (*entity.Service, error)
	DefaultCapacity(ctx context.Context, serviceID uuid.UUID) (int, error)

	UpsertService(ctx context.Context, service *entity.Service) error
	UpsertCombo(ctx context.Context, combo *entity.Combo) error
	UpsertEquipment(ctx context.Context, equipment *entity.Equipment) error
}

type catalogRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewCatalogRepository(db database.PgxIface, log *zap.Logger) CatalogRepository {
	return &catalogRepository{
		db:  db,
		log: log.With(zap.String("repository", "catalog")),
	}
}

const serviceColumns = `id, name, price, min_days, max_days, min_capacity, max_capacity,
	allow_extra_people, max_extra_people, extra_fee_per_person, daily_capacity, is_active,
	created_at, updated_at`

func scanService(row pgx.Row) (*entity.Service, error) {
	var s entity.Service
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Price,
		&s.MinDays,
		&s.MaxDays,
		&s.MinCapacity,
		&s.MaxCapacity,
		&s.AllowExtraPeople,
		&s.MaxExtraPeople,
		&s.ExtraFeePerPerson,
		&s.DailyCapacity,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return &s, err
}

func (r *catalogRepository) Snapshot(ctx context.Context, serviceIDs, comboIDs, equipmentIDs []uuid.UUID) (*entity.Catalog, error) {
	q := database.Conn(ctx, r.db)
	catalog := entity.NewCatalog()

	if len(comboIDs) > 0 {
		rows, err := q.Query(ctx, `
			SELECT id, name, price, is_active, created_at, updated_at
			FROM combos WHERE id = ANY($1)
		`, comboIDs)
		if err != nil {
			r.log.Error("Failed to load combos", zap.Error(err))
			return nil, fmt.Errorf("load combos: %w", err)
		}
		for rows.Next() {
			var c entity.Combo
			if err := rows.Scan(&c.ID, &c.Name, &c.Price, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan combo row: %w", err)
			}
			catalog.Combos[c.ID] = &c
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("load combos: %w", err)
		}

		rows, err = q.Query(ctx, `
			SELECT combo_id, service_id, quantity
			FROM combo_services WHERE combo_id = ANY($1)
			ORDER BY combo_id, service_id
		`, comboIDs)
		if err != nil {
			r.log.Error("Failed to load combo constituents", zap.Error(err))
			return nil, fmt.Errorf("load combo constituents: %w", err)
		}
		for rows.Next() {
			var comboID uuid.UUID
			var cc entity.ComboConstituent
			if err := rows.Scan(&comboID, &cc.ServiceID, &cc.Quantity); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan combo constituent row: %w", err)
			}
			if c, ok := catalog.Combos[comboID]; ok {
				c.Constituents = append(c.Constituents, cc)
				serviceIDs = append(serviceIDs, cc.ServiceID)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("load combo constituents: %w", err)
		}
	}

	if len(serviceIDs) > 0 {
		rows, err := q.Query(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ANY($1)`, serviceIDs)
		if err != nil {
			r.log.Error("Failed to load services", zap.Error(err))
			return nil, fmt.Errorf("load services: %w", err)
		}
		for rows.Next() {
			s, err := scanService(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan service row: %w", err)
			}
			catalog.Services[s.ID] = s
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("load services: %w", err)
		}
	}

	if len(equipmentIDs) > 0 {
		rows, err := q.Query(ctx, `
			SELECT id, name, price, stock, is_active, created_at, updated_at
			FROM equipment WHERE id = ANY($1)
		`, equipmentIDs)
		if err != nil {
			r.log.Error("Failed to load equipment", zap.Error(err))
			return nil, fmt.Errorf("load equipment: %w", err)
		}
		for rows.Next() {
			var e entity.Equipment
			if err := rows.Scan(&e.ID, &e.Name, &e.Price, &e.Stock, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan equipment row: %w", err)
			}
			catalog.Equipment[e.ID] = &e
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("load equipment: %w", err)
		}
	}

	return catalog, nil
}

func (r *catalogRepository) FindServiceByID(ctx context.Context, id uuid.UUID) (*entity.Service, error) {
	row := database.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)

	s, err := scanService(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find service by ID", zap.Error(err), zap.String("service_id", id.String()))
		return nil, fmt.Errorf("find service by ID %s: %w", id.String(), err)
	}

	return s, nil
}

// DefaultCapacity is the total for a capacity slot created lazily.
func (r *catalogRepository) DefaultCapacity(ctx context.Context, serviceID uuid.UUID) (int, error) {
	var capacity int
	err := database.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT daily_capacity FROM services WHERE id = $1`, serviceID).Scan(&capacity)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("service %s not found", serviceID.String())
	}
	if err != nil {
		r.log.Error("Failed to read daily capacity", zap.Error(err), zap.String("service_id", serviceID.String()))
		return 0, fmt.Errorf("read daily capacity of %s: %w", serviceID.String(), err)
	}

	return capacity, nil
}

func (r *catalogRepository) UpsertService(ctx context.Context, s *entity.Service) error {
	query := `
		INSERT INTO services (` + serviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			min_days = EXCLUDED.min_days,
			max_days = EXCLUDED.max_days,
			min_capacity = EXCLUDED.min_capacity,
			max_capacity = EXCLUDED.max_capacity,
			allow_extra_people = EXCLUDED.allow_extra_people,
			max_extra_people = EXCLUDED.max_extra_people,
			extra_fee_per_person = EXCLUDED.extra_fee_per_person,
			daily_capacity = EXCLUDED.daily_capacity,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := database.Conn(ctx, r.db).Exec(ctx, query,
		s.ID,
		s.Name,
		s.Price,
		s.MinDays,
		s.MaxDays,
		s.MinCapacity,
		s.MaxCapacity,
		s.AllowExtraPeople,
		s.MaxExtraPeople,
		s.ExtraFeePerPerson,
		s.DailyCapacity,
		s.IsActive,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to upsert service", zap.Error(err), zap.String("service_id", s.ID.String()))
		return fmt.Errorf("upsert service %s: %w", s.ID.String(), err)
	}

	return nil
}

func (r *catalogRepository) UpsertCombo(ctx context.Context, c *entity.Combo) error {
	q := database.Conn(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO combos (id, name, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price,
			is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
	`, c.ID, c.Name, c.Price, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to upsert combo", zap.Error(err), zap.String("combo_id", c.ID.String()))
		return fmt.Errorf("upsert combo %s: %w", c.ID.String(), err)
	}

	if _, err := q.Exec(ctx, `DELETE FROM combo_services WHERE combo_id = $1`, c.ID); err != nil {
		return fmt.Errorf("clear constituents of combo %s: %w", c.ID.String(), err)
	}
	for _, cc := range c.Constituents {
		if _, err := q.Exec(ctx, `
			INSERT INTO combo_services (combo_id, service_id, quantity) VALUES ($1, $2, $3)
		`, c.ID, cc.ServiceID, cc.Quantity); err != nil {
			r.log.Error("Failed to insert combo constituent", zap.Error(err),
				zap.String("combo_id", c.ID.String()), zap.String("service_id", cc.ServiceID.String()))
			return fmt.Errorf("insert constituent %s of combo %s: %w", cc.ServiceID.String(), c.ID.String(), err)
		}
	}

	return nil
}

func (r *catalogRepository) UpsertEquipment(ctx context.Context, e *entity.Equipment) error {
	_, err := database.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO equipment (id, name, price, stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock,
			is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
	`, e.ID, e.Name, e.Price, e.Stock, e.IsActive, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to upsert equipment", zap.Error(err), zap.String("equipment_id", e.ID.String()))
		return fmt.Errorf("upsert equipment %s: %w", e.ID.String(), err)
	}

	return nil
}
