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

// CustomerRepository is a read view of the customer directory. Upsert only
// serves the local seed.
type CustomerRepository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Customer, error)
	Upsert(ctx context.Context, customer *entity.Customer) error
}

type customerRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewCustomerRepository(db database.PgxIface, log *zap.Logger) CustomerRepository {
	return &customerRepository{
		db:  db,
		log: log.With(zap.String("repository", "customer")),
	}
}

func (r *customerRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := database.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(&exists); err != nil {
		r.log.Error("Failed to check customer", zap.Error(err), zap.String("customer_id", id.String()))
		return false, fmt.Errorf("check customer %s: %w", id.String(), err)
	}

	return exists, nil
}

func (r *customerRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	query := `
		SELECT id, name, email, created_at, updated_at, deleted_at
		FROM customers
		WHERE id = $1 AND deleted_at IS NULL
	`

	var c entity.Customer
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.DeletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find customer by ID", zap.Error(err), zap.String("customer_id", id.String()))
		return nil, fmt.Errorf("find customer by ID %s: %w", id.String(), err)
	}

	return &c, nil
}

func (r *customerRepository) Upsert(ctx context.Context, c *entity.Customer) error {
	query := `
		INSERT INTO customers (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = EXCLUDED.updated_at
	`

	_, err := database.Conn(ctx, r.db).Exec(ctx, query, c.ID, c.Name, c.Email, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to upsert customer", zap.Error(err), zap.String("customer_id", c.ID.String()))
		return fmt.Errorf("upsert customer %s: %w", c.ID.String(), err)
	}

	return nil
}
