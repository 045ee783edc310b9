package seed

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"stay-booking/internal/data/entity"
	"stay-booking/internal/data/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingCustomers struct {
	repository.CustomerRepository
	upserted []*entity.Customer
}

func (r *recordingCustomers) Upsert(ctx context.Context, c *entity.Customer) error {
	r.upserted = append(r.upserted, c)
	return nil
}

type recordingCatalog struct {
	repository.CatalogRepository
	services  []*entity.Service
	combos    []*entity.Combo
	equipment []*entity.Equipment
}

func (r *recordingCatalog) UpsertService(ctx context.Context, s *entity.Service) error {
	r.services = append(r.services, s)
	return nil
}

func (r *recordingCatalog) UpsertCombo(ctx context.Context, c *entity.Combo) error {
	r.combos = append(r.combos, c)
	return nil
}

func (r *recordingCatalog) UpsertEquipment(ctx context.Context, e *entity.Equipment) error {
	r.equipment = append(r.equipment, e)
	return nil
}

func TestLoad_ExampleFile(t *testing.T) {
	f, err := Load("../../../config/seed.example.yaml")
	require.NoError(t, err)

	assert.Len(t, f.Customers, 1)
	require.Len(t, f.Services, 2)
	assert.Equal(t, "Lakeside cabin", f.Services[0].Name)
	assert.Equal(t, int64(250000), f.Services[0].Price)
	assert.True(t, f.Services[0].AllowExtraPeople)
	require.Len(t, f.Combos, 1)
	assert.Len(t, f.Combos[0].Services, 2)
	assert.Len(t, f.Equipment, 2)
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown key": `services: [{id: 5b1d7c3e-2f4a-4d8b-9c6e-1a2b3c4d5e01, nmae: typo}]`,
		"bad capacity": `
services:
  - id: 5b1d7c3e-2f4a-4d8b-9c6e-1a2b3c4d5e01
    name: Cabin
    min_days: 1
    min_capacity: 4
    max_capacity: 2`,
		"combo with unknown service": `
combos:
  - id: 9e8d7c6b-5a49-4837-a261-0f1e2d3c4b01
    name: Bundle
    services:
      - id: 5b1d7c3e-2f4a-4d8b-9c6e-1a2b3c4d5e09
        quantity: 1`,
		"bad uuid": `customers: [{id: not-a-uuid}]`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Services)
}

func TestApply(t *testing.T) {
	b, err := os.ReadFile("../../../config/seed.example.yaml")
	require.NoError(t, err)
	f, err := Parse(strings.NewReader(string(b)))
	require.NoError(t, err)

	customers := &recordingCustomers{}
	catalog := &recordingCatalog{}
	repo := &repository.Repository{Tx: passTx{}, Customer: customers, Catalog: catalog}

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, Apply(context.Background(), repo, f, now, zap.NewNop()))

	require.Len(t, customers.upserted, 1)
	assert.Equal(t, "ann@example.com", customers.upserted[0].Email)

	require.Len(t, catalog.services, 2)
	assert.True(t, catalog.services[0].IsActive)
	assert.Equal(t, 5, catalog.services[0].DailyCapacity)
	assert.Equal(t, now, catalog.services[0].CreatedAt)

	require.Len(t, catalog.combos, 1)
	assert.Equal(t, []entity.ComboConstituent{
		{ServiceID: uuid.MustParse("5b1d7c3e-2f4a-4d8b-9c6e-1a2b3c4d5e01"), Quantity: 1},
		{ServiceID: uuid.MustParse("5b1d7c3e-2f4a-4d8b-9c6e-1a2b3c4d5e02"), Quantity: 1},
	}, catalog.combos[0].Constituents)

	assert.Len(t, catalog.equipment, 2)
}
