// Package seed loads catalog and customer fixtures from YAML for local
// environments.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"stay-booking/internal/data/entity"
	"stay-booking/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
)

type File struct {
	Customers []Customer  `yaml:"customers"`
	Services  []Service   `yaml:"services"`
	Combos    []Combo     `yaml:"combos"`
	Equipment []Equipment `yaml:"equipment"`
}

type Customer struct {
	ID    uuid.UUID `yaml:"id"`
	Name  string    `yaml:"name"`
	Email string    `yaml:"email"`
}

type Service struct {
	ID                uuid.UUID `yaml:"id"`
	Name              string    `yaml:"name"`
	Price             int64     `yaml:"price"`
	MinDays           int       `yaml:"min_days"`
	MaxDays           int       `yaml:"max_days"`
	MinCapacity       int       `yaml:"min_capacity"`
	MaxCapacity       int       `yaml:"max_capacity"`
	AllowExtraPeople  bool      `yaml:"allow_extra_people"`
	MaxExtraPeople    int       `yaml:"max_extra_people"`
	ExtraFeePerPerson int64     `yaml:"extra_fee_per_person"`
	DailyCapacity     int       `yaml:"daily_capacity"`
	Inactive          bool      `yaml:"inactive"`
}

type Combo struct {
	ID       uuid.UUID `yaml:"id"`
	Name     string    `yaml:"name"`
	Price    int64     `yaml:"price"`
	Inactive bool      `yaml:"inactive"`
	Services []struct {
		ID       uuid.UUID `yaml:"id"`
		Quantity int       `yaml:"quantity"`
	} `yaml:"services"`
}

type Equipment struct {
	ID       uuid.UUID `yaml:"id"`
	Name     string    `yaml:"name"`
	Price    int64     `yaml:"price"`
	Stock    int       `yaml:"stock"`
	Inactive bool      `yaml:"inactive"`
}

func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(bytes.NewReader(b))
}

// Parse decodes and checks a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	services := make(map[uuid.UUID]bool, len(f.Services))
	for i, s := range f.Services {
		switch {
		case s.ID == uuid.Nil:
			return fmt.Errorf("services[%d]: id is required", i)
		case s.Name == "":
			return fmt.Errorf("services[%d]: name is required", i)
		case s.Price < 0:
			return fmt.Errorf("services[%d]: price must not be negative", i)
		case s.MinCapacity < 1 || s.MaxCapacity < s.MinCapacity:
			return fmt.Errorf("services[%d]: capacity range %d-%d is invalid", i, s.MinCapacity, s.MaxCapacity)
		case s.MinDays < 1 || (s.MaxDays > 0 && s.MaxDays < s.MinDays):
			return fmt.Errorf("services[%d]: day range %d-%d is invalid", i, s.MinDays, s.MaxDays)
		case s.DailyCapacity < 0:
			return fmt.Errorf("services[%d]: daily_capacity must not be negative", i)
		}
		services[s.ID] = true
	}
	for i, c := range f.Combos {
		if c.ID == uuid.Nil || c.Name == "" {
			return fmt.Errorf("combos[%d]: id and name are required", i)
		}
		if len(c.Services) == 0 {
			return fmt.Errorf("combos[%d]: at least one service is required", i)
		}
		for j, cs := range c.Services {
			if !services[cs.ID] {
				return fmt.Errorf("combos[%d].services[%d]: unknown service %s", i, j, cs.ID)
			}
			if cs.Quantity < 1 {
				return fmt.Errorf("combos[%d].services[%d]: quantity must be positive", i, j)
			}
		}
	}
	for i, e := range f.Equipment {
		if e.ID == uuid.Nil || e.Name == "" {
			return fmt.Errorf("equipment[%d]: id and name are required", i)
		}
		if e.Stock < 0 {
			return fmt.Errorf("equipment[%d]: stock must not be negative", i)
		}
	}
	for i, c := range f.Customers {
		if c.ID == uuid.Nil {
			return fmt.Errorf("customers[%d]: id is required", i)
		}
	}
	return nil
}

// Apply upserts everything in f in one transaction.
func Apply(ctx context.Context, repo *repository.Repository, f *File, now time.Time, log *zap.Logger) error {
	err := repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, c := range f.Customers {
			err := repo.Customer.Upsert(ctx, &entity.Customer{
				Base:  entity.Base{ID: c.ID, CreatedAt: now, UpdatedAt: now},
				Name:  c.Name,
				Email: c.Email,
			})
			if err != nil {
				return fmt.Errorf("seed customer %s: %w", c.ID, err)
			}
		}

		for _, s := range f.Services {
			err := repo.Catalog.UpsertService(ctx, &entity.Service{
				BaseNoDelete:      entity.BaseNoDelete{ID: s.ID, CreatedAt: now, UpdatedAt: now},
				Name:              s.Name,
				Price:             s.Price,
				MinDays:           s.MinDays,
				MaxDays:           s.MaxDays,
				MinCapacity:       s.MinCapacity,
				MaxCapacity:       s.MaxCapacity,
				AllowExtraPeople:  s.AllowExtraPeople,
				MaxExtraPeople:    s.MaxExtraPeople,
				ExtraFeePerPerson: s.ExtraFeePerPerson,
				DailyCapacity:     s.DailyCapacity,
				IsActive:          !s.Inactive,
			})
			if err != nil {
				return fmt.Errorf("seed service %s: %w", s.ID, err)
			}
		}

		for _, c := range f.Combos {
			combo := &entity.Combo{
				BaseNoDelete: entity.BaseNoDelete{ID: c.ID, CreatedAt: now, UpdatedAt: now},
				Name:         c.Name,
				Price:        c.Price,
				IsActive:     !c.Inactive,
			}
			for _, cs := range c.Services {
				combo.Constituents = append(combo.Constituents, entity.ComboConstituent{ServiceID: cs.ID, Quantity: cs.Quantity})
			}
			if err := repo.Catalog.UpsertCombo(ctx, combo); err != nil {
				return fmt.Errorf("seed combo %s: %w", c.ID, err)
			}
		}

		for _, e := range f.Equipment {
			err := repo.Catalog.UpsertEquipment(ctx, &entity.Equipment{
				BaseNoDelete: entity.BaseNoDelete{ID: e.ID, CreatedAt: now, UpdatedAt: now},
				Name:         e.Name,
				Price:        e.Price,
				Stock:        e.Stock,
				IsActive:     !e.Inactive,
			})
			if err != nil {
				return fmt.Errorf("seed equipment %s: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("Seed applied",
		zap.Int("customers", len(f.Customers)),
		zap.Int("services", len(f.Services)),
		zap.Int("combos", len(f.Combos)),
		zap.Int("equipment", len(f.Equipment)),
	)
	return nil
}
