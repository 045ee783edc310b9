package repository

import (
	"stay-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Tx           database.Transactor
	Customer     CustomerRepository
	Catalog      CatalogRepository
	Booking      BookingRepository
	LineItem     LineItemRepository
	Payment      PaymentRepository
	PaymentEvent PaymentEventRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Tx:           database.NewTransactor(db),
		Customer:     NewCustomerRepository(db, log),
		Catalog:      NewCatalogRepository(db, log),
		Booking:      NewBookingRepository(db, log),
		LineItem:     NewLineItemRepository(db, log),
		Payment:      NewPaymentRepository(db, log),
		PaymentEvent: NewPaymentEventRepository(db, log),
	}
}
