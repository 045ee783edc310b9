package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stay-booking/internal/data/entity"
	"stay-booking/internal/data/repository"
	"stay-booking/internal/dto/event"
	"stay-booking/internal/dto/request"
	"stay-booking/internal/dto/response"
	apperrors "stay-booking/internal/errors"
	"stay-booking/internal/ledger"
	"stay-booking/pkg/database"
	"stay-booking/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxAvailabilityDays = 90

type BookingService interface {
	CreateBooking(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	// QuoteBooking prices a request without reserving anything.
	QuoteBooking(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest) (*response.QuoteResponse, error)
	GetBookingByID(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error)
	GetUserBookings(ctx context.Context, actor utils.Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	GetAvailability(ctx context.Context, resourceID string, req *request.AvailabilityRequest) (*response.AvailabilityResponse, error)
}

type bookingService struct {
	core
}

func NewBookingService(deps Dependencies) BookingService {
	return &bookingService{core: newCore(deps, "booking")}
}

// bookingPlan is a validated, priced request ready to be reserved.
type bookingPlan struct {
	customerID     uuid.UUID
	items          []entity.LineItem
	quote          *Quote
	demands        []ledger.Demand
	note           string
	method         string
	idempotencyKey *string
}

func (s *bookingService) CreateBooking(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	ctx, span := tracer.Start(ctx, "booking.Create")
	defer span.End()

	plan, err := s.aggregate(ctx, actor, req, true)
	if err != nil {
		return nil, err
	}

	if plan.idempotencyKey != nil {
		existing, err := s.repo.Booking.FindByIdempotencyKey(ctx, plan.customerID, *plan.idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}
		if existing != nil {
			s.log.Info("Returning booking for repeated idempotency key",
				zap.String("booking_id", existing.ID.String()),
				zap.String("customer_id", plan.customerID.String()),
			)
			return s.bookingResponse(ctx, existing)
		}
	}

	reqCtx := ctx
	if s.booking.ReserveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.booking.ReserveTimeout)
		defer cancel()
	}

	var (
		booking *entity.Booking
		payment *entity.Payment
	)
	err = s.retry.do(ctx, "create booking", func(ctx context.Context) error {
		var err error
		booking, payment, err = s.persist(ctx, plan)
		return err
	})
	if err != nil {
		if plan.idempotencyKey != nil && database.IsUniqueViolation(err, repository.ConstraintBookingIdempotencyKey) {
			// lost a race against a retry carrying the same key
			existing, ferr := s.repo.Booking.FindByIdempotencyKey(reqCtx, plan.customerID, *plan.idempotencyKey)
			if ferr == nil && existing != nil {
				return s.bookingResponse(reqCtx, existing)
			}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.log.Warn("Booking creation timed out", zap.Error(err), zap.String("customer_id", plan.customerID.String()))
			return nil, apperrors.NewTransientError("booking outcome unknown, query booking status before retrying", err)
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking.id", booking.ID.String()),
		attribute.Int("booking.items", len(booking.Items)),
		attribute.Int64("booking.total", booking.TotalPrice),
	)
	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("code", booking.Code),
		zap.String("customer_id", booking.CustomerID.String()),
		zap.Int("item_count", len(booking.Items)),
		zap.Int64("total_price", booking.TotalPrice),
	)

	if withIntent, err := s.requestIntent(reqCtx, booking, payment); err != nil {
		s.log.Warn("Payment intent request failed, booking stays pending",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
	} else {
		payment = withIntent
	}

	s.publish(reqCtx, event.RKBookingCreated, booking)
	return response.BookingToResponse(booking, payment), nil
}

// persist reserves capacity and writes booking, items and payment in one
// transaction. A ledger that cannot join the transaction is compensated.
func (s *bookingService) persist(ctx context.Context, plan *bookingPlan) (*entity.Booking, *entity.Payment, error) {
	now := s.now()

	booking := &entity.Booking{
		BaseNoDelete:   entity.NewBaseNoDelete(now),
		Code:           utils.GenerateBookingCode(now),
		CustomerID:     plan.customerID,
		TotalPrice:     plan.quote.Total,
		Currency:       s.booking.Currency,
		Status:         entity.BookingStatusPendingPayment,
		Note:           plan.note,
		IdempotencyKey: plan.idempotencyKey,
	}
	booking.CheckIn, booking.CheckOut = entity.StayPeriod(plan.items)

	items := make([]entity.LineItem, len(plan.items))
	for i, item := range plan.items {
		item.ID = uuid.New()
		item.CreatedAt = now
		item.BookingID = booking.ID
		items[i] = item
	}
	booking.Items = items

	payment := &entity.Payment{
		BaseNoDelete: entity.NewBaseNoDelete(now),
		BookingID:    booking.ID,
		Method:       plan.method,
		Status:       entity.PaymentStatusPending,
		Amount:       booking.TotalPrice,
		Currency:     booking.Currency,
	}

	var handle *ledger.Handle
	err := s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if len(plan.demands) > 0 {
			h, err := s.ledger.Reserve(ctx, plan.demands)
			if err != nil {
				return err
			}
			handle = h
			booking.ReservationID = &h.ID
		}

		if err := s.repo.Booking.Create(ctx, booking); err != nil {
			return err
		}
		if err := s.repo.LineItem.CreateBatch(ctx, items); err != nil {
			return err
		}
		return s.repo.Payment.Create(ctx, payment)
	})
	if err != nil {
		if handle != nil {
			if rerr := s.ledger.Release(context.WithoutCancel(ctx), handle.ID); rerr != nil {
				s.log.Error("Failed to release reservation of aborted booking",
					zap.Error(rerr),
					zap.String("reservation_id", handle.ID.String()),
				)
			}
		}
		return nil, nil, err
	}

	return booking, payment, nil
}

// aggregate validates req against one catalog snapshot, expands combos and
// prices the result. Nothing is reserved.
func (s *bookingService) aggregate(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest, checkCustomer bool) (*bookingPlan, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Booking request validation failed", zap.Any("errors", errs))
		return nil, validationFromMap(errs)
	}
	if req.ItemCount() == 0 {
		return nil, apperrors.NewValidationError("booking must contain at least one service, combo or equipment item")
	}

	customerID := actor.ID
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, apperrors.NewFieldValidationError("customer_id", "must be a valid UUID")
		}
		if id != actor.ID && !actor.IsStaff() {
			return nil, apperrors.NewForbiddenError("customers can only book for themselves")
		}
		customerID = id
	}
	if checkCustomer {
		exists, err := s.repo.Customer.Exists(ctx, customerID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperrors.NewFieldValidationError("customer_id", "customer not found")
		}
	}

	var bookingIn, bookingOut time.Time
	hasBookingDates := req.CheckIn != "" || req.CheckOut != ""
	if hasBookingDates {
		var err error
		if bookingIn, bookingOut, err = s.parseRange("", req.CheckIn, req.CheckOut); err != nil {
			return nil, err
		}
	}

	serviceIDs := make([]uuid.UUID, 0, len(req.Services))
	for _, it := range req.Services {
		serviceIDs = append(serviceIDs, uuid.MustParse(it.ServiceID))
	}
	comboIDs := make([]uuid.UUID, 0, len(req.Combos))
	for _, it := range req.Combos {
		comboIDs = append(comboIDs, uuid.MustParse(it.ComboID))
	}
	equipmentIDs := make([]uuid.UUID, 0, len(req.Equipment))
	for _, it := range req.Equipment {
		equipmentIDs = append(equipmentIDs, uuid.MustParse(it.EquipmentID))
	}

	catalog, err := s.repo.Catalog.Snapshot(ctx, serviceIDs, comboIDs, equipmentIDs)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var (
		lines   []PriceLine
		items   []entity.LineItem
		demands []ledger.Demand
	)

	for i, it := range req.Services {
		field := fmt.Sprintf("services[%d]", i)
		svc := catalog.Services[serviceIDs[i]]
		if svc == nil || !svc.IsActive {
			return nil, apperrors.NewFieldValidationError(field+".service_id", "service not found")
		}

		in, out, err := s.parseRange(field, it.CheckIn, it.CheckOut)
		if err != nil {
			return nil, err
		}
		if err := checkDays(field, svc, in, out); err != nil {
			return nil, err
		}
		if it.PartySize < svc.MinCapacity || it.PartySize > svc.MaxPartySize() {
			return nil, apperrors.NewFieldValidationError(field+".party_size",
				fmt.Sprintf("must be between %d and %d for %s", svc.MinCapacity, svc.MaxPartySize(), svc.Name))
		}

		quantity := it.Quantity
		if quantity == 0 {
			quantity = 1
		}
		lines = append(lines, PriceLine{
			Kind:       entity.LineItemService,
			ResourceID: svc.ID,
			Name:       svc.Name,
			UnitPrice:  svc.Price,
			Quantity:   quantity,
			PartySize:  it.PartySize,
			Policy:     policyOf(svc),
		})
		items = append(items, entity.LineItem{
			Kind:       entity.LineItemService,
			ResourceID: svc.ID,
			Name:       svc.Name,
			Quantity:   quantity,
			CheckIn:    in,
			CheckOut:   out,
			Stay:       &entity.StayDetail{PartySize: it.PartySize},
		})
		demands = append(demands, ledger.ExpandNights(svc.ID, in, out, quantity)...)
	}

	for i, it := range req.Combos {
		field := fmt.Sprintf("combos[%d]", i)
		combo := catalog.Combos[comboIDs[i]]
		if combo == nil || !combo.IsActive {
			return nil, apperrors.NewFieldValidationError(field+".combo_id", "combo not found")
		}

		var in, out time.Time
		switch {
		case it.CheckIn != "" || it.CheckOut != "":
			if in, out, err = s.parseRange(field, it.CheckIn, it.CheckOut); err != nil {
				return nil, err
			}
		case hasBookingDates:
			in, out = bookingIn, bookingOut
		default:
			return nil, apperrors.NewFieldValidationError(field+".check_in", "required when the booking has no dates")
		}

		for _, cc := range combo.Constituents {
			svc := catalog.Services[cc.ServiceID]
			if svc == nil || !svc.IsActive {
				return nil, apperrors.NewFieldValidationError(field+".combo_id",
					fmt.Sprintf("combo includes unavailable service %s", cc.ServiceID))
			}
			if err := checkDays(field, svc, in, out); err != nil {
				return nil, err
			}
			if it.PartySize > 0 && (it.PartySize < svc.MinCapacity || it.PartySize > svc.MaxCapacity) {
				return nil, apperrors.NewFieldValidationError(field+".party_size",
					fmt.Sprintf("must be between %d and %d for %s", svc.MinCapacity, svc.MaxCapacity, svc.Name))
			}
			demands = append(demands, ledger.ExpandNights(cc.ServiceID, in, out, it.Quantity*cc.Quantity)...)
		}

		lines = append(lines, PriceLine{
			Kind:       entity.LineItemCombo,
			ResourceID: combo.ID,
			Name:       combo.Name,
			UnitPrice:  combo.Price,
			Quantity:   it.Quantity,
		})
		items = append(items, entity.LineItem{
			Kind:       entity.LineItemCombo,
			ResourceID: combo.ID,
			Name:       combo.Name,
			Quantity:   it.Quantity,
			CheckIn:    in,
			CheckOut:   out,
			Combo:      &entity.ComboDetail{PartySize: it.PartySize, Constituents: combo.Constituents},
		})
	}

	// stock caps the whole request, so repeated lines of one item add up
	requested := make(map[uuid.UUID]int, len(req.Equipment))
	for i, it := range req.Equipment {
		field := fmt.Sprintf("equipment[%d]", i)
		eq := catalog.Equipment[equipmentIDs[i]]
		if eq == nil || !eq.IsActive {
			return nil, apperrors.NewFieldValidationError(field+".equipment_id", "equipment not found")
		}
		requested[eq.ID] += it.Quantity
		if requested[eq.ID] > eq.Stock {
			return nil, apperrors.NewFieldValidationError(field+".quantity",
				fmt.Sprintf("only %d of %s in stock", eq.Stock, eq.Name))
		}

		var in, out time.Time
		switch {
		case it.CheckIn != "" || it.CheckOut != "":
			if in, out, err = s.parseRange(field, it.CheckIn, it.CheckOut); err != nil {
				return nil, err
			}
		case hasBookingDates:
			in, out = bookingIn, bookingOut
		case len(items) > 0:
			in, out = entity.StayPeriod(items)
		default:
			return nil, apperrors.NewFieldValidationError(field+".check_in", "required when the booking has no dates")
		}

		lines = append(lines, PriceLine{
			Kind:       entity.LineItemEquipment,
			ResourceID: eq.ID,
			Name:       eq.Name,
			UnitPrice:  eq.Price,
			Quantity:   it.Quantity,
		})
		items = append(items, entity.LineItem{
			Kind:       entity.LineItemEquipment,
			ResourceID: eq.ID,
			Name:       eq.Name,
			Quantity:   it.Quantity,
			CheckIn:    in,
			CheckOut:   out,
		})
	}

	quote, err := QuotePrice(lines)
	if err != nil {
		return nil, err
	}
	for i := range items {
		priced := quote.Lines[i]
		items[i].Position = i + 1
		items[i].UnitPrice = priced.UnitPrice
		items[i].Subtotal = priced.Subtotal
		if items[i].Stay != nil {
			items[i].Stay.ExtraPeople = priced.ExtraPeople
			items[i].Stay.ExtraFee = priced.ExtraFee
		}
		if err := items[i].Validate(); err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
	}

	plan := &bookingPlan{
		customerID: customerID,
		items:      items,
		quote:      quote,
		demands:    demands,
		note:       req.Note,
		method:     req.PaymentMethod,
	}
	if plan.method == "" {
		plan.method = s.payment.DefaultMethod
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		plan.idempotencyKey = &key
	}
	return plan, nil
}

// parseRange parses an already format-checked date pair and rejects empty,
// inverted or past ranges. prefix names the request element for errors.
func (s *bookingService) parseRange(prefix, checkIn, checkOut string) (time.Time, time.Time, error) {
	if prefix != "" {
		prefix += "."
	}
	if checkIn == "" {
		return time.Time{}, time.Time{}, apperrors.NewFieldValidationError(prefix+"check_in", "This field is required")
	}
	if checkOut == "" {
		return time.Time{}, time.Time{}, apperrors.NewFieldValidationError(prefix+"check_out", "This field is required")
	}

	in, err := utils.ParseDate(checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewFieldValidationError(prefix+"check_in", "Must be a date in 2006-01-02 format")
	}
	out, err := utils.ParseDate(checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewFieldValidationError(prefix+"check_out", "Must be a date in 2006-01-02 format")
	}

	if !in.Before(out) {
		return time.Time{}, time.Time{}, apperrors.NewFieldValidationError(prefix+"check_out", "must be after check_in")
	}
	if in.Before(entity.DateOf(s.now().UTC())) {
		return time.Time{}, time.Time{}, apperrors.NewFieldValidationError(prefix+"check_in", "must not be in the past")
	}
	return in, out, nil
}

func checkDays(field string, svc *entity.Service, in, out time.Time) error {
	days := entity.DaysBetween(in, out)
	if days < svc.MinDays || (svc.MaxDays > 0 && days > svc.MaxDays) {
		return apperrors.NewFieldValidationError(field+".check_out",
			fmt.Sprintf("%d days is outside the %d-%d day range of %s", days, svc.MinDays, svc.MaxDays, svc.Name))
	}
	return nil
}

func (s *bookingService) QuoteBooking(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest) (*response.QuoteResponse, error) {
	plan, err := s.aggregate(ctx, actor, req, false)
	if err != nil {
		return nil, err
	}

	resp := &response.QuoteResponse{
		Lines:    make([]response.QuoteLineResponse, 0, len(plan.quote.Lines)),
		Total:    plan.quote.Total,
		Currency: s.booking.Currency,
	}
	for _, line := range plan.quote.Lines {
		resp.Lines = append(resp.Lines, response.QuoteLineResponse{
			Kind:        line.Kind,
			ResourceID:  line.ResourceID.String(),
			Name:        line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			ExtraPeople: line.ExtraPeople,
			ExtraFee:    line.ExtraFee,
			Subtotal:    line.Subtotal,
		})
	}
	return resp, nil
}

func (s *bookingService) GetBookingByID(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error) {
	booking, err := s.findAccessible(ctx, actor, bookingID, false)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if booking.Status == entity.BookingStatusConfirmed && booking.StayEnded(now) {
		completed, _, err := s.completeIfFinished(ctx, booking.ID, now)
		if err != nil {
			s.log.Warn("Lazy completion failed", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		} else if completed != nil {
			booking = completed
		}
	}

	return s.bookingResponse(ctx, booking)
}

func (s *bookingService) GetUserBookings(ctx context.Context, actor utils.Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	bookings, err := s.repo.Booking.FindByCustomerID(ctx, actor.ID, limit, offset)
	if err != nil {
		s.log.Error("Failed to get user bookings",
			zap.Error(err),
			zap.String("customer_id", actor.ID.String()),
		)
		return nil, fmt.Errorf("get user bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByCustomerID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("count user bookings: %w", err)
	}

	data := make([]response.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		data = append(data, *response.BookingToResponse(b, nil))
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	return response.NewPaginatedResponse(data, page, limit, total), nil
}

func (s *bookingService) GetAvailability(ctx context.Context, resourceID string, req *request.AvailabilityRequest) (*response.AvailabilityResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationFromMap(errs)
	}
	id, err := uuid.Parse(resourceID)
	if err != nil {
		return nil, apperrors.NewFieldValidationError("resource_id", "must be a valid UUID")
	}

	from, _ := utils.ParseDate(req.From)
	to, _ := utils.ParseDate(req.To)
	if to.Before(from) {
		return nil, apperrors.NewFieldValidationError("to", "must not be before from")
	}
	if entity.DaysBetween(from, to) >= maxAvailabilityDays {
		return nil, apperrors.NewFieldValidationError("to", fmt.Sprintf("range must not exceed %d days", maxAvailabilityDays))
	}

	svc, err := s.repo.Catalog.FindServiceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("service %s not found", resourceID))
	}

	resp := &response.AvailabilityResponse{ResourceID: id.String()}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		available, err := s.ledger.AvailableOn(ctx, id, d)
		if err != nil {
			return nil, fmt.Errorf("read availability: %w", err)
		}
		resp.Days = append(resp.Days, response.AvailabilityDay{Date: d.Format(time.DateOnly), Available: available})
	}
	return resp, nil
}
