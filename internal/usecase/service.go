package usecase

type Service struct {
	Booking   BookingService
	Lifecycle LifecycleService
	Sweeper   *Sweeper
}

func NewService(deps Dependencies) *Service {
	lifecycle := NewLifecycleService(deps)
	return &Service{
		Booking:   NewBookingService(deps),
		Lifecycle: lifecycle,
		Sweeper:   NewSweeper(lifecycle, deps.Config.Booking.SweepInterval, deps.Clock, deps.Log),
	}
}
