package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/domain"
	"github.com/Domenick1991/salonbooking/internal/kafka"
	"github.com/Domenick1991/salonbooking/internal/repository"
	"github.com/Domenick1991/salonbooking/internal/service/availability"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultStoreTimeout   = 3 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultPublishTimeout = 2 * time.Second
)

var tracer = otel.Tracer("github.com/Domenick1991/salonbooking/internal/service/reservation")

type ReservationUseCase interface {
	CreateReservation(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error)
	ModifyReservation(ctx context.Context, id string, input ModifyReservationInput) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, id string) (*domain.Reservation, error)
	CompleteReservation(ctx context.Context, id string) (*domain.Reservation, error)
	GetReservation(ctx context.Context, id string) (*domain.Reservation, error)
	LookupReservations(ctx context.Context, input LookupInput) ([]domain.Reservation, error)
	CheckAvailability(ctx context.Context, stylist, date string) (*availability.Window, error)
}

// IdempotencyCache remembers which reservation a create request key produced.
type IdempotencyCache interface {
	ClaimRequest(ctx context.Context, key string, ttl time.Duration) (bool, error)
	LookupRequest(ctx context.Context, key string) (reservationID string, found bool, err error)
	CompleteRequest(ctx context.Context, key, reservationID string, ttl time.Duration) error
	ReleaseRequest(ctx context.Context, key string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type ReservationService struct {
	reservations       repository.ReservationRepository
	cache              IdempotencyCache
	producer           Producer
	reservationTopic   string
	notificationsTopic string
	hours              availability.BusinessHours
	storeTimeout       time.Duration
	publishTimeout     time.Duration
	defaultDuration    int
	idempotencyTTL     time.Duration
	logger             *slog.Logger
	now                func() time.Time
}

type CreateReservationInput struct {
	CustomerName    string `json:"customer_name"`
	PhoneNumber     string `json:"phone_number"`
	ReservationDate string `json:"reservation_date"`
	ReservationTime string `json:"reservation_time"`
	StylistName     string `json:"stylist_name"`
	ServiceMenu     string `json:"service_menu"`
	// DurationMinutes falls back to the service default (60) when nil.
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	Notes           string `json:"notes,omitempty"`
	IdempotencyKey  string `json:"-"`
}

// ModifyReservationInput carries only the fields to change. Customer name and
// phone number cannot be modified.
type ModifyReservationInput struct {
	ReservationDate *string `json:"reservation_date,omitempty"`
	ReservationTime *string `json:"reservation_time,omitempty"`
	StylistName     *string `json:"stylist_name,omitempty"`
	ServiceMenu     *string `json:"service_menu,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type LookupInput struct {
	PhoneNumber string
	// IncludeInactive also returns cancelled and completed reservations.
	IncludeInactive bool
}

type ReservationServiceOption func(*ReservationService)

func WithNotificationsTopic(topic string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.notificationsTopic = topic
	}
}

func WithBusinessHours(hours availability.BusinessHours) ReservationServiceOption {
	return func(s *ReservationService) {
		s.hours = hours
	}
}

// WithStoreTimeout bounds every slot store call.
func WithStoreTimeout(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithPublishTimeout bounds event publishing after a committed change. Both
// topics share one deadline.
func WithPublishTimeout(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithDefaultDuration sets the length of a booking created without one.
func WithDefaultDuration(minutes int) ReservationServiceOption {
	return func(s *ReservationService) {
		if minutes > 0 {
			s.defaultDuration = minutes
		}
	}
}

func WithIdempotencyTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.idempotencyTTL = d
		}
	}
}

func WithLogger(logger *slog.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		s.logger = logger
	}
}

func NewReservationService(
	reservations repository.ReservationRepository,
	cache IdempotencyCache,
	producer Producer,
	reservationTopic string,
	opts ...ReservationServiceOption,
) *ReservationService {
	service := &ReservationService{
		reservations:     reservations,
		cache:            cache,
		producer:         producer,
		reservationTopic: reservationTopic,
		hours:            availability.DefaultBusinessHours(),
		storeTimeout:     defaultStoreTimeout,
		publishTimeout:   defaultPublishTimeout,
		defaultDuration:  domain.DefaultDurationMinutes,
		idempotencyTTL:   defaultIdempotencyTTL,
		logger:           slog.Default(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (res *domain.Reservation, err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.CreateReservation",
		trace.WithAttributes(attribute.String("stylist", input.StylistName), attribute.String("date", input.ReservationDate)))
	defer func() { endSpan(span, err) }()

	candidate, err := validateCreate(input, s.defaultDuration)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" && s.cache != nil {
		replayed, claimed, err := s.claimRequest(ctx, key)
		if err != nil || replayed != nil {
			return replayed, err
		}
		if claimed {
			defer func() {
				s.finishRequest(ctx, key, res)
			}()
		}
	}

	candidate.ID = uuid.NewString()
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.reservations.TryReserve(storeCtx, candidate); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			s.logger.Warn("reservation denied",
				"stylist", candidate.StylistName,
				"date", calendar.FormatDate(candidate.Date),
				"requested", candidate.Interval().String(),
				"booked", conflict.Existing.String(),
			)
		}
		return nil, s.storeError("reserve slot", err)
	}

	s.logger.Info("reservation created",
		"reservation_id", candidate.ID,
		"stylist", candidate.StylistName,
		"date", calendar.FormatDate(candidate.Date),
		"interval", candidate.Interval().String(),
	)
	s.publishEvent(ctx, kafka.EventReservationCreated, candidate)
	return candidate, nil
}

func (s *ReservationService) ModifyReservation(ctx context.Context, id string, input ModifyReservationInput) (res *domain.Reservation, err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.ModifyReservation", trace.WithAttributes(attribute.String("reservation_id", id)))
	defer func() { endSpan(span, err) }()

	changes, err := validateChanges(input)
	if err != nil {
		return nil, err
	}

	current, err := s.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckModifiable(*current); err != nil {
		return nil, err
	}
	if err := validateReservation(changes.Apply(*current)); err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	updated, err := s.reservations.TryModify(storeCtx, id, changes)
	if err != nil {
		return nil, s.notFound(id, s.storeError("modify reservation", err))
	}

	s.logger.Info("reservation modified",
		"reservation_id", updated.ID,
		"stylist", updated.StylistName,
		"date", calendar.FormatDate(updated.Date),
		"interval", updated.Interval().String(),
		"slot_changed", changes.TouchesSlot(),
	)
	s.publishEvent(ctx, kafka.EventReservationModified, updated)
	return updated, nil
}

func (s *ReservationService) CancelReservation(ctx context.Context, id string) (res *domain.Reservation, err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.CancelReservation", trace.WithAttributes(attribute.String("reservation_id", id)))
	defer func() { endSpan(span, err) }()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	cancelled, err := s.reservations.Cancel(storeCtx, id)
	if err != nil {
		return nil, s.notFound(id, s.storeError("cancel reservation", err))
	}

	s.logger.Info("reservation cancelled", "reservation_id", cancelled.ID, "stylist", cancelled.StylistName)
	s.publishEvent(ctx, kafka.EventReservationCancelled, cancelled)
	return cancelled, nil
}

// CompleteReservation records the external confirmation that the visit took place.
func (s *ReservationService) CompleteReservation(ctx context.Context, id string) (res *domain.Reservation, err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.CompleteReservation", trace.WithAttributes(attribute.String("reservation_id", id)))
	defer func() { endSpan(span, err) }()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	completed, err := s.reservations.Complete(storeCtx, id)
	if err != nil {
		return nil, s.notFound(id, s.storeError("complete reservation", err))
	}

	s.logger.Info("reservation completed", "reservation_id", completed.ID, "stylist", completed.StylistName)
	s.publishEvent(ctx, kafka.EventReservationCompleted, completed)
	return completed, nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	res, err := s.reservations.Get(storeCtx, id)
	if err != nil {
		return nil, s.notFound(id, s.storeError("get reservation", err))
	}
	return res, nil
}

func (s *ReservationService) LookupReservations(ctx context.Context, input LookupInput) (_ []domain.Reservation, err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.LookupReservations")
	defer func() { endSpan(span, err) }()

	phone := strings.TrimSpace(input.PhoneNumber)
	if phone == "" {
		return nil, domain.NewValidationError("phone_number", "is required")
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	all, err := s.reservations.ListByPhone(storeCtx, phone)
	if err != nil {
		return nil, s.storeError("list reservations", err)
	}
	if input.IncludeInactive {
		return all, nil
	}

	scheduled := make([]domain.Reservation, 0, len(all))
	for _, r := range all {
		if r.Status.Active() {
			scheduled = append(scheduled, r)
		}
	}
	return scheduled, nil
}

func (s *ReservationService) CheckAvailability(ctx context.Context, stylist, date string) (_ *availability.Window, err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.CheckAvailability",
		trace.WithAttributes(attribute.String("stylist", stylist), attribute.String("date", date)))
	defer func() { endSpan(span, err) }()

	stylist = strings.TrimSpace(stylist)
	if stylist == "" {
		return nil, domain.NewValidationError("stylist_name", "is required")
	}
	day, err := calendar.ParseDate(date)
	if err != nil {
		return nil, &domain.ValidationError{Field: "reservation_date", Reason: err.Error(), Err: err}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	booked, err := s.reservations.ListByStylistDate(storeCtx, stylist, day)
	if err != nil {
		return nil, s.storeError("list stylist reservations", err)
	}
	return availability.NewWindow(stylist, day, s.hours, booked), nil
}

// claimRequest returns the reservation a finished request with the same key
// produced, or claims the key for this call.
func (s *ReservationService) claimRequest(ctx context.Context, key string) (*domain.Reservation, bool, error) {
	res, found, err := s.replayRequest(ctx, key)
	if err != nil || found {
		return res, false, err
	}

	ok, err := s.cache.ClaimRequest(ctx, key, s.idempotencyTTL)
	if err != nil {
		return nil, false, domain.Unavailable("claim idempotency key", err)
	}
	if ok {
		return nil, true, nil
	}

	// Another request holds or has just finished with the key.
	res, found, err = s.replayRequest(ctx, key)
	if err != nil || found {
		return res, false, err
	}
	return nil, false, errRequestInProgress
}

var errRequestInProgress = fmt.Errorf("%w: request with this idempotency key is still in progress", domain.ErrStoreUnavailable)

// replayRequest reports found when the key is already taken. The reservation
// is nil and the error errRequestInProgress while that request is running.
func (s *ReservationService) replayRequest(ctx context.Context, key string) (*domain.Reservation, bool, error) {
	id, found, err := s.cache.LookupRequest(ctx, key)
	if err != nil {
		return nil, false, domain.Unavailable("lookup idempotency key", err)
	}
	if !found {
		return nil, false, nil
	}
	if id == "" {
		return nil, true, errRequestInProgress
	}
	s.logger.Info("replaying reservation for idempotency key", "reservation_id", id)
	res, err := s.GetReservation(ctx, id)
	return res, true, err
}

func (s *ReservationService) finishRequest(ctx context.Context, key string, res *domain.Reservation) {
	ctx = context.WithoutCancel(ctx)
	if res == nil {
		if err := s.cache.ReleaseRequest(ctx, key); err != nil {
			s.logger.Warn("release idempotency key failed", "err", err)
		}
		return
	}
	if err := s.cache.CompleteRequest(ctx, key, res.ID, s.idempotencyTTL); err != nil {
		s.logger.Warn("store idempotency result failed", "reservation_id", res.ID, "err", err)
	}
}

func (s *ReservationService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeError passes domain errors through and reports anything else,
// timeouts included, as a store outage.
func (s *ReservationService) storeError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrStoreUnavailable):
		if errors.Is(err, domain.ErrStoreUnavailable) {
			s.logger.Error("slot store unavailable", "op", op, "err", err)
		}
		return err
	}
	s.logger.Error("slot store failure", "op", op, "err", err)
	return domain.Unavailable(op, err)
}

func (s *ReservationService) notFound(id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return err
}

// publishEvent reports a committed change within publishTimeout. Publishing
// never fails the operation.
func (s *ReservationService) publishEvent(ctx context.Context, eventType string, res *domain.Reservation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publish(ctx, eventType, res); err != nil {
		s.logger.Warn("publish reservation event failed", "type", eventType, "reservation_id", res.ID, "err", err)
	}
}

func (s *ReservationService) publish(ctx context.Context, eventType string, res *domain.Reservation) error {
	if s.producer == nil || s.reservationTopic == "" {
		return nil
	}
	event := kafka.NewReservationEvent(eventType, *res, s.now())
	if err := s.producer.Publish(ctx, s.reservationTopic, res.ID, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, res.ID, event)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

var _ ReservationUseCase = (*ReservationService)(nil)
