package reservations_service_api

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/domain"
	"github.com/Domenick1991/salonbooking/internal/service/reservation"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server implements ReservationsServiceServer over the lifecycle manager.
type Server struct {
	reservations    reservation.ReservationUseCase
	defaultDuration int
	slotStep        time.Duration
}

func NewServer(reservations reservation.ReservationUseCase, defaultDuration int, slotStep time.Duration) *Server {
	if defaultDuration <= 0 {
		defaultDuration = domain.DefaultDurationMinutes
	}
	if slotStep <= 0 {
		slotStep = time.Hour
	}
	return &Server{reservations: reservations, defaultDuration: defaultDuration, slotStep: slotStep}
}

func (s *Server) CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	duration, err := optionalInt(req, "duration_minutes")
	if err != nil {
		return nil, ToStatus(err)
	}
	created, err := s.reservations.CreateReservation(ctx, reservation.CreateReservationInput{
		CustomerName:    stringField(req, "customer_name"),
		PhoneNumber:     stringField(req, "phone_number"),
		ReservationDate: stringField(req, "reservation_date"),
		ReservationTime: stringField(req, "reservation_time"),
		StylistName:     stringField(req, "stylist_name"),
		ServiceMenu:     stringField(req, "service_menu"),
		DurationMinutes: duration,
		Notes:           stringField(req, "notes"),
		IdempotencyKey:  idempotencyKey(ctx, req),
	})
	if err != nil {
		return nil, ToStatus(err)
	}
	return toPBReservation(created)
}

func (s *Server) ModifyReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	duration, err := optionalInt(req, "duration_minutes")
	if err != nil {
		return nil, ToStatus(err)
	}
	updated, err := s.reservations.ModifyReservation(ctx, stringField(req, "reservation_id"), reservation.ModifyReservationInput{
		ReservationDate: optionalString(req, "reservation_date"),
		ReservationTime: optionalString(req, "reservation_time"),
		StylistName:     optionalString(req, "stylist_name"),
		ServiceMenu:     optionalString(req, "service_menu"),
		DurationMinutes: duration,
		Notes:           optionalString(req, "notes"),
	})
	if err != nil {
		return nil, ToStatus(err)
	}
	return toPBReservation(updated)
}

func (s *Server) CancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cancelled, err := s.reservations.CancelReservation(ctx, stringField(req, "reservation_id"))
	if err != nil {
		return nil, ToStatus(err)
	}
	return toPBReservation(cancelled)
}

func (s *Server) CompleteReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	completed, err := s.reservations.CompleteReservation(ctx, stringField(req, "reservation_id"))
	if err != nil {
		return nil, ToStatus(err)
	}
	return toPBReservation(completed)
}

func (s *Server) GetReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	found, err := s.reservations.GetReservation(ctx, stringField(req, "reservation_id"))
	if err != nil {
		return nil, ToStatus(err)
	}
	return toPBReservation(found)
}

func (s *Server) LookupReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	found, err := s.reservations.LookupReservations(ctx, reservation.LookupInput{
		PhoneNumber:     stringField(req, "phone_number"),
		IncludeInactive: boolField(req, "include_inactive"),
	})
	if err != nil {
		return nil, ToStatus(err)
	}
	items := make([]any, 0, len(found))
	for _, r := range found {
		items = append(items, reservationFields(&r))
	}
	return structpb.NewStruct(map[string]any{"reservations": items})
}

func (s *Server) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	duration, err := optionalInt(req, "duration_minutes")
	if err != nil {
		return nil, ToStatus(err)
	}
	minutes := s.defaultDuration
	if duration != nil {
		if *duration <= 0 {
			return nil, ToStatus(&domain.ValidationError{Field: "duration_minutes", Reason: "must be positive", Err: calendar.ErrInvalidDuration})
		}
		minutes = *duration
	}

	window, err := s.reservations.CheckAvailability(ctx, stringField(req, "stylist_name"), stringField(req, "reservation_date"))
	if err != nil {
		return nil, ToStatus(err)
	}

	var slots []any
	for start := range window.StartTimes(minutes, s.slotStep) {
		slots = append(slots, start.String())
	}
	fields := map[string]any{
		"stylist_name":     window.Stylist,
		"reservation_date": calendar.FormatDate(window.Date),
		"free":             intervals(slices.Collect(window.Free())),
		"booked":           intervals(window.Booked()),
		"slots":            slots,
	}
	if clock := stringField(req, "reservation_time"); clock != "" {
		fits, err := window.FitsAt(clock, minutes)
		if err != nil {
			return nil, ToStatus(err)
		}
		fields["available"] = fits
	}
	return structpb.NewStruct(fields)
}

func toPBReservation(r *domain.Reservation) (*structpb.Struct, error) {
	return structpb.NewStruct(reservationFields(r))
}

func reservationFields(r *domain.Reservation) map[string]any {
	return map[string]any{
		"reservation_id":   r.ID,
		"customer_name":    r.CustomerName,
		"phone_number":     r.PhoneNumber,
		"reservation_date": calendar.FormatDate(r.Date),
		"reservation_time": r.StartTime.String(),
		"end_time":         r.EndTime().String(),
		"stylist_name":     r.StylistName,
		"service_menu":     r.ServiceMenu,
		"duration_minutes": r.DurationMinutes,
		"status":           r.Status.String(),
		"notes":            r.Notes,
		"created_at":       r.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":       r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func intervals(in []calendar.Interval) []any {
	out := make([]any, 0, len(in))
	for _, iv := range in {
		out = append(out, map[string]any{"start": iv.Start.String(), "end": iv.End.String()})
	}
	return out
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func boolField(req *structpb.Struct, name string) bool {
	return req.GetFields()[name].GetBoolValue()
}

func optionalString(req *structpb.Struct, name string) *string {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	s := v.GetStringValue()
	return &s
}

// optionalInt reads a whole number. JSON numbers arrive as doubles.
func optionalInt(req *structpb.Struct, name string) (*int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return nil, domain.NewValidationError(name, fmt.Sprintf("%v is not a whole number of minutes", f))
		}
		n := int(f)
		return &n, nil
	default:
		return nil, domain.NewValidationError(name, "must be a number")
	}
}

// idempotencyKey prefers the request field, falling back to the
// idempotency-key metadata header.
func idempotencyKey(ctx context.Context, req *structpb.Struct) string {
	if key := stringField(req, "idempotency_key"); key != "" {
		return key
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("idempotency-key"); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

var _ ReservationsServiceServer = (*Server)(nil)
