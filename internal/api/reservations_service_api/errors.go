package reservations_service_api

import (
	"errors"

	"github.com/Domenick1991/salonbooking/internal/domain"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
)

const errorDomain = "salonbooking"

// Code maps the domain error taxonomy onto gRPC codes. Unknown errors are
// Internal.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, domain.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrConflict):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrStoreUnavailable):
		return codes.Unavailable
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Internal
}

// Reason is the machine-readable error kind shared by the gRPC and HTTP
// surfaces.
func Reason(err error) string {
	switch Code(err) {
	case codes.InvalidArgument:
		return "validation_error"
	case codes.AlreadyExists:
		return "conflict"
	case codes.NotFound:
		return "not_found"
	case codes.FailedPrecondition:
		return "invalid_state_transition"
	case codes.Unavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}

// ToStatus converts err into a gRPC status error. Conflicts carry the
// competing interval and validation failures the offending field.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && !isDomainError(err) {
		return err
	}

	code := Code(err)
	message := err.Error()
	if code == codes.Internal {
		message = "internal error"
	}
	st := status.New(code, message)

	var (
		conflict   *domain.ConflictError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &conflict):
		st = withDetails(st, &errdetails.ErrorInfo{
			Reason:   "SLOT_CONFLICT",
			Domain:   errorDomain,
			Metadata: ConflictMetadata(conflict),
		})
	case errors.As(err, &validation):
		st = withDetails(st, &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{
				Field:       validation.Field,
				Description: validation.Reason,
			}},
		})
	case code == codes.FailedPrecondition:
		var transition *domain.TransitionError
		if errors.As(err, &transition) {
			st = withDetails(st, &errdetails.PreconditionFailure{
				Violations: []*errdetails.PreconditionFailure_Violation{{
					Type:        "STATUS",
					Subject:     transition.ID,
					Description: transition.Error(),
				}},
			})
		}
	}
	return st.Err()
}

// ConflictMetadata describes the reservation that blocked the request.
func ConflictMetadata(conflict *domain.ConflictError) map[string]string {
	return map[string]string{
		"stylist_name":   conflict.Stylist,
		"date":           conflict.Date,
		"start":          conflict.Existing.Start.String(),
		"end":            conflict.Existing.End.String(),
		"reservation_id": conflict.ExistingID,
	}
}

func withDetails(st *status.Status, detail protoadapt.MessageV1) *status.Status {
	detailed, err := st.WithDetails(detail)
	if err != nil {
		return st
	}
	return detailed
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidStateTransition) ||
		errors.Is(err, domain.ErrStoreUnavailable)
}
