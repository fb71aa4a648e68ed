package api

import (
	"errors"
	"net/http"

	reservationsapi "github.com/Domenick1991/salonbooking/internal/api/reservations_service_api"
	"github.com/Domenick1991/salonbooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
)

// writeError renders err with the status the gRPC surface would use for it.
func writeError(c *gin.Context, err error) {
	status := runtime.HTTPStatusFromCode(reservationsapi.Code(err))
	body := gin.H{
		"error": err.Error(),
		"code":  reservationsapi.Reason(err),
	}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}

	var (
		conflict   *domain.ConflictError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &conflict):
		body["conflict"] = reservationsapi.ConflictMetadata(conflict)
	case errors.As(err, &validation):
		body["field"] = validation.Field
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func writeBindError(c *gin.Context, err error) {
	writeError(c, &domain.ValidationError{Field: "body", Reason: err.Error(), Err: err})
}
