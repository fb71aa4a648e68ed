package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/domain"
	"github.com/Domenick1991/salonbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type ReservationHandler struct {
	service         reservation.ReservationUseCase
	defaultDuration int
	slotStep        time.Duration
}

type createReservationRequest struct {
	CustomerName    string `json:"customer_name"`
	PhoneNumber     string `json:"phone_number"`
	ReservationDate string `json:"reservation_date"`
	ReservationTime string `json:"reservation_time"`
	StylistName     string `json:"stylist_name"`
	ServiceMenu     string `json:"service_menu"`
	DurationMinutes *int   `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

type modifyReservationRequest struct {
	ReservationDate *string `json:"reservation_date"`
	ReservationTime *string `json:"reservation_time"`
	StylistName     *string `json:"stylist_name"`
	ServiceMenu     *string `json:"service_menu"`
	DurationMinutes *int    `json:"duration_minutes"`
	Notes           *string `json:"notes"`
}

type reservationResponse struct {
	ReservationID   string `json:"reservation_id"`
	CustomerName    string `json:"customer_name"`
	PhoneNumber     string `json:"phone_number"`
	ReservationDate string `json:"reservation_date"`
	ReservationTime string `json:"reservation_time"`
	EndTime         string `json:"end_time"`
	StylistName     string `json:"stylist_name"`
	ServiceMenu     string `json:"service_menu"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	Notes           string `json:"notes,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type availabilityResponse struct {
	StylistName     string              `json:"stylist_name"`
	ReservationDate string              `json:"reservation_date"`
	Free            []calendar.Interval `json:"free"`
	Booked          []calendar.Interval `json:"booked"`
	Slots           []string            `json:"slots"`
	// Available answers the reservation_time query parameter when given.
	Available *bool `json:"available,omitempty"`
}

func NewReservationHandler(service reservation.ReservationUseCase, defaultDuration int, slotStep time.Duration) *ReservationHandler {
	if defaultDuration <= 0 {
		defaultDuration = domain.DefaultDurationMinutes
	}
	if slotStep <= 0 {
		slotStep = time.Hour
	}
	return &ReservationHandler{service: service, defaultDuration: defaultDuration, slotStep: slotStep}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.lookup)
	router.GET("/:id", h.get)
	router.PUT("/:id", h.modify)
	router.PATCH("/:id", h.modify)
	router.DELETE("/:id", h.cancel)
	router.POST("/:id/complete", h.complete)
}

func (h *ReservationHandler) RegisterAvailability(router *gin.RouterGroup) {
	router.GET("/availability", h.availability)
}

func (h *ReservationHandler) create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	created, err := h.service.CreateReservation(c.Request.Context(), reservation.CreateReservationInput{
		CustomerName:    req.CustomerName,
		PhoneNumber:     req.PhoneNumber,
		ReservationDate: req.ReservationDate,
		ReservationTime: req.ReservationTime,
		StylistName:     req.StylistName,
		ServiceMenu:     req.ServiceMenu,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		IdempotencyKey:  c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Location", "/reservations/"+created.ID)
	c.JSON(http.StatusCreated, toReservationResponse(created))
}

func (h *ReservationHandler) get(c *gin.Context) {
	found, err := h.service.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(found))
}

func (h *ReservationHandler) lookup(c *gin.Context) {
	includeInactive, err := parseBoolQuery(c, "include_inactive")
	if err != nil {
		writeError(c, err)
		return
	}

	found, err := h.service.LookupReservations(c.Request.Context(), reservation.LookupInput{
		PhoneNumber:     c.Query("phone"),
		IncludeInactive: includeInactive,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]reservationResponse, 0, len(found))
	for _, r := range found {
		resp = append(resp, toReservationResponse(&r))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) modify(c *gin.Context) {
	var req modifyReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	updated, err := h.service.ModifyReservation(c.Request.Context(), c.Param("id"), reservation.ModifyReservationInput{
		ReservationDate: req.ReservationDate,
		ReservationTime: req.ReservationTime,
		StylistName:     req.StylistName,
		ServiceMenu:     req.ServiceMenu,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(updated))
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	cancelled, err := h.service.CancelReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(cancelled))
}

func (h *ReservationHandler) complete(c *gin.Context) {
	completed, err := h.service.CompleteReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(completed))
}

func (h *ReservationHandler) availability(c *gin.Context) {
	minutes := h.defaultDuration
	if raw := c.Query("duration_minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, &domain.ValidationError{Field: "duration_minutes", Reason: "must be a positive integer", Err: calendar.ErrInvalidDuration})
			return
		}
		minutes = n
	}

	date := c.Query("date")
	if date == "" {
		date = c.Query("reservation_date")
	}
	window, err := h.service.CheckAvailability(c.Request.Context(), c.Query("stylist"), date)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := availabilityResponse{
		StylistName:     window.Stylist,
		ReservationDate: calendar.FormatDate(window.Date),
		Free:            make([]calendar.Interval, 0),
		Booked:          window.Booked(),
		Slots:           make([]string, 0),
	}
	for free := range window.Free() {
		resp.Free = append(resp.Free, free)
	}
	for start := range window.StartTimes(minutes, h.slotStep) {
		resp.Slots = append(resp.Slots, start.String())
	}
	if clock := c.Query("reservation_time"); clock != "" {
		fits, err := window.FitsAt(clock, minutes)
		if err != nil {
			writeError(c, err)
			return
		}
		resp.Available = &fits
	}
	c.JSON(http.StatusOK, resp)
}

func toReservationResponse(r *domain.Reservation) reservationResponse {
	return reservationResponse{
		ReservationID:   r.ID,
		CustomerName:    r.CustomerName,
		PhoneNumber:     r.PhoneNumber,
		ReservationDate: calendar.FormatDate(r.Date),
		ReservationTime: r.StartTime.String(),
		EndTime:         r.EndTime().String(),
		StylistName:     r.StylistName,
		ServiceMenu:     r.ServiceMenu,
		DurationMinutes: r.DurationMinutes,
		Status:          r.Status.String(),
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseBoolQuery(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.NewValidationError(name, "must be true or false")
	}
	return v, nil
}
