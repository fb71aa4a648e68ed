package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/salonbooking/config"
	"github.com/Domenick1991/salonbooking/internal/repository"
	"github.com/Domenick1991/salonbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, checks ...ReadinessCheck) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{Booking: config.BookingConfig{DefaultDurationMinutes: 60, SlotStepMinutes: 60}}
	svc := reservation.NewReservationService(repository.NewMemoryReservationRepository(), nil, nil, "", reservation.WithLogger(logger))
	return NewRouter(cfg, svc, logger, checks)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_ReservationScenario(t *testing.T) {
	router := newTestRouter(t)

	booking := map[string]any{
		"customer_name":    "Tanaka",
		"phone_number":     "090-1234-5678",
		"reservation_date": "2025-11-06",
		"reservation_time": "15:00",
		"stylist_name":     "Sato",
		"service_menu":     "cut",
		"duration_minutes": 60,
	}
	w := do(t, router, http.MethodPost, "/reservations", booking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	id := first["reservation_id"].(string)

	booking["reservation_time"] = "15:30"
	booking["duration_minutes"] = 30
	w = do(t, router, http.MethodPost, "/reservations", booking)
	assert.Equal(t, http.StatusConflict, w.Code)

	booking["reservation_time"] = "16:00"
	booking["duration_minutes"] = 60
	w = do(t, router, http.MethodPost, "/reservations", booking)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodDelete, "/reservations/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodDelete, "/reservations/"+id, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/availability?stylist=Sato&date=2025-11-06", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"start":"09:00","end":"16:00"}]`, mustField(t, w, "free"))

	w = do(t, router, http.MethodGet, "/reservations/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)

	w = do(t, router, http.MethodGet, "/reservations/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/reservations?phone=090-1234-5678", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	assert.Len(t, active, 1)
}

func mustField(t *testing.T, w *httptest.ResponseRecorder, name string) string {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return string(body[name])
}

func TestRouter_HealthAndReadiness(t *testing.T) {
	healthy := newTestRouter(t, ReadinessCheck{Name: "store", Check: func(context.Context) error { return nil }})
	assert.Equal(t, http.StatusOK, do(t, healthy, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, healthy, http.MethodGet, "/readyz", nil).Code)

	broken := newTestRouter(t, ReadinessCheck{Name: "store", Check: func(context.Context) error { return errors.New("down") }})
	w := do(t, broken, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"down"`)
}

func TestRouter_RootAndDocs(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "POST /reservations")

	w = do(t, router, http.MethodGet, "/swagger/reservations.swagger.json", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"swagger": "2.0"`)

	w = do(t, router, http.MethodGet, "/docs/index.html", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
