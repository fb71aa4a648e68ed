package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/salonbooking/api"
	"github.com/Domenick1991/salonbooking/api/openapi"
	"github.com/Domenick1991/salonbooking/config"
	reservationsapi "github.com/Domenick1991/salonbooking/internal/api/reservations_service_api"
	"github.com/Domenick1991/salonbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// ReadinessCheck is probed by /readyz. A failing check makes the process
// report not ready without stopping it.
type ReadinessCheck struct {
	Name  string
	Check func(context.Context) error
}

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
}

// Run starts gRPC and HTTP (gin + swagger) servers and blocks until context is canceled or a server fails.
func Run(ctx context.Context, cfg *config.Config, reservationSvc reservation.ReservationUseCase, logger *slog.Logger, checks ...ReadinessCheck) error {
	s := newServers(cfg, reservationSvc, logger, checks)

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("servers started", "http", cfg.HTTP.Address, "grpc", cfg.GRPC.Address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newServers(cfg *config.Config, reservationSvc reservation.ReservationUseCase, logger *slog.Logger, checks []ReadinessCheck) *Servers {
	grpcSrv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unaryAccessLog(logger)),
	)
	reservationsapi.RegisterReservationsServiceServer(grpcSrv,
		reservationsapi.NewServer(reservationSvc, cfg.Booking.DefaultDurationMinutes, cfg.Booking.SlotStep()))

	router := NewRouter(cfg, reservationSvc, logger, checks)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           otelhttp.NewHandler(router, "salonbooking.http"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Servers{
		grpcServer: grpcSrv,
		httpServer: httpSrv,
	}
}

// NewRouter builds the gin engine with every HTTP route.
func NewRouter(cfg *config.Config, reservationSvc reservation.ReservationUseCase, logger *slog.Logger, checks []ReadinessCheck) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestID(), api.AccessLog(logger))

	handler := api.NewReservationHandler(reservationSvc, cfg.Booking.DefaultDurationMinutes, cfg.Booking.SlotStep())
	handler.Register(router.Group("/reservations"))
	handler.RegisterAvailability(&router.RouterGroup)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Salon Reservation API",
			"version": "1.0.0",
			"endpoints": gin.H{
				"create":       "POST /reservations",
				"get":          "GET /reservations/{reservation_id}",
				"lookup":       "GET /reservations?phone=PHONE&include_inactive=false",
				"modify":       "PUT /reservations/{reservation_id}",
				"cancel":       "DELETE /reservations/{reservation_id}",
				"complete":     "POST /reservations/{reservation_id}/complete",
				"availability": "GET /availability?stylist=NAME&date=YYYY-MM-DD",
				"docs":         "GET /docs/index.html",
			},
		})
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		failed := gin.H{}
		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				failed[check.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/swagger/reservations.swagger.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", openapi.Spec)
	})
	router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/reservations.swagger.json"))))

	return router
}

func unaryAccessLog(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			attrs = append(attrs, "err", err)
			logger.WarnContext(ctx, "grpc request", attrs...)
		} else {
			logger.InfoContext(ctx, "grpc request", attrs...)
		}
		return resp, err
	}
}
