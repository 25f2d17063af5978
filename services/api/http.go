// Package api serves the settlement engine over HTTP: building and confirming
// stakes, unstakes and withdrawals, earnings and the rate curve.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/runestake/settlement/accounting"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/services/settlement"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/ulogger"
)

// EarningsI is the read side served next to the settlement endpoints.
type EarningsI interface {
	Earnings(ctx context.Context, address string) (*accounting.Earnings, error)
	Rates(ctx context.Context) ([]model.RateSample, error)
}

// HealthFunc reports the health of everything behind the API.
type HealthFunc func(ctx context.Context, checkLiveness bool) (int, string, error)

type HTTP struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	settlement settlement.Interface
	earnings   EarningsI
	health     HealthFunc
	e          *echo.Echo
	startTime  time.Time
}

func New(logger ulogger.Logger, tSettings *settings.Settings, settlementService settlement.Interface, earningsService EarningsI,
	health HealthFunc) *HTTP {
	initPrometheusMetrics()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}

	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		MaxAge:       86400,
	}))

	e.Use(requestMetricsMiddleware())

	if tSettings.LogLevel == "DEBUG" {
		e.Use(customLoggerMiddleware(logger))
	}

	h := &HTTP{
		logger:     logger.New("api"),
		settings:   tSettings,
		settlement: settlementService,
		earnings:   earningsService,
		health:     health,
		e:          e,
		startTime:  time.Now(),
	}

	e.GET("/alive", func(c echo.Context) error {
		return c.String(http.StatusOK, fmt.Sprintf("Settlement service is alive. Uptime: %s\n", time.Since(h.startTime)))
	})

	e.GET("/health", h.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := e.Group("/api/v1")

	apiGroup.POST("/:operation/build", h.Build)
	apiGroup.POST("/:operation/confirm", h.Confirm)
	apiGroup.GET("/earnings/:address", h.GetEarnings)
	apiGroup.GET("/rates", h.GetRates)

	return h
}

// Handler exposes the router, mostly for tests.
func (h *HTTP) Handler() http.Handler {
	return h.e
}

func (h *HTTP) Init(_ context.Context) error {
	return nil
}

func (h *HTTP) Start(ctx context.Context, readyCh chan<- struct{}) error {
	addr := h.settings.API.HTTPListenAddress
	if addr == "" {
		return errors.NewConfigurationError("api_httpListenAddress is required")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewServiceError("[API] failed to listen on %s", addr, err)
	}

	h.e.Listener = listener
	h.e.Server.ReadTimeout = h.settings.API.ReadTimeout
	h.e.Server.WriteTimeout = h.settings.API.WriteTimeout

	go func() {
		<-ctx.Done()

		h.logger.Infof("[API] HTTP service shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.e.Shutdown(shutdownCtx); err != nil {
			h.logger.Errorf("[API] HTTP shutdown error: %v", err)
		}
	}()

	h.logger.Infof("[API] HTTP listening on %s", listener.Addr())

	close(readyCh)

	if err = h.e.Start(addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (h *HTTP) Stop(ctx context.Context) error {
	return h.e.Shutdown(ctx)
}

func customLoggerMiddleware(logger ulogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			if err != nil {
				c.Error(err)
			}

			logger.Infof("http request: Method=%s, URI=%s, RemoteAddr=%s Status=%d, Duration=%v, err=%v",
				c.Request().Method, c.Request().RequestURI, c.Request().RemoteAddr, c.Response().Status, time.Since(start), err)

			return err
		}
	}
}
