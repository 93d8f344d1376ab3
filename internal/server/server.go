package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/attendance"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/config"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/errors"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/hub"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/logging"
)

type Server struct {
	echo       *echo.Echo
	config     *config.Config
	hub        *hub.Hub
	attendance *attendance.Service
	repo       attendance.Repository
	startTime  time.Time
}

func NewServer(cfg *config.Config, h *hub.Hub, att *attendance.Service, repo attendance.Repository) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestIDMiddleware())
	e.Use(middleware.Recover())
	e.Use(errors.Middleware())

	srv := &Server{
		echo:       e,
		config:     cfg,
		hub:        h,
		attendance: att,
		repo:       repo,
		startTime:  time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestIDMiddleware threads a request ID through the context so every log
// line in the request's path carries it. An inbound X-Request-ID is honored.
func requestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = logging.NewRequestID()
			}
			ctx := logging.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}
