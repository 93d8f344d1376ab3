package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Live event stream, one endpoint per transport
	s.echo.GET("/api/stream", s.handleStream)
	s.echo.GET("/ws/stream", s.handleWebSocket)

	// Internal publish hook for record-store mutations
	s.echo.POST("/api/events", s.handlePublishEvent)

	// Attendance verification windows
	s.echo.POST("/api/attendance/otp/create", s.handleCreateOTP)
	s.echo.POST("/api/attendance/otp/verify", s.handleVerifyOTP)
	s.echo.GET("/api/attendance/otp/status/:code", s.handleOTPStatus)
}
