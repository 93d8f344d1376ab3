package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/errors"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/token"
)

// maxTokenTTL caps faculty-requested window lengths.
const maxTokenTTL = 15 * time.Minute

type createOTPRequest struct {
	Issuer     string `json:"issuer"`
	Year       string `json:"year"`
	Section    string `json:"section"`
	Branch     string `json:"branch"`
	Subject    string `json:"subject"`
	Period     int    `json:"period"`
	TTLSeconds int    `json:"ttlSeconds"`
}

type createOTPResponse struct {
	Code       string      `json:"code"`
	Scope      token.Scope `json:"scope"`
	ExpiresAt  time.Time   `json:"expiresAt"`
	TTLSeconds int         `json:"ttlSeconds"`
}

func (s *Server) handleCreateOTP(c echo.Context) error {
	var req createOTPRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError("invalid request body")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return errors.ValidationError("subject is required")
	}
	if req.TTLSeconds < 0 {
		return errors.ValidationError("ttlSeconds must not be negative")
	}

	ttl := s.config.DefaultTokenTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if ttl > maxTokenTTL {
		return errors.ValidationError("ttlSeconds exceeds the maximum window length").
			WithField("max_seconds", "900")
	}

	scope := token.Scope{
		Issuer:  req.Issuer,
		Year:    req.Year,
		Section: req.Section,
		Branch:  req.Branch,
		Subject: req.Subject,
		Period:  req.Period,
	}

	tok, err := s.attendance.OpenWindow(scope, ttl)
	if err != nil {
		return errors.InternalError("failed to open attendance window", err)
	}

	return c.JSON(http.StatusCreated, createOTPResponse{
		Code:       tok.Code,
		Scope:      tok.Scope,
		ExpiresAt:  tok.ExpiresAt,
		TTLSeconds: int(tok.TTL.Seconds()),
	})
}

type verifyOTPRequest struct {
	Code      string `json:"code"`
	StudentID string `json:"studentId"`
}

// handleVerifyOTP runs one redemption attempt. Rejections are domain
// outcomes, not HTTP errors: the response is always 200 with an accepted
// flag and a reason.
func (s *Server) handleVerifyOTP(c echo.Context) error {
	var req verifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError("invalid request body")
	}
	if strings.TrimSpace(req.Code) == "" {
		return errors.ValidationError("code is required")
	}
	if strings.TrimSpace(req.StudentID) == "" {
		return errors.ValidationError("studentId is required")
	}

	result, err := s.attendance.Redeem(c.Request().Context(), req.Code, req.StudentID)
	if err != nil {
		return errors.InternalError("failed to verify code", err)
	}
	return c.JSON(http.StatusOK, result)
}

// handleOTPStatus reports the authoritative window state. Dead codes answer
// valid:false rather than 404 so polling dashboards need no special casing.
func (s *Server) handleOTPStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.attendance.Status(c.Param("code")))
}
