package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/errors"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/event"
)

// handlePublishEvent is the hook mutation paths call after writing to the
// record store. The event is fanned out to whoever is connected right now;
// nothing is queued for absent observers.
func (s *Server) handlePublishEvent(c echo.Context) error {
	var ev event.Event
	if err := c.Bind(&ev); err != nil {
		return errors.ValidationError("invalid event body")
	}
	if ev.Resource == "" {
		return errors.ValidationError("resource is required")
	}
	if ev.Resource == event.ResourceAttendance {
		return errors.ValidationError("attendance events are emitted by the verification path")
	}
	switch ev.Action {
	case event.ActionCreate, event.ActionUpdate, event.ActionDelete, event.ActionCustom:
	default:
		return errors.ValidationError("unknown action").WithField("action", string(ev.Action))
	}

	s.hub.Publish(ev)
	return c.JSON(http.StatusAccepted, map[string]any{
		"status":      "accepted",
		"connections": s.hub.Count(),
	})
}
