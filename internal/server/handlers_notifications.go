package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fy-st0rm/lobic/internal/apperrors"
	"github.com/fy-st0rm/lobic/internal/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleListNotifications returns the stored notifications for a user, the
// catch-up path for clients that were offline.
func (s *Server) handleListNotifications(c echo.Context) error {
	userID := c.Param("userID")
	if userID == "" {
		return writeError(c, apperrors.MissingField("userID"))
	}

	notifications, err := s.notifier.ListFor(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	return c.JSON(http.StatusOK, notifications)
}

// handleDeleteNotification acknowledges a notification.
func (s *Server) handleDeleteNotification(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeError(c, apperrors.MissingField("id"))
	}

	if err := s.notifier.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func writeError(c echo.Context, err error) error {
	structured := apperrors.AsError(err)
	return c.JSON(structured.HTTPStatus(), errorResponse{
		Code:    string(structured.Code),
		Message: structured.Message,
	})
}
