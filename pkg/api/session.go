package api

import (
	"net/http"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/api/resource"
	"github.com/labstack/echo"
)

func (h *Handler) handleFetchSessions(c echo.Context) error {
	m, err := h.sessions.Sessions(c.Request().Context())
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, resource.NewSessionList(m, time.Now()))
}

func (h *Handler) handleDeleteSession(c echo.Context) error {
	if err := h.sessions.Invalidate(c.Request().Context(), c.Param("id")); err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handleLogout(c echo.Context) error {
	if err := h.sessions.Logout(c.Request().Context(), c.Param("id")); err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	return c.NoContent(http.StatusNoContent)
}
