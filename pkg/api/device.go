package api

import (
	"net/http"

	"github.com/ignacioelizeche/controlid/pkg/api/resource"
	"github.com/labstack/echo"
)

func (h *Handler) handleFetchDevices(c echo.Context) error {
	m, err := h.store.Devices().List(c.Request().Context())
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, resource.NewDeviceList(m))
}

func (h *Handler) handleGetDeviceByID(c echo.Context) error {
	m, err := h.store.Devices().Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	return c.JSON(http.StatusOK, resource.NewDevice(m))
}

func (h *Handler) handleCreateDevice(c echo.Context) error {
	r := &resource.DeviceResource{}
	if err := c.Bind(r); err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	m, err := resource.ValidateDevice(r)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	err = h.store.Devices().Create(c.Request().Context(), m)
	if err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	return c.JSON(http.StatusCreated, resource.NewDevice(m))
}

func (h *Handler) handleDeleteDevice(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	err := h.store.Devices().Delete(ctx, id)
	if err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	// A removed device must not keep a usable session or queued commands around
	h.queue.Drop(id)
	if err := h.sessions.Invalidate(ctx, id); err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.NoContent(http.StatusNoContent)
}
