package api

import (
	"io/ioutil"
	"net/http"

	"github.com/ignacioelizeche/controlid/pkg/api/resource"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/push"
	"github.com/labstack/echo"
	"github.com/pkg/errors"
)

func commandStatus(err error) int {
	switch errors.Cause(err) {
	case push.ErrCommandNotFound:
		return http.StatusNotFound
	case push.ErrTransactionInUse, push.ErrNotCancelable:
		return http.StatusConflict
	case push.ErrInvalidCommand:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) handleEnqueueCommands(c echo.Context) error {
	deviceID := c.Param("id")

	dev, err := h.store.Devices().Get(c.Request().Context(), deviceID)
	if err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	data, err := ioutil.ReadAll(c.Request().Body)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	rs, err := resource.DecodeCommandRequests(data)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	cmds := make([]model.Command, 0, len(rs))
	for i := range rs {
		m, err := resource.ValidateCommand(&rs[i])
		if err != nil {
			return jsonError(c, http.StatusBadRequest, err)
		}
		if err := m.ApplyDefaults(dev.Defaults); err != nil {
			return jsonError(c, http.StatusBadRequest, err)
		}
		cmds = append(cmds, *m)
	}

	queued, err := h.queue.Enqueue(deviceID, cmds...)
	if err != nil {
		return jsonError(c, commandStatus(err), err)
	}

	return c.JSON(http.StatusCreated, resource.NewEnqueued(deviceID, queued))
}

func (h *Handler) handleFetchCommands(c echo.Context) error {
	deviceID := c.Param("id")

	if _, err := h.store.Devices().Get(c.Request().Context(), deviceID); err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	return c.JSON(http.StatusOK, resource.NewCommandList(h.queue.List(deviceID)))
}

func (h *Handler) handleGetCommand(c echo.Context) error {
	m, err := h.queue.Get(c.Param("id"), c.Param("txid"))
	if err != nil {
		return jsonError(c, commandStatus(err), err)
	}

	return c.JSON(http.StatusOK, resource.NewCommand(m))
}

func (h *Handler) handleCancelCommand(c echo.Context) error {
	if err := h.queue.Cancel(c.Param("id"), c.Param("txid")); err != nil {
		return jsonError(c, commandStatus(err), err)
	}

	return c.NoContent(http.StatusNoContent)
}
