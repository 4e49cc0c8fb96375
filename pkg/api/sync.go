package api

import (
	"net/http"
	"strconv"

	"github.com/ignacioelizeche/controlid/pkg/api/resource"
	"github.com/ignacioelizeche/controlid/pkg/logsync"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/labstack/echo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultAccessLogLimit = 500

func (h *Handler) handleSync(c echo.Context) error {
	ctx := c.Request().Context()
	deviceID := c.Param("id")

	if _, err := h.store.Devices().Get(ctx, deviceID); err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	res, err := h.syncer.RunCycle(ctx, deviceID)
	if errors.Cause(err) == logsync.ErrCycleInProgress {
		return jsonError(c, http.StatusConflict, err)
	} else if err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *Handler) handleStartSync(c echo.Context) error {
	return h.setSyncEnabled(c, true)
}

func (h *Handler) handleStopSync(c echo.Context) error {
	return h.setSyncEnabled(c, false)
}

// setSyncEnabled toggles scheduled sync only. A running cycle finishes and
// manual cycles stay available.
func (h *Handler) setSyncEnabled(c echo.Context, enabled bool) error {
	ctx := c.Request().Context()
	deviceID := c.Param("id")

	if err := h.store.Devices().SetSyncEnabled(ctx, deviceID, enabled); err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	m, err := h.store.Devices().Get(ctx, deviceID)
	if err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	log.WithFields(log.Fields{
		"device_id":    deviceID,
		"sync_enabled": enabled,
	}).Info("device sync schedule changed")

	return c.JSON(http.StatusOK, resource.NewDevice(m))
}

func (h *Handler) handleGetCheckpoint(c echo.Context) error {
	ctx := c.Request().Context()
	deviceID := c.Param("id")

	if _, err := h.store.Devices().Get(ctx, deviceID); err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	m, err := h.store.Checkpoints().Get(ctx, deviceID)
	if err == storage.ErrNotFound {
		m = &model.SyncCheckpoint{DeviceID: deviceID}
	} else if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, resource.NewCheckpoint(m))
}

func (h *Handler) handleFetchAccessLogs(c echo.Context) error {
	ctx := c.Request().Context()
	deviceID := c.Param("id")

	after, err := queryInt(c, "after", 0)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}
	limit, err := queryInt(c, "limit", defaultAccessLogLimit)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	if _, err := h.store.Devices().Get(ctx, deviceID); err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	m, err := h.store.AccessLogs().FetchByDevice(ctx, deviceID, after, int(limit))
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, resource.NewAccessLogList(m))
}

func queryInt(c echo.Context, name string, def int64) (int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}
