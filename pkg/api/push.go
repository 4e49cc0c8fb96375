package api

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/ignacioelizeche/controlid/pkg/push"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/labstack/echo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var errDeviceIDRequired = errors.New("deviceId is required")

// registeredDevice reads the deviceId query parameter and answers 400 or 404
// unless it names a registered device. ok is false once a response is written.
func (h *Handler) registeredDevice(c echo.Context) (deviceID string, ok bool, err error) {
	deviceID = c.QueryParam("deviceId")
	if deviceID == "" {
		return "", false, jsonError(c, http.StatusBadRequest, errDeviceIDRequired)
	}

	if _, err := h.store.Devices().Get(c.Request().Context(), deviceID); err != nil {
		if errors.Cause(err) != storage.ErrNotFound {
			log.WithField("device_id", deviceID).Warnf("device lookup failed: %v", err)
		}
		return "", false, jsonError(c, errorStatus(err), err)
	}

	return deviceID, true, nil
}

// handlePush serves the poll of a registered device. Commands handed out
// here are marked delivered unless peek is set.
func (h *Handler) handlePush(c echo.Context) error {
	deviceID, ok, err := h.registeredDevice(c)
	if !ok {
		return err
	}

	if peek, _ := strconv.ParseBool(c.QueryParam("peek")); peek {
		return c.JSON(http.StatusOK, h.queue.Peek(deviceID))
	}

	d := h.queue.Poll(deviceID, c.QueryParam("uuid"))
	if d.Kind != push.DeliveryNone {
		log.WithFields(log.Fields{
			"device_id": deviceID,
			"uuid":      c.QueryParam("uuid"),
			"delivery":  d.Kind.String(),
			"commands":  len(d.Commands),
		}).Debug("push delivered")
	}

	return c.JSON(http.StatusOK, d)
}

// handleResult takes the result of a previous poll. Results for unknown
// polls or transactions are acknowledged and ignored.
func (h *Handler) handleResult(c echo.Context) error {
	deviceID, ok, err := h.registeredDevice(c)
	if !ok {
		return err
	}

	data, err := ioutil.ReadAll(c.Request().Body)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	report := push.Report{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &report); err != nil {
			return jsonError(c, http.StatusBadRequest, err)
		}
	}

	n := h.queue.ReportResult(deviceID, c.QueryParam("uuid"), report)
	if n == 0 {
		log.WithFields(log.Fields{
			"device_id": deviceID,
			"uuid":      c.QueryParam("uuid"),
		}).Debug("result did not match any outstanding command")
	}

	return c.JSON(http.StatusOK, struct{}{})
}
