package api

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/ignacioelizeche/controlid/pkg/api/resource"
	"github.com/ignacioelizeche/controlid/pkg/notification"
	"github.com/labstack/echo"
	"github.com/pkg/errors"
)

const defaultNotificationLimit = 100

func (h *Handler) handleNotification(c echo.Context) error {
	payload, err := ioutil.ReadAll(c.Request().Body)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	_, err = h.notifications.Ingest(c.Request().Context(), c.Param("category"), notificationDeviceID(c, payload), payload)
	switch errors.Cause(err) {
	case nil:
	case notification.ErrUnknownCategory:
		return jsonError(c, http.StatusNotFound, err)
	case notification.ErrCategoryDisabled:
		return jsonError(c, http.StatusBadRequest, err)
	default:
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, &resource.ReceivedResource{Received: true})
}

// notificationDeviceID finds the sender in the query string or, failing
// that, in the device_id member of a JSON object payload.
func notificationDeviceID(c echo.Context, payload []byte) string {
	for _, name := range []string{"deviceId", "device_id"} {
		if id := c.QueryParam(name); id != "" {
			return id
		}
	}

	var body struct {
		DeviceID json.RawMessage `json:"device_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || len(body.DeviceID) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.DeviceID, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(body.DeviceID, &n); err == nil {
		return n.String()
	}
	return ""
}

func (h *Handler) handleFetchNotifications(c echo.Context) error {
	limit := defaultNotificationLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return jsonError(c, http.StatusBadRequest, errors.Errorf("invalid limit %q", v))
		}
		limit = n
	}

	entries, err := h.notifications.List(c.Request().Context(), limit)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, resource.NewNotificationList(entries))
}
