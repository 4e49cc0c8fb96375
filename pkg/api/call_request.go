package api

import (
	"encoding/json"
	"net/http"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/labstack/echo"
	"github.com/pkg/errors"
)

// CallRequest is an ad-hoc device API call
type CallRequest struct {
	Endpoint string          `json:"endpoint"`
	Body     json.RawMessage `json:"body"`
}

func (h *Handler) handleCallRequest(c echo.Context) error {
	ctx := c.Request().Context()
	deviceID := c.Param("id")

	req := &CallRequest{}
	if err := c.Bind(req); err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}
	if req.Endpoint == "" {
		return jsonError(c, http.StatusBadRequest, errors.New("endpoint is required"))
	}

	var rep json.RawMessage
	err := h.sessions.WithSession(ctx, deviceID, func(dev *model.Device, token string) error {
		out, err := h.executor.Execute(ctx, dev, token, req.Endpoint, req.Body)
		if err != nil {
			return err
		}
		rep = out
		return nil
	})
	if err != nil {
		return jsonError(c, errorStatus(err), err)
	}

	if len(rep) == 0 {
		rep = json.RawMessage("{}")
	}
	return c.JSONBlob(http.StatusOK, rep)
}
