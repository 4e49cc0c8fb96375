package api

import (
	"encoding/json"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/ignacioelizeche/controlid/pkg/api/resource"
	"github.com/labstack/echo"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) realtimeEventsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
		if err != nil {
			log.Error("api: failed to upgrade to websocket: ", err)
			return nil
		}
		defer conn.Close()

		events, unsubscribe := h.hub.Subscribe()
		defer unsubscribe()

		// Drain client frames so a close is noticed
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return nil
			case <-c.Request().Context().Done():
				return nil
			case entry, ok := <-events:
				if !ok {
					return nil
				}
				out, err := json.Marshal(resource.NewRealtimeEvent(entry))
				if err != nil {
					log.Error("api: failed to encode realtime event: ", err)
					continue
				}
				if err := wsutil.WriteServerMessage(conn, ws.OpText, out); err != nil {
					log.Error("api: failed to send realtime event: ", err)
					return nil
				}
			}
		}
	}
}
