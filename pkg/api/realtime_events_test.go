package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/ignacioelizeche/controlid/pkg/notification"
)

func TestRealtimeEvents_StreamsNotifications(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/realtime-events")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if rec := s.do(http.MethodPost, "/notifications/secbox?deviceId=lobby", `{"secbox":{"open":true}}`); rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d", rec.Code)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, _, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatal(err)
	}

	var event struct {
		Category string `json:"category"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatal(err)
	}
	if event.Category != notification.CategorySecurityBoxState || event.DeviceID != "lobby" {
		t.Errorf("event = %+v", event)
	}
}
