package controlid

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

func testDevice(srv *httptest.Server) *model.Device {
	return &model.Device{
		ID:       "lobby",
		Address:  strings.TrimPrefix(srv.URL, "http://"),
		Login:    "admin",
		Password: "admin",
	}
}

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login.fcgi" {
			t.Errorf("path = %s, want /login.fcgi", r.URL.Path)
		}
		var req loginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "admin" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid login or password"}`))
			return
		}
		w.Write([]byte(`{"session":"tok-1"}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	dev := testDevice(srv)

	token, err := c.Login(context.Background(), dev)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token != "tok-1" {
		t.Errorf("Login() = %q, want tok-1", token)
	}

	dev.Password = "wrong"
	_, err = c.Login(context.Background(), dev)
	if !IsAuthenticationError(err) {
		t.Fatalf("Login() error = %v, want AuthenticationError", err)
	}
	if !strings.Contains(err.Error(), "Invalid login") {
		t.Errorf("error message %q does not carry the device message", err)
	}
}

func TestClient_LoadAccessLogs(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b, _ := ioutil.ReadAll(r.Body)
		json.Unmarshal(b, &gotBody)
		w.Write([]byte(`{"access_logs":[
			{"id":12,"time":1700000100,"event":7,"user_id":3,"qrcode_value":"q"},
			{"id":11,"time":1700000000,"event":7,"user_id":2}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	logs, err := c.LoadAccessLogs(context.Background(), testDevice(srv), "tok", LogFilter{AfterID: 10})
	if err != nil {
		t.Fatalf("LoadAccessLogs() error = %v", err)
	}
	if len(logs) != 2 || logs[0].ID != 11 || logs[1].ID != 12 {
		t.Fatalf("LoadAccessLogs() = %+v, want ids 11, 12", logs)
	}
	if logs[1].QRCodeValue != "q" || logs[1].Source != "lobby" {
		t.Errorf("record = %+v", logs[1])
	}

	where := gotBody["where"].(map[string]interface{})["access_logs"].(map[string]interface{})
	if where["id"].(map[string]interface{})[">"] != float64(10) {
		t.Errorf("where = %v", where)
	}

	_, err = c.LoadAccessLogs(context.Background(), testDevice(srv), "stale", LogFilter{})
	if !IsSessionExpiredError(err) {
		t.Errorf("LoadAccessLogs() with stale token error = %v, want SessionExpiredError", err)
	}
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(error) bool
	}{
		{
			name:    "server error is transient",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			check:   IsNetworkError,
		},
		{
			name:    "garbage body is a protocol error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) },
			check:   IsProtocolError,
		},
		{
			name:    "slow device times out",
			handler: func(w http.ResponseWriter, r *http.Request) { time.Sleep(200 * time.Millisecond) },
			check:   IsNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(50 * time.Millisecond)
			_, err := c.LoadAccessLogs(context.Background(), testDevice(srv), "tok", LogFilter{})
			if !tt.check(err) {
				t.Errorf("error = %v (%T)", err, err)
			}
		})
	}
}

func TestClient_ProtocolErrorKeepsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	_, err := NewClient(time.Second).LoadAccessLogs(context.Background(), testDevice(srv), "tok", LogFilter{})
	perr, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
	if string(perr.Payload) != `{"unexpected":true}` {
		t.Errorf("Payload = %s", perr.Payload)
	}
}

func TestClient_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/system_information.fcgi" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"uptime":{"days":1}}`))
	}))
	defer srv.Close()

	got, err := NewClient(time.Second).Execute(context.Background(), testDevice(srv), "tok", "/system_information", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if string(got) != `{"uptime":{"days":1}}` {
		t.Errorf("Execute() = %s", got)
	}
}
