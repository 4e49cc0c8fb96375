package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo"
	log "github.com/sirupsen/logrus"
)

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	if err := ConfigureLogging("debug", "json"); err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.JSONFormatter); !ok {
		t.Errorf("formatter = %T, want JSON", log.StandardLogger().Formatter)
	}

	if err := ConfigureLogging("loud", ""); err == nil {
		t.Error("invalid level accepted")
	}
	if err := ConfigureLogging("", "xml"); err == nil {
		t.Error("invalid format accepted")
	}
	if err := ConfigureLogging("", ""); err != nil {
		t.Error(err)
	}
}

func TestLoggerMiddleware(t *testing.T) {
	out := log.StandardLogger().Out
	defer log.SetOutput(out)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(log.InfoLevel)

	e := echo.New()
	e.Use(logger())
	e.GET("/api/v1/devices", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/push", func(c echo.Context) error {
		return c.String(http.StatusOK, "{}")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	if !strings.Contains(buf.String(), "GET /api/v1/devices") {
		t.Errorf("request not logged: %q", buf.String())
	}

	buf.Reset()
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/push?deviceId=1", nil))
	if buf.Len() != 0 {
		t.Errorf("poll logged at info level: %q", buf.String())
	}
}
