package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ignacioelizeche/controlid/pkg/api/resource"
	"github.com/ignacioelizeche/controlid/pkg/controlid"
	"github.com/ignacioelizeche/controlid/pkg/logsync"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/notification"
	"github.com/ignacioelizeche/controlid/pkg/push"
	"github.com/ignacioelizeche/controlid/pkg/session"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Executor performs an authenticated call on a device
type Executor interface {
	Execute(ctx context.Context, dev *model.Device, token, endpoint string, body json.RawMessage) (json.RawMessage, error)
}

// Handler contains all properties to serve the API
type Handler struct {
	store         storage.Interface
	sessions      *session.Manager
	queue         *push.Queue
	notifications *notification.Service
	hub           *notification.Hub
	syncer        *logsync.Syncer
	executor      Executor
}

// NewHandler create a new API handler
func NewHandler(store storage.Interface, sessions *session.Manager, queue *push.Queue,
	notifications *notification.Service, hub *notification.Hub, syncer *logsync.Syncer,
	executor Executor) *Handler {
	return &Handler{
		store:         store,
		sessions:      sessions,
		queue:         queue,
		notifications: notifications,
		hub:           hub,
		syncer:        syncer,
		executor:      executor,
	}
}

// RegisterRoutes attaches the handlers to the echo web server. The admin
// routes require the X-API-Key header when apiKey is not empty.
func (h *Handler) RegisterRoutes(e *echo.Echo, apiKey string) {
	log.Debug("Register API routes")

	// Endpoints called by the devices themselves
	e.GET("/push", h.handlePush)
	e.POST("/result", h.handleResult)
	e.POST("/notifications/:category", h.handleNotification)

	e.GET("/healthz", h.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if apiKey != "" {
		api.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == apiKey, nil
			},
		}))
	}

	api.GET("/devices", h.handleFetchDevices)
	api.POST("/devices", h.handleCreateDevice)
	api.GET("/devices/:id", h.handleGetDeviceByID)
	api.DELETE("/devices/:id", h.handleDeleteDevice)

	api.POST("/devices/:id/commands", h.handleEnqueueCommands)
	api.GET("/devices/:id/commands", h.handleFetchCommands)
	api.GET("/devices/:id/commands/:txid", h.handleGetCommand)
	api.DELETE("/devices/:id/commands/:txid", h.handleCancelCommand)

	api.POST("/devices/:id/logout", h.handleLogout)
	api.POST("/devices/:id/execute", h.handleCallRequest)

	api.POST("/devices/:id/sync", h.handleSync)
	api.POST("/devices/:id/sync/start", h.handleStartSync)
	api.POST("/devices/:id/sync/stop", h.handleStopSync)
	api.GET("/devices/:id/checkpoint", h.handleGetCheckpoint)
	api.GET("/devices/:id/logs", h.handleFetchAccessLogs)

	api.GET("/sessions", h.handleFetchSessions)
	api.DELETE("/sessions/:id", h.handleDeleteSession)

	api.GET("/notifications", h.handleFetchNotifications)

	api.Any("/realtime-events", h.realtimeEventsHandler())
}

func (h *Handler) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// errorStatus maps relay errors to the HTTP status reported to administrators.
func errorStatus(err error) int {
	switch {
	case errors.Cause(err) == storage.ErrNotFound:
		return http.StatusNotFound
	case errors.Cause(err) == storage.ErrAlreadyExists:
		return http.StatusConflict
	case controlid.IsAuthenticationError(err):
		return http.StatusUnauthorized
	case errors.Cause(err) == logsync.ErrRetriesExhausted:
		return http.StatusBadGateway
	case controlid.IsNetworkError(err), controlid.IsProtocolError(err), controlid.IsSessionExpiredError(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func jsonError(c echo.Context, status int, err error) error {
	return c.JSON(status, resource.NewError(err))
}
