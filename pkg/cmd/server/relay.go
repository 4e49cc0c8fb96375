package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ignacioelizeche/controlid/config"
	"github.com/ignacioelizeche/controlid/pkg/api"
	"github.com/ignacioelizeche/controlid/pkg/client"
	"github.com/ignacioelizeche/controlid/pkg/client/natsio"
	"github.com/ignacioelizeche/controlid/pkg/controlid"
	"github.com/ignacioelizeche/controlid/pkg/logsync"
	"github.com/ignacioelizeche/controlid/pkg/metrics"
	"github.com/ignacioelizeche/controlid/pkg/notification"
	"github.com/ignacioelizeche/controlid/pkg/push"
	"github.com/ignacioelizeche/controlid/pkg/session"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/ignacioelizeche/controlid/pkg/storage/memory"
	"github.com/ignacioelizeche/controlid/pkg/storage/sqlstore"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// MemoryDatabaseURL selects the volatile in-memory store.
const MemoryDatabaseURL = "memory"

type relayServer struct {
	quitCh chan bool
	doneCh chan bool

	c     *config.Config
	db    *sqlx.DB
	store storage.Interface
	bus   client.Interface

	handler        *api.Handler
	loop           *logsync.Loop
	closeForwarder func()
}

func newRelayServer(c *config.Config) (*relayServer, error) {
	s := &relayServer{
		quitCh: make(chan bool),
		doneCh: make(chan bool),
		c:      c,
	}

	if err := s.openStore(); err != nil {
		return nil, err
	}

	if c.NATSServerURL != "" {
		bus, err := natsio.New(&natsio.Config{
			URL:  c.NATSServerURL,
			Name: "controlid-relay",
		})
		if err != nil {
			s.close()
			return nil, err
		}
		s.bus = bus
	}

	devices := controlid.NewClient(c.DeviceTimeout)
	sessions := session.NewManager(s.store.Devices(), devices, s.store.Sessions(), c.SessionTTL)
	sessions.SetLoginTimeout(c.DeviceTimeout)
	queue := push.NewQueue(c.CommandTTL, c.ResultRetention)

	hub := notification.NewHub()
	publishers := []notification.Publisher{hub}
	if s.bus != nil {
		publishers = append(publishers, notification.NewBusPublisher(s.bus))
	}
	notifications, err := notification.NewService(s.store.Notifications(), c.NotificationCategories, publishers...)
	if err != nil {
		s.close()
		return nil, err
	}

	forwarder, closeForwarder, err := logsync.NewForwarder(c.ForwardURL, c.ForwardTimeout)
	if err != nil {
		s.close()
		return nil, err
	}
	s.closeForwarder = closeForwarder

	syncer := logsync.NewSyncer(s.store.Devices(), sessions, devices, s.store, forwarder, logsync.Config{
		Retries:        c.SyncRetryCount,
		RetryDelay:     c.SyncRetryDelay,
		CallTimeout:    c.DeviceTimeout,
		ForwardTimeout: c.ForwardTimeout,
		Start:          c.SyncStart,
	})

	s.loop = logsync.NewLoop(syncer, s.store.Devices(), c.SyncInterval)
	s.handler = api.NewHandler(s.store, sessions, queue, notifications, hub, syncer, devices)

	return s, nil
}

func (s *relayServer) openStore() error {
	if s.c.DatabaseURL == MemoryDatabaseURL {
		log.Warn("using the in-memory store, nothing survives a restart")
		s.store = memory.NewStore(s.c.SessionCacheSize)
		metrics.Init(nil)
		return nil
	}

	store, db, err := sqlstore.Connect(s.c.DatabaseURL)
	if err != nil {
		return err
	}
	s.store = store
	s.db = db
	metrics.Init(db.DB)

	return nil
}

func (s *relayServer) Serve() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(logger())

	s.handler.RegisterRoutes(e, s.c.AdminAPIKey)
	if s.c.AdminAPIKey == "" {
		log.Warn("ADMIN_API_KEY is not set, the admin API is unprotected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		s.loop.Run(ctx)
	}()

	go func() {
		log.WithFields(log.Fields{
			"host": s.c.BindHost,
			"port": s.c.BindPort,
		}).Info("Starting server")

		if err := e.Start(fmt.Sprintf("%s:%d", s.c.BindHost, s.c.BindPort)); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped: ", err)
			syscall.Kill(syscall.Getpid(), syscall.SIGINT)
		}
	}()

	// Wait until receiving the quit signal
	<-s.quitCh
	log.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error(err)
	}

	// Running cycles are abandoned without moving their checkpoints
	cancel()
	select {
	case <-loopDone:
	case <-shutdownCtx.Done():
		log.Warn("log sync loop did not stop in time")
	}

	s.close()

	s.doneCh <- true
}

func (s *relayServer) close() {
	if s.closeForwarder != nil {
		s.closeForwarder()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// Logger returns a middleware that logs HTTP requests.
func logger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			var err error
			if err = next(c); err != nil {
				c.Error(err)
			}
			stop := time.Now()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}
			reqSizeStr := req.Header.Get(echo.HeaderContentLength)
			if reqSizeStr == "" {
				reqSizeStr = "0"
			}
			reqSize, perr := strconv.ParseInt(reqSizeStr, 10, 0)
			if perr != nil {
				reqSize = -1
			}
			errMsg := ""
			if err != nil {
				errMsg = err.Error()
			}

			entry := log.WithFields(log.Fields{
				"id":            id,
				"remote_ip":     c.RealIP(),
				"host":          req.Host,
				"method":        req.Method,
				"uri":           req.RequestURI,
				"protocol":      req.Proto,
				"user_agent":    req.UserAgent(),
				"status":        res.Status,
				"status_text":   http.StatusText(res.Status),
				"error":         errMsg,
				"bytes_in":      reqSize,
				"bytes_out":     res.Size,
				"latency":       stop.Sub(start).Nanoseconds(),
				"latency_human": stop.Sub(start).String(),
			})

			// Devices poll every few seconds
			logFn := entry.Infof
			if req.URL.Path == "/push" || req.URL.Path == "/metrics" || req.URL.Path == "/healthz" {
				logFn = entry.Debugf
			}
			logFn("%s %s %s %d %s", req.Method, req.RequestURI, req.Proto,
				res.Status, strconv.FormatInt(res.Size, 10))

			return err
		}
	}
}

func (s *relayServer) Shutdown() {
	// Send the quit signal to the Serve() routine
	s.quitCh <- true

	select {
	case <-s.doneCh:
		log.Info("Shutdown server successful")
	case <-time.After(2 * shutdownTimeout):
		log.Error("Shutdown server failed")
	}
}

// RunServeRelay starts the relay: device endpoints, admin API and the log
// sync loop.
func RunServeRelay(c *config.Config) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := ConfigureLogging(c.LogLevel, c.LogFormat); err != nil {
			log.Error(err)
			os.Exit(2)
		}
		c.Normalize()

		s, err := newRelayServer(c)
		if err != nil {
			log.Error("failed to create new server instance: ", err)
			os.Exit(1)
		}

		go s.Serve()

		// Wait for interrupt signal to gracefully shutdown the server
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
		<-quitCh

		s.Shutdown()
	}
}
