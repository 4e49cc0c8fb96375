package logsync

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/controlid"
	"github.com/ignacioelizeche/controlid/pkg/metrics"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrCycleInProgress is returned when a cycle for the device is already running.
	ErrCycleInProgress = errors.New("sync cycle already in progress")
	// ErrRetriesExhausted is returned when every attempt of a step failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Registry resolves device connection details.
type Registry interface {
	Get(ctx context.Context, id string) (*model.Device, error)
	List(ctx context.Context) ([]model.Device, error)
}

// Sessions hands out device session tokens.
type Sessions interface {
	Acquire(ctx context.Context, deviceID string) (string, error)
	Invalidate(ctx context.Context, deviceID string) error
}

// Fetcher loads access logs from a device.
type Fetcher interface {
	LoadAccessLogs(ctx context.Context, dev *model.Device, token string, filter controlid.LogFilter) ([]model.AccessLog, error)
}

// Config tunes the retry behavior of a sync cycle.
type Config struct {
	Retries        int
	RetryDelay     time.Duration
	CallTimeout    time.Duration
	ForwardTimeout time.Duration
	// Start is the lower time bound of the first sync of a device: "today",
	// an RFC3339 timestamp or unix seconds.
	Start string
}

// Result summarizes one sync cycle.
type Result struct {
	DeviceID   string `json:"device_id"`
	Fetched    int    `json:"fetched"`
	Archived   int    `json:"archived"`
	Forwarded  int    `json:"forwarded"`
	Attempts   int    `json:"attempts"`
	Checkpoint int64  `json:"checkpoint"`
}

// Syncer fetches new access logs of a device, archives and forwards them and
// advances the device checkpoint once forwarding succeeded.
type Syncer struct {
	registry    Registry
	sessions    Sessions
	fetcher     Fetcher
	archive     storage.AccessLogStore
	checkpoints storage.CheckpointStore
	forwarder   Forwarder
	cfg         Config

	locks sync.Map

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncer returns a syncer. Zero retries are treated as one attempt.
func NewSyncer(registry Registry, sessions Sessions, fetcher Fetcher, store storage.Interface, forwarder Forwarder, cfg Config) *Syncer {
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	return &Syncer{
		registry:    registry,
		sessions:    sessions,
		fetcher:     fetcher,
		archive:     store.AccessLogs(),
		checkpoints: store.Checkpoints(),
		forwarder:   forwarder,
		cfg:         cfg,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// CycleBudget is the deadline of one cycle: every fetch attempt may spend a
// login and a fetch call plus the delay, and every forward attempt its
// timeout plus the delay.
func (s *Syncer) CycleBudget() time.Duration {
	retries := time.Duration(s.cfg.Retries)
	fetch := retries * (2*s.cfg.CallTimeout + s.cfg.RetryDelay)
	forward := retries * (s.cfg.ForwardTimeout + s.cfg.RetryDelay)
	return fetch + forward
}

func (s *Syncer) lock(deviceID string) *sync.Mutex {
	l, _ := s.locks.LoadOrStore(deviceID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// RunCycle performs one sync cycle for the device. It returns
// ErrCycleInProgress without doing anything when a cycle is already running.
func (s *Syncer) RunCycle(ctx context.Context, deviceID string) (Result, error) {
	res := Result{DeviceID: deviceID}

	l := s.lock(deviceID)
	if !l.TryLock() {
		metrics.ObserveSyncCycle(metrics.ResultSkipped, 0)
		return res, ErrCycleInProgress
	}
	defer l.Unlock()

	started := s.now()
	if budget := s.CycleBudget(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	err := s.runCycle(ctx, &res)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveSyncCycle(result, s.now().Sub(started))

	return res, err
}

func (s *Syncer) runCycle(ctx context.Context, res *Result) error {
	deviceID := res.DeviceID
	logger := log.WithField("device_id", deviceID)

	filter, err := s.nextFilter(ctx, deviceID)
	if err != nil {
		return err
	}

	logs, err := s.fetch(ctx, deviceID, filter, res)
	if err != nil {
		logger.Errorf("sync cycle failed to fetch access logs: %v", err)
		return err
	}
	res.Fetched = len(logs)

	if len(logs) == 0 {
		logger.Debug("no new access logs")
		return nil
	}

	archived, err := s.archive.Save(ctx, deviceID, logs)
	if err != nil {
		logger.Errorf("sync cycle failed to archive access logs: %v", err)
		return errors.Wrap(err, "failed to archive access logs")
	}
	res.Archived = archived

	if err := s.forward(ctx, deviceID, logs); err != nil {
		logger.Errorf("sync cycle failed to forward access logs: %v", err)
		return err
	}
	res.Forwarded = len(logs)
	metrics.AddLogsForwarded(deviceID, len(logs))

	// An abandoned cycle must not move the checkpoint
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "sync cycle deadline exceeded")
	}

	last := newest(logs)
	cp := &model.SyncCheckpoint{
		DeviceID:    deviceID,
		LastLogID:   last.ID,
		LastLogTime: last.Time,
	}
	if err := s.checkpoints.Advance(ctx, cp); err != nil {
		logger.Errorf("sync cycle failed to advance checkpoint: %v", err)
		return errors.Wrap(err, "failed to advance checkpoint")
	}
	res.Checkpoint = last.ID

	logger.WithFields(log.Fields{
		"fetched":    res.Fetched,
		"archived":   res.Archived,
		"checkpoint": last.ID,
	}).Info("access logs synchronized")

	return nil
}

func (s *Syncer) nextFilter(ctx context.Context, deviceID string) (controlid.LogFilter, error) {
	cp, err := s.checkpoints.Get(ctx, deviceID)
	if err == nil {
		return controlid.LogFilter{AfterID: cp.LastLogID}, nil
	}
	if err != storage.ErrNotFound {
		return controlid.LogFilter{}, errors.Wrap(err, "failed to read checkpoint")
	}

	since, err := StartBoundary(s.cfg.Start, s.now())
	if err != nil {
		return controlid.LogFilter{}, err
	}
	return controlid.LogFilter{Since: since}, nil
}

// fetch loads logs with bounded retries. Expired sessions are renewed and
// transient failures are retried after the delay. Protocol errors and
// rejected credentials abort at once.
func (s *Syncer) fetch(ctx context.Context, deviceID string, filter controlid.LogFilter, res *Result) ([]model.AccessLog, error) {
	dev, err := s.registry.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		if res != nil {
			res.Attempts = attempt
		}
		logger := log.WithFields(log.Fields{
			"device_id": deviceID,
			"attempt":   attempt,
		})

		logs, err := s.fetchOnce(ctx, dev, filter)
		if err == nil {
			return logs, nil
		}
		lastErr = err

		switch {
		case controlid.IsProtocolError(err):
			if perr, ok := errors.Cause(err).(*controlid.ProtocolError); ok {
				logger.WithField("payload", string(perr.Payload)).Error("device sent an unexpected response")
			}
			return nil, err
		case controlid.IsAuthenticationError(err):
			return nil, err
		case controlid.IsSessionExpiredError(err):
			logger.Info("session expired, re-authenticating")
			if err := s.sessions.Invalidate(ctx, deviceID); err != nil {
				logger.Warn(err)
			}
			continue
		}

		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "sync cycle deadline exceeded")
		}

		logger.Warnf("fetching access logs failed: %v", err)
		if attempt < s.cfg.Retries {
			if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
				return nil, errors.Wrap(err, "sync cycle deadline exceeded")
			}
		}
	}

	return nil, errors.Wrapf(ErrRetriesExhausted, "fetch after %d attempts: %v", s.cfg.Retries, lastErr)
}

func (s *Syncer) fetchOnce(ctx context.Context, dev *model.Device, filter controlid.LogFilter) ([]model.AccessLog, error) {
	token, err := s.sessions.Acquire(ctx, dev.ID)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}

	return s.fetcher.LoadAccessLogs(callCtx, dev, token, filter)
}

// forward retries only the forwarding step, with the same bound and delay.
func (s *Syncer) forward(ctx context.Context, deviceID string, logs []model.AccessLog) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		callCtx := ctx
		cancel := func() {}
		if s.cfg.ForwardTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.ForwardTimeout)
		}
		err := s.forwarder.Forward(callCtx, deviceID, logs)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		log.WithFields(log.Fields{
			"device_id": deviceID,
			"attempt":   attempt,
		}).Warnf("forwarding access logs failed: %v", err)

		if attempt < s.cfg.Retries {
			if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
				return errors.Wrap(err, "sync cycle deadline exceeded")
			}
		}
	}

	return errors.Wrapf(ErrRetriesExhausted, "forward after %d attempts: %v", s.cfg.Retries, lastErr)
}

func newest(logs []model.AccessLog) model.AccessLog {
	last := logs[0]
	for _, l := range logs[1:] {
		if l.ID > last.ID {
			last = l
		}
	}
	return last
}

// StartBoundary resolves the configured start of the first sync into unix
// seconds. An empty value or "today" means midnight of the current day.
func StartBoundary(start string, now time.Time) (int64, error) {
	switch start {
	case "", "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Unix(), nil
	}

	if ts, err := strconv.ParseInt(start, 10, 64); err == nil {
		return ts, nil
	}

	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid sync start %q", start)
	}
	return t.Unix(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
