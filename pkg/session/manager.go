package session

import (
	"context"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/controlid"
	"github.com/ignacioelizeche/controlid/pkg/metrics"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Registry resolves device connection details.
type Registry interface {
	Get(ctx context.Context, id string) (*model.Device, error)
}

// Authenticator opens and closes sessions on a device.
type Authenticator interface {
	Login(ctx context.Context, dev *model.Device) (string, error)
	Logout(ctx context.Context, dev *model.Device, token string) error
}

const defaultLoginTimeout = 30 * time.Second

// Manager hands out device session tokens. It caches one session per device
// and coalesces concurrent logins for the same device into a single call.
type Manager struct {
	registry Registry
	auth     Authenticator
	cache    storage.SessionStore
	ttl      time.Duration
	group    singleflight.Group
	now      func() time.Time

	loginTimeout time.Duration
}

// NewManager returns a session manager caching tokens for ttl.
func NewManager(registry Registry, auth Authenticator, cache storage.SessionStore, ttl time.Duration) *Manager {
	return &Manager{
		registry: registry,
		auth:     auth,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,

		loginTimeout: defaultLoginTimeout,
	}
}

// SetLoginTimeout bounds a single device login. Zero disables the bound.
func (m *Manager) SetLoginTimeout(d time.Duration) {
	m.loginTimeout = d
}

// Acquire returns a valid token for the device, logging in when the cached
// session is missing or expired.
func (m *Manager) Acquire(ctx context.Context, deviceID string) (string, error) {
	if token, ok := m.cached(ctx, deviceID); ok {
		return token, nil
	}

	v, err, shared := m.group.Do(deviceID, func() (interface{}, error) {
		// Joined callers share this login, so it must outlive the caller that started it
		lctx := context.WithoutCancel(ctx)
		if m.loginTimeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(lctx, m.loginTimeout)
			defer cancel()
		}

		// Another caller may have finished a login while we were waiting
		if token, ok := m.cached(lctx, deviceID); ok {
			return token, nil
		}
		return m.login(lctx, deviceID)
	})
	if err != nil {
		return "", err
	}

	if shared {
		log.WithField("device_id", deviceID).Debug("joined in-flight device login")
	}

	return v.(string), nil
}

// Invalidate drops the cached session of the device.
func (m *Manager) Invalidate(ctx context.Context, deviceID string) error {
	if err := m.cache.Delete(ctx, deviceID); err != nil {
		return errors.Wrap(err, "failed to drop cached session")
	}

	log.WithField("device_id", deviceID).Debug("session invalidated")

	return nil
}

// WithSession runs fn with a session token. If the device reports the session
// as expired, the session is renewed and fn is retried exactly once.
func (m *Manager) WithSession(ctx context.Context, deviceID string, fn func(dev *model.Device, token string) error) error {
	dev, err := m.registry.Get(ctx, deviceID)
	if err != nil {
		return err
	}

	token, err := m.Acquire(ctx, deviceID)
	if err != nil {
		return err
	}

	err = fn(dev, token)
	if !controlid.IsSessionExpiredError(err) {
		return err
	}

	log.WithField("device_id", deviceID).Info("device rejected session, re-authenticating")

	m.invalidateToken(ctx, deviceID, token)

	token, err = m.Acquire(ctx, deviceID)
	if err != nil {
		return err
	}

	return fn(dev, token)
}

// Logout closes the device session if one is cached and drops it. Device
// errors are logged and otherwise ignored.
func (m *Manager) Logout(ctx context.Context, deviceID string) error {
	sess, err := m.cache.Get(ctx, deviceID)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read cached session")
	}

	dev, err := m.registry.Get(ctx, deviceID)
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	if dev != nil {
		if err := m.auth.Logout(ctx, dev, sess.Token); err != nil {
			log.WithField("device_id", deviceID).Warnf("device logout failed: %v", err)
		}
	}

	return m.Invalidate(ctx, deviceID)
}

// Sessions returns a snapshot of all cached sessions.
func (m *Manager) Sessions(ctx context.Context) ([]model.Session, error) {
	return m.cache.FetchAll(ctx)
}

func (m *Manager) cached(ctx context.Context, deviceID string) (string, bool) {
	sess, err := m.cache.Get(ctx, deviceID)
	if err != nil {
		if err != storage.ErrNotFound {
			log.WithField("device_id", deviceID).Warnf("session cache lookup failed: %v", err)
		}
		return "", false
	}
	if sess.Expired(m.now()) {
		return "", false
	}

	return sess.Token, true
}

func (m *Manager) login(ctx context.Context, deviceID string) (string, error) {
	dev, err := m.registry.Get(ctx, deviceID)
	if err != nil {
		return "", err
	}

	token, err := m.auth.Login(ctx, dev)
	if err != nil {
		metrics.IncSessionLogin(metrics.ResultError)
		return "", err
	}
	metrics.IncSessionLogin(metrics.ResultSuccess)

	now := m.now()
	sess := &model.Session{
		DeviceID:  deviceID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.cache.Put(ctx, sess); err != nil {
		// The token is still usable for this caller
		log.WithField("device_id", deviceID).Warnf("failed to cache session: %v", err)
	}

	log.WithFields(log.Fields{
		"device_id":  deviceID,
		"expires_at": sess.ExpiresAt,
	}).Info("device session established")

	return token, nil
}

// invalidateToken drops the cached session only if it still holds token, so a
// session renewed concurrently by another caller survives.
func (m *Manager) invalidateToken(ctx context.Context, deviceID, token string) {
	if err := m.cache.DeleteToken(ctx, deviceID, token); err != nil {
		log.WithField("device_id", deviceID).Warnf("failed to drop rejected session: %v", err)
	}
}
