package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/controlid"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/ignacioelizeche/controlid/pkg/storage/memory"
)

type fakeRegistry map[string]*model.Device

func (r fakeRegistry) Get(_ context.Context, id string) (*model.Device, error) {
	if d, ok := r[id]; ok {
		return d, nil
	}
	return nil, storage.ErrNotFound
}

type fakeAuth struct {
	logins  int32
	logouts int32
	delay   time.Duration
	err     error
}

func (a *fakeAuth) Login(_ context.Context, dev *model.Device) (string, error) {
	n := atomic.AddInt32(&a.logins, 1)
	time.Sleep(a.delay)
	if a.err != nil {
		return "", a.err
	}
	return fmt.Sprintf("%s-token-%d", dev.ID, n), nil
}

func (a *fakeAuth) Logout(_ context.Context, _ *model.Device, _ string) error {
	atomic.AddInt32(&a.logouts, 1)
	return nil
}

func newTestManager(auth *fakeAuth) *Manager {
	reg := fakeRegistry{"lobby": {ID: "lobby", Address: "10.0.0.5"}}
	return NewManager(reg, auth, memory.NewSessionStore(8), time.Minute)
}

func TestManager_ConcurrentAcquireLogsInOnce(t *testing.T) {
	auth := &fakeAuth{delay: 50 * time.Millisecond}
	m := newTestManager(auth)

	const callers = 20
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := m.Acquire(context.Background(), "lobby")
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
			}
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&auth.logins); n != 1 {
		t.Errorf("logins = %d, want 1", n)
	}
	for i, token := range tokens {
		if token != tokens[0] {
			t.Errorf("caller %d got token %q, want %q", i, token, tokens[0])
		}
	}
}

func TestManager_AcquireRenewsExpiredSession(t *testing.T) {
	auth := &fakeAuth{}
	m := newTestManager(auth)

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	first, _ := m.Acquire(context.Background(), "lobby")
	again, _ := m.Acquire(context.Background(), "lobby")
	if first != again {
		t.Fatalf("cached token changed: %q -> %q", first, again)
	}

	now = now.Add(time.Minute)
	renewed, err := m.Acquire(context.Background(), "lobby")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if renewed == first {
		t.Error("expired session was reused")
	}
	if auth.logins != 2 {
		t.Errorf("logins = %d, want 2", auth.logins)
	}
}

func TestManager_WithSessionRetriesOnce(t *testing.T) {
	auth := &fakeAuth{}
	m := newTestManager(auth)

	calls := 0
	var seen []string
	err := m.WithSession(context.Background(), "lobby", func(dev *model.Device, token string) error {
		calls++
		seen = append(seen, token)
		if calls == 1 {
			return controlid.NewSessionExpiredError(dev.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
	if seen[0] == seen[1] {
		t.Error("retry reused the rejected token")
	}

	// A second expiry in a row surfaces to the caller
	calls = 0
	err = m.WithSession(context.Background(), "lobby", func(dev *model.Device, token string) error {
		calls++
		return controlid.NewSessionExpiredError(dev.ID)
	})
	if !controlid.IsSessionExpiredError(err) || calls != 2 {
		t.Errorf("WithSession() = %v after %d calls", err, calls)
	}
}

func TestManager_AuthenticationFailure(t *testing.T) {
	auth := &fakeAuth{err: controlid.NewAuthenticationError("lobby", "bad password")}
	m := newTestManager(auth)

	if _, err := m.Acquire(context.Background(), "lobby"); !controlid.IsAuthenticationError(err) {
		t.Errorf("Acquire() error = %v, want AuthenticationError", err)
	}
	if _, err := m.Acquire(context.Background(), "unknown"); err != storage.ErrNotFound {
		t.Errorf("Acquire() unknown device error = %v, want ErrNotFound", err)
	}
}

func TestManager_Logout(t *testing.T) {
	auth := &fakeAuth{}
	m := newTestManager(auth)
	ctx := context.Background()

	if err := m.Logout(ctx, "lobby"); err != nil || auth.logouts != 0 {
		t.Fatalf("Logout() without session = %v, logouts %d", err, auth.logouts)
	}

	m.Acquire(ctx, "lobby")
	if sessions, _ := m.Sessions(ctx); len(sessions) != 1 {
		t.Fatalf("Sessions() = %+v", sessions)
	}

	if err := m.Logout(ctx, "lobby"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if auth.logouts != 1 {
		t.Errorf("logouts = %d, want 1", auth.logouts)
	}
	if sessions, _ := m.Sessions(ctx); len(sessions) != 0 {
		t.Errorf("Sessions() after logout = %+v", sessions)
	}
}

type gatedAuth struct {
	logins  int32
	started chan struct{}
	release chan struct{}
}

func (a *gatedAuth) Login(ctx context.Context, dev *model.Device) (string, error) {
	if atomic.AddInt32(&a.logins, 1) == 1 {
		close(a.started)
	}
	select {
	case <-a.release:
		return dev.ID + "-token", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *gatedAuth) Logout(_ context.Context, _ *model.Device, _ string) error {
	return nil
}

func TestManager_SharedLoginOutlivesFirstCaller(t *testing.T) {
	auth := &gatedAuth{started: make(chan struct{}), release: make(chan struct{})}
	reg := fakeRegistry{"lobby": {ID: "lobby", Address: "10.0.0.5"}}
	m := NewManager(reg, auth, memory.NewSessionStore(8), time.Minute)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := m.Acquire(firstCtx, "lobby")
		firstDone <- err
	}()
	<-auth.started

	type result struct {
		token string
		err   error
	}
	joined := make(chan result, 1)
	go func() {
		token, err := m.Acquire(context.Background(), "lobby")
		joined <- result{token, err}
	}()

	// Let the second caller join the in-flight login, then abandon the first
	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(auth.release)

	r := <-joined
	if r.err != nil {
		t.Fatalf("joined Acquire() error = %v", r.err)
	}
	if r.token != "lobby-token" {
		t.Errorf("joined Acquire() = %q, want lobby-token", r.token)
	}
	<-firstDone
	if n := atomic.LoadInt32(&auth.logins); n != 1 {
		t.Errorf("logins = %d, want 1", n)
	}
}

func TestManager_LoginTimeout(t *testing.T) {
	auth := &gatedAuth{started: make(chan struct{}), release: make(chan struct{})}
	reg := fakeRegistry{"lobby": {ID: "lobby", Address: "10.0.0.5"}}
	m := NewManager(reg, auth, memory.NewSessionStore(8), time.Minute)
	m.SetLoginTimeout(20 * time.Millisecond)

	if _, err := m.Acquire(context.Background(), "lobby"); err != context.DeadlineExceeded {
		t.Errorf("Acquire() error = %v, want DeadlineExceeded", err)
	}
}

func TestManager_RejectedTokenKeepsRenewedSession(t *testing.T) {
	auth := &fakeAuth{}
	m := newTestManager(auth)
	ctx := context.Background()

	calls := 0
	var seen []string
	err := m.WithSession(ctx, "lobby", func(dev *model.Device, token string) error {
		calls++
		seen = append(seen, token)
		if calls == 1 {
			// Another caller renewed the session before this one noticed the expiry
			now := time.Now()
			m.cache.Put(ctx, &model.Session{
				DeviceID:  dev.ID,
				Token:     "renewed",
				CreatedAt: now,
				ExpiresAt: now.Add(time.Minute),
			})
			return controlid.NewSessionExpiredError(dev.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v", err)
	}
	if len(seen) != 2 || seen[1] != "renewed" {
		t.Errorf("tokens = %v, want retry with renewed", seen)
	}
	if n := atomic.LoadInt32(&auth.logins); n != 1 {
		t.Errorf("logins = %d, want 1", n)
	}
}
