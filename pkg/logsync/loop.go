package logsync

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Loop triggers a sync cycle for every registered device with sync enabled on
// each tick. A device whose previous cycle is still running skips the tick.
type Loop struct {
	syncer   *Syncer
	registry Registry
	interval time.Duration
}

// NewLoop returns a loop running syncer every interval.
func NewLoop(syncer *Syncer, registry Registry, interval time.Duration) *Loop {
	return &Loop{
		syncer:   syncer,
		registry: registry,
		interval: interval,
	}
}

// Run ticks until ctx is done and waits for running cycles before returning.
func (l *Loop) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.WithField("interval", l.interval).Info("log sync loop started")

	l.tick(ctx, &wg)
	for {
		select {
		case <-ctx.Done():
			log.Info("log sync loop stopped")
			return nil
		case <-ticker.C:
			l.tick(ctx, &wg)
		}
	}
}

func (l *Loop) tick(ctx context.Context, wg *sync.WaitGroup) {
	devices, err := l.registry.List(ctx)
	if err != nil {
		log.Errorf("log sync loop failed to list devices: %v", err)
		return
	}

	for _, dev := range devices {
		if !dev.SyncEnabled() {
			continue
		}
		wg.Add(1)
		go func(deviceID string) {
			defer wg.Done()
			if _, err := l.syncer.RunCycle(ctx, deviceID); err == ErrCycleInProgress {
				log.WithField("device_id", deviceID).Debug("previous sync cycle still running, skipping tick")
			}
		}(dev.ID)
	}
}
