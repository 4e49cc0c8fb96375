package cli

import (
	"context"
	"os"
	"time"

	"github.com/ignacioelizeche/controlid/config"
	"github.com/ignacioelizeche/controlid/pkg/controlid"
	"github.com/ignacioelizeche/controlid/pkg/logsync"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/session"
	"github.com/ignacioelizeche/controlid/pkg/storage/memory"
	"github.com/ignacioelizeche/controlid/pkg/storage/sqlstore"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type RecoverHandler struct {
	c *config.Config
}

func newRecoverHandler(c *config.Config) *RecoverHandler {
	return &RecoverHandler{c: c}
}

// RecoverRange is the time window of a recovery run in unix seconds. A zero
// Until means no upper bound.
type RecoverRange struct {
	Since int64
	Until int64
}

// ParseRecoverRange parses the --from and --to flags. Both accept "today",
// unix seconds or RFC3339 timestamps. An empty to means no upper bound.
func ParseRecoverRange(from, to string, now time.Time) (RecoverRange, error) {
	since, err := logsync.StartBoundary(from, now)
	if err != nil {
		return RecoverRange{}, err
	}

	r := RecoverRange{Since: since}
	if to != "" {
		until, err := logsync.StartBoundary(to, now)
		if err != nil {
			return RecoverRange{}, err
		}
		if until < since {
			return RecoverRange{}, errors.Errorf("--to %q is before --from %q", to, from)
		}
		r.Until = until
	}

	return r, nil
}

// Recover re-fetches a time range of access logs into the local archive.
func (h *RecoverHandler) Recover(cmd *cobra.Command, args []string) {
	useConsoleOutput(false)
	h.c.Normalize()

	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	deviceID, _ := cmd.Flags().GetString("device")
	forward, _ := cmd.Flags().GetBool("forward")

	r, err := ParseRecoverRange(from, to, time.Now())
	if err != nil {
		log.Error(err)
		os.Exit(2)
	}

	store, db, err := sqlstore.Connect(h.c.DatabaseURL)
	if err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	forwarder, closeForwarder, err := logsync.NewForwarder(h.c.ForwardURL, h.c.ForwardTimeout)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
	defer closeForwarder()

	devices := controlid.NewClient(h.c.DeviceTimeout)
	// Sessions of a one-shot run are not worth persisting
	sessions := session.NewManager(store.Devices(), devices, memory.NewSessionStore(h.c.SessionCacheSize), h.c.SessionTTL)
	sessions.SetLoginTimeout(h.c.DeviceTimeout)
	syncer := logsync.NewSyncer(store.Devices(), sessions, devices, store, forwarder, logsync.Config{
		Retries:        h.c.SyncRetryCount,
		RetryDelay:     h.c.SyncRetryDelay,
		CallTimeout:    h.c.DeviceTimeout,
		ForwardTimeout: h.c.ForwardTimeout,
	})

	ctx := context.Background()

	var targets []model.Device
	if deviceID != "" {
		dev, err := store.Devices().Get(ctx, deviceID)
		if err != nil {
			log.Errorf("Unknown device %s: %s", deviceID, err)
			os.Exit(1)
		}
		targets = append(targets, *dev)
	} else {
		targets, err = store.Devices().List(ctx)
		if err != nil {
			log.Error(err)
			os.Exit(1)
		}
	}

	failed := 0
	for _, dev := range targets {
		res, err := syncer.Recover(ctx, dev.ID, r.Since, r.Until, forward)
		if err != nil {
			failed++
			log.WithField("device_id", dev.ID).Errorf("Recovery failed: %s", err)
			continue
		}
		log.WithField("device_id", dev.ID).Infof("Recovered %d logs, %d new, %d forwarded",
			res.Fetched, res.Archived, res.Forwarded)

		if err := sessions.Logout(ctx, dev.ID); err != nil {
			log.WithField("device_id", dev.ID).Warn(err)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
