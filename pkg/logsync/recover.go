package logsync

import (
	"context"

	"github.com/ignacioelizeche/controlid/pkg/controlid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Recover re-fetches the logs of a time range into the local archive and
// optionally forwards them again. Checkpoints are left untouched. A zero
// until means no upper bound.
func (s *Syncer) Recover(ctx context.Context, deviceID string, since, until int64, forward bool) (Result, error) {
	res := Result{DeviceID: deviceID}

	filter := controlid.LogFilter{Since: since, Until: until}
	logs, err := s.fetch(ctx, deviceID, filter, &res)
	if err != nil {
		return res, err
	}
	res.Fetched = len(logs)

	if len(logs) == 0 {
		return res, nil
	}

	archived, err := s.archive.Save(ctx, deviceID, logs)
	if err != nil {
		return res, errors.Wrap(err, "failed to archive access logs")
	}
	res.Archived = archived

	if forward {
		if err := s.forward(ctx, deviceID, logs); err != nil {
			return res, err
		}
		res.Forwarded = len(logs)
	}

	log.WithFields(log.Fields{
		"device_id": deviceID,
		"fetched":   res.Fetched,
		"archived":  res.Archived,
		"forwarded": res.Forwarded,
	}).Info("access logs recovered")

	return res, nil
}
