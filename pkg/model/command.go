package model

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// CommandState is the lifecycle state of a queued push command
type CommandState string

const (
	CommandStateQueued    CommandState = "queued"
	CommandStateDelivered CommandState = "delivered"
	CommandStateCompleted CommandState = "completed"
	CommandStateFailed    CommandState = "failed"
	// CommandStateExpired is reported for commands discarded before delivery.
	CommandStateExpired CommandState = "expired"
)

// Done reports whether no further transition is possible.
func (s CommandState) Done() bool {
	switch s {
	case CommandStateCompleted, CommandStateFailed, CommandStateExpired:
		return true
	}
	return false
}

// Command is a request enqueued for a device that polls for work
type Command struct {
	TransactionID string
	DeviceID      string
	Verb          string
	Endpoint      string
	Body          json.RawMessage
	ContentType   string
	QueryString   string
	State         CommandState
	Result        json.RawMessage
	Error         string
	EnqueuedAt    time.Time
	DeliveredAt   time.Time
	CompletedAt   time.Time
}

// ApplyDefaults adds the device defaults to a JSON object body for every key
// the body leaves unset. Empty and non-object bodies are left as they are.
func (c *Command) ApplyDefaults(defaults map[string]interface{}) error {
	if len(defaults) == 0 || len(c.Body) == 0 {
		return nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(c.Body, &body); err != nil || body == nil {
		return nil
	}

	changed := false
	for k, v := range defaults {
		if _, ok := body[k]; ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "failed to encode device default %q", k)
		}
		body[k] = raw
		changed = true
	}
	if !changed {
		return nil
	}

	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode command body")
	}
	c.Body = b

	return nil
}
