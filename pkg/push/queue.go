package push

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignacioelizeche/controlid/pkg/metrics"
	"github.com/ignacioelizeche/controlid/pkg/model"
	log "github.com/sirupsen/logrus"
)

const (
	defaultVerb        = "POST"
	defaultContentType = "application/json"

	errResultTimeout = "no result reported in time"
)

// Queue keeps a FIFO of commands per device for devices that poll for work.
// All mutations of one device queue happen under that device's lock.
type Queue struct {
	mu      sync.Mutex
	devices map[string]*deviceQueue

	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
}

type pollRecord struct {
	txIDs []string
	at    time.Time
}

type deviceQueue struct {
	sync.Mutex
	pending  []string
	order    []string
	commands map[string]*model.Command
	polls    map[string]pollRecord
}

// NewQueue returns a queue discarding undelivered commands after ttl and
// forgetting finished commands after retention.
func NewQueue(ttl, retention time.Duration) *Queue {
	return &Queue{
		devices:   make(map[string]*deviceQueue),
		ttl:       ttl,
		retention: retention,
		now:       time.Now,
	}
}

func (q *Queue) device(deviceID string) *deviceQueue {
	q.mu.Lock()
	defer q.mu.Unlock()

	dq, ok := q.devices[deviceID]
	if !ok {
		dq = &deviceQueue{
			commands: make(map[string]*model.Command),
			polls:    make(map[string]pollRecord),
		}
		q.devices[deviceID] = dq
	}
	return dq
}

// lookup returns the queue of a device without creating one. Only Enqueue
// creates queues so unknown pollers cannot grow the device map.
func (q *Queue) lookup(deviceID string) *deviceQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.devices[deviceID]
}

// Drop forgets the queue of a device and every command in it.
func (q *Queue) Drop(deviceID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.devices, deviceID)
}

// Enqueue appends commands to the device queue in the given order. Missing
// transaction ids are generated. Either all commands are queued or none.
func (q *Queue) Enqueue(deviceID string, cmds ...model.Command) ([]model.Command, error) {
	dq := q.device(deviceID)
	dq.Lock()
	defer dq.Unlock()

	now := q.now()
	q.prune(deviceID, dq, now)

	cmds = append([]model.Command(nil), cmds...)
	seen := make(map[string]bool, len(cmds))
	for i := range cmds {
		c := &cmds[i]
		if c.Endpoint == "" {
			return nil, ErrInvalidCommand
		}
		if c.TransactionID == "" {
			c.TransactionID = uuid.New().String()
		}
		if seen[c.TransactionID] {
			return nil, ErrTransactionInUse
		}
		seen[c.TransactionID] = true
		if prev, ok := dq.commands[c.TransactionID]; ok && !prev.State.Done() {
			return nil, ErrTransactionInUse
		}
	}

	queued := make([]model.Command, 0, len(cmds))
	for _, c := range cmds {
		if _, ok := dq.commands[c.TransactionID]; ok {
			dq.forget(c.TransactionID)
		}
		if c.Verb == "" {
			c.Verb = defaultVerb
		}
		if c.ContentType == "" {
			c.ContentType = defaultContentType
		}
		c.DeviceID = deviceID
		c.State = model.CommandStateQueued
		c.EnqueuedAt = now
		c.Result = nil
		c.Error = ""
		c.DeliveredAt = time.Time{}
		c.CompletedAt = time.Time{}

		stored := c
		dq.commands[c.TransactionID] = &stored
		dq.pending = append(dq.pending, c.TransactionID)
		dq.order = append(dq.order, c.TransactionID)
		queued = append(queued, c)

		log.WithFields(log.Fields{
			"device_id":      deviceID,
			"transaction_id": c.TransactionID,
			"endpoint":       c.Endpoint,
		}).Info("command enqueued")
	}

	metrics.AddCommandsEnqueued(len(queued))

	return queued, nil
}

// Poll hands every queued command to the device and marks them delivered.
func (q *Queue) Poll(deviceID, pollUUID string) Delivery {
	dq := q.lookup(deviceID)
	if dq == nil {
		return Delivery{Kind: DeliveryNone}
	}
	dq.Lock()
	defer dq.Unlock()

	now := q.now()
	q.prune(deviceID, dq, now)

	if len(dq.pending) == 0 {
		return Delivery{Kind: DeliveryNone}
	}

	delivered := make([]model.Command, 0, len(dq.pending))
	txIDs := make([]string, 0, len(dq.pending))
	for _, id := range dq.pending {
		c := dq.commands[id]
		c.State = model.CommandStateDelivered
		c.DeliveredAt = now
		delivered = append(delivered, *c)
		txIDs = append(txIDs, id)
	}
	dq.pending = nil

	if pollUUID != "" {
		dq.polls[pollUUID] = pollRecord{txIDs: txIDs, at: now}
	}

	metrics.AddCommandsDelivered(len(delivered))

	log.WithFields(log.Fields{
		"device_id": deviceID,
		"uuid":      pollUUID,
		"count":     len(delivered),
	}).Info("commands delivered")

	if len(delivered) == 1 {
		return Delivery{Kind: DeliverySingle, Commands: delivered}
	}
	return Delivery{Kind: DeliveryBatch, Commands: delivered}
}

// Peek returns queued commands without delivering them.
func (q *Queue) Peek(deviceID string) Peek {
	dq := q.lookup(deviceID)
	if dq == nil {
		return Peek{}
	}
	dq.Lock()
	defer dq.Unlock()

	q.prune(deviceID, dq, q.now())

	cmds := make(Peek, 0, len(dq.pending))
	for _, id := range dq.pending {
		cmds = append(cmds, *dq.commands[id])
	}
	return cmds
}

// ReportResult records the outcome posted by a device and returns how many
// commands were finished by it. Results for unknown or finished commands are
// ignored.
func (q *Queue) ReportResult(deviceID, pollUUID string, report Report) int {
	dq := q.lookup(deviceID)
	if dq == nil {
		return 0
	}
	dq.Lock()
	defer dq.Unlock()

	now := q.now()
	logger := log.WithFields(log.Fields{
		"device_id": deviceID,
		"uuid":      pollUUID,
	})

	if report.IsBatch() {
		finished := 0
		for _, r := range report.TransactionsResults {
			state := model.CommandStateCompleted
			if r.failed() {
				state = model.CommandStateFailed
			}
			if dq.finish(r.TransactionID, state, r.Response, errorText(r.Error), now) {
				finished++
			} else {
				logger.WithField("transaction_id", r.TransactionID).Debug("ignoring result for unknown or finished transaction")
			}
		}
		return finished
	}

	txID, ok := dq.singleTarget(pollUUID)
	if !ok {
		logger.Warn("result could not be matched to a delivered command")
		return 0
	}

	state := model.CommandStateCompleted
	if !isEmptyJSON(report.Error) {
		state = model.CommandStateFailed
	}
	if !dq.finish(txID, state, report.Response, errorText(report.Error), now) {
		logger.WithField("transaction_id", txID).Debug("ignoring duplicate result")
		return 0
	}
	return 1
}

// Get returns the command with the given transaction id.
func (q *Queue) Get(deviceID, txID string) (*model.Command, error) {
	dq := q.lookup(deviceID)
	if dq == nil {
		return nil, ErrCommandNotFound
	}
	dq.Lock()
	defer dq.Unlock()

	q.prune(deviceID, dq, q.now())

	c, ok := dq.commands[txID]
	if !ok {
		return nil, ErrCommandNotFound
	}
	cp := *c
	return &cp, nil
}

// List returns all known commands of a device in enqueue order.
func (q *Queue) List(deviceID string) []model.Command {
	dq := q.lookup(deviceID)
	if dq == nil {
		return []model.Command{}
	}
	dq.Lock()
	defer dq.Unlock()

	q.prune(deviceID, dq, q.now())

	cmds := make([]model.Command, 0, len(dq.order))
	for _, id := range dq.order {
		cmds = append(cmds, *dq.commands[id])
	}
	return cmds
}

// Cancel removes a command that was not delivered yet.
func (q *Queue) Cancel(deviceID, txID string) error {
	dq := q.lookup(deviceID)
	if dq == nil {
		return ErrCommandNotFound
	}
	dq.Lock()
	defer dq.Unlock()

	c, ok := dq.commands[txID]
	if !ok {
		return ErrCommandNotFound
	}
	if c.State != model.CommandStateQueued {
		return ErrNotCancelable
	}

	dq.forget(txID)

	log.WithFields(log.Fields{
		"device_id":      deviceID,
		"transaction_id": txID,
	}).Info("command canceled")

	return nil
}

// prune expires queued commands older than the ttl, fails delivered commands
// without a result after the ttl and forgets finished commands past retention.
func (q *Queue) prune(deviceID string, dq *deviceQueue, now time.Time) {
	if q.ttl > 0 {
		pending := dq.pending[:0]
		for _, id := range dq.pending {
			c := dq.commands[id]
			if now.Sub(c.EnqueuedAt) < q.ttl {
				pending = append(pending, id)
				continue
			}
			c.State = model.CommandStateExpired
			c.CompletedAt = now
			metrics.IncCommandResult(string(model.CommandStateExpired))
			log.WithFields(log.Fields{
				"device_id":      deviceID,
				"transaction_id": id,
			}).Warn("command expired before delivery")
		}
		dq.pending = pending

		for _, id := range dq.order {
			c := dq.commands[id]
			if c.State == model.CommandStateDelivered && now.Sub(c.DeliveredAt) >= q.ttl {
				dq.finish(id, model.CommandStateFailed, nil, errResultTimeout, now)
			}
		}
	}

	if q.retention > 0 {
		for _, id := range append([]string(nil), dq.order...) {
			c := dq.commands[id]
			if c.State.Done() && now.Sub(c.CompletedAt) >= q.retention {
				dq.forget(id)
			}
		}
		for pollUUID, p := range dq.polls {
			if now.Sub(p.at) >= q.retention {
				delete(dq.polls, pollUUID)
			}
		}
	}
}

// finish moves a delivered command to a final state. The first result wins.
func (dq *deviceQueue) finish(txID string, state model.CommandState, result []byte, errText string, now time.Time) bool {
	c, ok := dq.commands[txID]
	if !ok || c.State != model.CommandStateDelivered {
		return false
	}

	c.State = state
	c.Result = append([]byte(nil), result...)
	c.Error = errText
	c.CompletedAt = now

	metrics.IncCommandResult(string(state))

	log.WithFields(log.Fields{
		"device_id":      c.DeviceID,
		"transaction_id": txID,
		"state":          state,
	}).Info("command finished")

	return true
}

// singleTarget picks the command a single result refers to: the only
// command delivered by the poll, else the only outstanding command.
func (dq *deviceQueue) singleTarget(pollUUID string) (string, bool) {
	// Poll records outlive their results so duplicate reports stay matched
	if p, ok := dq.polls[pollUUID]; ok {
		if len(p.txIDs) == 1 {
			return p.txIDs[0], true
		}
		return "", false
	}

	var target string
	outstanding := 0
	for _, id := range dq.order {
		if dq.commands[id].State == model.CommandStateDelivered {
			target = id
			outstanding++
		}
	}
	if outstanding == 1 {
		return target, true
	}

	return "", false
}

func (dq *deviceQueue) forget(txID string) {
	delete(dq.commands, txID)
	dq.pending = without(dq.pending, txID)
	dq.order = without(dq.order, txID)
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
