package push

import (
	"encoding/json"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

// DeliveryKind tells how a poll response is shaped.
type DeliveryKind int

const (
	// DeliveryNone means nothing was queued.
	DeliveryNone DeliveryKind = iota
	// DeliverySingle carries exactly one command.
	DeliverySingle
	// DeliveryBatch carries several commands tagged with their transaction ids.
	DeliveryBatch
)

func (k DeliveryKind) String() string {
	switch k {
	case DeliverySingle:
		return "single"
	case DeliveryBatch:
		return "batch"
	}
	return "none"
}

// Delivery is the answer to a device poll.
type Delivery struct {
	Kind     DeliveryKind
	Commands []model.Command
}

type wireCommand struct {
	TransactionID string          `json:"transactionid,omitempty"`
	Verb          string          `json:"verb"`
	Endpoint      string          `json:"endpoint"`
	Body          json.RawMessage `json:"body,omitempty"`
	ContentType   string          `json:"contentType,omitempty"`
	QueryString   string          `json:"queryString,omitempty"`
}

type wireBatch struct {
	Transactions []wireCommand `json:"transactions"`
}

func toWire(c model.Command, withID bool) wireCommand {
	w := wireCommand{
		Verb:        c.Verb,
		Endpoint:    c.Endpoint,
		Body:        c.Body,
		ContentType: c.ContentType,
		QueryString: c.QueryString,
	}
	if withID {
		w.TransactionID = c.TransactionID
	}
	return w
}

// MarshalJSON renders the delivery in the shape devices expect: an empty
// object, a bare command or a transactions list.
func (d Delivery) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DeliverySingle:
		return json.Marshal(toWire(d.Commands[0], false))
	case DeliveryBatch:
		return json.Marshal(batchOf(d.Commands))
	}
	return []byte("{}"), nil
}

func batchOf(cmds []model.Command) wireBatch {
	b := wireBatch{Transactions: make([]wireCommand, 0, len(cmds))}
	for _, c := range cmds {
		b.Transactions = append(b.Transactions, toWire(c, true))
	}
	return b
}

// Peek is a read-only view of queued commands in batch shape.
type Peek []model.Command

func (p Peek) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(batchOf(p))
}
