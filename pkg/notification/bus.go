package notification

import (
	"encoding/json"

	"github.com/ignacioelizeche/controlid/pkg/client"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/pkg/errors"
)

// SubjectPrefix is prepended to the category to form the bus subject.
const SubjectPrefix = "controlid.notifications."

// BusPublisher publishes notifications on a message bus, one subject per
// category.
type BusPublisher struct {
	bus client.Interface
}

// NewBusPublisher returns a publisher writing to bus.
func NewBusPublisher(bus client.Interface) *BusPublisher {
	return &BusPublisher{bus: bus}
}

// Subject returns the subject notifications of a category are published on.
func Subject(category string) string {
	return SubjectPrefix + category
}

// Publish implements Publisher.
func (p *BusPublisher) Publish(n *model.Notification) error {
	data, err := json.Marshal(NewEntry(n))
	if err != nil {
		return errors.Wrap(err, "failed to encode notification")
	}
	return p.bus.Publish(Subject(n.Category), data)
}
