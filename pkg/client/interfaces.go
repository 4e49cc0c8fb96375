package client

// Handler receives messages delivered to a subscription.
type Handler func(subject string, data []byte)

// Interface is a message bus connection used to fan out notifications and
// forward access logs.
type Interface interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, h Handler) error
	Close()
}
