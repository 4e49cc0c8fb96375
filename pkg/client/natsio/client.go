package natsio

import (
	"time"

	"github.com/ignacioelizeche/controlid/pkg/client"
	nats "github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config holds the NATS connection settings.
type Config struct {
	URL            string
	Name           string
	DefaultTimeout time.Duration
}

type natsClient struct {
	cfg *Config
	nc  *nats.Conn
}

// New connects to the NATS server.
func New(cfg *Config) (client.Interface, error) {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = nats.DefaultTimeout
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.DefaultTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			log.Warn("disconnected from NATS server")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("reconnected to NATS server %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to NATS server %s", cfg.URL)
	}

	return &natsClient{
		cfg: cfg,
		nc:  nc,
	}, nil
}

func (c *natsClient) Publish(subject string, data []byte) error {
	if err := c.nc.Publish(subject, data); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", subject)
	}
	return nil
}

// Flush waits until the server acknowledged all published messages.
func (c *natsClient) Flush() error {
	return c.nc.FlushTimeout(c.cfg.DefaultTimeout)
}

func (c *natsClient) Subscribe(subject string, h client.Handler) error {
	_, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		h(m.Subject, m.Data)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to subscribe to %s", subject)
	}
	return nil
}

func (c *natsClient) Close() {
	c.nc.Close()
}
