package logsync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/client"
	"github.com/ignacioelizeche/controlid/pkg/client/mqttio"
	"github.com/ignacioelizeche/controlid/pkg/client/natsio"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultSubject is used when a bus forward URL carries no subject.
const DefaultSubject = "controlid.access_logs"

// Forwarder delivers access logs to the downstream consumer.
type Forwarder interface {
	Forward(ctx context.Context, deviceID string, logs []model.AccessLog) error
}

// WebhookForwarder posts logs as JSON to an HTTP endpoint.
type WebhookForwarder struct {
	url      string
	client   *http.Client
	location *time.Location
}

// NewWebhookForwarder returns a forwarder posting to url.
func NewWebhookForwarder(url string) *WebhookForwarder {
	return &WebhookForwarder{
		url:      url,
		client:   &http.Client{},
		location: time.Local,
	}
}

// Forward implements Forwarder.
func (f *WebhookForwarder) Forward(ctx context.Context, deviceID string, logs []model.AccessLog) error {
	p := NewPayload("", logs, f.location)
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "failed to encode access logs")
	}

	req, err := http.NewRequest(http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create forward request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to forward access logs to %s", f.url)
	}
	defer resp.Body.Close()
	io.Copy(ioutil.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("forward endpoint answered %d", resp.StatusCode)
	}

	return nil
}

// BusForwarder publishes logs on a message bus subject.
type BusForwarder struct {
	bus     client.Interface
	subject string
}

// NewBusForwarder returns a forwarder publishing to subject.
func NewBusForwarder(bus client.Interface, subject string) *BusForwarder {
	return &BusForwarder{bus: bus, subject: subject}
}

// Forward implements Forwarder.
func (f *BusForwarder) Forward(ctx context.Context, deviceID string, logs []model.AccessLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(NewPayload(deviceID, logs, time.Local))
	if err != nil {
		return errors.Wrap(err, "failed to encode access logs")
	}
	if err := f.bus.Publish(f.subject, body); err != nil {
		return err
	}

	if flusher, ok := f.bus.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

type discardForwarder struct{}

func (discardForwarder) Forward(context.Context, string, []model.AccessLog) error {
	return nil
}

// NewForwarder builds the forwarder for a forward URL: http(s) posts to a
// webhook, nats://host:port/subject and mqtt://host:port/topic publish on a
// bus. An empty URL keeps logs in the local archive only. The returned
// function releases the connection.
func NewForwarder(rawURL string, timeout time.Duration) (Forwarder, func(), error) {
	noop := func() {}
	if rawURL == "" {
		log.Info("no forward url configured, access logs are archived locally only")
		return discardForwarder{}, noop, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, noop, errors.Wrap(err, "failed to parse forward url")
	}

	switch u.Scheme {
	case "http", "https":
		return NewWebhookForwarder(rawURL), noop, nil

	case "nats", "tls":
		subject := strings.Replace(strings.Trim(u.Path, "/"), "/", ".", -1)
		if subject == "" {
			subject = DefaultSubject
		}
		server := url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}
		bus, err := natsio.New(&natsio.Config{
			URL:            server.String(),
			Name:           "controlid-forwarder",
			DefaultTimeout: timeout,
		})
		if err != nil {
			return nil, noop, err
		}
		return NewBusForwarder(bus, subject), bus.Close, nil

	case "mqtt", "mqtts":
		topic := strings.Trim(u.Path, "/")
		if topic == "" {
			topic = strings.Replace(DefaultSubject, ".", "/", -1)
		}
		scheme := "tcp"
		if u.Scheme == "mqtts" {
			scheme = "ssl"
		}
		cfg := &mqttio.Config{
			Broker:  scheme + "://" + u.Host,
			QoS:     1,
			Timeout: timeout,
		}
		if u.User != nil {
			cfg.Username = u.User.Username()
			cfg.Password, _ = u.User.Password()
		}
		bus, err := mqttio.New(cfg)
		if err != nil {
			return nil, noop, err
		}
		return NewBusForwarder(bus, topic), bus.Close, nil
	}

	return nil, noop, errors.Errorf("unsupported forward url scheme %q", u.Scheme)
}
