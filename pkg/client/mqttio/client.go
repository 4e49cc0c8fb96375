package mqttio

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ignacioelizeche/controlid/pkg/client"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultConnectTimeout = 10 * time.Second

// Config holds the MQTT broker settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Timeout  time.Duration
}

type mqttClient struct {
	cfg    *Config
	client pahomqtt.Client
}

// New connects to the MQTT broker. Broker is a paho server URI such as
// tcp://localhost:1883.
func New(cfg *Config) (client.Interface, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultConnectTimeout
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("controlid-%d", time.Now().UnixNano())
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			log.Warnf("lost connection to MQTT broker: %v", err)
		}).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			log.Infof("connected to MQTT broker %s", cfg.Broker)
		})

	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, errors.Errorf("timeout connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to MQTT broker %s", cfg.Broker)
	}

	return &mqttClient{cfg: cfg, client: c}, nil
}

func (c *mqttClient) Publish(topic string, data []byte) error {
	token := c.client.Publish(topic, c.cfg.QoS, false, data)
	if !token.WaitTimeout(c.cfg.Timeout) {
		return errors.Errorf("timeout publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", topic)
	}
	return nil
}

func (c *mqttClient) Subscribe(topic string, h client.Handler) error {
	token := c.client.Subscribe(topic, c.cfg.QoS, func(_ pahomqtt.Client, m pahomqtt.Message) {
		h(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(c.cfg.Timeout) {
		return errors.Errorf("timeout subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "failed to subscribe to %s", topic)
	}
	return nil
}

func (c *mqttClient) Close() {
	c.client.Disconnect(250)
}
