package mqtt

import (
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/mikesmitty/fanctl/pkg/telemetry"
)

const (
	connectTimeout = 30 * time.Second

	payloadOnline  = "online"
	payloadOffline = "offline"
)

var errConnectTimeout = errors.New("mqtt connection timed out")

// Client publishes telemetry records as Home Assistant sensors under
// fanctl/<hostname>.
type Client struct {
	client      paho.Client
	clientID    string
	topicPrefix string
	qos         byte

	// every lets one record in every through; skipped counts the ones dropped since.
	every   int
	skipped int

	hassSensors map[string]HassSensor
	// uniqueIDs maps a telemetry field or sensor source to its registered HA sensor.
	uniqueIDs map[string]string
	mu        sync.Mutex
}

func NewClient(broker *url.URL, every int) *Client {
	hostname, _ := os.Hostname()
	hostname = strings.Split(hostname, ".")[0]
	clientID := hostname
	if clientID == "" {
		now := time.Now().UnixNano()
		sum := md5.Sum([]byte(strconv.FormatInt(now, 10)))
		clientID = fmt.Sprintf("fanctl-%x", sum[:4])
	}
	if every < 1 {
		every = 1
	}

	c := &Client{
		clientID:    clientID,
		topicPrefix: "fanctl/" + hostname,
		qos:         1,
		every:       every,
		hassSensors: make(map[string]HassSensor),
		uniqueIDs:   make(map[string]string),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker.String()).
		SetClientID(clientID).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetWill(c.availabilityTopic(), payloadOffline, c.qos, true).
		SetOnConnectHandler(func(paho.Client) {
			c.Publish(c.availabilityTopic(), payloadOnline, true)
		})

	slog.Info("connecting to mqtt", "url", broker, "clientid", clientID, "module", "mqtt")
	c.client = paho.NewClient(opts)
	return c
}

// Connect waits up to connectTimeout for the broker. With ConnectRetry set the token
// would otherwise not complete while the broker is down.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.client.Disconnect(0)
		slog.Error("mqtt connection timed out", "timeout", connectTimeout, "module", "mqtt")
		return errConnectTimeout
	}
	if token.Error() != nil {
		slog.Error("mqtt connection failed", "error", token.Error(), "module", "mqtt")
		return token.Error()
	}
	return nil
}

// Disconnect marks fanctl offline and closes the connection.
func (c *Client) Disconnect() {
	if c.client.IsConnected() {
		t := c.client.Publish(c.availabilityTopic(), c.qos, true, payloadOffline)
		t.WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
}

func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	if token := c.client.Subscribe(topic, c.qos, handler); token.Wait() && token.Error() != nil {
		slog.Error("mqtt subscription failed", "error", token.Error(), "module", "mqtt")
		return token.Error()
	}
	return nil
}

// Emit publishes a telemetry record's values as Home Assistant sensor states,
// registering a sensor the first time a source shows up.
func (c *Client) Emit(r telemetry.Record) error {
	if !c.due() {
		return nil
	}

	var errs []error
	publish := func(key, name string, kind sensorKind, state string) {
		id := c.sensorID(key, name, kind)
		if err := c.publishState(id, state); err != nil {
			errs = append(errs, err)
		}
	}

	for _, s := range r.Samples {
		if !s.Available {
			continue
		}
		publish("sensor/"+s.Source, s.Source+" Temperature", temperature, formatFloat(s.Celsius))
	}
	if r.ControlValid {
		publish("control", "Control Temperature", temperature, formatFloat(r.ControlTemp))
	}
	publish("speed", "Fan Speed", fanSpeed, formatFloat(r.SpeedPercent))
	publish("pwm", "Fan PWM", fanPWM, strconv.Itoa(r.SpeedRaw))
	if r.CPUValid {
		publish("cpu", "CPU Usage", cpuUsage, formatFloat(r.CPUUsage))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}

func (c *Client) due() bool {
	c.skipped++
	if c.skipped < c.every {
		return false
	}
	c.skipped = 0
	return true
}

// sensorID returns the HA unique ID for key, registering and announcing a new sensor
// on first use.
func (c *Client) sensorID(key, name string, kind sensorKind) string {
	c.mu.Lock()
	id, ok := c.uniqueIDs[key]
	c.mu.Unlock()
	if ok {
		return id
	}

	sensor := c.register(c.newSensor(name, kind))
	c.mu.Lock()
	c.uniqueIDs[key] = sensor.UniqueID
	c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.announce(sensor)
	}
	return sensor.UniqueID
}

// Publish sends msg without waiting for the broker; failures are logged.
func (c *Client) Publish(topic string, msg string, retained bool) {
	if c.client == nil {
		return
	}
	t := c.client.Publish(topic, c.qos, retained, msg)
	go func() {
		_ = t.WaitTimeout(5 * time.Second)
		if t.Error() != nil {
			slog.Error("mqtt message publish failed", "topic", topic, "error", t.Error(), "module", "mqtt")
		}
	}()
}

func (c *Client) availabilityTopic() string {
	return c.topicPrefix + "/availability"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
