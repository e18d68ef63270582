package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	discoveryPrefix = "homeassistant"
	statusTopic     = discoveryPrefix + "/status"
)

// sensorKind carries the Home Assistant presentation of one telemetry value.
type sensorKind struct {
	deviceClass string
	unit        string
	icon        string
}

var (
	temperature = sensorKind{deviceClass: "temperature", unit: "°C"}
	fanSpeed    = sensorKind{unit: "%", icon: "mdi:fan"}
	fanPWM      = sensorKind{icon: "mdi:fan-chevron-up"}
	cpuUsage    = sensorKind{unit: "%", icon: "mdi:cpu-64-bit"}
)

type HassSensor struct {
	configTopic       string
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	Device            HassDevice `json:"device,omitempty"`
	DeviceClass       string     `json:"device_class,omitempty"`
	StateClass        string     `json:"state_class"`
	StateTopic        string     `json:"state_topic"`
	AvailabilityTopic string     `json:"availability_topic"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	Icon              string     `json:"icon,omitempty"`
}

type HassDevice struct {
	Name        string   `json:"name,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`
	Model       string   `json:"model,omitempty"`
}

// HomeAssistant announces the known sensors and announces them again whenever Home
// Assistant comes back online.
func (c *Client) HomeAssistant() error {
	c.announceAll()
	return c.Subscribe(statusTopic, func(client paho.Client, msg paho.Message) {
		payload := string(msg.Payload())
		slog.Info("homeassistant status watcher", "status", payload, "module", "mqtt")
		if payload == payloadOnline {
			c.announceAll()
		}
	})
}

func (c *Client) announceAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Info("announcing homeassistant sensors", "count", len(c.hassSensors), "module", "mqtt")
	for _, sensor := range c.hassSensors {
		c.announce(sensor)
	}
}

func (c *Client) newSensor(name string, kind sensorKind) HassSensor {
	device := cases.Title(language.English).String(c.clientID)
	id := slugify(device + "_" + name)
	return HassSensor{
		configTopic: discoveryPrefix + "/sensor/" + id + "/config",
		Name:        name,
		UniqueID:    id,
		Device: HassDevice{
			Name:        device,
			Identifiers: []string{slugify(device)},
			Model:       "fanctl",
		},
		DeviceClass:       kind.deviceClass,
		StateClass:        "measurement",
		StateTopic:        c.topicPrefix + "/sensor/" + slugify(name),
		AvailabilityTopic: c.availabilityTopic(),
		UnitOfMeasurement: kind.unit,
		Icon:              kind.icon,
	}
}

func (c *Client) register(sensor HassSensor) HassSensor {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hassSensors[sensor.UniqueID] = sensor
	return sensor
}

func (c *Client) announce(sensor HassSensor) {
	payload, err := json.Marshal(sensor)
	if err != nil {
		slog.Error("json marshal error", "error", err, "module", "mqtt", "sensor", sensor.UniqueID)
		return
	}
	c.Publish(sensor.configTopic, string(payload), true)
}

func (c *Client) publishState(uniqueID, state string) error {
	c.mu.Lock()
	sensor, ok := c.hassSensors[uniqueID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("sensor not found: %s", uniqueID)
	}
	c.Publish(sensor.StateTopic, state, false)
	return nil
}

func slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}
