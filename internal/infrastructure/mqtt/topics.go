package mqtt

import (
	"fmt"
	"strings"
)

// Default topic roots.
const (
	DefaultPrefix          = "vicare"
	DefaultDiscoveryPrefix = "homeassistant"
)

// Topic categories under the bridge prefix.
const (
	CategoryState   = "state"
	CategoryCommand = "command"
	CategoryAck     = "ack"
	CategoryService = "service"
)

// Topics builds the bridge's MQTT topic names.
//
//	topics := mqtt.Topics{Prefix: "vicare", DiscoveryPrefix: "homeassistant"}
//	topics.State("123/7571/0/outside_temperature")
//	// Returns: "vicare/state/123/7571/0/outside_temperature"
//
// Entity ids may contain "/" and therefore span several topic levels; they
// never contain the "+" or "#" wildcards.
type Topics struct {
	Prefix          string
	DiscoveryPrefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return t.Prefix
}

// State returns the retained state topic for an entity.
func (t Topics) State(entityID string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix(), CategoryState, entityID)
}

// Command returns the command topic for an entity.
func (t Topics) Command(entityID string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix(), CategoryCommand, entityID)
}

// Ack returns the command acknowledgement topic for an entity.
func (t Topics) Ack(entityID string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix(), CategoryAck, entityID)
}

// Service returns the topic for a named service call
// (set_vicare_mode, set_heating_curve).
func (t Topics) Service(name string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix(), CategoryService, name)
}

// Health returns the retained bridge health topic.
func (t Topics) Health() string {
	return t.prefix() + "/health"
}

// Status returns the retained online/offline topic used for the LWT.
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// AllStates matches every entity state topic.
func (t Topics) AllStates() string {
	return fmt.Sprintf("%s/%s/#", t.prefix(), CategoryState)
}

// AllCommands matches every entity command topic.
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/%s/#", t.prefix(), CategoryCommand)
}

// AllServices matches every service topic.
func (t Topics) AllServices() string {
	return fmt.Sprintf("%s/%s/+", t.prefix(), CategoryService)
}

// Discovery returns a Home Assistant MQTT discovery config topic.
//
// Example: homeassistant/sensor/vicare_7571/outside_temperature/config
func (t Topics) Discovery(component, nodeID, objectID string) string {
	root := t.DiscoveryPrefix
	if root == "" {
		root = DefaultDiscoveryPrefix
	}
	return fmt.Sprintf("%s/%s/%s/%s/config", root, component, nodeID, objectID)
}

// Parse splits a bridge topic into its category and the remainder
// (entity id or service name). ok is false for foreign topics.
func (t Topics) Parse(topic string) (category, rest string, ok bool) {
	after, found := strings.CutPrefix(topic, t.prefix()+"/")
	if !found {
		return "", "", false
	}
	category, rest, found = strings.Cut(after, "/")
	if !found || rest == "" {
		return "", "", false
	}
	return category, rest, true
}
