package vicare

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/vicare-bridge/internal/catalog"
	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/heating"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/config"
	vc "github.com/nerrad567/vicare-bridge/internal/vicare"
)

// discoveryNamespace seeds the stable object ids of discovery configs.
var discoveryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:vicare-bridge:entity"))

// Home Assistant component names.
const (
	componentSensor       = "sensor"
	componentNumber       = "number"
	componentBinarySensor = "binary_sensor"
	componentSwitch       = "switch"
	componentButton       = "button"
	componentClimate      = "climate"
	componentWaterHeater  = "water_heater"
)

// Templates over the StateMessage payload.
const (
	tplValue      = "{{ value_json.state.value }}"
	tplTarget     = "{{ value_json.state.target }}"
	tplMode       = "{{ value_json.state.mode }}"
	tplPreset     = "{{ value_json.state.preset | default('none') }}"
	tplAction     = "{{ value_json.state.action }}"
	tplOnOff      = "{{ 'ON' if value_json.state.value else 'OFF' }}"
	tplAttributes = "{{ value_json.state.attributes | tojson }}"
	tplAvailable  = "{{ value_json.status }}"
)

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// discoveryConfig is the union of the config keys the bridge publishes.
// Unused keys are omitted per component.
type discoveryConfig struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	ObjectID            string          `json:"object_id,omitempty"`
	Device              discoveryDevice `json:"device"`
	AvailabilityTopic   string          `json:"availability_topic"`
	AvailabilityTpl     string          `json:"availability_template"`
	PayloadAvailable    string          `json:"payload_available"`
	PayloadNotAvailable string          `json:"payload_not_available"`

	StateTopic        string `json:"state_topic,omitempty"`
	ValueTemplate     string `json:"value_template,omitempty"`
	JSONAttrTopic     string `json:"json_attributes_topic,omitempty"`
	JSONAttrTemplate  string `json:"json_attributes_template,omitempty"`
	CommandTopic      string `json:"command_topic,omitempty"`
	CommandTemplate   string `json:"command_template,omitempty"`
	PayloadOn         string `json:"payload_on,omitempty"`
	PayloadOff        string `json:"payload_off,omitempty"`
	PayloadPress      string `json:"payload_press,omitempty"`
	StateOn           string `json:"state_on,omitempty"`
	StateOff          string `json:"state_off,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	EntityCategory    string `json:"entity_category,omitempty"`
	Icon              string `json:"icon,omitempty"`

	CurrentTempTopic    string   `json:"current_temperature_topic,omitempty"`
	CurrentTempTemplate string   `json:"current_temperature_template,omitempty"`
	TempStateTopic      string   `json:"temperature_state_topic,omitempty"`
	TempStateTemplate   string   `json:"temperature_state_template,omitempty"`
	TempCommandTopic    string   `json:"temperature_command_topic,omitempty"`
	TempCommandTemplate string   `json:"temperature_command_template,omitempty"`
	ModeStateTopic      string   `json:"mode_state_topic,omitempty"`
	ModeStateTemplate   string   `json:"mode_state_template,omitempty"`
	ModeCommandTopic    string   `json:"mode_command_topic,omitempty"`
	ModeCommandTemplate string   `json:"mode_command_template,omitempty"`
	Modes               []string `json:"modes,omitempty"`
	PresetStateTopic    string   `json:"preset_mode_state_topic,omitempty"`
	PresetValueTemplate string   `json:"preset_mode_value_template,omitempty"`
	PresetCommandTopic  string   `json:"preset_mode_command_topic,omitempty"`
	PresetCmdTemplate   string   `json:"preset_mode_command_template,omitempty"`
	PresetModes         []string `json:"preset_modes,omitempty"`
	ActionTopic         string   `json:"action_topic,omitempty"`
	ActionTemplate      string   `json:"action_template,omitempty"`
	MinTemp             *float64 `json:"min_temp,omitempty"`
	MaxTemp             *float64 `json:"max_temp,omitempty"`
	TempStep            *float64 `json:"temp_step,omitempty"`
	Precision           *float64 `json:"precision,omitempty"`
	TemperatureUnit     string   `json:"temperature_unit,omitempty"`
}

// ObjectID returns the stable discovery object id of an entity.
func ObjectID(entityID string) string {
	return uuid.NewSHA1(discoveryNamespace, []byte(entityID)).String()
}

// nodeID derives a discovery node id from a device id. Home Assistant
// accepts only [a-zA-Z0-9_-] here.
func nodeID(deviceID string) string {
	return "vicare_" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, deviceID)
}

func (b *Bridge) publishDiscovery() {
	b.mu.RLock()
	devices := b.devices
	b.mu.RUnlock()

	published := 0
	for _, de := range devices {
		for _, e := range de.entities {
			component, cfg, ok := b.discoveryFor(de.device, e)
			if !ok {
				continue
			}
			payload, err := json.Marshal(cfg)
			if err != nil {
				b.logger.Error("failed to marshal discovery config", "entity_id", e.Info().ID, "error", err)
				continue
			}
			topic := b.topics.Discovery(component, nodeID(de.id), cfg.UniqueID)
			if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
				b.logger.Warn("failed to publish discovery config", "entity_id", e.Info().ID, "error", err)
				continue
			}
			published++
		}
	}
	b.logger.Info("published discovery configs", "count", published)
}

// discoveryFor builds the Home Assistant config for one entity.
func (b *Bridge) discoveryFor(dev *vc.Device, e entity.Entity) (string, discoveryConfig, bool) {
	info := e.Info()
	state := b.topics.State(info.ID)
	command := b.topics.Command(info.ID)

	cfg := discoveryConfig{
		Name:     strings.TrimSpace(strings.TrimPrefix(info.Name, entity.DefaultNamePrefix)),
		UniqueID: ObjectID(info.ID),
		ObjectID: nodeID(info.DeviceID) + "_" + info.Key + componentSuffix(info),
		Device: discoveryDevice{
			Identifiers:  []string{nodeID(info.DeviceID)},
			Name:         deviceName(dev),
			Manufacturer: "Viessmann",
			Model:        dev.Model,
			SerialNumber: dev.GatewaySerial,
			SWVersion:    b.cfg.Version,
		},
		AvailabilityTopic:   b.topics.Status(),
		AvailabilityTpl:     tplAvailable,
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
		Icon:                info.Icon,
	}
	if info.Category == catalog.CategoryConfig || info.Category == catalog.CategoryDiagnostic {
		cfg.EntityCategory = info.Category
	}

	switch info.Platform {
	case entity.PlatformSensor:
		cfg.StateTopic, cfg.ValueTemplate = state, tplValue
		cfg.UnitOfMeasurement, cfg.DeviceClass, cfg.StateClass = info.Unit, info.DeviceClass, info.StateClass
		if info.Writable {
			cfg.CommandTopic = command
			cfg.CommandTemplate = commandTemplate(entity.CommandSetValue, "value", false)
			cfg.StateClass = ""
			return componentNumber, cfg, true
		}
		return componentSensor, cfg, true

	case entity.PlatformBinarySensor:
		cfg.StateTopic, cfg.ValueTemplate = state, tplOnOff
		cfg.DeviceClass = info.DeviceClass
		return componentBinarySensor, cfg, true

	case entity.PlatformSwitch:
		cfg.StateTopic, cfg.ValueTemplate = state, tplOnOff
		cfg.StateOn, cfg.StateOff = "ON", "OFF"
		cfg.CommandTopic = command
		cfg.PayloadOn = `{"command":"` + entity.CommandTurnOn + `"}`
		cfg.PayloadOff = `{"command":"` + entity.CommandTurnOff + `"}`
		return componentSwitch, cfg, true

	case entity.PlatformButton:
		cfg.CommandTopic = command
		cfg.PayloadPress = `{"command":"` + entity.CommandPress + `"}`
		return componentButton, cfg, true

	case entity.PlatformClimate:
		b.climateDiscovery(&cfg, e, state, command)
		return componentClimate, cfg, true

	case entity.PlatformWaterHeater:
		b.waterHeaterDiscovery(&cfg, state, command)
		return componentWaterHeater, cfg, true
	}
	return "", cfg, false
}

func (b *Bridge) climateDiscovery(cfg *discoveryConfig, e entity.Entity, state, command string) {
	cfg.CurrentTempTopic, cfg.CurrentTempTemplate = state, tplValue
	cfg.TempStateTopic, cfg.TempStateTemplate = state, tplTarget
	cfg.TempCommandTopic = command
	cfg.TempCommandTemplate = commandTemplate(heating.CommandSetTemperature, "temperature", false)
	cfg.ModeStateTopic, cfg.ModeStateTemplate = state, tplMode
	cfg.ModeCommandTopic = command
	cfg.ModeCommandTemplate = commandTemplate(heating.CommandSetHVACMode, "hvac_mode", true)
	cfg.ActionTopic, cfg.ActionTemplate = state, tplAction
	cfg.JSONAttrTopic, cfg.JSONAttrTemplate = state, tplAttributes
	cfg.TemperatureUnit = "C"
	cfg.Precision = entity.Float(0.1)
	cfg.MinTemp = entity.Float(heating.HeatingMinTemp)
	cfg.MaxTemp = entity.Float(heating.HeatingMaxTemp)
	cfg.TempStep = entity.Float(heating.HeatingStep)

	// Mode lists are only known once the circuit has been read.
	cfg.Modes = []string{string(heating.HVACAuto)}
	if st, ok := e.State(); ok {
		if modes, ok := st.Attributes[heating.AttrHVACModes].([]heating.HVACMode); ok && len(modes) > 0 {
			cfg.Modes = cfg.Modes[:0]
			for _, m := range modes {
				cfg.Modes = append(cfg.Modes, string(m))
			}
		}
	}
	if e.Info().Key == "thermostat" {
		return
	}
	cfg.PresetStateTopic, cfg.PresetValueTemplate = state, tplPreset
	cfg.PresetCommandTopic = command
	cfg.PresetCmdTemplate = commandTemplate(heating.CommandSetPresetMode, "preset_mode", true)
	for _, p := range heating.Presets() {
		if p != heating.PresetNone {
			cfg.PresetModes = append(cfg.PresetModes, string(p))
		}
	}
}

func (b *Bridge) waterHeaterDiscovery(cfg *discoveryConfig, state, command string) {
	on := waterHeaterOnMode(b.cfg.HeatingType)
	cfg.CurrentTempTopic, cfg.CurrentTempTemplate = state, tplValue
	cfg.TempStateTopic, cfg.TempStateTemplate = state, tplTarget
	cfg.TempCommandTopic = command
	cfg.TempCommandTemplate = commandTemplate(heating.CommandSetTemperature, "temperature", false)
	cfg.ModeStateTopic = state
	cfg.ModeStateTemplate = "{{ 'off' if value_json.state.mode == '" + heating.OperationOff + "' else '" + on + "' }}"
	cfg.ModeCommandTopic = command
	cfg.ModeCommandTemplate = `{"command":"` + heating.CommandSetOperationMode +
		`","parameters":{"operation_mode":"{{ '` + heating.OperationOff + `' if value == 'off' else '` +
		heating.OperationOn + `' }}"}}`
	cfg.Modes = []string{"off", on}
	cfg.JSONAttrTopic, cfg.JSONAttrTemplate = state, tplAttributes
	cfg.TemperatureUnit = "C"
	cfg.Precision = entity.Float(1)
	cfg.MinTemp = entity.Float(heating.WaterMinTemp)
	cfg.MaxTemp = entity.Float(heating.WaterMaxTemp)
}

// waterHeaterOnMode picks the Home Assistant water heater mode shown for
// "hot water on". Home Assistant has no plain "on" mode.
func waterHeaterOnMode(heatingType string) string {
	switch heatingType {
	case config.HeatingTypeHeatPump:
		return "heat_pump"
	case config.HeatingTypeGas, config.HeatingTypeFuelCell:
		return "gas"
	default:
		return "performance"
	}
}

func commandTemplate(command, param string, quoted bool) string {
	v := "{{ value }}"
	if quoted {
		v = `"{{ value }}"`
	}
	return `{"command":"` + command + `","parameters":{"` + param + `":` + v + `}}`
}

func componentSuffix(info entity.Info) string {
	if info.Scope == "" || info.Scope == string(catalog.ScopeDevice) {
		return ""
	}
	return "_" + info.Scope + info.Index
}
