package vicare

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Vendor unit names as reported in feature properties.
const (
	UnitCelsius      = "celsius"
	UnitKilowattHour = "kilowattHour"
	UnitCubicMeter   = "cubicMeter"
	UnitPercent      = "percent"
	UnitHour         = "hour"
	UnitWatt         = "watt"
)

// Feature is one entry of a device's feature list.
type Feature struct {
	Name       string              `json:"feature"`
	IsEnabled  bool                `json:"isEnabled"`
	IsReady    bool                `json:"isReady"`
	Properties map[string]Property `json:"properties"`
	Commands   map[string]Command  `json:"commands"`
	Components []string            `json:"components"`
}

// Property is a typed value attached to a feature.
type Property struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
	Unit  string          `json:"unit,omitempty"`
}

// Command is an executable operation on a feature.
type Command struct {
	URI          string                  `json:"uri"`
	Name         string                  `json:"name"`
	IsExecutable bool                    `json:"isExecutable"`
	Params       map[string]CommandParam `json:"params"`
}

// CommandParam describes one command argument and its constraints.
type CommandParam struct {
	Type        string      `json:"type"`
	Required    bool        `json:"required"`
	Constraints Constraints `json:"constraints"`
}

// Constraints limit a command argument. Numeric bounds are nil when the
// device does not publish them.
type Constraints struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Stepping *float64 `json:"stepping,omitempty"`
	Enum     []string `json:"enum,omitempty"`
}

type featureList struct {
	Data []Feature `json:"data"`
}

// FeatureSet indexes a device's features by name.
type FeatureSet map[string]Feature

func newFeatureSet(features []Feature) FeatureSet {
	set := make(FeatureSet, len(features))
	for _, f := range features {
		set[f.Name] = f
	}
	return set
}

// Lookup returns an enabled feature or ErrNotSupported.
func (s FeatureSet) Lookup(name string) (Feature, error) {
	f, ok := s[name]
	if !ok || !f.IsEnabled {
		return Feature{}, notSupported(name, "")
	}
	return f, nil
}

func (s FeatureSet) property(feature, property string) (Property, error) {
	f, err := s.Lookup(feature)
	if err != nil {
		return Property{}, err
	}
	p, ok := f.Properties[property]
	if !ok || len(p.Value) == 0 || string(p.Value) == "null" {
		return Property{}, notSupported(feature, property)
	}
	return p, nil
}

// Float reads a numeric property.
func (s FeatureSet) Float(feature, property string) (float64, error) {
	p, err := s.property(feature, property)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(p.Value, &v); err != nil {
		return 0, invalidData(feature, property)
	}
	return v, nil
}

// Int reads a numeric property and truncates it.
func (s FeatureSet) Int(feature, property string) (int, error) {
	v, err := s.Float(feature, property)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// String reads a string property.
func (s FeatureSet) String(feature, property string) (string, error) {
	p, err := s.property(feature, property)
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(p.Value, &v); err != nil {
		return "", invalidData(feature, property)
	}
	return v, nil
}

// Bool reads a boolean property.
func (s FeatureSet) Bool(feature, property string) (bool, error) {
	p, err := s.property(feature, property)
	if err != nil {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(p.Value, &v); err != nil {
		return false, invalidData(feature, property)
	}
	return v, nil
}

// Status reads a "status" property and reports whether it equals "on".
func (s FeatureSet) Status(feature string) (bool, error) {
	v, err := s.String(feature, "status")
	if err != nil {
		return false, err
	}
	return v == "on", nil
}

// Strings reads a string array property.
func (s FeatureSet) Strings(feature, property string) ([]string, error) {
	p, err := s.property(feature, property)
	if err != nil {
		return nil, err
	}
	var v []string
	if err := json.Unmarshal(p.Value, &v); err != nil {
		return nil, invalidData(feature, property)
	}
	return v, nil
}

// Series reads element idx of a numeric array property such as a
// consumption history. Index 0 is the current period.
func (s FeatureSet) Series(feature, property string, idx int) (float64, error) {
	p, err := s.property(feature, property)
	if err != nil {
		return 0, err
	}
	var v []float64
	if err := json.Unmarshal(p.Value, &v); err != nil {
		return 0, invalidData(feature, property)
	}
	if idx < 0 || idx >= len(v) {
		return 0, notSupported(feature, property+"["+strconv.Itoa(idx)+"]")
	}
	return v[idx], nil
}

// Unit returns the unit reported on a property.
func (s FeatureSet) Unit(feature, property string) (string, error) {
	p, err := s.property(feature, property)
	if err != nil {
		return "", err
	}
	return p.Unit, nil
}

// Command returns an executable command of a feature.
func (s FeatureSet) Command(feature, command string) (Command, error) {
	f, err := s.Lookup(feature)
	if err != nil {
		return Command{}, err
	}
	c, ok := f.Commands[command]
	if !ok || !c.IsExecutable || c.URI == "" {
		return Command{}, notSupported(feature, command)
	}
	return c, nil
}

// Constraints returns the constraints of one command parameter.
func (s FeatureSet) Constraints(feature, command, param string) (Constraints, error) {
	c, err := s.Command(feature, command)
	if err != nil {
		return Constraints{}, err
	}
	p, ok := c.Params[param]
	if !ok {
		return Constraints{}, notSupported(feature, command+"."+param)
	}
	return p.Constraints, nil
}

// checkNumber validates v against a parameter's published bounds.
func (c Constraints) checkNumber(v float64) error {
	if c.Min != nil && v < *c.Min {
		return fmt.Errorf("%w: %g below minimum %g", ErrInvalidParameter, v, *c.Min)
	}
	if c.Max != nil && v > *c.Max {
		return fmt.Errorf("%w: %g above maximum %g", ErrInvalidParameter, v, *c.Max)
	}
	return nil
}

// checkEnum validates v against a parameter's published enumeration.
func (c Constraints) checkEnum(v string) error {
	if len(c.Enum) == 0 {
		return nil
	}
	for _, e := range c.Enum {
		if e == v {
			return nil
		}
	}
	return fmt.Errorf("%w: %q not in %v", ErrInvalidParameter, v, c.Enum)
}
