package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/vicare-bridge/internal/vicare"
	"github.com/nerrad567/vicare-bridge/internal/vicare/vicaretest"
)

func TestValidate(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestKeys_Scopes(t *testing.T) {
	keys := Keys()
	for _, scope := range []Scope{ScopeDevice, ScopeCircuit, ScopeBurner, ScopeCompressor} {
		if len(keys[scope]) == 0 {
			t.Errorf("scope %s has no descriptors", scope)
		}
	}
	if got := len(CompressorSensors); got != 7 {
		t.Errorf("compressor sensors = %d, want 7", got)
	}
}

func TestMapUnit(t *testing.T) {
	tests := []struct {
		vendor    string
		wantUnit  string
		wantClass string
		wantOK    bool
	}{
		{vicare.UnitKilowattHour, UnitKWh, ClassEnergy, true},
		{vicare.UnitCubicMeter, UnitCubicMeter, ClassGas, true},
		{vicare.UnitCelsius, UnitCelsius, ClassTemperature, true},
		{"furlong", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			u, c, ok := MapUnit(tt.vendor)
			if u != tt.wantUnit || c != tt.wantClass || ok != tt.wantOK {
				t.Errorf("MapUnit(%q) = %q, %q, %v", tt.vendor, u, c, ok)
			}
		})
	}
}

func find[H any](t *testing.T, descs []Descriptor[H], key string) Descriptor[H] {
	t.Helper()
	for _, d := range descs {
		if d.Key == key {
			return d
		}
	}
	t.Fatalf("descriptor %q not found", key)
	return Descriptor[H]{}
}

func TestDescriptors_ReadThroughHandles(t *testing.T) {
	srv := vicaretest.NewServer(t)
	srv.AddDevice(1, "gw", "0", "E3", nil, vicaretest.Boiler()...)
	client, err := vicare.NewClient(vicare.Options{BaseURL: srv.URL, HTTPClient: srv.Client(), CacheDuration: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	d := vicare.NewDevice(client, "1", "gw", "0", "E3")
	ctx := context.Background()

	outside := find(t, DeviceSensors, "outside_temperature")
	if v, err := outside.Get(d, ctx); err != nil || v != 8.5 {
		t.Errorf("outside = %v, %v", v, err)
	}

	gasMonth := find(t, DeviceSensors, "gas_consumption_heating_this_month")
	if v, err := gasMonth.Get(d, ctx); err != nil || v != 30.1 {
		t.Errorf("gas month = %v, %v", v, err)
	}
	if u, err := gasMonth.UnitOf(d, ctx); err != nil || u != vicare.UnitCubicMeter {
		t.Errorf("gas unit = %q, %v", u, err)
	}

	solar := find(t, DeviceSensors, "solar_collector_temperature")
	if _, err := solar.Get(d, ctx); !errors.Is(err, vicare.ErrNotSupported) {
		t.Errorf("solar err = %v, want ErrNotSupported", err)
	}

	burner := &vicare.Burner{Device: d, ID: "0"}
	starts := find(t, BurnerSensors, "burner_starts")
	if v, err := starts.Get(burner, ctx); err != nil || v != 41020 {
		t.Errorf("burner starts = %v, %v", v, err)
	}
}

func TestSummarySensors(t *testing.T) {
	srv := vicaretest.NewServer(t)
	features := append(vicaretest.Boiler(),
		vicaretest.Summary("heating.power.consumption.summary.heating", "kilowattHour", 4.5, 120, 1480, 31),
		vicaretest.Summary("heating.power.consumption.summary.dhw", "kilowattHour", 1.5, 40, 510, 10.5),
	)
	srv.AddDevice(1, "gw", "0", "E3", nil, features...)
	client, err := vicare.NewClient(vicare.Options{BaseURL: srv.URL, HTTPClient: srv.Client(), CacheDuration: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	d := vicare.NewDevice(client, "1", "gw", "0", "E3")
	ctx := context.Background()

	tests := []struct {
		key  string
		want float64
		unit string
	}{
		{"gas_summary_consumption_heating_currentday", 1.1, vicare.UnitCubicMeter},
		{"gas_summary_consumption_heating_currentmonth", 29.4, vicare.UnitCubicMeter},
		{"gas_summary_consumption_heating_currentyear", 405.2, vicare.UnitCubicMeter},
		{"hotwater_gas_summary_consumption_heating_currentday", 0.3, vicare.UnitCubicMeter},
		{"hotwater_gas_summary_consumption_heating_currentmonth", 8.2, vicare.UnitCubicMeter},
		{"hotwater_gas_summary_consumption_heating_currentyear", 96.5, vicare.UnitCubicMeter},
		{"hotwater_gas_summary_consumption_heating_lastsevendays", 2.1, vicare.UnitCubicMeter},
		{"energy_summary_consumption_heating_currentday", 4.5, vicare.UnitKilowattHour},
		{"energy_summary_consumption_heating_currentmonth", 120, vicare.UnitKilowattHour},
		{"energy_summary_consumption_heating_currentyear", 1480, vicare.UnitKilowattHour},
		{"energy_summary_consumption_heating_lastsevendays", 31, vicare.UnitKilowattHour},
		{"energy_dhw_summary_consumption_heating_currentday", 1.5, vicare.UnitKilowattHour},
		{"energy_dhw_summary_consumption_heating_currentmonth", 40, vicare.UnitKilowattHour},
		{"energy_dhw_summary_consumption_heating_currentyear", 510, vicare.UnitKilowattHour},
		{"energy_summary_dhw_consumption_heating_lastsevendays", 10.5, vicare.UnitKilowattHour},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			desc := find(t, DeviceSensors, tt.key)
			if desc.StateClass != StateTotalIncreasing {
				t.Errorf("state class = %q", desc.StateClass)
			}
			if v, err := desc.Get(d, ctx); err != nil || v != tt.want {
				t.Errorf("Get = %v, %v; want %v", v, err, tt.want)
			}
			if u, err := desc.UnitOf(d, ctx); err != nil || u != tt.unit {
				t.Errorf("UnitOf = %q, %v; want %q", u, err, tt.unit)
			}
		})
	}

	// Heating gas has no seven-day sensor.
	for _, desc := range DeviceSensors {
		if desc.Key == "gas_summary_consumption_heating_lastsevendays" {
			t.Error("unexpected gas_summary_consumption_heating_lastsevendays sensor")
		}
	}
}
