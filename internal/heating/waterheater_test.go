package heating

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/vicare"
)

type fakeDHW struct {
	storage, target float64
	mode            string
	noMode          bool
	writes          []call
}

func (f *fakeDHW) DHWStorageTemperature(context.Context) (float64, error) { return f.storage, nil }
func (f *fakeDHW) DHWTargetTemperature(context.Context) (float64, error)  { return f.target, nil }
func (f *fakeDHW) SetDHWTemperature(_ context.Context, t float64) error {
	f.writes = append(f.writes, call{"SetDHWTemperature", []any{t}})
	f.target = t
	return nil
}
func (f *fakeDHW) DHWActiveMode(context.Context) (string, error) {
	if f.noMode {
		return "", vicare.ErrNotSupported
	}
	return f.mode, nil
}
func (f *fakeDHW) SetDHWMode(_ context.Context, mode string) error {
	if f.noMode {
		return vicare.ErrNotSupported
	}
	f.writes = append(f.writes, call{"SetDHWMode", []any{mode}})
	f.mode = mode
	return nil
}

func newWaterHeater(t *testing.T, dhw *fakeDHW, circuit ModeAPI) *WaterHeater {
	t.Helper()
	log := &nopLogger{}
	b := entity.NewBuilder(log, entity.NewPoller(log, true))
	w, ok := NewWaterHeater(context.Background(), b, entity.Target{DeviceID: "1/gw/0"}, dhw, circuit)
	if !ok {
		t.Fatal("water heater not created")
	}
	if _, err := w.Update(context.Background()); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWaterHeater_Update(t *testing.T) {
	w := newWaterHeater(t, &fakeDHW{storage: 47.2, target: 50, mode: "dhwAndHeating"}, nil)
	st, _ := w.State()
	if st.Value != 47.2 || st.Target == nil || *st.Target != 50 {
		t.Errorf("value/target = %v/%v", st.Value, st.Target)
	}
	if st.Mode != OperationOn {
		t.Errorf("Mode = %q, want on", st.Mode)
	}
	if st.Attributes[AttrMinTemp] != WaterMinTemp || st.Attributes[AttrMaxTemp] != WaterMaxTemp {
		t.Errorf("limits = %v", st.Attributes)
	}
}

func TestWaterHeater_ModeFromCircuit(t *testing.T) {
	c := newFakeCircuit()
	c.mode = "heating"
	dhw := &fakeDHW{storage: 40, target: 45, noMode: true}
	w := newWaterHeater(t, dhw, c)
	st, _ := w.State()
	if st.Mode != OperationOff {
		t.Errorf("Mode = %q, want off", st.Mode)
	}

	if err := w.SetOperationMode(context.Background(), OperationOn); err != nil {
		t.Fatal(err)
	}
	if c.mode != "dhw" {
		t.Errorf("circuit mode = %q, want dhw", c.mode)
	}
}

func TestWaterHeater_SetOperationMode(t *testing.T) {
	dhw := &fakeDHW{target: 50, mode: "dhw"}
	w := newWaterHeater(t, dhw, nil)
	if err := w.SetOperationMode(context.Background(), OperationOff); err != nil {
		t.Fatal(err)
	}
	if dhw.mode != "standby" {
		t.Errorf("mode = %q, want standby", dhw.mode)
	}
	if err := w.SetOperationMode(context.Background(), "eco"); !errors.Is(err, ErrInvalidOperationMode) {
		t.Errorf("err = %v, want ErrInvalidOperationMode", err)
	}
}

func TestWaterHeater_SetTemperature(t *testing.T) {
	tests := []struct {
		name    string
		temp    float64
		wantErr error
	}{
		{"too low", 9, ErrInvalidTemperature},
		{"too high", 61, ErrInvalidTemperature},
		{"valid", 55, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dhw := &fakeDHW{target: 50, mode: "dhw"}
			w := newWaterHeater(t, dhw, nil)
			err := w.Execute(context.Background(), entity.Command{
				Name:   CommandSetTemperature,
				Params: map[string]any{"temperature": tt.temp},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if len(dhw.writes) != 0 {
					t.Errorf("writes = %v, want none", dhw.writes)
				}
				return
			}
			st, _ := w.State()
			if *st.Target != tt.temp {
				t.Errorf("Target = %v, want %v", *st.Target, tt.temp)
			}
		})
	}
}

type fakeActuator struct {
	room, target float64
}

func (f *fakeActuator) RoomTemperature(context.Context) (float64, error)           { return f.room, nil }
func (f *fakeActuator) ActuatorTargetTemperature(context.Context) (float64, error) { return f.target, nil }
func (f *fakeActuator) SetActuatorTargetTemperature(_ context.Context, t float64) error {
	f.target = t
	return nil
}

func TestThermostat(t *testing.T) {
	log := &nopLogger{}
	b := entity.NewBuilder(log, entity.NewPoller(log, true))
	act := &fakeActuator{room: 19.5, target: 21}
	th, ok := NewThermostat(context.Background(), b, entity.Target{DeviceID: "1/gw/RA1"}, act)
	if !ok {
		t.Fatal("thermostat not created")
	}
	ctx := context.Background()
	if _, err := th.Update(ctx); err != nil {
		t.Fatal(err)
	}
	st, _ := th.State()
	if st.Value != 19.5 || *st.Target != 21 || st.Mode != string(HVACAuto) {
		t.Errorf("state = %+v", st)
	}

	if err := th.Execute(ctx, entity.Command{Name: CommandSetTemperature, Params: map[string]any{"temperature": 22.0}}); err != nil {
		t.Fatal(err)
	}
	if act.target != 22 {
		t.Errorf("actuator target = %v, want 22", act.target)
	}
	err := th.Execute(ctx, entity.Command{Name: CommandSetHVACMode, Params: map[string]any{"hvac_mode": "off"}})
	if !errors.Is(err, ErrInvalidHVACMode) {
		t.Errorf("err = %v, want ErrInvalidHVACMode", err)
	}
}
