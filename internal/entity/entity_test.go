package entity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/vicare-bridge/internal/catalog"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vicare-bridge/internal/vicare"
)

type logEntry struct {
	level string
	msg   string
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level, msg})
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func (l *recordingLogger) last() logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return logEntry{}
	}
	return l.entries[len(l.entries)-1]
}

// fakeHandle is a handle whose accessors count calls and return canned
// results.
type fakeHandle struct {
	mu    sync.Mutex
	calls int
	value float64
	on    bool
	err   error
	wrote []string
}

func (h *fakeHandle) set(v float64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value, h.err = v, err
}

func getValue(h *fakeHandle, _ context.Context) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.value, h.err
}

func getOn(h *fakeHandle, _ context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.on, h.err
}

func write(name string) func(*fakeHandle, context.Context) error {
	return func(h *fakeHandle, _ context.Context) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.wrote = append(h.wrote, name)
		return nil
	}
}

func testDescriptor() catalog.Descriptor[*fakeHandle] {
	return catalog.Descriptor[*fakeHandle]{
		Key:         "supply_temperature",
		Name:        "Supply Temperature",
		Unit:        catalog.UnitCelsius,
		DeviceClass: catalog.ClassTemperature,
		Get:         getValue,
	}
}

func newTestBuilder(log *recordingLogger, debug bool) *Builder {
	return NewBuilder(log, NewPoller(log, debug))
}

var target = Target{DeviceID: DeviceID("1234", "7571381681420106", "0")}

func TestBuildSensor_ProbeOnce(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		err       error
		wantBuilt bool
		wantLevel string
	}{
		{"value", 21.5, nil, true, "debug"},
		{"zero value", 0, nil, true, "debug"},
		{"unsupported", 0, fmt.Errorf("wrapped: %w", vicare.ErrNotSupported), false, "info"},
		{"server error", 0, &vicare.APIError{Kind: vicare.ErrServer, StatusCode: 502}, false, "warn"},
		{"rate limit", 0, &vicare.APIError{Kind: vicare.ErrRateLimit, StatusCode: 429}, false, "warn"},
		{"decode error", 0, &vicare.APIError{Kind: vicare.ErrInvalidData}, false, "warn"},
		{"connection", 0, &vicare.APIError{Kind: vicare.ErrConnection}, false, "warn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			h := &fakeHandle{value: tt.value, err: tt.err}

			s, ok := BuildSensor(context.Background(), newTestBuilder(log, false), target, testDescriptor(), h)
			if ok != tt.wantBuilt {
				t.Fatalf("built = %v, want %v", ok, tt.wantBuilt)
			}
			if h.calls != 1 {
				t.Errorf("read accessor called %d times, want 1", h.calls)
			}
			if got := log.last().level; got != tt.wantLevel {
				t.Errorf("log level = %q, want %q", got, tt.wantLevel)
			}
			if !tt.wantBuilt {
				if s != nil {
					t.Error("skipped entity returned non-nil")
				}
				return
			}
			st, ok := s.State()
			if !ok || st.Value != tt.value {
				t.Errorf("seeded state = %+v, %v", st, ok)
			}
			if st.Unit != catalog.UnitCelsius {
				t.Errorf("unit = %q", st.Unit)
			}
		})
	}
}

func TestSensor_UpdateReplacesSnapshot(t *testing.T) {
	log := &recordingLogger{}
	h := &fakeHandle{value: 40}
	s, ok := BuildSensor(context.Background(), newTestBuilder(log, false), target, testDescriptor(), h)
	if !ok {
		t.Fatal("not built")
	}
	before, _ := s.State()

	h.set(42.5, nil)
	out, err := s.Update(context.Background())
	if err != nil || out != OutcomeUpdated {
		t.Fatalf("Update = %v, %v", out, err)
	}
	after, _ := s.State()
	if after == before {
		t.Fatal("snapshot pointer was not replaced")
	}
	if before.Value != 40.0 {
		t.Errorf("previous snapshot mutated: %v", before.Value)
	}
	if after.Value != 42.5 {
		t.Errorf("Value = %v, want 42.5", after.Value)
	}
}

func TestSensor_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	ctx := context.Background()
	h := &fakeHandle{}
	desc := testDescriptor()
	// Unit follows the parity of the value so a torn snapshot would pair
	// the unit of one write with the device class of another.
	desc.UnitOf = func(h *fakeHandle, _ context.Context) (string, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if int(h.value)%2 == 0 {
			return vicare.UnitCubicMeter, nil
		}
		return vicare.UnitKilowattHour, nil
	}
	desc.Set = func(*fakeHandle, context.Context, float64) error { return nil }
	s, ok := BuildSensor(ctx, newTestBuilder(&recordingLogger{}, false), target, desc, h)
	if !ok {
		t.Fatal("not built")
	}

	classOf := map[string]string{
		catalog.UnitCelsius:    catalog.ClassTemperature,
		catalog.UnitCubicMeter: catalog.ClassGas,
		catalog.UnitKWh:        catalog.ClassEnergy,
	}
	check := func(st *State) {
		if _, isFloat := st.Value.(float64); !isFloat {
			t.Errorf("value %v (%T) is not a float64", st.Value, st.Value)
		}
		if want, known := classOf[st.Unit]; !known || st.DeviceClass != want {
			t.Errorf("unit %q paired with class %q", st.Unit, st.DeviceClass)
		}
		if st.UpdatedAt.IsZero() {
			t.Error("snapshot without timestamp")
		}
	}

	const rounds = 500
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			h.set(float64(i), nil)
			if _, err := s.Update(ctx); err != nil {
				t.Errorf("Update: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			cmd := Command{Name: CommandSetValue, Params: map[string]any{"value": float64(-i)}}
			if err := s.Execute(ctx, cmd); err != nil {
				t.Errorf("Execute: %v", err)
				return
			}
		}
	}()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	reads := 0
	for {
		select {
		case <-done:
			st, ok := s.State()
			if !ok {
				t.Fatal("no state after writers finished")
			}
			check(st)
			if reads == 0 {
				t.Log("writers finished before the first concurrent read")
			}
			return
		default:
		}
		if st, ok := s.State(); ok {
			check(st)
			reads++
		}
	}
}

func TestSensor_FailedUpdateKeepsState(t *testing.T) {
	faults := []error{
		&vicare.APIError{Kind: vicare.ErrConnection},
		&vicare.APIError{Kind: vicare.ErrTimeout},
		&vicare.APIError{Kind: vicare.ErrRateLimit},
		&vicare.APIError{Kind: vicare.ErrInvalidData},
		&vicare.FeatureError{Feature: "f", Kind: vicare.ErrInvalidData},
		&vicare.APIError{Kind: vicare.ErrServer},
		vicare.ErrNotSupported,
	}
	for _, fault := range faults {
		t.Run(fault.Error(), func(t *testing.T) {
			log := &recordingLogger{}
			h := &fakeHandle{value: 19}
			s, _ := BuildSensor(context.Background(), newTestBuilder(log, false), target, testDescriptor(), h)
			before, _ := s.State()

			h.set(0, fault)
			for range 2 {
				out, err := s.Update(context.Background())
				if err != nil {
					t.Fatalf("Update returned %v", err)
				}
				if out != OutcomeFailed && out != OutcomeSkippedUnsupported {
					t.Fatalf("outcome = %v", out)
				}
			}
			after, ok := s.State()
			if !ok || after != before {
				t.Error("state changed after failed update")
			}
			if !s.Available() {
				t.Error("entity became unavailable")
			}
		})
	}
}

func TestPoller_DistinctMessages(t *testing.T) {
	faults := map[string]error{
		"connection":   &vicare.APIError{Kind: vicare.ErrConnection},
		"rate":         &vicare.APIError{Kind: vicare.ErrRateLimit},
		"decode":       &vicare.APIError{Kind: vicare.ErrInvalidData},
		"invalid data": &vicare.FeatureError{Kind: vicare.ErrInvalidData},
		"server":       &vicare.APIError{Kind: vicare.ErrServer},
	}
	seen := map[string]string{}
	for name, fault := range faults {
		log := &recordingLogger{}
		p := NewPoller(log, false)
		out, err := p.Run(context.Background(), "e", func(context.Context) error { return fault })
		if out != OutcomeFailed || err != nil {
			t.Fatalf("%s: Run = %v, %v", name, out, err)
		}
		msg := log.last().msg
		if other, dup := seen[msg]; dup {
			t.Errorf("%s and %s share message %q", name, other, msg)
		}
		seen[msg] = name
	}
}

func TestPoller_UnexpectedErrorDebugMode(t *testing.T) {
	boom := errors.New("boom")

	log := &recordingLogger{}
	out, err := NewPoller(log, false).Run(context.Background(), "e", func(context.Context) error { return boom })
	if out != OutcomeFailed || err != nil {
		t.Errorf("non-debug: Run = %v, %v", out, err)
	}
	if log.count("error") != 1 {
		t.Errorf("error logs = %d, want 1", log.count("error"))
	}

	out, err = NewPoller(&recordingLogger{}, true).Run(context.Background(), "e", func(context.Context) error { return boom })
	if out != OutcomeFailed || !errors.Is(err, boom) {
		t.Errorf("debug: Run = %v, %v", out, err)
	}
}

func TestPoller_DebugLevelLogger(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", true},
		{"info", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			base := logging.NewWithWriter(config.LoggingConfig{Level: tt.level, Format: "text"}, "test", io.Discard)
			dedup := logging.NewDeduplicator(base, time.Hour)

			out, err := NewPoller(dedup, false).Run(context.Background(), "e", func(context.Context) error { return boom })
			if out != OutcomeFailed {
				t.Errorf("outcome = %v, want failed", out)
			}
			if got := errors.Is(err, boom); got != tt.wantErr {
				t.Errorf("returned fault = %v, want %v (err=%v)", got, tt.wantErr, err)
			}
		})
	}
}

func TestPoller_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	log := &recordingLogger{}
	out, err := NewPoller(log, false).Run(ctx, "e", func(ctx context.Context) error { return ctx.Err() })
	if out != OutcomeFailed || !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, %v", out, err)
	}
	if log.count("error") != 0 {
		t.Error("canceled poll was logged as an error")
	}
}

func TestSwitch_CooldownSuppressesPoll(t *testing.T) {
	log := &recordingLogger{}
	b := newTestBuilder(log, false)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	h := &fakeHandle{on: false}
	desc := catalog.SwitchDescriptor[*fakeHandle]{
		Key:     "dhw_onetimecharge",
		Name:    "One-time charge",
		Get:     getOn,
		Enable:  write("enable"),
		Disable: write("disable"),
	}
	sw, ok := BuildSwitch(context.Background(), b, target, desc, h)
	if !ok {
		t.Fatal("not built")
	}

	if err := sw.Execute(context.Background(), Command{Name: CommandTurnOn}); err != nil {
		t.Fatalf("turn_on: %v", err)
	}
	st, _ := sw.State()
	if st.Value != true {
		t.Fatalf("optimistic state = %v, want true", st.Value)
	}

	// The API still reports off; the poll inside the cooldown must not
	// revert the optimistic state.
	calls := h.calls
	now = now.Add(4 * time.Second)
	out, err := sw.Update(context.Background())
	if err != nil || out != OutcomeIdle {
		t.Fatalf("Update in cooldown = %v, %v", out, err)
	}
	if h.calls != calls {
		t.Error("read accessor called during cooldown")
	}
	if st, _ := sw.State(); st.Value != true {
		t.Error("state reverted during cooldown")
	}

	now = now.Add(2 * time.Second)
	if out, _ := sw.Update(context.Background()); out != OutcomeUpdated {
		t.Fatalf("Update after cooldown = %v", out)
	}
	if st, _ := sw.State(); st.Value != false {
		t.Error("state not refreshed after cooldown")
	}

	if err := sw.Execute(context.Background(), Command{Name: "press"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("press err = %v", err)
	}
	if strings.Join(h.wrote, ",") != "enable" {
		t.Errorf("writes = %v", h.wrote)
	}
}

func TestButton(t *testing.T) {
	log := &recordingLogger{}
	h := &fakeHandle{}
	desc := catalog.ButtonDescriptor[*fakeHandle]{
		Key:   "activate_onetimecharge",
		Name:  "Activate one-time charge",
		Probe: getOn,
		Press: write("press"),
	}
	btn, ok := BuildButton(context.Background(), newTestBuilder(log, false), target, desc, h)
	if !ok {
		t.Fatal("not built")
	}
	if out, err := btn.Update(context.Background()); out != OutcomeIdle || err != nil {
		t.Errorf("Update = %v, %v", out, err)
	}
	if err := btn.Execute(context.Background(), Command{Name: CommandPress}); err != nil {
		t.Fatalf("press: %v", err)
	}
	if len(h.wrote) != 1 {
		t.Errorf("writes = %v", h.wrote)
	}

	h2 := &fakeHandle{err: vicare.ErrNotSupported}
	if _, ok := BuildButton(context.Background(), newTestBuilder(log, false), target, desc, h2); ok {
		t.Error("unsupported button was built")
	}
}

func TestSensor_SetValue(t *testing.T) {
	log := &recordingLogger{}
	h := &fakeHandle{value: 50}
	var written float64
	desc := testDescriptor()
	desc.Set = func(_ *fakeHandle, _ context.Context, v float64) error {
		written = v
		return nil
	}
	s, _ := BuildSensor(context.Background(), newTestBuilder(log, false), target, desc, h)
	if !s.Info().Writable {
		t.Fatal("sensor with setter not writable")
	}

	if err := s.Execute(context.Background(), Command{Name: CommandSetValue, Params: map[string]any{"value": 55.0}}); err != nil {
		t.Fatalf("set_value: %v", err)
	}
	if written != 55 {
		t.Errorf("written = %v", written)
	}
	if st, _ := s.State(); st.Value != 55.0 || st.Unit != catalog.UnitCelsius {
		t.Errorf("state = %+v", st)
	}

	err := s.Execute(context.Background(), Command{Name: CommandSetValue, Params: map[string]any{"value": "hot"}})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("bad value err = %v", err)
	}
}

func TestSensor_VendorUnit(t *testing.T) {
	log := &recordingLogger{}
	h := &fakeHandle{value: 3.2}
	desc := testDescriptor()
	desc.Unit, desc.DeviceClass = "", ""
	desc.UnitOf = func(*fakeHandle, context.Context) (string, error) { return vicare.UnitKilowattHour, nil }

	s, _ := BuildSensor(context.Background(), newTestBuilder(log, false), target, desc, h)
	st, _ := s.State()
	if st.Unit != catalog.UnitKWh || st.DeviceClass != catalog.ClassEnergy {
		t.Errorf("unit/class = %q/%q", st.Unit, st.DeviceClass)
	}
}
