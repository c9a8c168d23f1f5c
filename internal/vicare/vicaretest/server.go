// Package vicaretest provides an in-process fake of the ViCare feature API
// for tests.
package vicaretest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Feature is one entry of a fake device's feature list.
type Feature struct {
	Name       string
	Properties map[string]any
	Commands   map[string]map[string]any
	Components []string
	Disabled   bool
}

// RecordedCommand is a command the fake received.
type RecordedCommand struct {
	Feature string
	Command string
	Params  map[string]any
}

type device struct {
	installation int64
	serial       string
	id           string
	model        string
	roles        []string
	features     []*Feature
}

// CommandHook can answer a command with a status other than 200.
// It runs after the command is recorded.
type CommandHook func(cmd RecordedCommand) int

// Server is a fake ViCare API.
type Server struct {
	*httptest.Server

	mu              sync.Mutex
	devices         []*device
	commands        []RecordedCommand
	featureRequests int
	failures        []failure
	hook            CommandHook
}

type failure struct {
	status int
	body   string
}

// NewServer starts a fake API closed at test cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// AddDevice registers a device and its features.
func (s *Server) AddDevice(installation int64, serial, id, model string, roles []string, features ...*Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, &device{
		installation: installation,
		serial:       serial,
		id:           id,
		model:        model,
		roles:        roles,
		features:     features,
	})
}

// SetProperty changes a property value of a registered feature.
func (s *Server) SetProperty(feature, property string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		for _, f := range d.features {
			if f.Name != feature {
				continue
			}
			p, ok := f.Properties[property].(map[string]any)
			if !ok {
				p = map[string]any{"type": "string"}
				f.Properties[property] = p
			}
			p["value"] = value
		}
	}
}

// FailNext makes the next request answer with status and body.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, body: body})
}

// OnCommand installs a hook deciding the status of command responses.
func (s *Server) OnCommand(h CommandHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// Commands returns the commands received so far.
func (s *Server) Commands() []RecordedCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedCommand, len(s.commands))
	copy(out, s.commands)
	return out
}

// FeatureRequests counts feature list fetches.
func (s *Server) FeatureRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.featureRequests
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if len(s.failures) > 0 {
		f := s.failures[0]
		s.failures = s.failures[1:]
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
		return
	}
	s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/equipment/installations":
		s.serveInstallations(w)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/features/"):
		s.serveFeatures(w, r.URL.Path)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/commands/"):
		s.serveCommand(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveInstallations(w http.ResponseWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type gw struct {
		Serial  string           `json:"serial"`
		Devices []map[string]any `json:"devices"`
	}
	type inst struct {
		ID       int64 `json:"id"`
		Gateways []*gw `json:"gateways"`
	}
	var out []*inst
	index := map[int64]*inst{}
	gateways := map[string]*gw{}
	for _, d := range s.devices {
		in, ok := index[d.installation]
		if !ok {
			in = &inst{ID: d.installation}
			index[d.installation] = in
			out = append(out, in)
		}
		key := fmt.Sprintf("%d/%s", d.installation, d.serial)
		g, ok := gateways[key]
		if !ok {
			g = &gw{Serial: d.serial}
			gateways[key] = g
			in.Gateways = append(in.Gateways, g)
		}
		g.Devices = append(g.Devices, map[string]any{
			"id":         d.id,
			"modelId":    d.model,
			"deviceType": "heating",
			"roles":      d.roles,
			"status":     "Online",
		})
	}
	writeJSON(w, map[string]any{"data": out})
}

func (s *Server) serveFeatures(w http.ResponseWriter, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.featureRequests++

	for _, d := range s.devices {
		want := fmt.Sprintf("/features/installations/%d/gateways/%s/devices/%s/features", d.installation, d.serial, d.id)
		if path != want {
			continue
		}
		data := make([]map[string]any, 0, len(d.features))
		for _, f := range d.features {
			data = append(data, s.render(f))
		}
		writeJSON(w, map[string]any{"data": data})
		return
	}
	w.WriteHeader(http.StatusNotFound)
	writeJSON(w, map[string]any{"statusCode": 404, "errorType": "DEVICE_NOT_FOUND", "message": "unknown device"})
}

func (s *Server) render(f *Feature) map[string]any {
	commands := map[string]any{}
	for name, params := range f.Commands {
		if params == nil {
			params = map[string]any{}
		}
		commands[name] = map[string]any{
			"uri":          s.URL + "/commands/" + f.Name + "/" + name,
			"name":         name,
			"isExecutable": true,
			"params":       params,
		}
	}
	props := f.Properties
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{
		"feature":    f.Name,
		"isEnabled":  !f.Disabled,
		"isReady":    true,
		"properties": props,
		"commands":   commands,
		"components": f.Components,
	}
}

func (s *Server) serveCommand(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/commands/")
	i := strings.LastIndex(rest, "/")
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	cmd := RecordedCommand{Feature: rest[:i], Command: rest[i+1:], Params: map[string]any{}}
	_ = json.NewDecoder(r.Body).Decode(&cmd.Params)

	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	hook := s.hook
	s.mu.Unlock()

	status := http.StatusOK
	if hook != nil {
		status = hook(cmd)
	}
	w.WriteHeader(status)
	if status >= http.StatusBadRequest {
		writeJSON(w, map[string]any{"statusCode": status, "errorType": "DEVICE_COMMUNICATION_ERROR", "message": "command refused"})
		return
	}
	writeJSON(w, map[string]any{"data": map[string]any{"success": true}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
