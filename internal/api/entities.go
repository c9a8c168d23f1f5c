package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	bridge "github.com/nerrad567/vicare-bridge/internal/bridges/vicare"
	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/registry"
)

// EntityView is the API representation of a live entity.
type EntityView struct {
	entity.Info
	Available bool          `json:"available"`
	State     *entity.State `json:"state,omitempty"`
}

func newEntityView(e entity.Entity) EntityView {
	v := EntityView{Info: e.Info(), Available: e.Available()}
	if st, ok := e.State(); ok {
		v.State = st
	}
	return v
}

// handleListEntities lists live entities. Optional filters:
// device_id, platform.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deviceID := q.Get("device_id")
	platform := q.Get("platform")

	views := make([]EntityView, 0)
	for _, e := range s.bridge.Entities() {
		info := e.Info()
		if deviceID != "" && info.DeviceID != deviceID {
			continue
		}
		if platform != "" && info.Platform != platform {
			continue
		}
		views = append(views, newEntityView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": views,
		"count":    len(views),
	})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := wildcardID(r)
	e, err := s.bridge.Entity(id)
	if err != nil {
		writeNotFound(w, "entity not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, newEntityView(e))
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.bridge.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleListRecords lists persisted entity records, including the last
// stored state of entities that are currently unavailable.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "registry not configured")
		return
	}
	records := s.registry.ListEntities(r.Context())
	if records == nil {
		records = []registry.Entity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": records,
		"count":    len(records),
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "registry not configured")
		return
	}
	id := wildcardID(r)
	rec, err := s.registry.GetEntity(r.Context(), id)
	if errors.Is(err, registry.ErrEntityNotFound) {
		writeNotFound(w, "entity not found: "+id)
		return
	}
	if err != nil {
		writeInternalError(w, "failed to read registry")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCommand executes a command on an entity and answers with the
// acknowledgment. The HTTP status follows the ack error code.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := wildcardID(r)
	if id == "" {
		writeBadRequest(w, "entity id is required")
		return
	}

	var cmd bridge.CommandMessage
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}
	cmd.Source = bridge.SourceAPI

	ack := s.bridge.Dispatch(r.Context(), id, cmd)
	s.logger.Info("api command",
		"entity_id", id,
		"command", cmd.Command,
		"status", ack.Status,
		"subject", subject(r.Context()),
		"request_id", requestID(r.Context()),
	)
	writeJSON(w, ackStatus(ack), ack)
}

// handleService runs a named climate service.
func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var msg bridge.ServiceMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if msg.EntityID == "" {
		writeBadRequest(w, "entity_id is required")
		return
	}

	ack := s.bridge.CallService(r.Context(), name, msg)
	writeJSON(w, ackStatus(ack), ack)
}

// wildcardID returns the entity id captured by a trailing wildcard route.
func wildcardID(r *http.Request) string {
	return strings.Trim(chi.URLParam(r, "*"), "/")
}
