package webd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/engine"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/activity"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrActivityExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrActivityNotFound),
		errors.Is(err, engine.ErrSectionNotFound),
		errors.Is(err, engine.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, activity.ErrTooFewPoints):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrDetectionRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *WebDaemon) httpError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func (s *WebDaemon) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	var act activity.Activity
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		http.Error(w, "Failed to decode activity", http.StatusUnprocessableEntity)
		return
	}
	if err := s.engine.AddActivity(&act); err != nil {
		s.logger.Warn("Failed to add activity", "id", act.ID, "error", err)
		s.httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, map[string]string{"id": act.ID})
}

func (s *WebDaemon) handleRemoveActivity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.engine.RemoveActivity(id); err != nil {
		s.httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListActivities returns all activities, or those intersecting a
// viewport given as ?viewport=minLng,minLat,maxLng,maxLat.
func (s *WebDaemon) handleListActivities(w http.ResponseWriter, r *http.Request) {
	if vp := r.URL.Query().Get("viewport"); vp != "" {
		bound, err := parseViewport(vp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSON(w, s.engine.ActivitiesInViewport(bound))
		return
	}
	s.writeJSON(w, s.engine.Activities())
}

func (s *WebDaemon) handleMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.engine.MatchesFor(mux.Vars(r)["id"])
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, matches)
}

func (s *WebDaemon) handleGroupFor(w http.ResponseWriter, r *http.Request) {
	g, err := s.engine.GroupFor(mux.Vars(r)["id"])
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, g)
}

func (s *WebDaemon) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Groups())
}

func (s *WebDaemon) handleConsensusRoute(w http.ResponseWriter, r *http.Request) {
	line, err := s.engine.ConsensusRoute(mux.Vars(r)["id"])
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, line)
}

func (s *WebDaemon) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Clear(); err != nil {
		s.httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSections returns all sections, or those intersecting a
// viewport given as ?viewport=minLng,minLat,maxLng,maxLat.
func (s *WebDaemon) handleSections(w http.ResponseWriter, r *http.Request) {
	if vp := r.URL.Query().Get("viewport"); vp != "" {
		bound, err := parseViewport(vp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sections, err := s.engine.SectionsInViewport(bound)
		if err != nil {
			s.httpError(w, err)
			return
		}
		s.writeJSON(w, sections)
		return
	}
	sections, err := s.engine.Sections()
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, sections)
}

func parseViewport(vp string) (orb.Bound, error) {
	parts := strings.Split(vp, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("viewport wants minLng,minLat,maxLng,maxLat")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("viewport: %w", err)
		}
		vals[i] = f
	}
	return orb.Bound{
		Min: orb.Point{vals[0], vals[1]},
		Max: orb.Point{vals[2], vals[3]},
	}, nil
}

func (s *WebDaemon) handleSection(w http.ResponseWriter, r *http.Request) {
	sec, err := s.engine.Section(mux.Vars(r)["id"])
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, sec)
}

func (s *WebDaemon) handleLaps(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	laps, err := s.engine.Laps(vars["id"], vars["activity"])
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, laps)
}

func (s *WebDaemon) handlePerformances(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Performances(mux.Vars(r)["id"])
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *WebDaemon) handlePotentials(w http.ResponseWriter, r *http.Request) {
	potentials, err := s.engine.PotentialSections()
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, potentials)
}

func (s *WebDaemon) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	var cfg *params.HeatmapConfig
	q := r.URL.Query()
	if q.Get("sport") != "" || q.Get("cell") != "" {
		cfg = &params.HeatmapConfig{
			CellSizeMeters: params.DefaultHeatmapConfig.CellSizeMeters,
			Sport:          q.Get("sport"),
			MinVisits:      params.DefaultHeatmapConfig.MinVisits,
		}
		if c := q.Get("cell"); c != "" {
			f, err := strconv.ParseFloat(c, 64)
			if err != nil || f <= 0 {
				http.Error(w, "bad cell size", http.StatusBadRequest)
				return
			}
			cfg.CellSizeMeters = f
		}
	}
	cells, err := s.engine.Heatmap(cfg)
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, cells)
}

func (s *WebDaemon) handleHeatmapAt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	if errLng != nil || errLat != nil {
		http.Error(w, "lng and lat are required", http.StatusBadRequest)
		return
	}
	cell, label, ok, err := s.engine.HeatmapAt(orb.Point{lng, lat})
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"cell": cell, "label": label, "found": ok})
}

func (s *WebDaemon) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Stats())
}

func (s *WebDaemon) handleDetect(w http.ResponseWriter, r *http.Request) {
	// Not the request context; the run must outlive the 202 response.
	task, err := s.engine.StartDetection(context.Background())
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.taskMu.Lock()
	s.task = task
	s.taskMu.Unlock()
	w.WriteHeader(http.StatusAccepted)
	s.writeJSON(w, task.Poll())
}

func (s *WebDaemon) handleDetectStatus(w http.ResponseWriter, r *http.Request) {
	s.taskMu.Lock()
	task := s.task
	s.taskMu.Unlock()
	if task == nil {
		s.writeJSON(w, engine.TaskStatus{State: engine.TaskIdle})
		return
	}
	s.writeJSON(w, task.Poll())
}

func (s *WebDaemon) handleDetectCancel(w http.ResponseWriter, r *http.Request) {
	s.taskMu.Lock()
	task := s.task
	s.taskMu.Unlock()
	if task != nil {
		task.Cancel()
	}
	w.WriteHeader(http.StatusNoContent)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *WebDaemon) handleRenameGroup(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "body wants {\"name\": ...}", http.StatusUnprocessableEntity)
		return
	}
	if err := s.engine.RenameGroup(mux.Vars(r)["id"], req.Name); err != nil {
		s.httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebDaemon) handleRenameSection(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "body wants {\"name\": ...}", http.StatusUnprocessableEntity)
		return
	}
	if err := s.engine.RenameSection(mux.Vars(r)["id"], req.Name); err != nil {
		s.httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
