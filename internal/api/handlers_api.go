package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lox/weatherdash/internal/dashboard"
	"github.com/lox/weatherdash/internal/models"
)

type addCityRequest struct {
	Name string `json:"name"`
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeActionError maps dashboard action errors onto status codes.
func writeActionError(w http.ResponseWriter, err error) {
	var vErr *dashboard.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusUnprocessableEntity, vErr.Error())
	case errors.Is(err, dashboard.ErrUnknownCity):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) city(name string) (models.City, bool) {
	stored, ok := s.dash.Resolve(name)
	if !ok {
		return models.City{}, false
	}
	for _, c := range s.dash.Cities() {
		if c.Name == stored {
			return c, true
		}
	}
	return models.City{}, false
}

// writeCity responds with the city's current value. The city can be removed
// between the action and this read, which is reported as not found.
func (s *Server) writeCity(w http.ResponseWriter, status int, name string) {
	c, ok := s.city(name)
	if !ok {
		writeError(w, http.StatusNotFound, dashboard.ErrUnknownCity.Error())
		return
	}
	writeJSON(w, status, c)
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.State())
}

func (s *Server) handleAPIAdd(w http.ResponseWriter, r *http.Request) {
	var req addCityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.dash.AddCity(r.Context(), req.Name); err != nil {
		writeActionError(w, err)
		return
	}

	s.writeCity(w, http.StatusCreated, req.Name)
}

func (s *Server) handleAPIRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.RemoveCity(cityParam(r)); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIPin(w http.ResponseWriter, r *http.Request) {
	name := cityParam(r)
	if err := s.dash.TogglePin(name); err != nil {
		writeActionError(w, err)
		return
	}
	s.writeCity(w, http.StatusOK, name)
}

func (s *Server) handleAPIRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Refresh(cityParam(r)); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAPIReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.dash.Reorder(req.From, req.To)
	writeJSON(w, http.StatusOK, s.dash.State())
}
