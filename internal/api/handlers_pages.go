package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lox/weatherdash/internal/dashboard"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cities := s.dash.Cities()
	data := IndexData{
		Cities:  make([]CityView, 0, len(cities)),
		Notice:  r.URL.Query().Get("notice"),
		Storage: s.dash.StorageName(),
	}
	for i, c := range cities {
		data.Cities = append(data.Cities, newCityView(i, len(cities), c, s.dash.Loading(c.Name)))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("api: template error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:  "ok",
		Cities:  len(s.dash.Cities()),
		Storage: s.dash.StorageName(),
	}
	stats, err := s.dash.StorageStats(r.Context())
	if err != nil {
		log.Printf("api: storage stats: %v", err)
	}
	health.Persisted = stats
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// redirectHome sends a form post back to the dashboard, carrying a notice to
// show once.
func redirectHome(w http.ResponseWriter, r *http.Request, notice string) {
	target := "/"
	if notice != "" {
		target += "?notice=" + url.QueryEscape(notice)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// noticeFor turns an action error into the text shown to the user.
func noticeFor(err error) string {
	var vErr *dashboard.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.Is(err, dashboard.ErrUnknownCity):
		return dashboard.ErrUnknownCity.Error()
	default:
		return "Something went wrong, please try again"
	}
}

// cityParam returns the {name} route parameter, unescaped.
func cityParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	err := s.dash.AddCity(r.Context(), r.FormValue("name"))
	redirectHome(w, r, noticeFor(err))
}

func (s *Server) handleRemoveForm(w http.ResponseWriter, r *http.Request) {
	redirectHome(w, r, noticeFor(s.dash.RemoveCity(cityParam(r))))
}

func (s *Server) handlePinForm(w http.ResponseWriter, r *http.Request) {
	redirectHome(w, r, noticeFor(s.dash.TogglePin(cityParam(r))))
}

func (s *Server) handleRefreshForm(w http.ResponseWriter, r *http.Request) {
	redirectHome(w, r, noticeFor(s.dash.Refresh(cityParam(r))))
}

func (s *Server) handleReorderForm(w http.ResponseWriter, r *http.Request) {
	from, err1 := strconv.Atoi(r.FormValue("from"))
	to, err2 := strconv.Atoi(r.FormValue("to"))
	if err1 != nil || err2 != nil {
		redirectHome(w, r, "Invalid move")
		return
	}
	s.dash.Reorder(from, to)
	redirectHome(w, r, "")
}
