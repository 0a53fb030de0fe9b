// Package citylist holds the ordered list of dashboard cities and the
// transitions that change it.
//
// Every transition is a pure function of the previous state. It returns the
// next state and whether anything changed; an unchanged result is the input
// state itself, so no-ops never reach subscribers.
package citylist

import "github.com/lox/weatherdash/internal/models"

func indexOf(s models.DashboardState, name string) int {
	for i, c := range s.Cities {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Add appends a new unpinned city. It performs no validation; callers check
// for empty or duplicate names first.
func Add(s models.DashboardState, name string) (models.DashboardState, bool) {
	next := s.Clone()
	next.Cities = append(next.Cities, models.City{Name: name})
	return next, true
}

// Remove drops the city with the given name.
func Remove(s models.DashboardState, name string) (models.DashboardState, bool) {
	i := indexOf(s, name)
	if i < 0 {
		return s, false
	}
	next := s.Clone()
	next.Cities = append(next.Cities[:i], next.Cities[i+1:]...)
	return next, true
}

// TogglePin flips the pinned flag. Pinning does not move the city.
func TogglePin(s models.DashboardState, name string) (models.DashboardState, bool) {
	i := indexOf(s, name)
	if i < 0 {
		return s, false
	}
	next := s.Clone()
	next.Cities[i].IsPinned = !next.Cities[i].IsPinned
	return next, true
}

// UpdateWeather attaches snap to the city and clears any previous error.
func UpdateWeather(s models.DashboardState, name string, snap *models.WeatherSnapshot) (models.DashboardState, bool) {
	i := indexOf(s, name)
	if i < 0 {
		return s, false
	}
	next := s.Clone()
	next.Cities[i].WeatherData = snap
	next.Cities[i].Error = ""
	return next, true
}

// SetCityError records a fetch failure. Existing weather data stays in place.
func SetCityError(s models.DashboardState, name, msg string) (models.DashboardState, bool) {
	i := indexOf(s, name)
	if i < 0 {
		return s, false
	}
	next := s.Clone()
	next.Cities[i].Error = msg
	return next, true
}

// Reorder moves the city at src to dst, shifting the others.
//
// An out-of-range src is a no-op. dst is clamped to the valid index range, so
// a too-large dst moves the city to the end and a negative dst to the front.
func Reorder(s models.DashboardState, src, dst int) (models.DashboardState, bool) {
	n := len(s.Cities)
	if src < 0 || src >= n {
		return s, false
	}
	dst = max(0, min(dst, n-1))
	if src == dst {
		return s, false
	}

	next := s.Clone()
	moved := next.Cities[src]
	next.Cities = append(next.Cities[:src], next.Cities[src+1:]...)
	next.Cities = append(next.Cities[:dst], append([]models.City{moved}, next.Cities[dst:]...)...)
	return next, true
}

// ReplaceAll swaps in a whole new state. It is used once, when hydrating from
// persistent storage.
func ReplaceAll(_ models.DashboardState, replacement models.DashboardState) (models.DashboardState, bool) {
	return replacement.Clone(), true
}

// SetLoading sets the global loading flag.
func SetLoading(s models.DashboardState, loading bool) (models.DashboardState, bool) {
	if s.Loading == loading {
		return s, false
	}
	next := s.Clone()
	next.Loading = loading
	return next, true
}

// SetError sets the global error. An empty message clears it.
func SetError(s models.DashboardState, msg string) (models.DashboardState, bool) {
	if msg == "" {
		if s.Error == nil {
			return s, false
		}
		next := s.Clone()
		next.Error = nil
		return next, true
	}
	next := s.Clone()
	next.Error = &msg
	return next, true
}
