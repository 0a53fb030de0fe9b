package citylist

import (
	"sync"

	"github.com/lox/weatherdash/internal/models"
)

// Op names the transition that produced a change.
type Op string

const (
	OpAdd           Op = "add"
	OpRemove        Op = "remove"
	OpTogglePin     Op = "toggle_pin"
	OpUpdateWeather Op = "update_weather"
	OpSetCityError  Op = "set_city_error"
	OpReorder       Op = "reorder"
	OpReplaceAll    Op = "replace_all"
	OpSetLoading    Op = "set_loading"
	OpSetError      Op = "set_error"
	OpReset         Op = "reset"
)

// TouchesCities reports whether the op can change the city list, as opposed
// to only the global flags.
func (o Op) TouchesCities() bool {
	return o != OpSetLoading && o != OpSetError
}

// Change is delivered to subscribers after every transition that changed
// the state.
type Change struct {
	Op    Op
	State models.DashboardState
}

type Listener func(Change)

type subscription struct {
	id uint64
	fn Listener
}

// Store is the process-wide container for the dashboard state.
//
// Transitions are applied one at a time. Subscribers run synchronously, in
// subscription order, before the mutating call returns. A subscriber must not
// call back into the Store.
type Store struct {
	mu     sync.Mutex
	state  models.DashboardState
	subs   []subscription
	nextID uint64
}

// New returns a Store at the empty initial state.
func New() *Store {
	return &Store{}
}

// State returns a copy of the current state.
func (s *Store) State() models.DashboardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Cities returns a copy of the ordered city list.
func (s *Store) Cities() []models.City {
	return s.State().Cities
}

// Subscribe registers fn for future changes and returns a function that
// removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) apply(op Op, fn func(models.DashboardState) (models.DashboardState, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := fn(s.state)
	if !changed {
		return false
	}
	s.state = next
	for _, sub := range s.subs {
		sub.fn(Change{Op: op, State: next.Clone()})
	}
	return true
}

func (s *Store) Add(name string) bool {
	return s.apply(OpAdd, func(st models.DashboardState) (models.DashboardState, bool) {
		return Add(st, name)
	})
}

func (s *Store) Remove(name string) bool {
	return s.apply(OpRemove, func(st models.DashboardState) (models.DashboardState, bool) {
		return Remove(st, name)
	})
}

func (s *Store) TogglePin(name string) bool {
	return s.apply(OpTogglePin, func(st models.DashboardState) (models.DashboardState, bool) {
		return TogglePin(st, name)
	})
}

// UpdateWeather and SetCityError make the Store usable as a coordinator sink.
func (s *Store) UpdateWeather(name string, snap *models.WeatherSnapshot) {
	s.apply(OpUpdateWeather, func(st models.DashboardState) (models.DashboardState, bool) {
		return UpdateWeather(st, name, snap)
	})
}

func (s *Store) SetCityError(name, msg string) {
	s.apply(OpSetCityError, func(st models.DashboardState) (models.DashboardState, bool) {
		return SetCityError(st, name, msg)
	})
}

func (s *Store) Reorder(src, dst int) bool {
	return s.apply(OpReorder, func(st models.DashboardState) (models.DashboardState, bool) {
		return Reorder(st, src, dst)
	})
}

func (s *Store) ReplaceAll(replacement models.DashboardState) {
	s.apply(OpReplaceAll, func(st models.DashboardState) (models.DashboardState, bool) {
		return ReplaceAll(st, replacement)
	})
}

func (s *Store) SetLoading(loading bool) bool {
	return s.apply(OpSetLoading, func(st models.DashboardState) (models.DashboardState, bool) {
		return SetLoading(st, loading)
	})
}

func (s *Store) SetError(msg string) bool {
	return s.apply(OpSetError, func(st models.DashboardState) (models.DashboardState, bool) {
		return SetError(st, msg)
	})
}

// Reset returns the store to the empty initial state. Subscribers are kept.
func (s *Store) Reset() {
	s.apply(OpReset, func(st models.DashboardState) (models.DashboardState, bool) {
		return models.DashboardState{}, !st.IsEmpty()
	})
}
