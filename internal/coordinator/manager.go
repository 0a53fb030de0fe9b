package coordinator

import (
	"context"
	"sync"

	"github.com/lox/weatherdash/internal/citylist"
	"github.com/lox/weatherdash/internal/metrics"
	"github.com/lox/weatherdash/internal/models"
)

// Manager mounts one Coordinator per city in the dashboard state.
//
// Sync is keyed purely on the set of city names: pin, weather and error
// changes never start a fetch.
type Manager struct {
	ctx     context.Context
	fetcher Fetcher
	sink    Sink

	mu     sync.Mutex
	coords map[string]*Coordinator
}

func NewManager(ctx context.Context, fetcher Fetcher, sink Sink) *Manager {
	return &Manager{
		ctx:     ctx,
		fetcher: fetcher,
		sink:    sink,
		coords:  make(map[string]*Coordinator),
	}
}

// Sync mounts coordinators for new city names and closes those whose city is
// gone. It is safe to call from a store subscriber.
func (m *Manager) Sync(state models.DashboardState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	present := make(map[string]bool, len(state.Cities))
	for _, city := range state.Cities {
		present[city.Name] = true
		if _, ok := m.coords[city.Name]; ok {
			continue
		}
		c := New(m.ctx, m.fetcher, m.sink)
		m.coords[city.Name] = c
		c.SetName(city.Name)
	}
	for name, c := range m.coords {
		if !present[name] {
			c.Close()
			delete(m.coords, name)
		}
	}
	metrics.CitiesTracked.Set(float64(len(m.coords)))
}

// Listener adapts Sync to a store subscription.
func (m *Manager) Listener() citylist.Listener {
	return func(ch citylist.Change) {
		if ch.Op.TouchesCities() {
			m.Sync(ch.State)
		}
	}
}

func (m *Manager) get(name string) (*Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coords[name]
	return c, ok
}

func (m *Manager) all() []*Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Coordinator, 0, len(m.coords))
	for _, c := range m.coords {
		out = append(out, c)
	}
	return out
}

// Refresh remounts the coordinator for name. It reports false if no city
// with that name is mounted.
func (m *Manager) Refresh(name string) bool {
	// m.mu must not be held here: Refresh waits for any delivery in progress,
	// and a delivery can re-enter Sync through the store.
	c, ok := m.get(name)
	if !ok {
		return false
	}
	c.Refresh()
	return true
}

// RefreshAll remounts every coordinator.
func (m *Manager) RefreshAll() {
	for _, c := range m.all() {
		c.Refresh()
	}
}

// Loading reports whether the fetch for name is in flight.
func (m *Manager) Loading(name string) bool {
	c, ok := m.get(name)
	return ok && c.Loading()
}

// Wait blocks until every mounted coordinator has finished its fetch.
func (m *Manager) Wait(ctx context.Context) error {
	for _, c := range m.all() {
		if err := c.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close unmounts every coordinator.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.coords {
		c.Close()
		delete(m.coords, name)
	}
	metrics.CitiesTracked.Set(0)
}
