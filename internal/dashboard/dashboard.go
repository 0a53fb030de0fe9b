// Package dashboard wires the city list to persistence and to the weather
// fetch coordinators, and validates user actions before they reach the list.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/lox/weatherdash/internal/citylist"
	"github.com/lox/weatherdash/internal/coordinator"
	"github.com/lox/weatherdash/internal/kv"
	"github.com/lox/weatherdash/internal/models"
	"github.com/lox/weatherdash/internal/weatherapi"
)

const DefaultStorageKey = "weather-dashboard"

var (
	ErrEmptyName     = errors.New("please enter a city name")
	ErrDuplicateCity = errors.New("city is already on the dashboard")
	ErrCityNotFound  = errors.New("city not found, please try a valid city name")
	ErrLookupFailed  = errors.New("error searching for city, please try again")

	// ErrUnknownCity is returned by actions that name a city not on the
	// dashboard.
	ErrUnknownCity = errors.New("city is not on the dashboard")
)

// ValidationError rejects an add before it reaches the city list. Its
// message is meant to be shown to the user as a transient notice.
type ValidationError struct {
	Name string
	Err  error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Lookup checks that a city name is known to the weather provider.
type Lookup interface {
	Current(ctx context.Context, name string) (*models.Location, error)
}

type Config struct {
	Store   *citylist.Store
	Backend kv.Backend
	Key     string
	Fetcher coordinator.Fetcher
	// Lookup is optional. When nil, AddCity skips the provider check.
	Lookup Lookup
}

type Dashboard struct {
	store     *citylist.Store
	persisted *kv.Value[[]models.City]
	manager   *coordinator.Manager
	lookup    Lookup
	backend   string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	loaded bool
	unsubs []func()

	// addMu makes the duplicate check and the add one step.
	addMu sync.Mutex
}

func New(cfg Config) *Dashboard {
	key := cfg.Key
	if key == "" {
		key = DefaultStorageKey
	}
	store := cfg.Store
	if store == nil {
		store = citylist.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dashboard{
		store:     store,
		persisted: kv.NewValue[[]models.City](cfg.Backend, key, nil),
		manager:   coordinator.NewManager(ctx, cfg.Fetcher, store),
		lookup:    cfg.Lookup,
		backend:   cfg.Backend.Name(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Load hydrates the city list from storage, starts persisting changes and
// mounts a fetch coordinator per city. Only the first call has any effect.
//
// Hydration happens only while the list is still at its empty initial
// state. It runs before the persistence subscription, so the hydrated list
// is not written straight back.
func (d *Dashboard) Load(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return
	}
	d.loaded = true

	if cities := d.persisted.Load(ctx); len(cities) > 0 && d.store.State().IsEmpty() {
		d.store.ReplaceAll(models.DashboardState{Cities: cities})
		log.Printf("dashboard: restored %d cities from %s", len(cities), d.backend)
	}

	d.unsubs = append(d.unsubs,
		d.store.Subscribe(d.persist),
		d.store.Subscribe(d.manager.Listener()),
	)
	d.manager.Sync(d.store.State())
}

func (d *Dashboard) persist(ch citylist.Change) {
	if !ch.Op.TouchesCities() {
		return
	}
	cities := ch.State.Cities
	if cities == nil {
		cities = []models.City{}
	}
	d.persisted.Save(d.ctx, cities)
}

// Close stops persisting and cancels in-flight fetches.
func (d *Dashboard) Close() {
	d.mu.Lock()
	unsubs := d.unsubs
	d.unsubs = nil
	d.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	d.manager.Close()
	d.cancel()
}

func (d *Dashboard) Store() *citylist.Store {
	return d.store
}

func (d *Dashboard) StorageName() string {
	return d.backend
}

// StorageStats describes the persisted city list, or returns nil when the
// backend keeps no stats.
func (d *Dashboard) StorageStats(ctx context.Context) (*kv.EntryStats, error) {
	return d.persisted.Stats(ctx)
}

func (d *Dashboard) State() models.DashboardState {
	return d.store.State()
}

func (d *Dashboard) Cities() []models.City {
	return d.store.Cities()
}

// Resolve maps user input onto the stored spelling of a city name. Names are
// unique ignoring case, so at most one city matches.
func (d *Dashboard) Resolve(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range d.store.Cities() {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return "", false
}

// AddCity validates name and appends it to the list. Empty names, names
// already on the dashboard (ignoring case) and names the provider does not
// recognise are rejected with a *ValidationError.
func (d *Dashboard) AddCity(ctx context.Context, name string) error {
	d.addMu.Lock()
	defer d.addMu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Name: name, Err: ErrEmptyName}
	}
	if _, exists := d.Resolve(name); exists {
		return &ValidationError{Name: name, Err: ErrDuplicateCity}
	}

	if d.lookup != nil {
		if _, err := d.lookup.Current(ctx, name); err != nil {
			// Any answer other than a match counts as not found.
			if weatherapi.IsRejected(err) {
				return &ValidationError{Name: name, Err: ErrCityNotFound}
			}
			log.Printf("dashboard: lookup %q: %v", name, err)
			return &ValidationError{Name: name, Err: ErrLookupFailed}
		}
	}

	d.store.Add(name)
	return nil
}

func (d *Dashboard) RemoveCity(name string) error {
	stored, ok := d.Resolve(name)
	if !ok {
		return fmt.Errorf("remove %q: %w", name, ErrUnknownCity)
	}
	d.store.Remove(stored)
	return nil
}

func (d *Dashboard) TogglePin(name string) error {
	stored, ok := d.Resolve(name)
	if !ok {
		return fmt.Errorf("pin %q: %w", name, ErrUnknownCity)
	}
	d.store.TogglePin(stored)
	return nil
}

// Reorder moves the city at index from to index to. See citylist.Reorder for
// the out-of-range policy.
func (d *Dashboard) Reorder(from, to int) {
	d.store.Reorder(from, to)
}

// Refresh remounts the coordinator for one city, issuing a new fetch.
func (d *Dashboard) Refresh(name string) error {
	stored, ok := d.Resolve(name)
	if !ok || !d.manager.Refresh(stored) {
		return fmt.Errorf("refresh %q: %w", name, ErrUnknownCity)
	}
	return nil
}

func (d *Dashboard) RefreshAll() {
	d.manager.RefreshAll()
}

// Loading reports whether the card for name has a fetch in flight.
func (d *Dashboard) Loading(name string) bool {
	return d.manager.Loading(name)
}

// Wait blocks until every card has finished fetching.
func (d *Dashboard) Wait(ctx context.Context) error {
	return d.manager.Wait(ctx)
}
