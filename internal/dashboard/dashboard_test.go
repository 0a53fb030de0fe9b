package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/lox/weatherdash/internal/citylist"
	"github.com/lox/weatherdash/internal/kv"
	"github.com/lox/weatherdash/internal/models"
	"github.com/lox/weatherdash/internal/weatherapi"
)

// stubFetcher answers every forecast immediately.
type stubFetcher struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func (f *stubFetcher) Forecast(_ context.Context, name string) (*models.WeatherSnapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	err := f.failOn[name]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &models.WeatherSnapshot{
		Location: models.Location{Name: name},
		Current:  models.Current{TempC: 20, Condition: models.Condition{Text: "Sunny"}},
	}, nil
}

func (f *stubFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type stubLookup struct {
	err error
}

func (l stubLookup) Current(_ context.Context, name string) (*models.Location, error) {
	if l.err != nil {
		return nil, l.err
	}
	return &models.Location{Name: name}, nil
}

func newTestDashboard(t *testing.T, backend kv.Backend, lookup Lookup) (*Dashboard, *stubFetcher) {
	t.Helper()
	f := &stubFetcher{failOn: map[string]error{}}
	d := New(Config{Backend: backend, Fetcher: f, Lookup: lookup})
	t.Cleanup(d.Close)
	return d, f
}

func wait(t *testing.T, d *Dashboard) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func persistedCities(t *testing.T, m *kv.Memory) []models.City {
	t.Helper()
	raw, ok, _ := m.Get(context.Background(), DefaultStorageKey)
	if !ok {
		return nil
	}
	var cities []models.City
	if err := json.Unmarshal([]byte(raw), &cities); err != nil {
		t.Fatalf("persisted value is not a city array: %v (%s)", err, raw)
	}
	return cities
}

func TestLoad_HydratesFromStorage(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()
	m.Set(ctx, DefaultStorageKey, `[{"name":"London","isPinned":true},{"name":"Paris","isPinned":false}]`)

	d, f := newTestDashboard(t, m, nil)
	d.Load(ctx)
	wait(t, d)

	got := d.State().Names()
	if !reflect.DeepEqual(got, []string{"London", "Paris"}) {
		t.Errorf("names = %v", got)
	}
	if !d.Cities()[0].IsPinned {
		t.Error("London should be pinned after hydration")
	}
	if n := len(f.fetched()); n != 2 {
		t.Errorf("fetches = %d, want one per hydrated city", n)
	}
}

func TestLoad_CorruptStorageFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()
	m.Set(ctx, DefaultStorageKey, `{"cities": oops`)

	d, _ := newTestDashboard(t, m, nil)
	d.Load(ctx)

	if !d.State().IsEmpty() {
		t.Errorf("State = %+v, want empty", d.State())
	}
}

func TestLoad_SkipsHydrationWhenStoreNotEmpty(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()
	m.Set(ctx, DefaultStorageKey, `[{"name":"Persisted","isPinned":false}]`)

	store := citylist.New()
	store.Add("InMemory")
	f := &stubFetcher{failOn: map[string]error{}}
	d := New(Config{Store: store, Backend: m, Fetcher: f})
	t.Cleanup(d.Close)
	d.Load(ctx)
	wait(t, d)

	if got := d.State().Names(); !reflect.DeepEqual(got, []string{"InMemory"}) {
		t.Errorf("names = %v, want [InMemory]", got)
	}
}

// blockingFetcher holds every fetch until its context is cancelled.
type blockingFetcher struct{}

func (blockingFetcher) Forecast(ctx context.Context, _ string) (*models.WeatherSnapshot, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLoad_NoWriteBackOnHydration(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()
	// Deliberately not in the canonical serialization.
	const stored = `[ {"name": "London", "isPinned": false} ]`
	m.Set(ctx, DefaultStorageKey, stored)

	d := New(Config{Backend: m, Fetcher: blockingFetcher{}})
	t.Cleanup(d.Close)
	d.Load(ctx)

	if got := d.State().Names(); !reflect.DeepEqual(got, []string{"London"}) {
		t.Fatalf("names = %v", got)
	}
	if raw, _, _ := m.Get(ctx, DefaultStorageKey); raw != stored {
		t.Errorf("storage rewritten during hydration: %s", raw)
	}
	if !d.Loading("London") {
		t.Error("hydrated city should have a fetch in flight")
	}
}

func TestLoad_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()
	d, _ := newTestDashboard(t, m, nil)
	d.Load(ctx)

	m.Set(ctx, DefaultStorageKey, `[{"name":"Late","isPinned":false}]`)
	d.Load(ctx)
	if !d.State().IsEmpty() {
		t.Errorf("second Load hydrated: %+v", d.State())
	}
}

func TestMutationsArePersisted(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()
	d, _ := newTestDashboard(t, m, nil)
	d.Load(ctx)

	if err := d.AddCity(ctx, "London"); err != nil {
		t.Fatalf("AddCity: %v", err)
	}
	if err := d.AddCity(ctx, "Paris"); err != nil {
		t.Fatalf("AddCity: %v", err)
	}
	wait(t, d)
	if err := d.TogglePin("paris"); err != nil {
		t.Fatalf("TogglePin: %v", err)
	}
	d.Reorder(1, 0)

	cities := persistedCities(t, m)
	if len(cities) != 2 || cities[0].Name != "Paris" || !cities[0].IsPinned || cities[1].Name != "London" {
		t.Errorf("persisted = %+v", cities)
	}
	if cities[1].WeatherData == nil || cities[1].WeatherData.Current.TempC != 20 {
		t.Errorf("persisted weather for London = %+v", cities[1].WeatherData)
	}

	if err := d.RemoveCity("PARIS"); err != nil {
		t.Fatalf("RemoveCity: %v", err)
	}
	if err := d.RemoveCity("London"); err != nil {
		t.Fatalf("RemoveCity: %v", err)
	}
	raw, _, _ := m.Get(ctx, DefaultStorageKey)
	if raw != "[]" {
		t.Errorf("persisted after removing all = %s, want []", raw)
	}
}

func TestGlobalFlagsAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()
	d, _ := newTestDashboard(t, m, nil)
	d.Load(ctx)

	d.Store().SetLoading(true)
	if _, ok, _ := m.Get(ctx, DefaultStorageKey); ok {
		t.Error("loading flag change was persisted")
	}
}

func TestAddCity_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		lookup  Lookup
		wantErr error
	}{
		{"empty", "", nil, ErrEmptyName},
		{"whitespace", "   ", nil, ErrEmptyName},
		{"duplicate same case", "London", nil, ErrDuplicateCity},
		{"duplicate other case", "  lOnDoN ", nil, ErrDuplicateCity},
		{"not found", "Atlantis", stubLookup{err: &weatherapi.APIError{StatusCode: 400, Code: 1006}}, ErrCityNotFound},
		{"rejected lookup", "Paris", stubLookup{err: &weatherapi.APIError{StatusCode: 401, Code: 2006}}, ErrCityNotFound},
		{"lookup failure", "Paris", stubLookup{err: errors.New("connection refused")}, ErrLookupFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d, _ := newTestDashboard(t, kv.NewMemory(), nil)
			d.Load(ctx)
			if err := d.AddCity(ctx, "London"); err != nil {
				t.Fatal(err)
			}
			d.lookup = tt.lookup

			err := d.AddCity(ctx, tt.input)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if got := d.State().Names(); !reflect.DeepEqual(got, []string{"London"}) {
				t.Errorf("rejected name reached the store: %v", got)
			}
		})
	}
}

func TestAddCity_TrimsAndChecksProvider(t *testing.T) {
	ctx := context.Background()
	d, f := newTestDashboard(t, kv.NewMemory(), stubLookup{})
	d.Load(ctx)

	if err := d.AddCity(ctx, "  New York "); err != nil {
		t.Fatalf("AddCity: %v", err)
	}
	wait(t, d)

	if got := d.State().Names(); !reflect.DeepEqual(got, []string{"New York"}) {
		t.Errorf("names = %v", got)
	}
	if got := f.fetched(); !reflect.DeepEqual(got, []string{"New York"}) {
		t.Errorf("fetched = %v", got)
	}
}

func TestFetchFailureIsContained(t *testing.T) {
	ctx := context.Background()
	d, f := newTestDashboard(t, kv.NewMemory(), nil)
	f.failOn["Unknownville"] = errors.New("No matching location found.")
	d.Load(ctx)

	d.AddCity(ctx, "Unknownville")
	d.AddCity(ctx, "London")
	wait(t, d)

	cities := d.Cities()
	if len(cities) != 2 {
		t.Fatalf("len(cities) = %d, failed city must stay on the dashboard", len(cities))
	}
	if cities[0].Error != "No matching location found." || cities[0].WeatherData != nil {
		t.Errorf("Unknownville = %+v", cities[0])
	}
	if cities[1].Error != "" || cities[1].WeatherData == nil {
		t.Errorf("London = %+v", cities[1])
	}
}

func TestUnknownCityActions(t *testing.T) {
	d, _ := newTestDashboard(t, kv.NewMemory(), nil)
	d.Load(context.Background())

	for name, fn := range map[string]func(string) error{
		"remove":  d.RemoveCity,
		"pin":     d.TogglePin,
		"refresh": d.Refresh,
	} {
		if err := fn("Nowhere"); !errors.Is(err, ErrUnknownCity) {
			t.Errorf("%s: err = %v, want ErrUnknownCity", name, err)
		}
	}
}

func TestRefresh_IssuesOneFetch(t *testing.T) {
	ctx := context.Background()
	d, f := newTestDashboard(t, kv.NewMemory(), nil)
	d.Load(ctx)
	d.AddCity(ctx, "London")
	wait(t, d)

	if err := d.Refresh("london"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	wait(t, d)
	if got := f.fetched(); len(got) != 2 {
		t.Errorf("fetched = %v, want two fetches", got)
	}
}
