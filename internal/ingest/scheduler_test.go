package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lox/weatherdash/internal/forecast"
	"github.com/lox/weatherdash/internal/models"
)

type fakeDashboard struct {
	mu        sync.Mutex
	cities    []models.City
	refreshes int
	// arrive is applied on the first Wait, standing in for fetches that
	// complete after startup.
	arrive []models.City
	block  bool
}

func (f *fakeDashboard) Wait(ctx context.Context) error {
	f.mu.Lock()
	block := f.block
	if f.arrive != nil {
		f.cities, f.arrive = f.arrive, nil
	}
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeDashboard) Cities() []models.City {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cities
}

func (f *fakeDashboard) RefreshAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeDashboard) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type fakeBackdrops struct {
	mu   sync.Mutex
	keys []forecast.WeatherCondition
}

func (f *fakeBackdrops) requested() []forecast.WeatherCondition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forecast.WeatherCondition(nil), f.keys...)
}

func (f *fakeBackdrops) Get(_ context.Context, c forecast.WeatherCondition, tod forecast.TimeOfDay) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, forecast.ConditionWithTime(c, tod))
	return nil, false
}

func snapshot(text string, tempC float64, localtime string) *models.WeatherSnapshot {
	return &models.WeatherSnapshot{
		Location: models.Location{LocalTime: localtime},
		Current:  models.Current{TempC: tempC, Condition: models.Condition{Text: text}},
	}
}

func TestCheckWeatherImages_DedupesConditions(t *testing.T) {
	dash := &fakeDashboard{cities: []models.City{
		{Name: "London", WeatherData: snapshot("Light rain", 10, "2025-01-01 12:00")},
		{Name: "Dublin", WeatherData: snapshot("Patchy rain possible", 9, "2025-01-01 12:30")},
		{Name: "Oslo", WeatherData: snapshot("Light snow", -3, "2025-01-01 13:00")},
		{Name: "Pending"},
	}}
	bd := &fakeBackdrops{}
	s := NewScheduler(dash, bd, 0)

	s.checkWeatherImages(context.Background())

	want := []forecast.WeatherCondition{"light_rain_day", "snow_day"}
	if len(bd.keys) != len(want) {
		t.Fatalf("keys = %v, want %v", bd.keys, want)
	}
	for i := range want {
		if bd.keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, bd.keys[i], want[i])
		}
	}
}

func TestRun_PeriodicRefresh(t *testing.T) {
	dash := &fakeDashboard{cities: []models.City{{Name: "London"}}}
	s := NewScheduler(dash, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for dash.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if dash.count() < 2 {
		t.Errorf("refreshes = %d, want at least 2", dash.count())
	}
}

func TestRun_RefreshDisabled(t *testing.T) {
	dash := &fakeDashboard{cities: []models.City{{Name: "London"}}}
	s := NewScheduler(dash, nil, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if dash.count() != 0 {
		t.Errorf("refreshes = %d, want 0 when disabled", dash.count())
	}
}

func TestRefresh_SkipsEmptyDashboard(t *testing.T) {
	dash := &fakeDashboard{}
	NewScheduler(dash, nil, time.Minute).refresh()
	if dash.count() != 0 {
		t.Error("RefreshAll called with no cities")
	}
}

func TestRun_PrewarmsAfterInitialFetches(t *testing.T) {
	dash := &fakeDashboard{
		cities: []models.City{{Name: "Oslo"}},
		arrive: []models.City{{Name: "Oslo", WeatherData: snapshot("Light snow", -3, "2025-01-01 13:00")}},
	}
	bd := &fakeBackdrops{}
	s := NewScheduler(dash, bd, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	got := bd.requested()
	if len(got) != 1 || got[0] != "snow_day" {
		t.Errorf("prewarmed = %v, want [snow_day]", got)
	}
}

func TestRun_PrewarmWaitIsBounded(t *testing.T) {
	dash := &fakeDashboard{
		block:  true,
		cities: []models.City{{Name: "Oslo", WeatherData: snapshot("Fog", 5, "2025-01-01 23:00")}},
	}
	bd := &fakeBackdrops{}
	s := NewScheduler(dash, bd, 0)
	s.settleTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	got := bd.requested()
	if len(got) != 1 || got[0] != "fog_night" {
		t.Errorf("prewarmed = %v, want [fog_night]", got)
	}
}
