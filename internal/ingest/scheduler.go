// Package ingest keeps the running dashboard's weather fresh on a schedule.
package ingest

import (
	"context"
	"log"
	"time"

	"github.com/lox/weatherdash/internal/forecast"
	"github.com/lox/weatherdash/internal/models"
)

// Dashboard is the part of *dashboard.Dashboard the scheduler drives.
type Dashboard interface {
	Cities() []models.City
	RefreshAll()
	Wait(ctx context.Context) error
}

// Backdrops returns a cached backdrop, scheduling generation on a miss.
// *imagegen.Backdrops implements it.
type Backdrops interface {
	Get(ctx context.Context, condition forecast.WeatherCondition, tod forecast.TimeOfDay) ([]byte, bool)
}

type Scheduler struct {
	dash            Dashboard
	backdrops       Backdrops
	refreshInterval time.Duration
	imageInterval   time.Duration
	settleTimeout   time.Duration
}

// NewScheduler returns a scheduler that remounts every city's fetch each
// refreshInterval. A zero interval disables periodic refresh, leaving fetches
// to name changes and explicit refreshes. backdrops may be nil.
func NewScheduler(dash Dashboard, backdrops Backdrops, refreshInterval time.Duration) *Scheduler {
	return &Scheduler{
		dash:            dash,
		backdrops:       backdrops,
		refreshInterval: refreshInterval,
		imageInterval:   time.Hour,
		settleTimeout:   30 * time.Second,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	// The first prewarm needs snapshots, and at startup the initial fetches
	// are still in flight.
	s.settle(ctx)
	s.checkWeatherImages(ctx)

	// A nil channel never fires, so a disabled refresh just never ticks.
	var refreshC <-chan time.Time
	if s.refreshInterval > 0 {
		refreshTicker := time.NewTicker(s.refreshInterval)
		defer refreshTicker.Stop()
		refreshC = refreshTicker.C
		log.Printf("scheduler: refreshing every %s", s.refreshInterval)
	}
	imageTicker := time.NewTicker(s.imageInterval) // Check hourly for time-of-day transitions
	defer imageTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-refreshC:
			s.refresh()
		case <-imageTicker.C:
			s.checkWeatherImages(ctx)
		}
	}
}

func (s *Scheduler) settle(ctx context.Context) {
	if s.backdrops == nil {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.settleTimeout)
	defer cancel()
	if err := s.dash.Wait(waitCtx); err != nil {
		log.Printf("scheduler: initial fetches not done after %s, prewarming what is ready", s.settleTimeout)
	}
}

func (s *Scheduler) refresh() {
	n := len(s.dash.Cities())
	if n == 0 {
		return
	}
	log.Printf("scheduler: refreshing %d cities", n)
	s.dash.RefreshAll()
}

// checkWeatherImages makes sure a backdrop exists, or is being generated, for
// every condition currently on the dashboard.
func (s *Scheduler) checkWeatherImages(ctx context.Context) {
	if s.backdrops == nil {
		return
	}

	seen := make(map[forecast.WeatherCondition]bool)
	for _, c := range s.dash.Cities() {
		if c.WeatherData == nil {
			continue
		}
		condition, tod := forecast.FromSnapshot(c.WeatherData)
		key := forecast.ConditionWithTime(condition, tod)
		if seen[key] {
			continue
		}
		seen[key] = true
		s.backdrops.Get(ctx, condition, tod)
	}
}
