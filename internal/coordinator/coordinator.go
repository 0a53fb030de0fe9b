// Package coordinator keeps each dashboard city's weather data in sync with
// the provider.
//
// A Coordinator is bound to one city name at a time. Setting a new name
// starts exactly one fetch; the result is written to a Sink unless a later
// name change or refresh has superseded it. Nothing else triggers a fetch.
package coordinator

import (
	"context"
	"log"
	"sync"

	"github.com/lox/weatherdash/internal/metrics"
	"github.com/lox/weatherdash/internal/models"
)

const defaultErrorMessage = "Failed to fetch weather data"

// Fetcher retrieves a forecast snapshot for a city name.
type Fetcher interface {
	Forecast(ctx context.Context, name string) (*models.WeatherSnapshot, error)
}

// Sink receives fetch outcomes. *citylist.Store implements it.
type Sink interface {
	UpdateWeather(name string, snap *models.WeatherSnapshot)
	SetCityError(name, msg string)
}

type Phase int

const (
	Idle Phase = iota
	Fetching
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Fetching:
		return "fetching"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

type Coordinator struct {
	parent  context.Context
	fetcher Fetcher
	sink    Sink

	// deliverMu is held while a result is checked and written to the sink.
	// SetName and Refresh take it too, so once they return no result from
	// an earlier generation can be delivered.
	deliverMu sync.Mutex

	mu     sync.Mutex
	name   string
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	phase  Phase
}

// New returns an idle coordinator. Fetches run under ctx, so cancelling it
// stops every in-flight request.
func New(ctx context.Context, fetcher Fetcher, sink Sink) *Coordinator {
	return &Coordinator{
		parent:  ctx,
		fetcher: fetcher,
		sink:    sink,
	}
}

// Name returns the city the coordinator is bound to.
func (c *Coordinator) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Loading reports whether a fetch for the current name is in flight.
func (c *Coordinator) Loading() bool {
	return c.Phase() == Fetching
}

// SetName binds the coordinator to name. A different name cancels any
// in-flight fetch and starts a new one; the same name is a no-op. An empty
// name returns the coordinator to Idle.
func (c *Coordinator) SetName(name string) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == c.name && c.phase != Idle {
		return
	}
	c.name = name
	c.restartLocked()
}

// Refresh re-runs the fetch for the current name, as if the card were
// remounted.
func (c *Coordinator) Refresh() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restartLocked()
}

// Close cancels any in-flight fetch and leaves the coordinator Idle. It does
// not wait for a delivery already in progress, so it is safe to call from a
// store subscriber.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.stopLocked()
	c.phase = Idle
}

// Wait blocks until no fetch for the current generation is in flight.
func (c *Coordinator) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.phase != Fetching {
			c.mu.Unlock()
			return nil
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Coordinator) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Coordinator) restartLocked() {
	c.gen++
	c.stopLocked()
	if c.name == "" {
		c.phase = Idle
		return
	}

	ctx, cancel := context.WithCancel(c.parent)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.phase = Fetching
	go c.run(ctx, c.gen, c.name, done)
}

func (c *Coordinator) run(ctx context.Context, gen uint64, name string, done chan struct{}) {
	defer close(done)

	snap, err := c.fetcher.Forecast(ctx, name)

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	if !c.current(gen) {
		metrics.StaleResultsDiscarded.Inc()
		return
	}

	phase := Succeeded
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = defaultErrorMessage
		}
		log.Printf("coordinator: fetch %q failed: %v", name, err)
		metrics.FetchesTotal.WithLabelValues("failed").Inc()
		c.sink.SetCityError(name, msg)
		phase = Failed
	} else {
		metrics.FetchesTotal.WithLabelValues("succeeded").Inc()
		c.sink.UpdateWeather(name, snap)
	}

	c.mu.Lock()
	if c.gen == gen {
		c.phase = phase
		c.stopLocked()
	}
	c.mu.Unlock()
}

func (c *Coordinator) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}
