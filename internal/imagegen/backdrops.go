package imagegen

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lox/weatherdash/internal/forecast"
)

// ImageGenerator produces a backdrop for a condition. *Generator implements it.
type ImageGenerator interface {
	Generate(ctx context.Context, condition forecast.WeatherCondition, tod forecast.TimeOfDay) ([]byte, error)
}

// Backdrops serves cached backdrops and generates missing ones in the
// background, at most one generation at a time.
type Backdrops struct {
	cache   *Cache
	gen     ImageGenerator
	timeout time.Duration

	genMu sync.Mutex

	mu      sync.Mutex
	pending map[forecast.WeatherCondition]bool
	wg      sync.WaitGroup
}

// NewBackdrops returns a Backdrops reading from cache. gen may be nil, in
// which case only already-cached images are served.
func NewBackdrops(cache *Cache, gen ImageGenerator) *Backdrops {
	return &Backdrops{
		cache:   cache,
		gen:     gen,
		timeout: 2 * time.Minute,
		pending: make(map[forecast.WeatherCondition]bool),
	}
}

// Get returns the cached backdrop for the condition, if any. On a miss it
// schedules generation and reports false; the caller renders a fallback.
func (b *Backdrops) Get(ctx context.Context, condition forecast.WeatherCondition, tod forecast.TimeOfDay) ([]byte, bool) {
	key := forecast.ConditionWithTime(condition, tod)
	if data, ok := b.cache.Get(key); ok {
		return data, true
	}
	b.schedule(ctx, condition, tod)
	return nil, false
}

func (b *Backdrops) schedule(ctx context.Context, condition forecast.WeatherCondition, tod forecast.TimeOfDay) {
	if b.gen == nil {
		return
	}
	key := forecast.ConditionWithTime(condition, tod)

	b.mu.Lock()
	if b.pending[key] {
		b.mu.Unlock()
		return
	}
	b.pending[key] = true
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			b.mu.Lock()
			delete(b.pending, key)
			b.mu.Unlock()
		}()
		b.generateAndCache(context.WithoutCancel(ctx), condition, tod)
	}()
}

func (b *Backdrops) generateAndCache(ctx context.Context, condition forecast.WeatherCondition, tod forecast.TimeOfDay) {
	key := forecast.ConditionWithTime(condition, tod)

	b.genMu.Lock()
	defer b.genMu.Unlock()

	if _, ok := b.cache.Get(key); ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	data, err := b.gen.Generate(ctx, condition, tod)
	if err != nil {
		log.Printf("imagegen: background generation for %s failed: %v", key, err)
		return
	}
	if err := b.cache.Set(key, data); err != nil {
		log.Printf("imagegen: cache %s: %v", key, err)
		return
	}
	log.Printf("imagegen: cached backdrop for %s", key)
}

// Wait blocks until scheduled generations have finished.
func (b *Backdrops) Wait() {
	b.wg.Wait()
}
