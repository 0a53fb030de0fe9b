package imagegen

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lox/weatherdash/internal/forecast"
)

// Cache provides file-based caching for generated backdrop images, one file
// per condition and time of day.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// NewCache creates a new image cache in the specified directory.
// Images are refreshed after a week to provide variety.
func NewCache(dir string) *Cache {
	if err := os.MkdirAll(dir, 0755); err != nil {
		// The cache is optional; Set will fail and be logged by the caller.
		log.Printf("imagegen: could not create cache directory %s: %v", dir, err)
	}
	return &Cache{
		dir:    dir,
		maxAge: 7 * 24 * time.Hour,
	}
}

func (c *Cache) path(condition forecast.WeatherCondition) string {
	return filepath.Join(c.dir, fmt.Sprintf("weather_%s.png", condition))
}

// Get retrieves a cached image if it exists and is not stale.
func (c *Cache) Get(condition forecast.WeatherCondition) ([]byte, bool) {
	path := c.path(condition)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores an image in the cache.
func (c *Cache) Set(condition forecast.WeatherCondition, data []byte) error {
	return os.WriteFile(c.path(condition), data, 0644)
}
