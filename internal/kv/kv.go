// Package kv persists single JSON-serialized values under string keys.
package kv

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/lox/weatherdash/internal/metrics"
)

// Backend stores raw string values. Get reports ok=false for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Name() string
}

// EntryStats describes a stored entry.
type EntryStats struct {
	Key           string    `json:"key"`
	Size          int       `json:"size"`
	Writes        int64     `json:"writes"`
	UpdatedAt     time.Time `json:"updated_at"`
	SchemaVersion int       `json:"schema_version"`
}

// StatsBackend is implemented by backends that keep bookkeeping per key.
type StatsBackend interface {
	Stats(ctx context.Context, key string) (*EntryStats, error)
}

// Value is one typed value stored under a fixed key.
//
// Load never fails: an absent, empty, unreadable or unparsable entry yields
// the default. Save never fails either; errors are logged and counted.
type Value[T any] struct {
	backend Backend
	key     string
	def     T
}

func NewValue[T any](backend Backend, key string, def T) *Value[T] {
	return &Value[T]{backend: backend, key: key, def: def}
}

// Stats describes the stored entry. It returns nil if the backend keeps no
// stats or nothing has been saved yet.
func (v *Value[T]) Stats(ctx context.Context) (*EntryStats, error) {
	sb, ok := v.backend.(StatsBackend)
	if !ok {
		return nil, nil
	}
	return sb.Stats(ctx, v.key)
}

func (v *Value[T]) Load(ctx context.Context) T {
	raw, ok, err := v.backend.Get(ctx, v.key)
	if err != nil {
		log.Printf("persist: read %q from %s: %v", v.key, v.backend.Name(), err)
		return v.def
	}
	if !ok || raw == "" {
		return v.def
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("persist: parse %q: %v", v.key, err)
		return v.def
	}
	return out
}

func (v *Value[T]) Save(ctx context.Context, val T) {
	data, err := json.Marshal(val)
	if err != nil {
		log.Printf("persist: serialize %q: %v", v.key, err)
		metrics.PersistWritesTotal.WithLabelValues(v.backend.Name(), "error").Inc()
		return
	}
	if err := v.backend.Set(ctx, v.key, string(data)); err != nil {
		log.Printf("persist: write %q to %s: %v", v.key, v.backend.Name(), err)
		metrics.PersistWritesTotal.WithLabelValues(v.backend.Name(), "error").Inc()
		return
	}
	metrics.PersistWritesTotal.WithLabelValues(v.backend.Name(), "ok").Inc()
}

// Memory is an in-process Backend.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Name() string {
	return "memory"
}
