package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherdash_weather_api_calls_total",
			Help: "Total weatherapi.com calls",
		},
		[]string{"endpoint", "status"},
	)

	WeatherAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherdash_weather_api_latency_seconds",
			Help:    "weatherapi.com call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherdash_fetches_total",
			Help: "Per-city forecast fetches by outcome",
		},
		[]string{"outcome"},
	)

	StaleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherdash_stale_results_discarded_total",
			Help: "Fetch results dropped because a newer fetch superseded them",
		},
	)

	PersistWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherdash_persist_writes_total",
			Help: "Writes of the city list to persistent storage",
		},
		[]string{"backend", "status"},
	)

	CitiesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatherdash_cities_tracked",
			Help: "Cities with a mounted fetch coordinator",
		},
	)

	ImagesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherdash_images_generated_total",
			Help: "Condition backdrop generations by status",
		},
		[]string{"status"},
	)
)
