package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the server's collectors on a private registry.
type metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	answers   *prometheus.CounterVec
	reloads   *prometheus.CounterVec
	entities  prometheus.Gauge
	fromCache prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "qoyllur",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "qoyllur",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"route"},
		),
		answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "qoyllur",
				Subsystem: "engine",
				Name:      "answers_total",
				Help:      "Answers by intent and provenance",
			},
			[]string{"intent", "provenance"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "qoyllur",
				Subsystem: "engine",
				Name:      "reloads_total",
				Help:      "Graph reloads by result",
			},
			[]string{"result"},
		),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "qoyllur",
			Subsystem: "engine",
			Name:      "entities",
			Help:      "Entities in the loaded graph",
		}),
		fromCache: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "qoyllur",
			Subsystem: "engine",
			Name:      "from_cache",
			Help:      "1 when the loaded index came from the embedding cache",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.answers, m.reloads, m.entities, m.fromCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
