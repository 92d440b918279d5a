// Package metric provides Prometheus metrics collection and monitoring.
package metric

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/cpu"
)

// systemMetricsInterval is how often system-level gauges refresh.
const systemMetricsInterval = 5 * time.Second

// Metrics contains the Prometheus metrics server and registered custom metrics.
type Metrics struct {
	httpServer      *http.Server
	config          Config
	registry        *prometheus.Registry
	peerConnections prometheus.Gauge
	relayMessages   *prometheus.CounterVec
	localSpeaking   prometheus.Gauge
	cpuUsage        prometheus.Gauge
	memoryUsage     prometheus.Gauge
	stop            chan struct{}
	done            chan struct{}
	stopOnce        sync.Once
	collecting      bool
}

// New creates a new Metrics instance with the specified configuration.
func New(config Config) *Metrics {
	return &Metrics{
		config:   config,
		registry: prometheus.NewRegistry(),
		peerConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peer_connections_total",
			Help: "Current number of connected peers.",
		}),
		relayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Relay messages by direction and type.",
		}, []string{"direction", "type"}), // Direction: "inbound" or "outbound"
		localSpeaking: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "local_speaking",
			Help: "Whether the local participant is currently speaking (0 or 1).",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percentage",
			Help: "CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Current memory usage in bytes.",
		}),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// RegisterMetrics registers custom metrics with the instance registry.
func (m *Metrics) RegisterMetrics() {
	m.registry.MustRegister(m.peerConnections)
	m.registry.MustRegister(m.relayMessages)
	m.registry.MustRegister(m.localSpeaking)
	m.registry.MustRegister(m.cpuUsage)
	m.registry.MustRegister(m.memoryUsage)
}

// Start initializes and starts the metrics HTTP server.
func (m *Metrics) Start() {
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", m.config.Port),
		Handler: mux,
	}

	go func() {
		log.Info().Int("port", m.config.Port).Str("path", m.config.Path).Msg("starting metrics server")
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}

// Stop shuts down the metrics server and the system metrics loop. Safe to
// call more than once.
func (m *Metrics) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		close(m.stop)
		if m.collecting {
			<-m.done
		}
		if m.httpServer != nil {
			log.Info().Int("port", m.config.Port).Msg("stopping metrics server")
			err = m.httpServer.Close()
		}
	})
	return err
}

// UpdateSystemMetrics collects and updates system-level metrics until Stop.
func (m *Metrics) UpdateSystemMetrics() {
	m.collecting = true
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(systemMetricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				var memStats runtime.MemStats
				runtime.ReadMemStats(&memStats)
				m.memoryUsage.Set(float64(memStats.Alloc))

				percentages, err := cpu.Percent(0, false)
				if err != nil || len(percentages) == 0 {
					continue
				}
				m.cpuUsage.Set(percentages[0])
			}
		}
	}()
}

// IncrementPeerConnections increments the connected peer count.
func (m *Metrics) IncrementPeerConnections() {
	m.peerConnections.Inc()
}

// DecrementPeerConnections decrements the connected peer count.
func (m *Metrics) DecrementPeerConnections() {
	m.peerConnections.Dec()
}

// ObserveRelayMessage counts one relay message.
func (m *Metrics) ObserveRelayMessage(direction, messageType string) {
	m.relayMessages.WithLabelValues(direction, messageType).Inc()
}

// SetLocalSpeaking records the local speaking indicator.
func (m *Metrics) SetLocalSpeaking(speaking bool) {
	if speaking {
		m.localSpeaking.Set(1)
	} else {
		m.localSpeaking.Set(0)
	}
}
