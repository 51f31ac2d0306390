package coordinator

import (
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsSnapshot is the read-only view of the coordinator's counters
// exposed on demand (spec section 4.7).
type StatsSnapshot struct {
	OrdersProcessed  uint64
	TradesMatched    uint64
	UpdatesBroadcast uint64
	UpdatesDropped   uint64
	TicksDropped     uint64
	ActiveWorkers    int
	WorkersRestarted uint64
	LastTickUnixMS   int64
	UptimeSeconds    float64
}

// statistics wraps the coordinator's prometheus collectors on a private
// registry (never the global DefaultRegisterer, so multiple
// coordinators — e.g. across tests — never collide on duplicate
// registration).
type statistics struct {
	registry *prometheus.Registry

	ordersProcessed  prometheus.Counter
	tradesMatched    prometheus.Counter
	updatesBroadcast prometheus.Counter
	updatesDropped   prometheus.Counter
	ticksDropped     prometheus.Counter
	lastTickUnixMS   prometheus.Gauge
	uptimeSeconds    prometheus.GaugeFunc
}

// newStatistics builds the coordinator's collectors. startTime anchors
// the uptime gauge, which computes time.Since(startTime) on every read
// rather than being ticked by hand (spec section 4.7's "uptime" counter).
func newStatistics(startTime time.Time) *statistics {
	registry := prometheus.NewRegistry()

	s := &statistics{
		registry: registry,
		ordersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kurumisan_orders_processed_total",
			Help: "Total number of orders processed by the task queue.",
		}),
		tradesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kurumisan_trades_matched_total",
			Help: "Total number of trades produced across all ticks.",
		}),
		updatesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kurumisan_market_updates_broadcast_total",
			Help: "Total number of market updates delivered to subscribers.",
		}),
		updatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kurumisan_market_updates_dropped_total",
			Help: "Total number of market updates dropped by a full subscriber buffer.",
		}),
		ticksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kurumisan_ticks_dropped_total",
			Help: "Total number of tick-loop enqueue attempts dropped due to a full task queue.",
		}),
		lastTickUnixMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kurumisan_last_tick_unix_ms",
			Help: "Timestamp (ms) of the most recently completed tick, across all items.",
		}),
		uptimeSeconds: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "kurumisan_uptime_seconds",
			Help: "Seconds elapsed since the coordinator started.",
		}, func() float64 {
			return time.Since(startTime).Seconds()
		}),
	}

	registry.MustRegister(
		s.ordersProcessed,
		s.tradesMatched,
		s.updatesBroadcast,
		s.updatesDropped,
		s.ticksDropped,
		s.lastTickUnixMS,
		s.uptimeSeconds,
	)
	return s
}

// Registry exposes the private prometheus registry for a /metrics scrape
// endpoint to serve.
func (s *statistics) Registry() *prometheus.Registry {
	return s.registry
}

func (s *statistics) snapshot(activeWorkers, workersRestarted int) StatsSnapshot {
	return StatsSnapshot{
		OrdersProcessed:  readCounter(s.ordersProcessed),
		TradesMatched:    readCounter(s.tradesMatched),
		UpdatesBroadcast: readCounter(s.updatesBroadcast),
		UpdatesDropped:   readCounter(s.updatesDropped),
		TicksDropped:     readCounter(s.ticksDropped),
		ActiveWorkers:    activeWorkers,
		WorkersRestarted: uint64(workersRestarted),
		LastTickUnixMS:   int64(readGauge(s.lastTickUnixMS)),
		UptimeSeconds:    readGaugeFunc(s.uptimeSeconds),
	}
}

func readCounter(c prometheus.Counter) uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}

func readGauge(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func readGaugeFunc(g prometheus.GaugeFunc) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
