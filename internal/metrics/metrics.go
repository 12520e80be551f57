// Package metrics exposes the notice stream of a simulation as Prometheus
// collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/tradesim/internal/engine"
)

const namespace = "tradesim"

// Collector turns notices into Prometheus series. Observe runs on the
// simulation goroutine; the registry is safe to scrape concurrently.
type Collector struct {
	reg *prometheus.Registry

	sent      *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	penalties *prometheus.CounterVec
	demands   *prometheus.CounterVec
	orders    *prometheus.CounterVec
	balance   *prometheus.GaugeVec
	stock     *prometheus.GaugeVec
	days      prometheus.Gauge
}

// New creates a collector registered on its own registry.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_sent_total",
			Help:      "Messages sent, by content kind.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_rejected_total",
			Help:      "Messages rejected by their receiver, by content kind.",
		}, []string{"kind"}),
		penalties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "penalties_total",
			Help:      "Penalties applied, by type.",
		}, []string{"type"}),
		demands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "demands_total",
			Help:      "Demands raised, by product.",
		}, []string{"product"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order lifecycle events, by outcome.",
		}, []string{"outcome"}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance",
			Help:      "Current account balance, by actor.",
		}, []string{"actor"}),
		stock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stock_actual",
			Help:      "Physically present stock, by actor and product.",
		}, []string{"actor", "product"}),
		days: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sim_days",
			Help:      "Simulated days elapsed.",
		}),
	}
	c.reg.MustRegister(c.sent, c.rejected, c.penalties, c.demands, c.orders, c.balance, c.stock, c.days)
	return c
}

// Registry returns the registry holding the collector's series.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Observe is an engine.Listener.
func (c *Collector) Observe(n engine.Notice) {
	switch n.Category {
	case engine.CategoryContent:
		kind, _ := n.Meta["content"].(string)
		switch n.Kind {
		case "sent":
			c.sent.WithLabelValues(kind).Inc()
		case "rejected":
			c.rejected.WithLabelValues(kind).Inc()
		}
	case engine.CategoryPenalty:
		c.penalties.WithLabelValues(n.Kind).Inc()
	case engine.CategoryDemand:
		if n.Kind == "demand" {
			product, _ := n.Meta["product"].(string)
			c.demands.WithLabelValues(product).Inc()
		}
	case engine.CategoryOrder:
		c.orders.WithLabelValues(n.Kind).Inc()
	case engine.CategoryFinance:
		if v, ok := n.Meta["new"].(float64); ok && n.Kind == "balance" {
			c.balance.WithLabelValues(n.Actor).Set(v)
		}
	case engine.CategoryInventory:
		product, _ := n.Meta["product"].(string)
		if v, ok := n.Meta["actual"].(float64); ok && n.Kind == "stock" {
			c.stock.WithLabelValues(n.Actor, product).Set(v)
		}
	}
	c.days.Set(n.At.Days())
}

// Tick records the simulated time when no notice was emitted.
func (c *Collector) Tick(now engine.Time) { c.days.Set(now.Days()) }
