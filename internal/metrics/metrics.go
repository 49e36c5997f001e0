// Package metrics tracks ingestor counters. Each counter feeds both the
// Prometheus registry (for /metrics) and an atomic snapshot (for /stats).
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter is a monotonic count visible to both Prometheus and /stats.
type Counter struct {
	value atomic.Int64
	prom  prometheus.Counter
}

// Inc bumps the counter by one.
func (c *Counter) Inc() {
	c.value.Add(1)
	c.prom.Inc()
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

func newCounter(name, help string) *Counter {
	return &Counter{
		prom: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "opsconductor",
			Name:      name,
			Help:      help,
		}),
	}
}

// Ingest counters, exposed for /stats aggregation.
var (
	TrapsReceived  = newCounter("traps_received_total", "SNMP trap datagrams received")
	TrapsProcessed = newCounter("traps_processed_total", "SNMP traps that produced or refreshed an alert")
	TrapsDropped   = newCounter("traps_dropped_total", "SNMP traps dropped (no addon, parse failure, disabled type)")
	TrapErrors     = newCounter("trap_errors_total", "Errors while handling SNMP traps")

	WebhooksReceived  = newCounter("webhooks_received_total", "Webhook requests received")
	WebhooksProcessed = newCounter("webhooks_processed_total", "Webhook payloads that produced or refreshed an alert")
	WebhooksDropped   = newCounter("webhooks_dropped_total", "Webhook payloads dropped")
	WebhookErrors     = newCounter("webhook_errors_total", "Errors while handling webhooks")

	PollsRun       = newCounter("polls_run_total", "Poll jobs executed")
	PollsSucceeded = newCounter("polls_succeeded_total", "Poll jobs that completed successfully")
	PollsFailed    = newCounter("polls_failed_total", "Poll jobs that failed")

	ClearsDropped = newCounter("clears_dropped_total", "Clear events with no matching open alert")
)

// Snapshot returns all ingest counters keyed by their stats name.
func Snapshot() map[string]int64 {
	return map[string]int64{
		"traps_received":     TrapsReceived.Value(),
		"traps_processed":    TrapsProcessed.Value(),
		"traps_dropped":      TrapsDropped.Value(),
		"trap_errors":        TrapErrors.Value(),
		"webhooks_received":  WebhooksReceived.Value(),
		"webhooks_processed": WebhooksProcessed.Value(),
		"webhooks_dropped":   WebhooksDropped.Value(),
		"webhook_errors":     WebhookErrors.Value(),
		"polls_run":          PollsRun.Value(),
		"polls_succeeded":    PollsSucceeded.Value(),
		"polls_failed":       PollsFailed.Value(),
		"clears_dropped":     ClearsDropped.Value(),
	}
}
