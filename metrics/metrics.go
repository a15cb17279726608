/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics wires Prometheus counters/histograms for every engine
// component (spec §2 Observability row), generalizing the teacher's
// engine/metrics.go (a single requests-total counter + duration histogram
// pair) to one small metrics struct per component.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ChainMetrics tracks rule-chain invocation counts and durations, labeled
// by pattern and final outcome.
type ChainMetrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func NewChainMetrics() *ChainMetrics {
	m := &ChainMetrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: "chain", Name: "invocations_total",
			Help: "Total rule-chain invocations.",
		}, []string{"pattern", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apex", Subsystem: "chain", Name: "invocation_duration_seconds",
			Help: "Rule-chain invocation latency.", Buckets: prometheus.DefBuckets,
		}, []string{"pattern"}),
	}
	registerOnce(m.invocations, m.duration)
	return m
}

func (m *ChainMetrics) Observe(pattern, outcome string, d time.Duration) {
	m.invocations.WithLabelValues(pattern, outcome).Inc()
	m.duration.WithLabelValues(pattern).Observe(d.Seconds())
}

// EnrichmentMetrics tracks enrichment application counts, cache hit/miss,
// and per-enrichment latency (spec §2 Observability).
type EnrichmentMetrics struct {
	applied  *prometheus.CounterVec
	cache    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewEnrichmentMetrics() *EnrichmentMetrics {
	m := &EnrichmentMetrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: "enrich", Name: "applied_total",
			Help: "Total enrichments applied, labeled by result.",
		}, []string{"enrichment", "result"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: "enrich", Name: "cache_total",
			Help: "Lookup cache hit/miss counts.",
		}, []string{"enrichment", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apex", Subsystem: "enrich", Name: "duration_seconds",
			Help: "Enrichment application latency.", Buckets: prometheus.DefBuckets,
		}, []string{"enrichment"}),
	}
	registerOnce(m.applied, m.cache, m.duration)
	return m
}

func (m *EnrichmentMetrics) Applied(enrichment, result string) { m.applied.WithLabelValues(enrichment, result).Inc() }
func (m *EnrichmentMetrics) CacheHit(enrichment string)        { m.cache.WithLabelValues(enrichment, "hit").Inc() }
func (m *EnrichmentMetrics) CacheMiss(enrichment string)       { m.cache.WithLabelValues(enrichment, "miss").Inc() }
func (m *EnrichmentMetrics) Observe(enrichment string, d time.Duration) {
	m.duration.WithLabelValues(enrichment).Observe(d.Seconds())
}

// PoolMetrics tracks connection-pool health per spec §4.4: attempts,
// failures, active/idle gauges, health-check counters, retry counters.
type PoolMetrics struct {
	Attempts       *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	Active         *prometheus.GaugeVec
	Idle           *prometheus.GaugeVec
	HealthChecks   *prometheus.CounterVec
	HealthFailures *prometheus.CounterVec
	RetryAttempts  *prometheus.CounterVec
	RetrySuccesses *prometheus.CounterVec
	BatchOutcomes  *prometheus.CounterVec
	WriteSeconds   *prometheus.HistogramVec

	// Exact running write-time stats (spec §4.4: "average/min/max write
	// time (via atomic update; min via CAS)"), kept alongside the
	// Prometheus histogram above rather than instead of it — the
	// histogram serves dashboards/alerting, these serve exact in-process
	// reads. All four fields are accessed only via atomic ops.
	writeNanosSum   int64
	writeNanosCount int64
	writeNanosMin   int64
	writeNanosMax   int64
}

func NewPoolMetrics(subsystem string) *PoolMetrics {
	label := []string{"pool"}
	m := &PoolMetrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "connection_attempts_total", Help: "Connection acquisition attempts.",
		}, label),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "connection_failures_total", Help: "Connection acquisition failures.",
		}, label),
		Active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "connections_active", Help: "Active (borrowed) connections.",
		}, label),
		Idle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "connections_idle", Help: "Idle connections in the pool.",
		}, label),
		HealthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "health_checks_total", Help: "Health-check sweeps performed.",
		}, label),
		HealthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "health_check_failures_total", Help: "Health-check sweep failures.",
		}, label),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "retry_attempts_total", Help: "Retry attempts.",
		}, label),
		RetrySuccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "retry_successes_total", Help: "Retries that eventually succeeded.",
		}, label),
		BatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "batch_outcomes_total", Help: "Batch write outcomes.",
		}, []string{"pool", "outcome"}),
		WriteSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apex", Subsystem: subsystem, Name: "write_duration_seconds", Help: "Write operation latency.", Buckets: prometheus.DefBuckets,
		}, label),
	}
	registerOnce(m.Attempts, m.Failures, m.Active, m.Idle, m.HealthChecks, m.HealthFailures, m.RetryAttempts, m.RetrySuccesses, m.BatchOutcomes, m.WriteSeconds)
	return m
}

// ObserveWrite records one write's duration in the exported Prometheus
// histogram and in the exact atomic sum/count/min/max accumulators, so
// both a dashboard-friendly histogram and exact in-process min/max/average
// reads are available from one call site (spec §4.4).
func (m *PoolMetrics) ObserveWrite(pool string, d time.Duration) {
	m.WriteSeconds.WithLabelValues(pool).Observe(d.Seconds())

	nanos := d.Nanoseconds()
	atomic.AddInt64(&m.writeNanosSum, nanos)
	atomic.AddInt64(&m.writeNanosCount, 1)

	for {
		cur := atomic.LoadInt64(&m.writeNanosMax)
		if nanos <= cur {
			break
		}
		if atomic.CompareAndSwapInt64(&m.writeNanosMax, cur, nanos) {
			break
		}
	}
	for {
		cur := atomic.LoadInt64(&m.writeNanosMin)
		if cur != 0 && nanos >= cur {
			break
		}
		if atomic.CompareAndSwapInt64(&m.writeNanosMin, cur, nanos) {
			break
		}
	}
}

// AverageWriteTime returns the mean of every duration passed to ObserveWrite.
func (m *PoolMetrics) AverageWriteTime() time.Duration {
	count := atomic.LoadInt64(&m.writeNanosCount)
	if count == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&m.writeNanosSum) / count)
}

// MinWriteTime returns the smallest duration passed to ObserveWrite.
func (m *PoolMetrics) MinWriteTime() time.Duration {
	return time.Duration(atomic.LoadInt64(&m.writeNanosMin))
}

// MaxWriteTime returns the largest duration passed to ObserveWrite.
func (m *PoolMetrics) MaxWriteTime() time.Duration {
	return time.Duration(atomic.LoadInt64(&m.writeNanosMax))
}

// registerOnce registers each collector, tolerating AlreadyRegisteredError
// so repeated NewXMetrics calls in tests don't panic the default registry.
func registerOnce(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				// Any other registration error indicates a real metrics
				// bug (duplicate name with different help text, etc.);
				// surfacing it as a panic at startup is preferable to a
				// silently missing metric.
				panic(err)
			}
		}
	}
}
