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

package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/apex/engine/metrics"
	"github.com/apex/engine/model"
)

// Status is the health-check state machine of spec §4.4.
type Status string

const (
	StatusNotInitialized Status = "NotInitialized"
	StatusConnecting     Status = "Connecting"
	StatusConnected      Status = "Connected"
	StatusDegraded       Status = "Degraded"
	StatusUnhealthy      Status = "Unhealthy"
	StatusShutdown       Status = "Shutdown"
	StatusError          Status = "Error"
)

// Prober performs one health-check round trip (a ping, a query, an HTTP
// GET against healthCheck.endpoint — concrete implementations live
// alongside each source kind).
type Prober interface {
	Probe(ctx context.Context) error
}

// HealthChecker runs cfg's probe on a ticker and tracks consecutive
// failure/success counts against failureThreshold/successThreshold to
// decide Connected/Degraded/Unhealthy transitions (spec §4.4).
type HealthChecker struct {
	cfg     model.HealthCheckConfig
	prober  Prober
	metrics *metrics.PoolMetrics
	label   string

	mu                sync.Mutex
	status            Status
	consecutiveFails  int
	consecutiveOK     int

	stop chan struct{}
}

func NewHealthChecker(name string, cfg model.HealthCheckConfig, prober Prober, m *metrics.PoolMetrics) *HealthChecker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &HealthChecker{cfg: cfg, prober: prober, metrics: m, label: name, status: StatusNotInitialized, stop: make(chan struct{})}
}

// Run blocks, probing every intervalSeconds until ctx is done or Stop is
// called. Intended to run in its own goroutine.
func (h *HealthChecker) Run(ctx context.Context) {
	interval := time.Duration(h.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	h.setStatus(StatusConnecting)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.setStatus(StatusShutdown)
			return
		case <-h.stop:
			h.setStatus(StatusShutdown)
			return
		case <-ticker.C:
			h.probeOnce(ctx)
		}
	}
}

func (h *HealthChecker) probeOnce(ctx context.Context) {
	timeout := time.Duration(h.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	h.metrics.HealthChecks.WithLabelValues(h.label).Inc()
	err := h.prober.Probe(probeCtx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.metrics.HealthFailures.WithLabelValues(h.label).Inc()
		h.consecutiveOK = 0
		h.consecutiveFails++
		switch {
		case h.consecutiveFails >= h.cfg.FailureThreshold:
			h.status = StatusUnhealthy
		default:
			h.status = StatusDegraded
		}
		return
	}
	h.consecutiveFails = 0
	h.consecutiveOK++
	if h.consecutiveOK >= h.cfg.SuccessThreshold {
		h.status = StatusConnected
	}
}

func (h *HealthChecker) setStatus(s Status) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

func (h *HealthChecker) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Stop signals Run to exit.
func (h *HealthChecker) Stop() { close(h.stop) }
