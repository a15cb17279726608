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
	"sync"
	"time"

	"github.com/apex/engine/apexerr"
)

// breakerState is the circuit breaker's state machine (spec §4.4):
// closed -> open on failureThreshold consecutive failures, open -> half-open
// after timeoutSeconds, half-open -> closed on one success or -> open on
// one failure.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker guards calls to a data source/sink implementation.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	timeout          time.Duration
	state            breakerState
	consecutiveFails int
	openedAt         time.Time
	now              func() time.Time
}

func NewCircuitBreaker(failureThreshold int, timeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{failureThreshold: failureThreshold, timeout: timeout, now: time.Now}
}

// Allow reports whether a call may proceed, transitioning open->half-open
// once the timeout has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case stateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.timeout {
			cb.state = stateHalfOpen
			return nil
		}
		return apexerr.New(apexerr.KindCircuit, "", "circuit open")
	default:
		return nil
	}
}

// Success records a successful call, closing the breaker.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFails = 0
	cb.state = stateClosed
}

// Failure records a failed call, tripping the breaker open once
// consecutive failures reach failureThreshold (or immediately, from
// half-open).
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateHalfOpen {
		cb.trip()
		return
	}
	cb.consecutiveFails++
	if cb.consecutiveFails >= cb.failureThreshold {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = stateOpen
	cb.openedAt = cb.now()
	cb.consecutiveFails = cb.failureThreshold
}

// State reports the current state as a label for metrics/diagnostics.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
