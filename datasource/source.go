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
	"time"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/enrich"
	"github.com/apex/engine/model"
)

// Source is the common shape every concrete backend (database, rest-api,
// cache, message-queue, file-system) implements, fronted uniformly as a
// LookupService for the enrichment processor (spec §4.4/§4.5).
type Source interface {
	enrich.LookupService
	Name() string
	Close() error
}

// RetryPolicy bounds retry attempts for Transient-classified errors (spec
// §4.4 "bounded retry with backoff"). Backoff is linear (attempt *
// baseDelay) rather than exponential: the spec gives no jitter/backoff-base
// requirement, and linear backoff is simpler to reason about for the small
// (<=5) attempt counts these sources configure — documented as an Open
// Question decision in the project notes.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

// secs converts a config's plain-int seconds field to a time.Duration.
func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// WithRetry runs op, retrying while the error classifies as Transient, up
// to policy.MaxAttempts, sleeping attempt*BaseDelay between tries. metrics
// may be nil; when set, it records an attempt for every try after the first
// and a success on eventual recovery (spec §4.4 Observability: retryAttempts/retrySuccesses).
func WithRetry(ctx context.Context, policy RetryPolicy, label string, m *PoolRetryMetrics, op func(ctx context.Context) error) error {
	var lastErr error
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apexerr.Wrap(apexerr.KindCancelled, label, ctxErr)
		}
		if attempt > 1 && m != nil {
			m.Attempt(label)
		}
		err := op(ctx)
		if err == nil {
			if attempt > 1 && m != nil {
				m.Success(label)
			}
			return nil
		}
		lastErr = err
		class := ClassifyError(err)
		if !Retryable(class) || attempt == attempts {
			return apexerr.DataAccess(class, label, err)
		}
		select {
		case <-time.After(time.Duration(attempt) * policy.BaseDelay):
		case <-ctx.Done():
			return apexerr.Wrap(apexerr.KindCancelled, label, ctx.Err())
		}
	}
	return apexerr.DataAccess(ClassifyError(lastErr), label, lastErr)
}

// PoolRetryMetrics adapts metrics.PoolMetrics's retry counters for WithRetry.
type PoolRetryMetrics struct {
	Attempts  func(label string)
	Successes func(label string)
}

func (m *PoolRetryMetrics) Attempt(label string) { m.Attempts(label) }
func (m *PoolRetryMetrics) Success(label string) { m.Successes(label) }

// Config bundles the pieces a concrete Source constructor needs beyond
// model.DataSourceConfig itself.
type Config struct {
	Source  model.DataSourceConfig
	Pool    *Pool
	Breaker *CircuitBreaker
	Retry   RetryPolicy
	Health  *HealthChecker
}
