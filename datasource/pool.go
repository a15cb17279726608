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

// Package datasource implements the §4.4 data-access layer: pooled
// connections, health checks, circuit breakers, classified retries, and
// named-parameter query binding, fronting SQL, REST, cache, message-queue
// and file-system backends behind one LookupService-shaped interface.
package datasource

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/metrics"
	"github.com/apex/engine/model"
)

// Conn is a borrowed pool resource. Implementations close over whatever
// concrete handle they wrap (a *sqlx.DB, an *http.Client, a *redis.Client).
type Conn interface {
	// Ping validates the connection is still usable (the pool calls this
	// for testOnBorrow/testOnReturn; some sources' Probe calls it too).
	Ping(ctx context.Context) error
	// Close releases the underlying handle permanently (idle-reaper and
	// maxLifetime eviction, failed borrow/return tests, unhealthy releases,
	// and Pool.Close — a healthy release returns the conn to the pool).
	Close() error
}

// Factory creates a new Conn for the pool to manage.
type Factory func(ctx context.Context) (Conn, error)

type pooledConn struct {
	conn       Conn
	borrowedAt time.Time
	releasedAt time.Time // last time this conn went idle; zero while borrowed
	createdAt  time.Time
	el         *list.Element // position in the idle list while idle
}

// Pool implements the min/initial/max-sized connection pool of spec §4.4:
// idle connections are evicted once idleTimeout has passed since release,
// and connections are recycled once maxLifetime has passed since creation.
// A borrow held past leakDetectionThreshold is neither reclaimed nor logged
// or counted: the pool records nothing about it.
type Pool struct {
	cfg     model.PoolConfig
	factory Factory
	metrics *metrics.PoolMetrics
	label   string

	mu      sync.Mutex
	idle    *list.List // list of *pooledConn, front = most recently released
	size    int        // count of conns created and not yet closed
	closed  bool
}

func NewPool(name string, cfg model.PoolConfig, factory Factory) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		cfg:     cfg,
		factory: factory,
		metrics: metrics.NewPoolMetrics("datasource"),
		label:   name,
		idle:    list.New(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()
	for i := 0; i < cfg.Initial; i++ {
		c, err := p.open(ctx)
		if err != nil {
			return nil, err
		}
		p.idle.PushFront(&pooledConn{conn: c, createdAt: time.Now(), releasedAt: time.Now()})
	}
	p.metrics.Idle.WithLabelValues(p.label).Set(float64(p.idle.Len()))
	return p, nil
}

func (p *Pool) open(ctx context.Context) (Conn, error) {
	p.metrics.Attempts.WithLabelValues(p.label).Inc()
	c, err := p.factory(ctx)
	if err != nil {
		p.metrics.Failures.WithLabelValues(p.label).Inc()
		return nil, apexerr.DataAccess(ClassifyError(err), p.label, err)
	}
	p.size++
	return c, nil
}

// Borrow acquires a connection, growing the pool up to Max if no idle
// connection is available, testing it per testOnBorrow if configured.
func (p *Pool) Borrow(ctx context.Context) (Conn, func(healthy bool), error) {
	for {
		pc, tryOpen, err := p.takeIdle()
		if err != nil {
			return nil, nil, err
		}
		if pc == nil {
			if !tryOpen {
				return nil, nil, apexerr.New(apexerr.KindDataAccess, p.label, "pool exhausted")
			}
			break
		}

		if p.cfg.MaxLifetime > 0 && time.Since(pc.createdAt) > p.cfg.MaxLifetime {
			_ = pc.conn.Close()
			p.discard()
			continue
		}
		if p.cfg.TestOnBorrow {
			if err := pc.conn.Ping(ctx); err != nil {
				_ = pc.conn.Close()
				p.discard()
				continue
			}
		}
		pc.borrowedAt = time.Now()
		p.metrics.Active.WithLabelValues(p.label).Inc()
		p.mu.Lock()
		p.metrics.Idle.WithLabelValues(p.label).Set(float64(p.idle.Len()))
		p.mu.Unlock()
		return pc.conn, p.releaser(pc), nil
	}

	borrowCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.ConnectionTimeout > 0 {
		borrowCtx, cancel = context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
		defer cancel()
	}
	c, err := p.open(borrowCtx)
	if err != nil {
		return nil, nil, err
	}
	pc := &pooledConn{conn: c, createdAt: time.Now(), borrowedAt: time.Now()}
	p.metrics.Active.WithLabelValues(p.label).Inc()
	return pc.conn, p.releaser(pc), nil
}

// takeIdle pops the front idle connection, if any. A nil pc with tryOpen
// true means the idle list is empty but the pool has room to grow; tryOpen
// false means Max has been reached.
func (p *Pool) takeIdle() (pc *pooledConn, tryOpen bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false, apexerr.New(apexerr.KindDataAccess, p.label, "pool closed")
	}
	if el := p.idle.Front(); el != nil {
		p.idle.Remove(el)
		return el.Value.(*pooledConn), false, nil
	}
	return nil, p.size < p.cfg.Max, nil
}

// discard accounts for a connection closed outside the normal release path
// (a failed MaxLifetime or testOnBorrow check during Borrow).
func (p *Pool) discard() {
	p.mu.Lock()
	p.size--
	p.mu.Unlock()
}

func (p *Pool) releaser(pc *pooledConn) func(healthy bool) {
	return func(healthy bool) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.metrics.Active.WithLabelValues(p.label).Dec()
		if p.cfg.LeakDetectionThreshold > 0 && time.Since(pc.borrowedAt) > p.cfg.LeakDetectionThreshold {
			// No log entry or metric is recorded for a late release.
		}
		if !healthy || p.closed {
			_ = pc.conn.Close()
			p.size--
			return
		}
		if p.cfg.TestOnReturn {
			if err := pc.conn.Ping(context.Background()); err != nil {
				_ = pc.conn.Close()
				p.size--
				return
			}
		}
		if p.idle.Len() >= p.cfg.Max {
			_ = pc.conn.Close()
			p.size--
			return
		}
		pc.releasedAt = time.Now()
		p.idle.PushFront(pc)
		p.metrics.Idle.WithLabelValues(p.label).Set(float64(p.idle.Len()))
	}
}

// ReapIdle closes idle connections that have exceeded idleTimeout, never
// dropping below Min. Intended to run on a ticker alongside the health
// check loop (spec §4.4).
func (p *Pool) ReapIdle() {
	p.mu.Lock()
	if p.cfg.IdleTimeout <= 0 {
		p.mu.Unlock()
		return
	}
	var toClose []*pooledConn
	for el := p.idle.Back(); el != nil; {
		prev := el.Prev()
		if p.size <= p.cfg.Min {
			break
		}
		pc := el.Value.(*pooledConn)
		if time.Since(pc.releasedAt) > p.cfg.IdleTimeout {
			p.idle.Remove(el)
			p.size--
			toClose = append(toClose, pc)
		}
		el = prev
	}
	p.metrics.Idle.WithLabelValues(p.label).Set(float64(p.idle.Len()))
	p.mu.Unlock()
	for _, pc := range toClose {
		_ = pc.conn.Close()
	}
}

// Close closes every idle connection and marks the pool unusable.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for el := p.idle.Front(); el != nil; el = el.Next() {
		_ = el.Value.(*pooledConn).conn.Close()
	}
	p.idle.Init()
	return nil
}

// Size reports the current total (idle + borrowed) connection count.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func (p *Pool) String() string {
	return fmt.Sprintf("pool(%s): size=%d idle=%d", p.label, p.Size(), p.idle.Len())
}
