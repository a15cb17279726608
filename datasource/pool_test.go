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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/engine/model"
)

type fakeConn struct {
	closed int32
}

func (c *fakeConn) Ping(ctx context.Context) error { return nil }
func (c *fakeConn) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return nil
}
func (c *fakeConn) isClosed() bool { return atomic.LoadInt32(&c.closed) == 1 }

func newCountingFactory() (Factory, *int32) {
	var n int32
	return func(ctx context.Context) (Conn, error) {
		atomic.AddInt32(&n, 1)
		return &fakeConn{}, nil
	}, &n
}

func basePoolConfig() model.PoolConfig {
	return model.PoolConfig{
		Min:               0,
		Initial:           1,
		Max:               2,
		ConnectionTimeout: time.Second,
	}
}

func TestPoolBorrowReleaseReusesIdleConn(t *testing.T) {
	factory, created := newCountingFactory()
	cfg := basePoolConfig()
	p, err := NewPool("test", cfg, factory)
	require.NoError(t, err)
	require.EqualValues(t, 1, *created) // Initial=1 pre-warmed

	conn, release, err := p.Borrow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, conn)
	release(true)

	conn2, release2, err := p.Borrow(context.Background())
	require.NoError(t, err)
	require.Same(t, conn, conn2)
	release2(true)

	assert.EqualValues(t, 1, *created, "a released healthy conn must be reused, not recreated")
}

func TestPoolBorrowGrowsUpToMaxThenExhausts(t *testing.T) {
	factory, created := newCountingFactory()
	cfg := basePoolConfig()
	p, err := NewPool("test", cfg, factory)
	require.NoError(t, err)

	_, release1, err := p.Borrow(context.Background())
	require.NoError(t, err)
	_, release2, err := p.Borrow(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, *created)

	_, _, err = p.Borrow(context.Background())
	assert.Error(t, err, "borrowing past Max with no idle conn available must fail")

	release1(true)
	release2(true)
}

func TestPoolBorrowDiscardsUnhealthyConnOnRelease(t *testing.T) {
	factory, created := newCountingFactory()
	cfg := basePoolConfig()
	p, err := NewPool("test", cfg, factory)
	require.NoError(t, err)

	conn, release, err := p.Borrow(context.Background())
	require.NoError(t, err)
	release(false) // unhealthy: must be closed, not returned to idle
	assert.True(t, conn.(*fakeConn).isClosed())
	assert.Equal(t, 0, p.Size())

	_, release2, err := p.Borrow(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, *created, "an unhealthy release must force a fresh conn on next borrow")
	release2(true)
}

func TestPoolReapIdleNeverDropsBelowMin(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := basePoolConfig()
	cfg.Min = 1
	cfg.Initial = 1
	cfg.IdleTimeout = time.Nanosecond
	p, err := NewPool("test", cfg, factory)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	p.ReapIdle()

	assert.Equal(t, 1, p.Size(), "reaping must never take the pool below Min")
}

func TestPoolReapIdleClosesExpiredIdleConns(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := basePoolConfig()
	cfg.Min = 0
	cfg.Initial = 0
	cfg.Max = 2
	cfg.IdleTimeout = time.Nanosecond
	p, err := NewPool("test", cfg, factory)
	require.NoError(t, err)

	conn, release, err := p.Borrow(context.Background())
	require.NoError(t, err)
	release(true)
	require.Equal(t, 1, p.Size())

	time.Sleep(time.Millisecond)
	p.ReapIdle()

	assert.Equal(t, 0, p.Size())
	assert.True(t, conn.(*fakeConn).isClosed())
}

func TestPoolCloseRejectsFurtherBorrow(t *testing.T) {
	factory, _ := newCountingFactory()
	p, err := NewPool("test", basePoolConfig(), factory)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, _, err = p.Borrow(context.Background())
	assert.Error(t, err)
}
