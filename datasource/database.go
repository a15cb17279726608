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
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/model"
)

// sqlConn adapts *sqlx.DB to the pool's Conn interface.
type sqlConn struct{ db *sqlx.DB }

func (c *sqlConn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *sqlConn) Close() error                   { return c.db.Close() }

// DatabaseSource implements Source against a SQL backend via sqlx, with
// named queries bound through BindNamed and errors classified through
// ClassifyError/lib/pq's SQLSTATE codes (spec §4.4 database sourceType).
type DatabaseSource struct {
	cfg     model.DataSourceConfig
	pool    *Pool
	breaker *CircuitBreaker
	retry   RetryPolicy
}

func NewDatabaseSource(cfg model.DataSourceConfig, driverName string) (*DatabaseSource, error) {
	if cfg.Connection == nil {
		return nil, apexerr.New(apexerr.KindConfiguration, cfg.Name, "database source requires a connection block")
	}
	dsn := dsnFor(*cfg.Connection)
	factory := func(ctx context.Context) (Conn, error) {
		db, err := sqlx.ConnectContext(ctx, driverName, dsn)
		if err != nil {
			return nil, err
		}
		return &sqlConn{db: db}, nil
	}
	pool, err := NewPool(cfg.Name, cfg.Pool, factory)
	if err != nil {
		return nil, err
	}
	var breaker *CircuitBreaker
	if cfg.CircuitBreaker != nil {
		breaker = NewCircuitBreaker(cfg.CircuitBreaker.FailureThreshold, secs(cfg.CircuitBreaker.TimeoutSeconds))
	}
	return &DatabaseSource{cfg: cfg, pool: pool, breaker: breaker, retry: DefaultRetryPolicy()}, nil
}

func (s *DatabaseSource) Name() string { return s.cfg.Name }

func (s *DatabaseSource) Close() error { return s.pool.Close() }

// Probe satisfies Prober for the health-check loop (spec §4.4).
func (s *DatabaseSource) Probe(ctx context.Context) error {
	conn, release, err := s.pool.Borrow(ctx)
	if err != nil {
		return err
	}
	defer release(true)
	if s.cfg.Pool.ConnectionTestQuery != "" {
		return conn.(*sqlConn).db.PingContext(ctx)
	}
	return conn.Ping(ctx)
}

// Lookup resolves key against the named query "lookup" (or the sole
// configured query, if only one is present), binding key either as the
// single :key named parameter or, if key is already a map, as its fields.
func (s *DatabaseSource) Lookup(ctx context.Context, key any) (map[string]any, bool, error) {
	if s.breaker != nil {
		if err := s.breaker.Allow(); err != nil {
			return nil, false, err
		}
	}

	query, ok := s.cfg.Queries["lookup"]
	if !ok && len(s.cfg.Queries) == 1 {
		for _, q := range s.cfg.Queries {
			query = q
			break
		}
	}
	if query == "" {
		return nil, false, apexerr.New(apexerr.KindConfiguration, s.cfg.Name, "no lookup query configured")
	}

	params, _ := key.(map[string]any)
	if params == nil {
		params = map[string]any{"key": key}
	}
	rebound, args := BindNamed(query, params)

	var row map[string]any
	var found bool
	err := WithRetry(ctx, s.retry, s.cfg.Name, nil, func(ctx context.Context) error {
		conn, release, err := s.pool.Borrow(ctx)
		if err != nil {
			return err
		}
		healthy := true
		defer func() { release(healthy) }()

		db := conn.(*sqlConn).db
		rows, err := db.QueryxContext(ctx, db.Rebind(rebound), args...)
		if err != nil {
			healthy = ClassifyError(err) != apexerr.ClassDataIntegrityViolation
			return err
		}
		defer rows.Close()
		if rows.Next() {
			m := map[string]any{}
			if err := rows.MapScan(m); err != nil {
				return err
			}
			row, found = m, true
		}
		return rows.Err()
	})
	if s.breaker != nil {
		if err != nil {
			s.breaker.Failure()
		} else {
			s.breaker.Success()
		}
	}
	if err != nil {
		return nil, false, err
	}
	return row, found, nil
}

func dsnFor(c model.Connection) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", c.Host, c.Port, c.Db, sslmode)
}
