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
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/model"
)

// redisConn adapts *redis.Client to Conn.
type redisConn struct{ client *redis.Client }

func (c *redisConn) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }
func (c *redisConn) Close() error                   { return c.client.Close() }

// CacheSource implements Source against a Redis-shaped cache backend,
// resolving a lookup key through the configured keyPatterns (spec §3
// DataSource keyPatterns / §4.4 sourceType "cache").
type CacheSource struct {
	cfg  model.DataSourceConfig
	pool *Pool
}

func NewCacheSource(cfg model.DataSourceConfig) (*CacheSource, error) {
	if cfg.Connection == nil {
		return nil, apexerr.New(apexerr.KindConfiguration, cfg.Name, "cache source requires a connection block")
	}
	factory := func(ctx context.Context) (Conn, error) {
		client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", cfg.Connection.Host, cfg.Connection.Port)})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return &redisConn{client: client}, nil
	}
	pool, err := NewPool(cfg.Name, cfg.Pool, factory)
	if err != nil {
		return nil, err
	}
	return &CacheSource{cfg: cfg, pool: pool}, nil
}

func (s *CacheSource) Name() string { return s.cfg.Name }
func (s *CacheSource) Close() error { return s.pool.Close() }

func (s *CacheSource) Probe(ctx context.Context) error {
	conn, release, err := s.pool.Borrow(ctx)
	if err != nil {
		return err
	}
	defer release(true)
	return conn.Ping(ctx)
}

func (s *CacheSource) Lookup(ctx context.Context, key any) (map[string]any, bool, error) {
	pattern, ok := s.cfg.KeyPatterns["lookup"]
	if !ok {
		pattern = "%v"
	}
	redisKey := fmt.Sprintf(pattern, key)

	conn, release, err := s.pool.Borrow(ctx)
	if err != nil {
		return nil, false, err
	}
	healthy := true
	defer func() { release(healthy) }()

	val, err := conn.(*redisConn).client.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		healthy = false
		return nil, false, apexerr.DataAccess(ClassifyError(err), s.cfg.Name, err)
	}

	var row map[string]any
	if err := json.Unmarshal([]byte(val), &row); err != nil {
		return nil, false, apexerr.Wrap(apexerr.KindDataAccess, s.cfg.Name, err)
	}
	return row, true, nil
}
