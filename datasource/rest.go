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
	"io"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"golang.org/x/time/rate"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/model"
)

// restConn wraps *http.Client as a no-op Conn: REST lookups are
// connectionless per request, so Ping always succeeds without a network
// call and Close is a no-op — the pool still bounds in-flight-request concurrency.
type restConn struct{ client *http.Client }

func (c *restConn) Ping(ctx context.Context) error { return nil }
func (c *restConn) Close() error                   { return nil }

// RestSource implements Source against an HTTP/JSON backend, extracting
// fields via the configured ResponseMapping JSONPath expressions (spec §6).
type RestSource struct {
	cfg     model.DataSourceConfig
	pool    *Pool
	breaker *CircuitBreaker
	mapping model.ResponseMapping
	limiter *rate.Limiter
}

func NewRestSource(cfg model.DataSourceConfig) (*RestSource, error) {
	if cfg.Connection == nil || cfg.Connection.BaseURL == "" {
		return nil, apexerr.New(apexerr.KindConfiguration, cfg.Name, "rest-api source requires connection.baseUrl")
	}
	mapping := model.DefaultResponseMapping()
	if cfg.ResponseMapping != nil {
		mapping = *cfg.ResponseMapping
	}
	factory := func(ctx context.Context) (Conn, error) {
		return &restConn{client: &http.Client{Timeout: 10 * time.Second}}, nil
	}
	pool, err := NewPool(cfg.Name, cfg.Pool, factory)
	if err != nil {
		return nil, err
	}
	var breaker *CircuitBreaker
	if cfg.CircuitBreaker != nil {
		breaker = NewCircuitBreaker(cfg.CircuitBreaker.FailureThreshold, secs(cfg.CircuitBreaker.TimeoutSeconds))
	}
	// REST backends rarely document their own rate limits in the YAML
	// config (spec §3 has no `rateLimit` field), so a conservative fixed
	// cap protects the remote service from the pool's own Max concurrency;
	// operators needing a different cap tune Pool.Max instead.
	limiter := rate.NewLimiter(rate.Limit(50), 50)
	return &RestSource{cfg: cfg, pool: pool, breaker: breaker, mapping: mapping, limiter: limiter}, nil
}

func (s *RestSource) Name() string { return s.cfg.Name }
func (s *RestSource) Close() error { return s.pool.Close() }

func (s *RestSource) Probe(ctx context.Context) error {
	if s.cfg.HealthCheck == nil || s.cfg.HealthCheck.Endpoint == "" {
		return nil
	}
	_, _, err := s.fetch(ctx, s.cfg.Connection.BaseURL+s.cfg.HealthCheck.Endpoint)
	return err
}

func (s *RestSource) Lookup(ctx context.Context, key any) (map[string]any, bool, error) {
	if s.breaker != nil {
		if err := s.breaker.Allow(); err != nil {
			return nil, false, err
		}
	}

	endpoint, ok := s.cfg.Endpoints["lookup"]
	if !ok {
		for _, e := range s.cfg.Endpoints {
			endpoint = e
			break
		}
	}
	url := s.cfg.Connection.BaseURL + fmt.Sprintf(endpoint, key)

	body, status, err := s.fetch(ctx, url)
	if s.breaker != nil {
		if err != nil {
			s.breaker.Failure()
		} else {
			s.breaker.Success()
		}
	}
	if err != nil {
		return nil, false, apexerr.DataAccess(ClassifyError(err), s.cfg.Name, err)
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, apexerr.Wrap(apexerr.KindDataAccess, s.cfg.Name, err)
	}
	if s.mapping.ErrorPath != "" {
		if errVal, err := jsonpath.Get(s.mapping.ErrorPath, parsed); err == nil && errVal != nil {
			return nil, false, apexerr.New(apexerr.KindDataAccess, s.cfg.Name, fmt.Sprintf("%v", errVal))
		}
	}
	data, err := jsonpath.Get(s.mapping.DataPath, parsed)
	if err != nil {
		return nil, false, nil
	}
	row, ok := data.(map[string]any)
	if !ok {
		return nil, false, nil
	}
	return row, true, nil
}

func (s *RestSource) fetch(ctx context.Context, url string) ([]byte, int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	conn, release, err := s.pool.Borrow(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer release(true)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := conn.(*restConn).client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
