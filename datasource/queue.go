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
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/model"
)

// QueueSource implements Source against an MQTT broker (spec §3 DataSource
// `topics`, sourceType "message-queue"). Lookup subscribes to the topic
// bound to the requested key and waits for the next retained/published
// message, matching the "publish-subscribe lookup" reading of the glossary
// term "Lookup service" when a request/response RPC topology isn't
// available.
type QueueSource struct {
	cfg    model.DataSourceConfig
	client mqtt.Client
}

func NewQueueSource(cfg model.DataSourceConfig) (*QueueSource, error) {
	if cfg.Connection == nil {
		return nil, apexerr.New(apexerr.KindConfiguration, cfg.Name, "message-queue source requires a connection block")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Connection.Host, cfg.Connection.Port)).
		SetClientID(fmt.Sprintf("apex-%s", cfg.Name)).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, apexerr.DataAccess(ClassifyError(tok.Error()), cfg.Name, tok.Error())
	}
	return &QueueSource{cfg: cfg, client: client}, nil
}

func (s *QueueSource) Name() string { return s.cfg.Name }

func (s *QueueSource) Close() error {
	s.client.Disconnect(250)
	return nil
}

func (s *QueueSource) Probe(ctx context.Context) error {
	if !s.client.IsConnectionOpen() {
		return apexerr.New(apexerr.KindDataAccess, s.cfg.Name, "mqtt connection not open")
	}
	return nil
}

// Lookup subscribes to topics["lookup"] (formatted with key) and returns
// the first message received within the context deadline; if no message
// arrives within 5 seconds it reports the key as not found.
func (s *QueueSource) Lookup(ctx context.Context, key any) (map[string]any, bool, error) {
	topicPattern, ok := s.cfg.Topics["lookup"]
	if !ok {
		return nil, false, apexerr.New(apexerr.KindConfiguration, s.cfg.Name, "no lookup topic configured")
	}
	topic := fmt.Sprintf(topicPattern, key)

	var mu sync.Mutex
	var payload []byte
	received := make(chan struct{}, 1)

	handler := func(c mqtt.Client, m mqtt.Message) {
		mu.Lock()
		payload = m.Payload()
		mu.Unlock()
		select {
		case received <- struct{}{}:
		default:
		}
	}
	if tok := s.client.Subscribe(topic, 0, handler); tok.Wait() && tok.Error() != nil {
		return nil, false, apexerr.DataAccess(ClassifyError(tok.Error()), s.cfg.Name, tok.Error())
	}
	defer s.client.Unsubscribe(topic)

	select {
	case <-received:
		mu.Lock()
		body := payload
		mu.Unlock()
		var row map[string]any
		if err := json.Unmarshal(body, &row); err != nil {
			return nil, false, apexerr.Wrap(apexerr.KindDataAccess, s.cfg.Name, err)
		}
		return row, true, nil
	case <-ctx.Done():
		return nil, false, apexerr.Wrap(apexerr.KindTimeout, s.cfg.Name, ctx.Err())
	case <-time.After(5 * time.Second):
		return nil, false, nil
	}
}
