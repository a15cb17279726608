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

// Package datasink implements the write-side counterpart to datasource
// (spec §4.4 "symmetric" / §5 Transaction discipline): a batching manager
// that buffers records up to maxBatchSize or flushInterval, writes them
// under the configured transaction mode, classifies failures, and in the
// none/per-record modes retries failed records and reports them to an
// optional dead-letter sink.
package datasink

import (
	"context"
	"sync"
	"time"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/datasource"
	"github.com/apex/engine/metrics"
	"github.com/apex/engine/model"
)

// TransactionMode governs how a batch's writes are grouped (spec §5).
type TransactionMode string

const (
	TxNone      TransactionMode = "none"
	TxPerBatch  TransactionMode = "per-batch"
	TxPerRecord TransactionMode = "per-record"
	TxGlobal    TransactionMode = "global"
)

// Writer performs the actual write of one record; concrete backends
// (database, rest-api, cache, message-queue) each supply one.
type Writer interface {
	Write(ctx context.Context, operation string, record map[string]any) error
	// Begin/Commit/Rollback support TxPerBatch/TxGlobal/TxPerRecord; Writer
	// implementations for backends without transactions (rest-api,
	// message-queue) make these no-ops.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a transaction scope for PerBatch/Global/PerRecord modes.
type Tx interface {
	Write(ctx context.Context, operation string, record map[string]any) error
	Commit() error
	Rollback() error
}

// DeadLetterSink receives records a batch could not write after retries
// are exhausted (spec §6 "failed batch reporting"). No concrete backend is
// shipped — the interface is the extension point.
type DeadLetterSink interface {
	Send(ctx context.Context, record map[string]any, cause error) error
}

// BatchResult reports one flush's outcome (spec §4.4 "partial batch" /
// "failed batch" reporting).
type BatchResult struct {
	Attempted int
	Succeeded int
	Failed    []FailedRecord
}

type FailedRecord struct {
	Record map[string]any
	Err    error
}

// Manager buffers records and flushes them per cfg.Batch (spec §3
// BatchConfig).
type Manager struct {
	cfg         model.BatchConfig
	writer      Writer
	operation   string
	deadLetter  DeadLetterSink
	retry       datasource.RetryPolicy
	metricsName string
	metrics     *metrics.PoolMetrics

	mu      sync.Mutex
	buf     []map[string]any
	lastSet time.Time
}

func NewManager(name, operation string, cfg model.BatchConfig, writer Writer, deadLetter DeadLetterSink) *Manager {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Manager{
		cfg: cfg, writer: writer, operation: operation, deadLetter: deadLetter,
		retry: datasource.DefaultRetryPolicy(), metricsName: name, metrics: metrics.NewPoolMetrics("datasink"),
	}
}

// Add buffers record, flushing synchronously once maxBatchSize is reached.
func (m *Manager) Add(ctx context.Context, record map[string]any) (*BatchResult, error) {
	m.mu.Lock()
	if len(m.buf) == 0 {
		m.lastSet = time.Now()
	}
	m.buf = append(m.buf, record)
	full := len(m.buf) >= m.cfg.MaxBatchSize
	m.mu.Unlock()

	if full {
		return m.Flush(ctx)
	}
	return nil, nil
}

// FlushIfDue flushes the buffered batch when flushInterval has elapsed
// since the first buffered record, for callers driving a ticker loop.
func (m *Manager) FlushIfDue(ctx context.Context) (*BatchResult, error) {
	m.mu.Lock()
	due := len(m.buf) > 0 && time.Since(m.lastSet) >= m.cfg.FlushInterval
	m.mu.Unlock()
	if !due {
		return nil, nil
	}
	return m.Flush(ctx)
}

// Flush writes every buffered record under the configured transaction
// mode. In none and per-record modes it retries Transient failures per
// record and routes exhausted failures to the dead-letter sink if one is
// set. In per-batch and global modes the batch is written once in a single
// transaction; a failure rolls the whole batch back and is returned as an
// error, without retry and without dead-letter routing.
func (m *Manager) Flush(ctx context.Context) (*BatchResult, error) {
	m.mu.Lock()
	batch := m.buf
	m.buf = nil
	m.mu.Unlock()
	if len(batch) == 0 {
		return &BatchResult{}, nil
	}

	start := time.Now()
	defer func() { m.metrics.ObserveWrite(m.metricsName, time.Since(start)) }()

	var result *BatchResult
	var err error
	switch TransactionMode(m.cfg.TransactionMode) {
	case TxGlobal, TxPerBatch:
		result, err = m.flushTransactional(ctx, batch)
	case TxPerRecord:
		result, err = m.flushPerRecordTx(ctx, batch)
	default: // TxNone
		result, err = m.flushPerRecord(ctx, batch)
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	} else if result != nil && len(result.Failed) > 0 {
		outcome = "partial"
	}
	m.metrics.BatchOutcomes.WithLabelValues(m.metricsName, outcome).Inc()
	return result, err
}

// flushTransactional writes the whole batch inside one Tx (per-batch and
// global both use a single transaction scope here; a true cross-sink
// "global" transaction spanning multiple Managers is a Non-goal — spec §6
// scopes transactions to one sink).
func (m *Manager) flushTransactional(ctx context.Context, batch []map[string]any) (*BatchResult, error) {
	tx, err := m.writer.Begin(ctx)
	if err != nil {
		return nil, apexerr.DataAccess(datasource.ClassifyError(err), m.metricsName, err)
	}
	for _, rec := range batch {
		if err := tx.Write(ctx, m.operation, rec); err != nil {
			_ = tx.Rollback()
			return &BatchResult{Attempted: len(batch)}, apexerr.DataAccess(datasource.ClassifyError(err), m.metricsName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return &BatchResult{Attempted: len(batch)}, apexerr.DataAccess(datasource.ClassifyError(err), m.metricsName, err)
	}
	return &BatchResult{Attempted: len(batch), Succeeded: len(batch)}, nil
}

// flushPerRecordTx gives each record its own Begin/Commit scope, unlike
// flushPerRecord (TxNone) which writes outside any transaction: a record
// that fails is rolled back and retried on its own Tx, so one record's
// failure never touches another's already-committed write.
func (m *Manager) flushPerRecordTx(ctx context.Context, batch []map[string]any) (*BatchResult, error) {
	res := &BatchResult{Attempted: len(batch)}
	for _, rec := range batch {
		writeErr := datasource.WithRetry(ctx, m.retry, m.metricsName, nil, func(ctx context.Context) error {
			tx, err := m.writer.Begin(ctx)
			if err != nil {
				return err
			}
			if err := tx.Write(ctx, m.operation, rec); err != nil {
				_ = tx.Rollback()
				return err
			}
			return tx.Commit()
		})
		if writeErr != nil {
			res.Failed = append(res.Failed, FailedRecord{Record: rec, Err: writeErr})
			if m.deadLetter != nil {
				_ = m.deadLetter.Send(ctx, rec, writeErr)
			}
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

func (m *Manager) flushPerRecord(ctx context.Context, batch []map[string]any) (*BatchResult, error) {
	res := &BatchResult{Attempted: len(batch)}
	for _, rec := range batch {
		writeErr := datasource.WithRetry(ctx, m.retry, m.metricsName, nil, func(ctx context.Context) error {
			return m.writer.Write(ctx, m.operation, rec)
		})
		if writeErr != nil {
			res.Failed = append(res.Failed, FailedRecord{Record: rec, Err: writeErr})
			if m.deadLetter != nil {
				_ = m.deadLetter.Send(ctx, rec, writeErr)
			}
			continue
		}
		res.Succeeded++
	}
	return res, nil
}
