package datasink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/engine/model"
)

// fakeWriter records whether Begin was ever called, so tests can tell
// TxNone (never calls Begin) apart from TxPerRecord/TxPerBatch (always
// does).
type fakeWriter struct {
	begun      int
	writes     []map[string]any
	failRecord func(rec map[string]any) bool
}

func (w *fakeWriter) Write(_ context.Context, _ string, record map[string]any) error {
	if w.failRecord != nil && w.failRecord(record) {
		return errors.New("write failed")
	}
	w.writes = append(w.writes, record)
	return nil
}

func (w *fakeWriter) Begin(_ context.Context) (Tx, error) {
	w.begun++
	return &fakeTx{w: w}, nil
}

type fakeTx struct {
	w         *fakeWriter
	committed bool
}

func (t *fakeTx) Write(ctx context.Context, operation string, record map[string]any) error {
	return t.w.Write(ctx, operation, record)
}
func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { return nil }

func newTestManager(mode TransactionMode, w *fakeWriter) *Manager {
	cfg := model.BatchConfig{MaxBatchSize: 10, FlushInterval: time.Minute, TransactionMode: string(mode)}
	return NewManager("sink", "insert", cfg, w, nil)
}

func TestFlushTxNoneNeverBeginsATransaction(t *testing.T) {
	w := &fakeWriter{}
	m := newTestManager(TxNone, w)

	_, err := m.Add(context.Background(), map[string]any{"id": 1})
	require.NoError(t, err)
	res, err := m.Flush(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, w.begun, "TxNone must write without ever calling Begin")
	assert.Equal(t, 1, res.Succeeded)
}

func TestFlushTxPerRecordBeginsATransactionPerRecord(t *testing.T) {
	w := &fakeWriter{}
	m := newTestManager(TxPerRecord, w)

	for i := 0; i < 3; i++ {
		_, err := m.Add(context.Background(), map[string]any{"id": i})
		require.NoError(t, err)
	}
	res, err := m.Flush(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, w.begun, "TxPerRecord must open one transaction per record")
	assert.Equal(t, 3, res.Succeeded)
}

func TestFlushTxPerRecordIsolatesFailureToOneRecord(t *testing.T) {
	w := &fakeWriter{failRecord: func(rec map[string]any) bool { return rec["id"] == 1 }}
	m := newTestManager(TxPerRecord, w)
	m.retry.MaxAttempts = 1

	for i := 0; i < 3; i++ {
		_, err := m.Add(context.Background(), map[string]any{"id": i})
		require.NoError(t, err)
	}
	res, err := m.Flush(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.EqualValues(t, 1, res.Failed[0].Record["id"])
}
