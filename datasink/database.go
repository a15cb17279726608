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

package datasink

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/datasource"
	"github.com/apex/engine/model"
)

// DatabaseWriter implements Writer against a SQL backend via sqlx,
// resolving the named query for an operation from cfg.Operations and
// binding parameters with datasource.BindNamed (spec §4.4 sink side).
type DatabaseWriter struct {
	cfg model.DataSinkConfig
	db  *sqlx.DB
}

func NewDatabaseWriter(cfg model.DataSinkConfig, driverName string) (*DatabaseWriter, error) {
	if cfg.Connection == nil {
		return nil, apexerr.New(apexerr.KindConfiguration, cfg.Name, "database sink requires a connection block")
	}
	db, err := sqlx.Connect(driverName, dsnFor(*cfg.Connection))
	if err != nil {
		return nil, apexerr.DataAccess(datasource.ClassifyError(err), cfg.Name, err)
	}
	return &DatabaseWriter{cfg: cfg, db: db}, nil
}

func (w *DatabaseWriter) Write(ctx context.Context, operation string, record map[string]any) error {
	stmt, ok := w.cfg.Operations[operation]
	if !ok {
		return apexerr.New(apexerr.KindConfiguration, w.cfg.Name, "no operation configured for "+operation)
	}
	rebound, args := datasource.BindNamed(stmt, record)
	_, err := w.db.ExecContext(ctx, w.db.Rebind(rebound), args...)
	if err != nil {
		return apexerr.DataAccess(datasource.ClassifyError(err), w.cfg.Name, err)
	}
	return nil
}

func (w *DatabaseWriter) Begin(ctx context.Context) (Tx, error) {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apexerr.DataAccess(datasource.ClassifyError(err), w.cfg.Name, err)
	}
	return &sqlTx{cfg: w.cfg, tx: tx}, nil
}

type sqlTx struct {
	cfg model.DataSinkConfig
	tx  *sqlx.Tx
}

func (t *sqlTx) Write(ctx context.Context, operation string, record map[string]any) error {
	stmt, ok := t.cfg.Operations[operation]
	if !ok {
		return apexerr.New(apexerr.KindConfiguration, t.cfg.Name, "no operation configured for "+operation)
	}
	rebound, args := datasource.BindNamed(stmt, record)
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(rebound), args...)
	if err != nil {
		return apexerr.DataAccess(datasource.ClassifyError(err), t.cfg.Name, err)
	}
	return nil
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

// dsnFor mirrors datasource's connection-string assembly for the sink side.
func dsnFor(c model.Connection) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	if c.Host == "" {
		return "sslmode=" + sslmode
	}
	return "host=" + c.Host + " dbname=" + c.Db + " sslmode=" + sslmode
}
