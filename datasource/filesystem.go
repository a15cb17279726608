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
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/model"
)

// FileSystemSource implements Source against a local dataset file (spec §3
// DataSource fileFormat: csv/json/yaml), loading it once and indexing rows
// by a configured key column for O(1) lookup thereafter.
type FileSystemSource struct {
	cfg    model.DataSourceConfig
	mu     sync.RWMutex
	byKey  map[string]map[string]any
	keyCol string
}

func NewFileSystemSource(cfg model.DataSourceConfig) (*FileSystemSource, error) {
	s := &FileSystemSource{cfg: cfg, keyCol: "id"}
	if len(cfg.ParameterNames) > 0 {
		s.keyCol = cfg.ParameterNames[0]
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSystemSource) Name() string { return s.cfg.Name }
func (s *FileSystemSource) Close() error { return nil }

func (s *FileSystemSource) Probe(ctx context.Context) error {
	_, err := os.Stat(s.cfg.Connection.Host)
	return err
}

func (s *FileSystemSource) reload() error {
	path := s.cfg.Connection.Host // connection.host doubles as the file path for file-system sources
	raw, err := os.ReadFile(path)
	if err != nil {
		return apexerr.DataAccess(ClassifyError(err), s.cfg.Name, err)
	}

	var rows []map[string]any
	switch s.cfg.FileFormat {
	case "json":
		if err := json.Unmarshal(raw, &rows); err != nil {
			return apexerr.Wrap(apexerr.KindDataAccess, s.cfg.Name, err)
		}
	case "yaml":
		if err := yaml.Unmarshal(raw, &rows); err != nil {
			return apexerr.Wrap(apexerr.KindDataAccess, s.cfg.Name, err)
		}
	case "csv", "":
		rows, err = parseCSVRows(raw)
		if err != nil {
			return apexerr.Wrap(apexerr.KindDataAccess, s.cfg.Name, err)
		}
	default:
		return apexerr.New(apexerr.KindConfiguration, s.cfg.Name, "unsupported fileFormat "+s.cfg.FileFormat)
	}

	byKey := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		k := fmt.Sprintf("%v", row[s.keyCol])
		byKey[k] = row
	}
	s.mu.Lock()
	s.byKey = byKey
	s.mu.Unlock()
	return nil
}

func (s *FileSystemSource) Lookup(ctx context.Context, key any) (map[string]any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.byKey[fmt.Sprintf("%v", key)]
	return row, ok, nil
}

func parseCSVRows(raw []byte) ([]map[string]any, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	records, err := r.ReadAll()
	if err != nil || len(records) == 0 {
		return nil, err
	}
	header := records[0]
	rows := make([]map[string]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
