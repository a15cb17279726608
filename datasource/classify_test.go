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
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/apex/engine/apexerr"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apexerr.DataAccessClass
	}{
		{"nil", nil, ""},
		{"deadline exceeded", context.DeadlineExceeded, apexerr.ClassTransient},
		{"canceled", context.Canceled, apexerr.ClassTransient},
		{"connection reset", errors.New("read tcp: connection reset by peer"), apexerr.ClassTransient},
		{"permission denied", errors.New("permission denied for table accounts"), apexerr.ClassConfiguration},
		{"duplicate key", errors.New("duplicate key value violates unique constraint"), apexerr.ClassDataIntegrityViolation},
		{"unrecognized", errors.New("something unexpected happened"), apexerr.ClassFatal},
		{"pq integrity", &pq.Error{Code: "23505"}, apexerr.ClassDataIntegrityViolation},
		{"pq connection", &pq.Error{Code: "08006"}, apexerr.ClassTransient},
		{"pq auth", &pq.Error{Code: "28000"}, apexerr.ClassConfiguration},
		{"pq unknown", &pq.Error{Code: "99999"}, apexerr.ClassFatal},
		{"pq serialization failure", &pq.Error{Code: "40001"}, apexerr.ClassTransient},
		{"pq deadlock detected", &pq.Error{Code: "40P01"}, apexerr.ClassTransient},
		{"message deadlock", errors.New("deadlock detected while updating accounts"), apexerr.ClassTransient},
		{"message serialization", errors.New("could not serialize access due to concurrent update"), apexerr.ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(apexerr.ClassTransient))
	assert.False(t, Retryable(apexerr.ClassFatal))
	assert.False(t, Retryable(apexerr.ClassConfiguration))
	assert.False(t, Retryable(apexerr.ClassDataIntegrityViolation))
}
