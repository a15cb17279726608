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
	"strings"

	"github.com/lib/pq"

	"github.com/apex/engine/apexerr"
)

// ClassifyError maps a raw driver/network error to a DataAccessClass (spec
// §4.4): DataIntegrityViolation for constraint-type SQLSTATE classes,
// Transient for timeouts/connection resets (retry-eligible), Configuration
// for auth/permission/missing-object errors, Fatal otherwise.
func ClassifyError(err error) apexerr.DataAccessClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apexerr.ClassTransient
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code))
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"), strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "i/o timeout"), strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"), strings.Contains(msg, "could not serialize"):
		return apexerr.ClassTransient
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "authentication"),
		strings.Contains(msg, "does not exist"), strings.Contains(msg, "unauthorized"):
		return apexerr.ClassConfiguration
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "constraint"),
		strings.Contains(msg, "foreign key"), strings.Contains(msg, "not-null"):
		return apexerr.ClassDataIntegrityViolation
	default:
		return apexerr.ClassFatal
	}
}

// classifySQLState maps PostgreSQL SQLSTATE class codes (first two chars)
// to a DataAccessClass, per https://www.postgresql.org/docs/current/errcodes-appendix.html.
func classifySQLState(code string) apexerr.DataAccessClass {
	if len(code) < 2 {
		return apexerr.ClassFatal
	}
	class := code[:2]
	switch class {
	case "23": // integrity_constraint_violation
		return apexerr.ClassDataIntegrityViolation
	case "08", "57", "53": // connection_exception, operator_intervention, insufficient_resources
		return apexerr.ClassTransient
	case "40": // transaction_rollback: serialization_failure, deadlock_detected
		return apexerr.ClassTransient
	case "28", "42": // invalid_authorization_specification, syntax_error_or_access_rule_violation
		return apexerr.ClassConfiguration
	default:
		return apexerr.ClassFatal
	}
}

// Retryable reports whether class warrants a retry per §4.4 ("only
// Transient errors are retried; the others are not").
func Retryable(class apexerr.DataAccessClass) bool {
	return class == apexerr.ClassTransient
}
