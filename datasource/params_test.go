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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindNamed(t *testing.T) {
	query, args := BindNamed(
		"SELECT * FROM accounts WHERE id = :id AND region = :region",
		map[string]any{"region": "us-east", "id": 42},
	)

	assert.Equal(t, "SELECT * FROM accounts WHERE id = ? AND region = ?", query)
	// order must follow placeholder occurrence in the query text, not map
	// iteration order (the region param appears before id in the params map
	// literal above, yet id's placeholder comes first in the query).
	assert.Equal(t, []any{42, "us-east"}, args)
}

func TestBindNamedNoPlaceholders(t *testing.T) {
	query, args := BindNamed("SELECT 1", map[string]any{"unused": true})
	assert.Equal(t, "SELECT 1", query)
	assert.Empty(t, args)
}

func TestBindNamedRepeatedPlaceholder(t *testing.T) {
	query, args := BindNamed("WHERE a = :x OR b = :x", map[string]any{"x": 7})
	assert.Equal(t, "WHERE a = ? OR b = ?", query)
	assert.Equal(t, []any{7, 7}, args)
}

func TestBindNamedMissingParamBindsNil(t *testing.T) {
	query, args := BindNamed("WHERE a = :missing", map[string]any{})
	assert.Equal(t, "WHERE a = ?", query)
	assert.Equal(t, []any{nil}, args)
}
