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
	"strings"
)

// BindNamed scans a query containing `:name` placeholders (spec §4.4
// "named-parameter binding") left to right and returns the positionally
// rewritten query (`?` placeholders, matching lib/pq's "$1"-free driver
// convention via sqlx.Rebind at the call site) plus args in the exact
// order their placeholders were encountered — never map iteration order,
// so binding is deterministic regardless of map internals (open question
// resolved in favor of textual left-to-right scan order).
func BindNamed(query string, params map[string]any) (string, []any) {
	var b strings.Builder
	var args []any
	i := 0
	for i < len(query) {
		c := query[i]
		if c == ':' && i+1 < len(query) && isNameStart(query[i+1]) {
			j := i + 1
			for j < len(query) && isNameChar(query[j]) {
				j++
			}
			name := query[i+1 : j]
			args = append(args, params[name])
			b.WriteByte('?')
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), args
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
