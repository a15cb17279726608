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

package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
)

// safelistFunctions registers the fixed, non-extensible set of method-like
// calls spec §4.1 allows ("method-like calls on built-in types limited to
// a fixed safelist"). No dynamic dispatch, no user-defined functions, no
// I/O — every function here is pure and total over its documented domain.
func safelistFunctions() []expr.Option {
	return []expr.Option{
		expr.Function("isAfter", func(params ...any) (any, error) {
			return isAfter(params[0], params[1])
		}),
		expr.Function("plusYears", func(params ...any) (any, error) {
			n, err := toFloat(params[1])
			if err != nil {
				return nil, err
			}
			return plusYears(params[0], int(n))
		}),
		expr.Function("length", func(params ...any) (any, error) {
			return length(params[0]), nil
		}),
		expr.Function("matches", func(params ...any) (any, error) {
			pattern, ok := params[1].(string)
			if !ok {
				return nil, fmt.Errorf("matches: pattern must be a string")
			}
			return matchesPattern(params[0], pattern)
		}),
		expr.Function("compareTo", func(params ...any) (any, error) {
			return compareTo(params[0], params[1])
		}),
	}
}

func isAfter(a, b any) (bool, error) {
	ta, err := asTime(a)
	if err != nil {
		return false, err
	}
	tb, err := asTime(b)
	if err != nil {
		return false, err
	}
	return ta.After(tb), nil
}

func plusYears(a any, n int) (time.Time, error) {
	ta, err := asTime(a)
	if err != nil {
		return time.Time{}, err
	}
	return ta.AddDate(n, 0, 0), nil
}

func length(a any) int {
	switch v := a.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return 0
	}
}

func matchesPattern(a any, pattern string) (bool, error) {
	s, ok := a.(string)
	if !ok {
		return false, fmt.Errorf("matches: not a string")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func compareTo(a, b any) (int, error) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("compareTo: type mismatch")
		}
		return strings.Compare(av, bv), nil
	case int, int64, float64:
		af, aerr := toFloat(a)
		bf, berr := toFloat(b)
		if aerr != nil || berr != nil {
			return 0, fmt.Errorf("compareTo: type mismatch")
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("compareTo: unsupported type %T", a)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02T15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable date %q", t)
	default:
		return time.Time{}, fmt.Errorf("not a date: %T", v)
	}
}

// BuiltinEnv returns the safelisted helper functions as a plain env map,
// for components (e.g. rules, validate) that need to call them directly
// rather than through a compiled expression.
func BuiltinEnv() map[string]any {
	return map[string]any{
		"isAfter":    isAfter,
		"plusYears":  plusYears,
		"length":     length,
		"matches":    matchesPattern,
		"compareTo":  compareTo,
	}
}
