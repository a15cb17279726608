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

package chain

import "github.com/apex/engine/model"

// StageResults preserves insertion order for the "ordered map of named
// intermediate values" spec §3 ChainedEvaluationContext requires — plain
// Go maps don't preserve order, so results are appended to a slice and
// also indexed for O(1) lookup.
type StageResults struct {
	order  []string
	values map[string]any
}

func NewStageResults() *StageResults {
	return &StageResults{values: map[string]any{}}
}

func (s *StageResults) Set(name string, value any) {
	if _, exists := s.values[name]; !exists {
		s.order = append(s.order, name)
	}
	s.values[name] = value
}

func (s *StageResults) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Ordered returns the (name, value) pairs in insertion order.
func (s *StageResults) Ordered() []KV {
	out := make([]KV, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, KV{Key: k, Value: s.values[k]})
	}
	return out
}

// Map returns a plain map snapshot, for callers that don't need order.
func (s *StageResults) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

type KV struct {
	Key   string
	Value any
}

// Result is the outcome of one rule-chain invocation (spec §4.6 "The
// result for a chain carries...").
type Result struct {
	RuleChainID   string
	RuleChainName string
	Pattern       model.Pattern
	FinalOutcome  string
	Successful    bool
	StageResults  *StageResults
	ErrorMessage  string
	Record        map[string]any
}

// Outcome string labels used across patterns (spec §4.6, GLOSSARY
// "Outcome").
const (
	OutcomeTriggered       = "TRIGGERED"
	OutcomeNotTriggered    = "NOT_TRIGGERED"
	OutcomeSuccess         = "SUCCESS"
	OutcomeFailure         = "FAILURE"
	OutcomeNoMatchingRoute = "NO_MATCHING_ROUTE"
	OutcomeCancelled       = "CANCELLED"
)

func fail(rc model.RuleChain, msg string) *Result {
	return &Result{
		RuleChainID:   rc.ID,
		RuleChainName: rc.Name,
		Pattern:       rc.Pattern,
		FinalOutcome:  OutcomeFailure,
		Successful:    false,
		StageResults:  NewStageResults(),
		ErrorMessage:  msg,
	}
}
