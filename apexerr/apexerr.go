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

// Package apexerr defines the error taxonomy the engine reports across
// component boundaries. Every error raised by expr, validate, chain, enrich,
// datasource and datasink converts to one of the Kinds below before it
// crosses a package boundary, so callers can branch on the Kind field of
// *Error instead of string-matching messages.
package apexerr

import "fmt"

// Kind classifies an error per the taxonomy in spec §7.
type Kind string

const (
	KindConfiguration Kind = "Configuration"
	KindExpression    Kind = "Expression"
	KindLookup        Kind = "Lookup"
	KindDataAccess    Kind = "DataAccess"
	KindCircuit       Kind = "Circuit"
	KindTimeout       Kind = "Timeout"
	KindCancelled     Kind = "Cancelled"
	KindInternal      Kind = "Internal"
)

// DataAccessClass further classifies KindDataAccess errors per §4.4 — the
// classifier is the single source of truth for retry-vs-fail decisions.
type DataAccessClass string

const (
	ClassDataIntegrityViolation DataAccessClass = "DataIntegrityViolation"
	ClassTransient              DataAccessClass = "Transient"
	ClassConfiguration          DataAccessClass = "Configuration"
	ClassFatal                  DataAccessClass = "Fatal"
)

// Error is the structured error every taxonomy kind wraps. It carries the
// offending path/value so CLI and library callers can render a precise
// diagnostic without re-deriving context from the message string.
type Error struct {
	Kind  Kind
	Class DataAccessClass // only meaningful when Kind == KindDataAccess
	Path  string          // file path, expression span, field path, stage id, etc.
	Msg   string
	Err   error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, path, msg string) *Error {
	return &Error{Kind: kind, Path: path, Msg: msg}
}

func Wrap(kind Kind, path string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Path: path, Msg: err.Error(), Err: err}
}

func DataAccess(class DataAccessClass, path string, err error) *Error {
	e := Wrap(KindDataAccess, path, err)
	if e != nil {
		e.Class = class
	}
	return e
}

// Is reports whether err is an *Error of the given kind — convenience for
// errors.Is-style call sites that only care about the taxonomy bucket.
func Is(err error, kind Kind) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Kind == kind
}
