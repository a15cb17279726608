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

package model

import "time"

// SourceKind enumerates the `type` field of a DataSource/DataSink (spec §3).
type SourceKind string

const (
	SourceDatabase     SourceKind = "database"
	SourceRestAPI      SourceKind = "rest-api"
	SourceMessageQueue SourceKind = "message-queue"
	SourceCache        SourceKind = "cache"
	SourceFileSystem   SourceKind = "file-system"
	SourceCustom       SourceKind = "custom"
)

// Connection is the identity/transport sub-section (host/port/db/baseUrl/...).
type Connection struct {
	Host    string `mapstructure:"host,omitempty" yaml:"host,omitempty"`
	Port    int    `mapstructure:"port,omitempty" yaml:"port,omitempty"`
	Db      string `mapstructure:"db,omitempty" yaml:"db,omitempty"`
	BaseURL string `mapstructure:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Sslmode string `mapstructure:"sslmode,omitempty" yaml:"sslmode,omitempty"`
}

// CacheConfig is the per-source cache sub-section (TTL, size).
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttlSeconds,omitempty" yaml:"ttlSeconds,omitempty"`
	Size       int `mapstructure:"size,omitempty" yaml:"size,omitempty"`
}

// HealthCheckConfig governs the §4.4 health-check loop.
type HealthCheckConfig struct {
	IntervalSeconds  int    `mapstructure:"intervalSeconds,omitempty" yaml:"intervalSeconds,omitempty"`
	TimeoutSeconds   int    `mapstructure:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
	Query            string `mapstructure:"query,omitempty" yaml:"query,omitempty"`
	Endpoint         string `mapstructure:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	FailureThreshold int    `mapstructure:"failureThreshold,omitempty" yaml:"failureThreshold,omitempty"`
	SuccessThreshold int    `mapstructure:"successThreshold,omitempty" yaml:"successThreshold,omitempty"`
}

// AuthConfig is a deliberately thin pass-through; concrete auth mechanisms
// (basic/bearer/api-key) are an external collaborator concern per §1/§6.
type AuthConfig struct {
	Scheme string            `mapstructure:"scheme,omitempty" yaml:"scheme,omitempty"`
	Params map[string]string `mapstructure:"params,omitempty" yaml:"params,omitempty"`
}

// CircuitBreakerConfig configures the §4.4 circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int `mapstructure:"failureThreshold,omitempty" yaml:"failureThreshold,omitempty"`
	TimeoutSeconds   int `mapstructure:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
}

// ResponseMapping configures the REST JSONPath response extraction (§6).
type ResponseMapping struct {
	DataPath    string `mapstructure:"dataPath,omitempty" yaml:"dataPath,omitempty"`
	ErrorPath   string `mapstructure:"errorPath,omitempty" yaml:"errorPath,omitempty"`
	StatusPath  string `mapstructure:"statusPath,omitempty" yaml:"statusPath,omitempty"`
	MessagePath string `mapstructure:"messagePath,omitempty" yaml:"messagePath,omitempty"`
}

// DefaultResponseMapping matches §6's documented defaults.
func DefaultResponseMapping() ResponseMapping {
	return ResponseMapping{DataPath: "$.data", ErrorPath: "$.error", StatusPath: "$.status", MessagePath: "$.message"}
}

// PoolConfig sizes a connection pool (spec §4.4, invariant
// 0 <= min <= initial <= max, strictly positive timeouts).
type PoolConfig struct {
	Min                     int           `mapstructure:"min" yaml:"min"`
	Initial                 int           `mapstructure:"initial" yaml:"initial"`
	Max                     int           `mapstructure:"max" yaml:"max"`
	ConnectionTimeout       time.Duration `mapstructure:"connectionTimeout" yaml:"connectionTimeout"`
	IdleTimeout             time.Duration `mapstructure:"idleTimeout" yaml:"idleTimeout"`
	MaxLifetime             time.Duration `mapstructure:"maxLifetime" yaml:"maxLifetime"`
	LeakDetectionThreshold  time.Duration `mapstructure:"leakDetectionThreshold" yaml:"leakDetectionThreshold"`
	TestOnBorrow            bool          `mapstructure:"testOnBorrow" yaml:"testOnBorrow"`
	TestOnReturn            bool          `mapstructure:"testOnReturn" yaml:"testOnReturn"`
	TestWhileIdle           bool          `mapstructure:"testWhileIdle" yaml:"testWhileIdle"`
	ConnectionTestQuery     string        `mapstructure:"connectionTestQuery" yaml:"connectionTestQuery"`
	ValidationInterval      time.Duration `mapstructure:"validationInterval" yaml:"validationInterval"`
}

// Validate enforces the §3 pool invariants.
func (p PoolConfig) Validate() error {
	if p.Min < 0 {
		return poolErr("min must be >= 0")
	}
	if p.Initial < p.Min {
		return poolErr("initial must be >= min")
	}
	if p.Max < p.Initial {
		return poolErr("max must be >= initial")
	}
	if p.ConnectionTimeout <= 0 {
		return poolErr("connectionTimeout must be strictly positive")
	}
	return nil
}

func poolErr(msg string) error { return &poolConfigError{msg} }

type poolConfigError struct{ msg string }

func (e *poolConfigError) Error() string { return "pool configuration: " + e.msg }

// BatchConfig governs the sink-side batch manager (§4.4 symmetric, §5
// Transaction discipline).
type BatchConfig struct {
	MaxBatchSize          int           `mapstructure:"maxBatchSize" yaml:"maxBatchSize"`
	FlushInterval         time.Duration `mapstructure:"flushInterval" yaml:"flushInterval"`
	TransactionMode       string        `mapstructure:"transactionMode" yaml:"transactionMode"`
	MemoryThresholdPercent int          `mapstructure:"memoryThresholdPercent,omitempty" yaml:"memoryThresholdPercent,omitempty"`
}

// DataSourceConfig is the composite type from spec §3 DataSource.
type DataSourceConfig struct {
	Name           string            `mapstructure:"name" yaml:"name"`
	Type           SourceKind        `mapstructure:"type" yaml:"type"`
	SourceType     string            `mapstructure:"sourceType,omitempty" yaml:"sourceType,omitempty"`
	Description    string            `mapstructure:"description,omitempty" yaml:"description,omitempty"`
	Enabled        bool              `mapstructure:"enabled" yaml:"enabled"`
	Implementation string            `mapstructure:"implementation,omitempty" yaml:"implementation,omitempty"`

	Connection      *Connection           `mapstructure:"connection,omitempty" yaml:"connection,omitempty"`
	Cache           *CacheConfig          `mapstructure:"cache,omitempty" yaml:"cache,omitempty"`
	HealthCheck     *HealthCheckConfig    `mapstructure:"healthCheck,omitempty" yaml:"healthCheck,omitempty"`
	Authentication  *AuthConfig           `mapstructure:"authentication,omitempty" yaml:"authentication,omitempty"`
	CircuitBreaker  *CircuitBreakerConfig `mapstructure:"circuitBreaker,omitempty" yaml:"circuitBreaker,omitempty"`
	ResponseMapping *ResponseMapping      `mapstructure:"responseMapping,omitempty" yaml:"responseMapping,omitempty"`
	FileFormat      string                `mapstructure:"fileFormat,omitempty" yaml:"fileFormat,omitempty"`
	Pool            PoolConfig            `mapstructure:"pool,omitempty" yaml:"pool,omitempty"`

	Queries        map[string]string `mapstructure:"queries,omitempty" yaml:"queries,omitempty"`
	Endpoints      map[string]string `mapstructure:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	Topics         map[string]string `mapstructure:"topics,omitempty" yaml:"topics,omitempty"`
	KeyPatterns    map[string]string `mapstructure:"keyPatterns,omitempty" yaml:"keyPatterns,omitempty"`
	ParameterNames []string          `mapstructure:"parameterNames,omitempty" yaml:"parameterNames,omitempty"`
	Tags           []string          `mapstructure:"tags,omitempty" yaml:"tags,omitempty"`
}

// DataSinkConfig extends DataSourceConfig with write-side operations/batch.
type DataSinkConfig struct {
	DataSourceConfig `mapstructure:",squash" yaml:",inline"`
	Operations       map[string]string `mapstructure:"operations,omitempty" yaml:"operations,omitempty"`
	Batch            BatchConfig       `mapstructure:"batch,omitempty" yaml:"batch,omitempty"`
}

// DataSourceRef is a cross-file reference causing transitive loading
// (spec §4.2).
type DataSourceRef struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Source      string `mapstructure:"source" yaml:"source"`
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Description string `mapstructure:"description,omitempty" yaml:"description,omitempty"`
}
