// Package config provides the structures and loaders for the application configuration.
package config

import (
	dbconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/config"
	storageconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

// EmbeddedConfig holds the content of the default configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Job repository implementations selectable with infrastructure.job_repository_type.
const (
	JobRepositoryTypeSQL      = "sql"
	JobRepositoryTypeInMemory = "inmemory"
)

// ItemSkipConfig holds the default item-level skip configuration of chunk steps.
type ItemSkipConfig struct {
	SkipLimit           int      `yaml:"skip_limit"`           // SkipLimit is the number of malformed items tolerated per step.
	SkippableExceptions []string `yaml:"skippable_exceptions"` // SkippableExceptions lists registered error names.
}

// BatchConfig holds configuration specific to the batch processing engine.
// Job parameters (config.chunk.size, config.skip.limit) take precedence over these defaults.
type BatchConfig struct {
	// ChunkSize is the default chunk size for chunk-oriented steps.
	ChunkSize int `yaml:"chunk_size"`
	// ItemSkip is the item-level skip configuration.
	ItemSkip ItemSkipConfig `yaml:"item_skip"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Europe/London").
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig names the connections infrastructure components use.
type InfrastructureConfig struct {
	// JobRepositoryType selects the job repository implementation ("sql" or "inmemory").
	JobRepositoryType string `yaml:"job_repository_type"`
	// JobRepositoryDBRef is the database connection used by the SQL job repository.
	JobRepositoryDBRef string `yaml:"job_repository_db_ref"`
	// DocumentStoreDBRef is the database connection documents are loaded into.
	DocumentStoreDBRef string `yaml:"document_store_db_ref"`
	// ExportStorageRef is the storage connection exports are uploaded to.
	ExportStorageRef string `yaml:"export_storage_ref"`
}

// PrometheusConfig configures the Prometheus recorder and its scrape endpoint.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Listen address of the /metrics endpoint, e.g. ":9090". Empty disables the endpoint.
	Path    string `yaml:"path"`
}

// OtlpConfig configures an OTLP exporter.
type OtlpConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // host:port of the collector.
	Protocol string `yaml:"protocol"` // "grpc" or "http".
	Insecure bool   `yaml:"insecure"`
	// IntervalSeconds is the metric export interval.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// MetricsConfig holds metric recording settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Otlp       OtlpConfig       `yaml:"otlp"`
}

// TracingConfig holds span export settings.
type TracingConfig struct {
	Enabled     bool       `yaml:"enabled"`
	ServiceName string     `yaml:"service_name"`
	SampleRatio float64    `yaml:"sample_ratio"`
	Otlp        OtlpConfig `yaml:"otlp"`
}

// EvaConfig holds all configuration under the "eva" top-level key.
type EvaConfig struct {
	Batch          BatchConfig                     `yaml:"batch"`
	System         SystemConfig                    `yaml:"system"`
	Infrastructure InfrastructureConfig            `yaml:"infrastructure"`
	Database       dbconfig.DatasourcesConfig      `yaml:"database"`
	Storage        storageconfig.DatasourcesConfig `yaml:"storage"`
	Metrics        MetricsConfig                   `yaml:"metrics"`
	Tracing        TracingConfig                   `yaml:"tracing"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Eva EvaConfig `yaml:"eva"`
	// EmbeddedConfig holds the raw default configuration, not read from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
// The defaults run everything against local SQLite files and the local file system.
func NewConfig() *Config {
	return &Config{
		Eva: EvaConfig{
			Batch: BatchConfig{
				ChunkSize: 100,
				ItemSkip: ItemSkipConfig{
					SkipLimit:           50,
					SkippableExceptions: []string{exception.FlatFileParseException},
				},
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Infrastructure: InfrastructureConfig{
				JobRepositoryType:  JobRepositoryTypeSQL,
				JobRepositoryDBRef: "metadata",
				DocumentStoreDBRef: "documents",
				ExportStorageRef:   "export",
			},
			Database: dbconfig.DatasourcesConfig{
				"metadata":  {Type: "sqlite", Database: "eva_metadata.db", Pool: dbconfig.PoolConfig{MaxOpenConns: 1}},
				"documents": {Type: "sqlite", Database: "eva_documents.db", Pool: dbconfig.PoolConfig{MaxOpenConns: 1}},
			},
			Storage: storageconfig.DatasourcesConfig{
				"export": {Type: "local", BaseDir: "export"},
			},
			Metrics: MetricsConfig{
				Prometheus: PrometheusConfig{Path: "/metrics"},
				Otlp:       OtlpConfig{Protocol: "grpc", IntervalSeconds: 15},
			},
			Tracing: TracingConfig{
				ServiceName: "eva-pipeline",
				SampleRatio: 1.0,
				Otlp:        OtlpConfig{Protocol: "grpc"},
			},
		},
	}
}
