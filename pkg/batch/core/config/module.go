package config

import (
	"go.uber.org/fx"

	dbconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/config"
	storageconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/config"
)

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Eva.System.Logging
}

// NewDatasourcesProvider extracts the named database connections.
func NewDatasourcesProvider(cfg *Config) dbconfig.DatasourcesConfig {
	return cfg.Eva.Database
}

// NewStorageProvider extracts the named storage connections.
func NewStorageProvider(cfg *Config) storageconfig.DatasourcesConfig {
	return cfg.Eva.Storage
}

// NewMetricsConfigProvider extracts the metrics section.
func NewMetricsConfigProvider(cfg *Config) MetricsConfig {
	return cfg.Eva.Metrics
}

// NewTracingConfigProvider extracts the tracing section.
func NewTracingConfigProvider(cfg *Config) TracingConfig {
	return cfg.Eva.Tracing
}

// Module provides *Config and its sections to Fx. The application supplies EmbeddedConfig
// and, optionally, the named "envFilePath" and "configFilePath" strings.
var Module = fx.Options(
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
	fx.Provide(NewConfigProvider),
	fx.Provide(
		NewLoggingConfigProvider,
		NewDatasourcesProvider,
		NewStorageProvider,
		NewMetricsConfigProvider,
		NewTracingConfigProvider,
	),
)
