package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the default configuration file.
	Expander       EnvironmentExpander
	EnvFilePath    string `name:"envFilePath" optional:"true"`    // EnvFilePath is the path to the .env file, if any.
	ConfigFilePath string `name:"configFilePath" optional:"true"` // ConfigFilePath is a YAML file overriding the embedded defaults.
}

// loadConfig builds the configuration in layers: defaults from NewConfig, the embedded YAML,
// the optional override file, then environment variables named after the yaml tags
// (e.g. EVA_BATCH_CHUNK_SIZE, EVA_DATABASE_METADATA_HOST).
// ${VAR} placeholders in YAML are expanded before parsing.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, overridePath string, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	if len(embeddedConfig) > 0 {
		if err := unmarshalInto(cfg, embeddedConfig, expander); err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
		}
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to read config file '%s'", overridePath), err, false, false)
		}
		if err := unmarshalInto(cfg, data, expander); err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to unmarshal config file '%s'", overridePath), err, false, false)
		}
		logger.Debugf("Configuration overridden from '%s'.", overridePath)
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// unmarshalInto decodes YAML over cfg. Fields absent from the document keep their current
// values; map entries present in the document replace the existing entry as a whole.
func unmarshalInto(cfg *Config, data []byte, expander EnvironmentExpander) error {
	expanded, err := expander.Expand(data)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(expanded, cfg)
}

// NewConfigProvider is an Fx provider that loads and validates *Config.
// It also applies the configured log level and timezone.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.ConfigFilePath, params.Expander)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Eva.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Eva.System.Logging.Level)

	if cfg.Eva.System.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Eva.System.Timezone)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("invalid timezone '%s'", cfg.Eva.System.Timezone), err, false, false)
		}
		time.Local = loc
	}

	if err := Validate(cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, false, false)
	}
	return cfg, nil
}

// LoadConfig loads configuration without going through Fx.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig, overridePath string) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig, overridePath, NewOsEnvironmentExpander())
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, false, false)
	}
	return cfg, nil
}

// Validate checks value ranges and that configured exception names exist in the registry.
func Validate(cfg *Config) error {
	batch := cfg.Eva.Batch
	if batch.ChunkSize <= 0 {
		return fmt.Errorf("batch.chunk_size must be greater than 0, got %d", batch.ChunkSize)
	}
	if batch.ItemSkip.SkipLimit < 0 {
		return fmt.Errorf("batch.item_skip.skip_limit must not be negative, got %d", batch.ItemSkip.SkipLimit)
	}
	if err := checkExceptionClasses(batch.ItemSkip.SkippableExceptions, "ItemSkip"); err != nil {
		return err
	}

	infra := cfg.Eva.Infrastructure
	switch infra.JobRepositoryType {
	case JobRepositoryTypeSQL:
		if _, ok := cfg.Eva.Database[infra.JobRepositoryDBRef]; !ok {
			return fmt.Errorf("infrastructure.job_repository_db_ref '%s' does not name a database connection", infra.JobRepositoryDBRef)
		}
	case JobRepositoryTypeInMemory:
	default:
		return fmt.Errorf("unknown infrastructure.job_repository_type '%s'", infra.JobRepositoryType)
	}
	if _, ok := cfg.Eva.Database[infra.DocumentStoreDBRef]; !ok {
		return fmt.Errorf("infrastructure.document_store_db_ref '%s' does not name a database connection", infra.DocumentStoreDBRef)
	}

	for name, otlp := range map[string]OtlpConfig{"metrics.otlp": cfg.Eva.Metrics.Otlp, "tracing.otlp": cfg.Eva.Tracing.Otlp} {
		if p := strings.ToLower(otlp.Protocol); otlp.Enabled && p != "grpc" && p != "http" {
			return fmt.Errorf("%s.protocol must be grpc or http, got '%s'", name, otlp.Protocol)
		}
	}
	return nil
}

// checkExceptionClasses validates that all exception class names in the provided list
// are registered in the exception registry.
func checkExceptionClasses(classNames []string, configType string) error {
	for _, name := range classNames {
		if !exception.IsErrorTypeRegistered(name) {
			return fmt.Errorf("%s configuration references unknown exception class: '%s'. Ensure it is registered.", configType, name)
		}
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := tagName(fieldType)
		if yamlTag == "" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Struct {
			// EVA_DATABASE_METADATA_HOST sets Host of the "metadata" entry.
			if err := loadMapOfStructsFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapOfStructsFromEnv loads fields of type map[string]struct{} from environment variables.
// The map key is the first segment after the prefix; the rest names the struct field.
func loadMapOfStructsFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}
	elemType := mapField.Type().Elem()

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndFieldParts := strings.SplitN(parts[0], "_", 2)
		if len(keyAndFieldParts) < 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndFieldParts[0])

		current := mapField.MapIndex(reflect.ValueOf(mapKey))
		structVal := reflect.New(elemType).Elem()
		if current.IsValid() {
			structVal.Set(current)
		}
		if err := setStructFieldFromEnv(structVal, keyAndFieldParts[1], parts[1]); err != nil {
			return fmt.Errorf("failed to set '%s' from env var '%s': %w", mapKey, parts[0], err)
		}
		mapField.SetMapIndex(reflect.ValueOf(mapKey), structVal)
	}
	return nil
}

// setStructFieldFromEnv sets the field whose yaml tag matches fieldName (case-insensitively),
// descending into nested structs, e.g. POOL_MAX_OPEN_CONNS.
func setStructFieldFromEnv(structVal reflect.Value, fieldName string, value string) error {
	typ := structVal.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := structVal.Field(i)
		yamlTag := tagName(typ.Field(i))
		if yamlTag == "" {
			continue
		}
		if field.Kind() == reflect.Struct {
			nestedPrefix := strings.ToUpper(yamlTag) + "_"
			if strings.HasPrefix(strings.ToUpper(fieldName), nestedPrefix) {
				return setStructFieldFromEnv(field, fieldName[len(nestedPrefix):], value)
			}
			continue
		}
		if strings.EqualFold(yamlTag, fieldName) {
			return setField(field, value)
		}
	}
	return nil
}

func tagName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "-" {
		return ""
	}
	return tag
}

// setField sets the value of a reflect.Value field based on its kind.
// Slices of strings are read as comma-separated lists.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		items := make([]string, 0)
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	}
	return nil
}
