package config

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string `yaml:"type"`     // Database type ("sqlite", "postgres", "mysql").
	Host     string `yaml:"host"`     // Database host address.
	Port     int    `yaml:"port"`     // Database port number.
	Database string `yaml:"database"` // Database name, or the file path for sqlite.
	User     string `yaml:"user"`     // Database user.
	Password string `yaml:"password"` // Database password.
	Schema   string `yaml:"schema,omitempty"`
	Sslmode  string `yaml:"sslmode"` // SSL mode for postgres connections.
	// DSN, when set, is passed to the driver as is and the discrete fields above are ignored.
	DSN string `yaml:"dsn"`
	// LogLevel is the GORM log level (SILENT, ERROR, WARN, INFO).
	LogLevel string     `yaml:"log_level"`
	Pool     PoolConfig `yaml:"pool"` // Connection pool settings.
}

// DatasourcesConfig holds the named database connections, e.g. "metadata" and "documents".
type DatasourcesConfig map[string]DatabaseConfig
