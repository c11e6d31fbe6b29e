// Package gorm opens and manages the named GORM connections used by the job repository
// and the document store. Dialects register themselves from their subpackages
// (sqlite, postgres, mysql) so only the imported drivers are linked in.
package gorm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	dbconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

const moduleName = "database"

// DialectorFactory generates a gorm.Dialector from a dbconfig.DatabaseConfig.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	registryMutex     sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory corresponding to the specified DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
	}
	return factory, nil
}

// Open establishes a GORM connection for cfg and applies its pool settings.
func Open(cfg dbconfig.DatabaseConfig) (*gorm.DB, error) {
	dialectorFactory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to get dialector factory for %s: %w", cfg.Type, err)
	}
	dialector, err := dialectorFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", cfg.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger(cfg.LogLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// DBProvider hands out one lazily opened connection per configured name.
type DBProvider struct {
	configs     dbconfig.DatasourcesConfig
	connections map[string]*gorm.DB
	mu          sync.Mutex
}

// NewDBProvider creates a DBProvider over the named datasource configurations.
func NewDBProvider(configs dbconfig.DatasourcesConfig) *DBProvider {
	return &DBProvider{
		configs:     configs,
		connections: make(map[string]*gorm.DB),
	}
}

// Config returns the configuration registered under name.
func (p *DBProvider) Config(name string) (dbconfig.DatabaseConfig, error) {
	cfg, ok := p.configs[name]
	if !ok {
		return dbconfig.DatabaseConfig{}, exception.NewBatchErrorf(moduleName, "database configuration '%s' not found (known: %v)", name, p.names())
	}
	return cfg, nil
}

// GetConnection retrieves an existing connection or establishes a new one.
func (p *DBProvider) GetConnection(name string) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.connections[name]; ok {
		return db, nil
	}
	cfg, err := p.Config(name)
	if err != nil {
		return nil, err
	}
	db, err := Open(cfg)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to connect to database '%s'", name), err, false, false)
	}
	p.connections[name] = db
	logger.Infof("Established new DB connection: %s (%s)", name, cfg.Type)
	return db, nil
}

// CloseAll closes all connections managed by this provider.
func (p *DBProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result error
	for name, db := range p.connections {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil {
			logger.Errorf("Failed to close connection '%s': %v", name, err)
			result = multierror.Append(result, fmt.Errorf("close '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result
}

func (p *DBProvider) names() []string {
	names := make([]string, 0, len(p.configs))
	for name := range p.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
