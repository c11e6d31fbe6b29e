package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	storageconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// ConnectionFactory creates a StorageConnection from its configuration.
type ConnectionFactory func(ctx context.Context, name string, cfg storageconfig.StorageConfig) (StorageConnection, error)

var (
	factories     = make(map[string]ConnectionFactory)
	factoriesLock sync.RWMutex
)

// RegisterConnectionFactory registers the factory for a storage type.
func RegisterConnectionFactory(storageType string, factory ConnectionFactory) {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()
	factories[storageType] = factory
}

func lookupFactory(storageType string) (ConnectionFactory, error) {
	factoriesLock.RLock()
	defer factoriesLock.RUnlock()
	factory, ok := factories[storageType]
	if !ok {
		return nil, fmt.Errorf("no storage adapter registered for type '%s'", storageType)
	}
	return factory, nil
}

// StorageProvider hands out one lazily created connection per configured name.
type StorageProvider struct {
	configs     storageconfig.DatasourcesConfig
	connections map[string]StorageConnection
	mu          sync.Mutex
}

// NewStorageProvider creates a StorageProvider over the named storage configurations.
func NewStorageProvider(configs storageconfig.DatasourcesConfig) *StorageProvider {
	return &StorageProvider{
		configs:     configs,
		connections: make(map[string]StorageConnection),
	}
}

// GetConnection retrieves a StorageConnection by name, creating it on first use.
func (p *StorageProvider) GetConnection(ctx context.Context, name string) (StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}
	cfg, ok := p.configs[name]
	if !ok {
		return nil, fmt.Errorf("storage configuration for name '%s' not found", name)
	}
	factory, err := lookupFactory(cfg.Type)
	if err != nil {
		return nil, err
	}
	conn, err := factory(ctx, name, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage connection '%s': %w", name, err)
	}
	p.connections[name] = conn
	logger.Infof("Established storage connection: %s (%s)", name, cfg.Type)
	return conn, nil
}

// FindByType returns the first configured connection (by name order) of the given type.
func (p *StorageProvider) FindByType(ctx context.Context, storageType string) (StorageConnection, error) {
	names := make([]string, 0, len(p.configs))
	for name, cfg := range p.configs {
		if cfg.Type == storageType {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no storage connection of type '%s' is configured", storageType)
	}
	sort.Strings(names)
	return p.GetConnection(ctx, names[0])
}

// OpenURI opens a gs://bucket/object URI through the configured GCS connection,
// and anything else as a local file path.
func (p *StorageProvider) OpenURI(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, object, ok := ParseGCSURI(uri)
	if !ok {
		return os.Open(uri)
	}
	conn, err := p.FindByType(ctx, "gcs")
	if err != nil {
		return nil, err
	}
	return conn.Download(ctx, bucket, object)
}

// CloseAll closes all connections managed by this provider.
func (p *StorageProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close storage '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result
}

// ParseGCSURI splits gs://bucket/path/to/object. ok is false for other schemes.
func ParseGCSURI(uri string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(uri, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}
