// Package migration prepares the document store: it applies the embedded schema
// migrations and creates any additional collection tables a job writes to.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"strings"

	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

const taskletName = "prepare_database_tasklet"

// MigrationsTable is the version table golang-migrate keeps in the document store.
const MigrationsTable = "eva_schema_migrations"

// collectionsKey lists the collections ensured by the tasklet in the step ExecutionContext.
const collectionsKey = "prepare.collections"

//go:embed resource
var rawMigrationFS embed.FS

// MigrationsFS returns the embedded migrations, one directory per database type.
func MigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawMigrationFS, "resource")
	if err != nil {
		logger.Fatalf("Failed to create subdirectory for migration FS: %v", err)
	}
	return subFS
}

// MigratorFactory creates a Migrator for a dedicated connection.
type MigratorFactory func(sqlDB *sql.DB, dbType string) Migrator

// PrepareDatabaseTasklet migrates the document store schema and makes sure every
// collection table the job writes to exists.
type PrepareDatabaseTasklet struct {
	provider    *gormadapter.DBProvider
	dbRef       string
	collections []string
	command     string
	migrationFS fs.FS
	newMigrator MigratorFactory
}

var _ port.Tasklet = (*PrepareDatabaseTasklet)(nil)

// Option configures a PrepareDatabaseTasklet.
type Option func(*PrepareDatabaseTasklet)

// WithCommand sets the migration command, "up" (default) or "down".
func WithCommand(command string) Option {
	return func(t *PrepareDatabaseTasklet) {
		t.command = strings.ToLower(command)
	}
}

// WithMigrationFS replaces the embedded migrations.
func WithMigrationFS(migrationFS fs.FS) Option {
	return func(t *PrepareDatabaseTasklet) {
		t.migrationFS = migrationFS
	}
}

// WithMigratorFactory replaces the golang-migrate based Migrator.
func WithMigratorFactory(factory MigratorFactory) Option {
	return func(t *PrepareDatabaseTasklet) {
		t.newMigrator = factory
	}
}

// NewPrepareDatabaseTasklet creates the tasklet for the connection named dbRef.
// collections are the table names the job writes documents to.
func NewPrepareDatabaseTasklet(provider *gormadapter.DBProvider, dbRef string, collections []string, opts ...Option) (*PrepareDatabaseTasklet, error) {
	if provider == nil {
		return nil, exception.NewBatchErrorf(taskletName, "a database provider is required")
	}
	if dbRef == "" {
		return nil, exception.NewBatchErrorf(taskletName, "property 'dbRef' is required")
	}
	t := &PrepareDatabaseTasklet{
		provider:    provider,
		dbRef:       dbRef,
		collections: collections,
		command:     "up",
		migrationFS: MigrationsFS(),
		newMigrator: NewMigrator,
	}
	for _, opt := range opts {
		opt(t)
	}
	logger.Debugf("PrepareDatabaseTasklet initialized: DB=%s, Command=%s, Collections=%v", dbRef, t.command, collections)
	return t, nil
}

// Execute runs the migrations on a dedicated connection, since golang-migrate closes the
// connection it was given, then creates the missing collection tables on the shared one.
func (t *PrepareDatabaseTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	cfg, err := t.provider.Config(t.dbRef)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	logger.Infof("Preparing database '%s' (%s) with command '%s'.", t.dbRef, cfg.Type, t.command)

	dedicated, err := gormadapter.Open(cfg)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(taskletName, "failed to open migration connection", err, false, false)
	}
	sqlDB, err := dedicated.DB()
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(taskletName, "failed to get migration connection", err, false, false)
	}
	defer sqlDB.Close()

	migrator := t.newMigrator(sqlDB, cfg.Type)
	migrationDir := migrationDirFor(cfg.Type)
	switch t.command {
	case "up":
		err = migrator.Up(ctx, t.migrationFS, migrationDir, MigrationsTable)
	case "down":
		err = migrator.Down(ctx, t.migrationFS, migrationDir, MigrationsTable)
	default:
		return model.ExitStatusFailed, exception.NewBatchErrorf(taskletName, "unknown migration command: %s", t.command)
	}
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(taskletName, "migration '"+t.command+"' failed", err, false, false)
	}
	if t.command == "down" {
		return model.ExitStatusCompleted, nil
	}

	db, err := t.provider.GetConnection(t.dbRef)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	db = db.WithContext(ctx)
	for _, collection := range t.collections {
		if collection == "" {
			continue
		}
		if err := gormadapter.EnsureDocumentTable(db, collection); err != nil {
			return model.ExitStatusFailed, exception.NewBatchError(taskletName, "failed to prepare collection", err, false, false)
		}
	}
	if stepExecution != nil && stepExecution.ExecutionContext != nil {
		stepExecution.ExecutionContext.Put(collectionsKey, strings.Join(t.collections, ","))
	}
	logger.Infof("Database '%s' is ready (collections: %v).", t.dbRef, t.collections)
	return model.ExitStatusCompleted, nil
}

// migrationDirFor maps a database type to its migration directory.
func migrationDirFor(dbType string) string {
	if dbType == "redshift" {
		return "postgres"
	}
	return dbType
}
