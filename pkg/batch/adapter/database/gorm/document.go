package gorm

import (
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"
)

// DocumentRecord is one row of a document collection table. Collections are plain tables
// keyed by the document's natural key; the document itself is stored as JSON text.
type DocumentRecord struct {
	ID string `gorm:"column:id;primaryKey;size:255"`
	// RefID links the document to another one, e.g. an annotation to its variant.
	RefID     string    `gorm:"column:ref_id;size:255;index"`
	Document  string    `gorm:"column:document;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateCollectionName rejects names that cannot be used verbatim as a table identifier.
// Collection names end up in raw SQL fragments, so only plain identifiers are accepted.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid collection name %q: expected letters, digits and underscores", name)
	}
	return nil
}

// EnsureDocumentTable creates the collection table when it does not exist yet.
// Existing tables are left untouched.
func EnsureDocumentTable(db *gorm.DB, table string) error {
	if err := ValidateCollectionName(table); err != nil {
		return err
	}
	if db.Migrator().HasTable(table) {
		return nil
	}
	if err := db.Table(table).AutoMigrate(&DocumentRecord{}); err != nil {
		return fmt.Errorf("failed to create document table '%s': %w", table, err)
	}
	return nil
}
