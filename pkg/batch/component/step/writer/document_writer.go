// Package writer provides the item writers used by the loader steps.
package writer

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/serialization"
)

const defaultBulkSize = 500

// DocumentKey identifies a document: ID is its natural key, RefID an optional link to
// another document.
type DocumentKey struct {
	ID    string
	RefID string
}

// DocumentMapper maps an item to its natural key and stored document shape.
type DocumentMapper[T any] func(item T) (DocumentKey, interface{}, error)

// DocumentMerger combines a stored document with the incoming one for the same key.
type DocumentMerger func(stored, incoming string) (string, error)

// DocumentWriter upserts items into a document collection table. Documents are keyed by their
// natural key, so writing the same chunk twice leaves the collection unchanged.
type DocumentWriter[T any] struct {
	name       string
	db         *gorm.DB
	collection string
	mapper     DocumentMapper[T]
	bulkSize   int
	now        func() time.Time
	merge      DocumentMerger
}

// DocumentWriterOption configures a DocumentWriter.
type DocumentWriterOption[T any] func(*DocumentWriter[T])

// WithBulkSize sets how many rows go into one INSERT statement.
func WithBulkSize[T any](size int) DocumentWriterOption[T] {
	return func(w *DocumentWriter[T]) {
		if size > 0 {
			w.bulkSize = size
		}
	}
}

// WithClock overrides the time source of updated_at.
func WithClock[T any](now func() time.Time) DocumentWriterOption[T] {
	return func(w *DocumentWriter[T]) {
		w.now = now
	}
}

// WithMerge makes the writer combine each document with the stored one instead of replacing
// it. Documents sharing a key within a chunk are combined too.
func WithMerge[T any](merge DocumentMerger) DocumentWriterOption[T] {
	return func(w *DocumentWriter[T]) {
		w.merge = merge
	}
}

var _ port.ItemWriter[any] = (*DocumentWriter[any])(nil)

// NewDocumentWriter creates a DocumentWriter for collection.
//
// Parameters:
//
//	name: A unique name for this writer instance, used in logs.
//	db: The document store connection.
//	collection: The target table. It must exist (see gormadapter.EnsureDocumentTable).
//	mapper: Derives the key and the document of each item.
func NewDocumentWriter[T any](name string, db *gorm.DB, collection string, mapper DocumentMapper[T], opts ...DocumentWriterOption[T]) (*DocumentWriter[T], error) {
	if db == nil {
		return nil, exception.NewBatchErrorf("writer", "DocumentWriter '%s' requires a database connection", name)
	}
	if err := gormadapter.ValidateCollectionName(collection); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("DocumentWriter '%s' has no usable collection", name), err, false, false)
	}
	if mapper == nil {
		return nil, exception.NewBatchErrorf("writer", "DocumentWriter '%s' requires a document mapper", name)
	}
	w := &DocumentWriter[T]{
		name:       name,
		db:         db,
		collection: collection,
		mapper:     mapper,
		bulkSize:   defaultBulkSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Open implements port.ItemWriter.
func (w *DocumentWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	logger.Infof("DocumentWriter '%s': Opened. Collection: %s", w.name, w.collection)
	return nil
}

// Write upserts the chunk in a single transaction. When the chunk holds several items with the
// same key, the last one wins unless a merger is set.
func (w *DocumentWriter[T]) Write(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}

	records, err := w.toRecords(items)
	if err != nil {
		return err
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if w.merge != nil {
			if err := w.mergeStored(tx, records); err != nil {
				return err
			}
		}
		for i := 0; i < len(records); i += w.bulkSize {
			end := i + w.bulkSize
			if end > len(records) {
				end = len(records)
			}
			batch := records[i:end]
			result := tx.Table(w.collection).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"ref_id", "document", "updated_at"}),
			}).Create(&batch)
			if result.Error != nil {
				return fmt.Errorf("upsert of rows %d-%d failed: %w", i, end-1, result.Error)
			}
		}
		return nil
	})
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("Failed to upsert documents into '%s' for DocumentWriter '%s'", w.collection, w.name), err, false, false)
	}

	logger.Debugf("DocumentWriter '%s': Upserted %d documents into %s.", w.name, len(records), w.collection)
	return nil
}

func (w *DocumentWriter[T]) toRecords(items []T) ([]gormadapter.DocumentRecord, error) {
	now := w.now().UTC()
	records := make([]gormadapter.DocumentRecord, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		key, doc, err := w.mapper(item)
		if err != nil {
			return nil, exception.NewBatchError("writer", fmt.Sprintf("Failed to map item for DocumentWriter '%s'", w.name), err, false, false)
		}
		if key.ID == "" {
			return nil, exception.NewBatchErrorf("writer", "DocumentWriter '%s': document has an empty id", w.name)
		}
		data, err := serialization.MarshalDocument(doc)
		if err != nil {
			return nil, err
		}
		record := gormadapter.DocumentRecord{ID: key.ID, RefID: key.RefID, Document: data, UpdatedAt: now}
		if pos, dup := index[key.ID]; dup {
			if w.merge != nil {
				if record.Document, err = w.merge(records[pos].Document, data); err != nil {
					return nil, exception.NewBatchError("writer", fmt.Sprintf("Failed to merge document '%s' for DocumentWriter '%s'", key.ID, w.name), err, false, false)
				}
			}
			records[pos] = record
			continue
		}
		index[key.ID] = len(records)
		records = append(records, record)
	}
	return records, nil
}

// mergeStored folds the stored version of every record into it.
func (w *DocumentWriter[T]) mergeStored(tx *gorm.DB, records []gormadapter.DocumentRecord) error {
	ids := make([]string, len(records))
	index := make(map[string]int, len(records))
	for i, r := range records {
		ids[i] = r.ID
		index[r.ID] = i
	}
	var stored []gormadapter.DocumentRecord
	for i := 0; i < len(ids); i += w.bulkSize {
		end := min(i+w.bulkSize, len(ids))
		var page []gormadapter.DocumentRecord
		if err := tx.Table(w.collection).Where("id IN ?", ids[i:end]).Find(&page).Error; err != nil {
			return fmt.Errorf("lookup of stored documents failed: %w", err)
		}
		stored = append(stored, page...)
	}
	for _, s := range stored {
		r := &records[index[s.ID]]
		merged, err := w.merge(s.Document, r.Document)
		if err != nil {
			return fmt.Errorf("merge of document '%s' failed: %w", s.ID, err)
		}
		r.Document = merged
	}
	return nil
}

// Close implements port.ItemWriter. The connection is owned by the provider.
func (w *DocumentWriter[T]) Close(ctx context.Context) error {
	logger.Infof("DocumentWriter '%s': Closed.", w.name)
	return nil
}
