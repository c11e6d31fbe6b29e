package reader

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

const defaultPageSize = 1000

// DocumentAlias is the alias of the collection table in DocumentReader queries.
// Scopes refer to the current document as d, e.g. "d.ref_id".
const DocumentAlias = "d"

// DocumentDecoder converts a stored document into an item.
type DocumentDecoder[T any] func(record gormadapter.DocumentRecord) (T, error)

// DocumentReader reads a document collection in id order, one page at a time.
// Paging is by key (id > last id), so its position is the id of the last document read and a
// restart continues right after it even if other documents were inserted meanwhile.
type DocumentReader[T any] struct {
	name       string
	db         *gorm.DB
	collection string
	decode     DocumentDecoder[T]
	scopes     []func(*gorm.DB) *gorm.DB
	pageSize   int
	saveState  bool

	page      []gormadapter.DocumentRecord
	lastID    string
	readCount int
	exhausted bool
}

// DocumentReaderOption configures a DocumentReader.
type DocumentReaderOption[T any] func(*DocumentReader[T])

// WithPageSize sets how many documents are fetched per query.
func WithPageSize[T any](size int) DocumentReaderOption[T] {
	return func(r *DocumentReader[T]) {
		if size > 0 {
			r.pageSize = size
		}
	}
}

// WithScopes narrows the query, e.g. to documents without annotations.
func WithScopes[T any](scopes ...func(*gorm.DB) *gorm.DB) DocumentReaderOption[T] {
	return func(r *DocumentReader[T]) {
		r.scopes = append(r.scopes, scopes...)
	}
}

// WithSaveState controls whether the position is reported for checkpoints. A reader
// without saved state restarts from the first document.
func WithSaveState[T any](saveState bool) DocumentReaderOption[T] {
	return func(r *DocumentReader[T]) {
		r.saveState = saveState
	}
}

var _ port.ItemReader[any] = (*DocumentReader[any])(nil)

// NewDocumentReader creates a reader over collection.
func NewDocumentReader[T any](name string, db *gorm.DB, collection string, decode DocumentDecoder[T], opts ...DocumentReaderOption[T]) (*DocumentReader[T], error) {
	if db == nil {
		return nil, exception.NewBatchErrorf("reader", "DocumentReader '%s' requires a database connection", name)
	}
	if err := gormadapter.ValidateCollectionName(collection); err != nil {
		return nil, exception.NewBatchError("reader", fmt.Sprintf("DocumentReader '%s' has no usable collection", name), err, false, false)
	}
	if decode == nil {
		return nil, exception.NewBatchErrorf("reader", "DocumentReader '%s' requires a document decoder", name)
	}
	r := &DocumentReader[T]{
		name:       name,
		db:         db,
		collection: collection,
		decode:     decode,
		pageSize:   defaultPageSize,
		saveState:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *DocumentReader[T]) lastIDKey() string    { return r.name + ".last.id" }
func (r *DocumentReader[T]) readCountKey() string { return r.name + ".read.count" }

// Open restores the last id read from ec.
func (r *DocumentReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.page = nil
	r.lastID = ""
	r.readCount = 0
	r.exhausted = false

	if r.saveState {
		if id, ok := ec.GetString(r.lastIDKey()); ok {
			r.lastID = id
			r.readCount, _ = ec.GetInt(r.readCountKey())
		}
	}
	if r.lastID != "" {
		logger.Infof("DocumentReader '%s': Resuming %s after id '%s' (%d documents already read).", r.name, r.collection, r.lastID, r.readCount)
	} else {
		logger.Infof("DocumentReader '%s': Starting new read of %s.", r.name, r.collection)
	}
	return nil
}

// Read returns the next document, querying the next page when the current one is drained.
func (r *DocumentReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if len(r.page) == 0 {
		if r.exhausted {
			return zero, port.ErrNoMoreItems
		}
		if err := r.fetch(ctx); err != nil {
			return zero, err
		}
		if len(r.page) == 0 {
			return zero, port.ErrNoMoreItems
		}
	}

	record := r.page[0]
	r.page = r.page[1:]
	r.lastID = record.ID
	r.readCount++

	item, err := r.decode(record)
	if err != nil {
		return zero, exception.NewBatchError("reader", fmt.Sprintf("DocumentReader '%s': Failed to decode document '%s'", r.name, record.ID), err, false, false)
	}
	return item, nil
}

func (r *DocumentReader[T]) fetch(ctx context.Context) error {
	query := r.db.WithContext(ctx).
		Table(fmt.Sprintf("%s AS %s", r.collection, DocumentAlias)).
		Select(DocumentAlias + ".id, " + DocumentAlias + ".ref_id, " + DocumentAlias + ".document, " + DocumentAlias + ".updated_at").
		Scopes(r.scopes...)
	if r.lastID != "" {
		query = query.Where(DocumentAlias+".id > ?", r.lastID)
	}

	var records []gormadapter.DocumentRecord
	if err := query.Order(DocumentAlias + ".id").Limit(r.pageSize).Find(&records).Error; err != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("DocumentReader '%s': Failed to query %s", r.name, r.collection), err, false, false)
	}
	logger.Debugf("DocumentReader '%s': Fetched %d documents after id '%s'.", r.name, len(records), r.lastID)
	r.page = records
	r.exhausted = len(records) < r.pageSize
	return nil
}

// Close releases the buffered page.
func (r *DocumentReader[T]) Close(ctx context.Context) error {
	r.page = nil
	logger.Infof("DocumentReader '%s': Closed after %d documents.", r.name, r.readCount)
	return nil
}

// GetExecutionContext returns the id of the last document read.
func (r *DocumentReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	if !r.saveState || r.lastID == "" {
		return ec, nil
	}
	ec.Put(r.lastIDKey(), r.lastID)
	ec.Put(r.readCountKey(), r.readCount)
	return ec, nil
}
