package writer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/serialization"
)

type feature struct {
	ID         string `json:"id"`
	Chromosome string `json:"chromosome"`
	Start      int    `json:"start"`
}

func featureMapper(f feature) (DocumentKey, interface{}, error) {
	return DocumentKey{ID: f.ID}, f, nil
}

func newSQLiteDocumentStore(t *testing.T, collection string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "documents.db")), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	require.NoError(t, gormadapter.EnsureDocumentTable(db, collection))
	return db
}

func TestDocumentWriter_UpsertIsIdempotent(t *testing.T) {
	db := newSQLiteDocumentStore(t, "features")
	w, err := NewDocumentWriter("genes-writer", db, "features", featureMapper, WithBulkSize[feature](2))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	chunk := []feature{
		{ID: "ENSG01", Chromosome: "1", Start: 100},
		{ID: "ENSG02", Chromosome: "1", Start: 200},
		{ID: "ENSG03", Chromosome: "2", Start: 300},
	}
	require.NoError(t, w.Write(ctx, chunk))
	require.NoError(t, w.Write(ctx, chunk))
	require.NoError(t, w.Write(ctx, []feature{{ID: "ENSG02", Chromosome: "1", Start: 250}}))
	require.NoError(t, w.Close(ctx))

	var count int64
	require.NoError(t, db.Table("features").Count(&count).Error)
	assert.Equal(t, int64(3), count)

	var record gormadapter.DocumentRecord
	require.NoError(t, db.Table("features").Where("id = ?", "ENSG02").Take(&record).Error)
	var stored feature
	require.NoError(t, serialization.UnmarshalDocument(record.Document, &stored))
	assert.Equal(t, 250, stored.Start)
}

func TestDocumentWriter_DuplicateKeysInChunkKeepLast(t *testing.T) {
	db := newSQLiteDocumentStore(t, "variants")
	w, err := NewDocumentWriter("variants-writer", db, "variants", featureMapper)
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), []feature{
		{ID: "1_100_A_T", Start: 100},
		{ID: "1_100_A_T", Start: 101},
	}))

	var records []gormadapter.DocumentRecord
	require.NoError(t, db.Table("variants").Find(&records).Error)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Document, `"start":101`)
}

func TestDocumentWriter_MapperErrorFailsChunk(t *testing.T) {
	db := newSQLiteDocumentStore(t, "features")
	w, err := NewDocumentWriter("w", db, "features", func(f feature) (DocumentKey, interface{}, error) {
		if f.ID == "bad" {
			return DocumentKey{}, nil, errors.New("no id")
		}
		return DocumentKey{ID: f.ID}, f, nil
	})
	require.NoError(t, err)

	err = w.Write(context.Background(), []feature{{ID: "ok"}, {ID: "bad"}})
	assert.Error(t, err)

	var count int64
	require.NoError(t, db.Table("features").Count(&count).Error)
	assert.Zero(t, count, "nothing of a failed chunk is persisted")
}

func TestDocumentWriter_IssuesUpsertStatement(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w, err := NewDocumentWriter("sample-properties", gormDB, "sample_properties", featureMapper, WithClock[feature](func() time.Time { return fixed }))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `sample_properties` .* ON DUPLICATE KEY UPDATE `ref_id`=VALUES\\(`ref_id`\\),`document`=VALUES\\(`document`\\),`updated_at`=VALUES\\(`updated_at`\\)").
		WithArgs("AGE", "", sqlmock.AnyArg(), fixed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, w.Write(context.Background(), []feature{{ID: "AGE"}}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDocumentWriter_RequiresArguments(t *testing.T) {
	_, err := NewDocumentWriter[feature]("w", nil, "features", featureMapper)
	assert.Error(t, err)

	db := newSQLiteDocumentStore(t, "features")
	_, err = NewDocumentWriter[feature]("w", db, "", featureMapper)
	assert.Error(t, err)
	_, err = NewDocumentWriter[feature]("w", db, "features", nil)
	assert.Error(t, err)
}

type tagged struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

func mergeTags(stored, incoming string) (string, error) {
	var a, b tagged
	if err := serialization.UnmarshalDocument(stored, &a); err != nil {
		return "", err
	}
	if err := serialization.UnmarshalDocument(incoming, &b); err != nil {
		return "", err
	}
	a.Tags = append(a.Tags, b.Tags...)
	return serialization.MarshalDocument(a)
}

func TestDocumentWriter_MergesWithStoredDocuments(t *testing.T) {
	db := newSQLiteDocumentStore(t, "variants")
	mapper := func(v tagged) (DocumentKey, interface{}, error) { return DocumentKey{ID: v.ID}, v, nil }
	w, err := NewDocumentWriter("variants-writer", db, "variants", mapper, WithMerge[tagged](mergeTags))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, []tagged{{ID: "1_100_A_T", Tags: []string{"file1"}}}))
	require.NoError(t, w.Write(ctx, []tagged{
		{ID: "1_100_A_T", Tags: []string{"file2"}},
		{ID: "1_100_A_T", Tags: []string{"file3"}},
		{ID: "1_200_C_G", Tags: []string{"file2"}},
	}))

	var record gormadapter.DocumentRecord
	require.NoError(t, db.Table("variants").Where("id = ?", "1_100_A_T").Take(&record).Error)
	var stored tagged
	require.NoError(t, serialization.UnmarshalDocument(record.Document, &stored))
	assert.Equal(t, []string{"file1", "file2", "file3"}, stored.Tags)

	var other gormadapter.DocumentRecord
	require.NoError(t, db.Table("variants").Where("id = ?", "1_200_C_G").Take(&other).Error)
	var otherDoc tagged
	require.NoError(t, serialization.UnmarshalDocument(other.Document, &otherDoc))
	assert.Equal(t, []string{"file2"}, otherDoc.Tags)
}
