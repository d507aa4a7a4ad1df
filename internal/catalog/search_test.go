package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocumentAdder struct {
	docs       []map[string]interface{}
	primaryKey *string
	err        error
}

func (f *fakeDocumentAdder) AddDocumentsWithContext(ctx context.Context, documentsPtr interface{}, primaryKey *string) (*meilisearch.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, documentsPtr.([]map[string]interface{})...)
	f.primaryKey = primaryKey
	return &meilisearch.TaskInfo{TaskUID: 1}, nil
}

func TestIndexItemSendsSearchFields(t *testing.T) {
	item := &CatalogItem{
		ID:         uuid.New(),
		Kind:       KindEvent,
		Key:        NaturalKey{Code: "4251C", Year: "26"},
		Title:      "Accounting & Auditing Conference",
		Acronym:    "AAC",
		Badge:      BadgeTrending,
		Published:  true,
		SearchText: "Accounting & Auditing Conference Fraud Update",
	}

	adder := &fakeDocumentAdder{}
	indexer := &MeiliIndexer{index: adder}

	require.NoError(t, indexer.IndexItem(context.Background(), item))
	require.Len(t, adder.docs, 1)
	doc := adder.docs[0]
	assert.Equal(t, item.ID.String(), doc["id"])
	assert.Equal(t, "4251C", doc["code"])
	assert.Equal(t, BadgeTrending, doc["badge"])
	assert.Equal(t, true, doc["published"])
	assert.Nil(t, adder.primaryKey, "the index's configured primary key applies")
}

func TestIndexItemExcludedIsUnpublishedInIndex(t *testing.T) {
	item := &CatalogItem{
		ID:        uuid.New(),
		Kind:      KindEvent,
		Key:       NaturalKey{Code: "4251C", Year: "26"},
		Published: true,
		Excluded:  true,
	}

	adder := &fakeDocumentAdder{}
	indexer := &MeiliIndexer{index: adder}

	require.NoError(t, indexer.IndexItem(context.Background(), item))
	require.Len(t, adder.docs, 1)
	assert.Equal(t, false, adder.docs[0]["published"])
}

func TestIndexItemWrapsErrors(t *testing.T) {
	adder := &fakeDocumentAdder{err: errors.New("index unavailable")}
	indexer := &MeiliIndexer{index: adder}

	err := indexer.IndexItem(context.Background(), &CatalogItem{Key: NaturalKey{Code: "4251C", Year: "26"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4251C/26")
}
