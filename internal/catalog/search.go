// internal/catalog/search.go
package catalog

import (
	"context"
	"fmt"

	"github.com/meilisearch/meilisearch-go"
)

// documentAdder is the slice of meilisearch.IndexManager the indexer uses.
type documentAdder interface {
	AddDocumentsWithContext(ctx context.Context, documentsPtr interface{}, primaryKey *string) (*meilisearch.TaskInfo, error)
}

// MeiliIndexer implements Indexer on a Meilisearch index. Only the computed
// search fields go into the index; the catalog store stays the source of
// truth.
type MeiliIndexer struct {
	index documentAdder
}

func NewMeiliIndexer(host, apiKey string) *MeiliIndexer {
	client := meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
	return &MeiliIndexer{index: client.Index("catalog_items")}
}

func searchDocument(item *CatalogItem) map[string]interface{} {
	return map[string]interface{}{
		"id":          item.ID.String(),
		"kind":        string(item.Kind),
		"code":        item.Key.Code,
		"year":        item.Key.Year,
		"title":       item.Title,
		"acronym":     item.Acronym,
		"badge":       item.Badge,
		"free":        item.Free,
		"published":   item.Published && !item.Excluded,
		"search_text": item.SearchText,
	}
}

func (m *MeiliIndexer) IndexItem(ctx context.Context, item *CatalogItem) error {
	// The index's own primary key setting applies; none is forced per call.
	if _, err := m.index.AddDocumentsWithContext(ctx, []map[string]interface{}{searchDocument(item)}, nil); err != nil {
		return fmt.Errorf("index item %s: %w", item.Key, err)
	}
	return nil
}
