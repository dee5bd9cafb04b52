package pilesdk

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	schemaCacheSize = 64
	schemaCacheTTL  = 15 * time.Minute
)

// SchemaCapabilities records which optional columns a collection's posts
// table carries. The zero value has no optional columns.
type SchemaCapabilities struct {
	columns mapset.Set[string]
}

func NewSchemaCapabilities(columns ...string) SchemaCapabilities {
	return SchemaCapabilities{columns: mapset.NewSet(columns...)}
}

func (s SchemaCapabilities) Has(column string) bool {
	return s.columns != nil && s.columns.Contains(column)
}

func (s SchemaCapabilities) Columns() []string {
	if s.columns == nil {
		return nil
	}
	return s.columns.ToSlice()
}

func (s SchemaCapabilities) String() string {
	return fmt.Sprintf("SchemaCapabilities%v", s.Columns())
}

type schemaCache struct {
	lru *expirable.LRU[string, SchemaCapabilities]
}

func newSchemaCache() *schemaCache {
	return &schemaCache{
		lru: expirable.NewLRU[string, SchemaCapabilities](schemaCacheSize, nil, schemaCacheTTL),
	}
}

// Capabilities reports the optional columns present in a collection's posts
// table. Each optional column is probed with a single-row projected select;
// E_SCHEMA_UNKNOWN_COLUMN marks it absent. Results are cached per collection
// until the TTL lapses or InvalidateCapabilities is called.
func (p *PostsAPI) Capabilities(ctx context.Context, collectionID string) (SchemaCapabilities, error) {
	if collectionID == "" {
		return SchemaCapabilities{}, ErrNoCollectionID
	}

	if caps, ok := p.schema.lru.Get(collectionID); ok {
		return caps, nil
	}

	caps := NewSchemaCapabilities()
	for _, column := range OptionalColumns {
		_, err := p.List(ctx, &ListPostsParams{
			CollectionID: collectionID,
			Select:       []string{column},
			Limit:        1,
		})
		if err != nil {
			if IsAPIErrorCode(err, CodeSchemaUnknownColumn) {
				continue
			}
			return SchemaCapabilities{}, fmt.Errorf("probe column %s: %w", column, err)
		}
		caps.columns.Add(column)
	}

	p.schema.lru.Add(collectionID, caps)
	return caps, nil
}

// InvalidateCapabilities drops the cached probe result for a collection.
// Called when a write fails with a schema error, so the next sync re-probes.
func (p *PostsAPI) InvalidateCapabilities(collectionID string) {
	p.schema.lru.Remove(collectionID)
}
