package table

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

const DefaultCacheSize = 1024

// Cache keeps recently used descriptors in front of another Resolver.
type Cache struct {
	next    Resolver
	entries *lru.Cache[string, *Descriptor]
}

func NewCache(next Resolver, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *Descriptor](size)
	if err != nil {
		return nil, err
	}
	return &Cache{next: next, entries: entries}, nil
}

func (c *Cache) Descriptor(ctx context.Context, schema, table string) (*Descriptor, error) {
	key := schema + "." + table
	if d, ok := c.entries.Get(key); ok {
		return d, nil
	}
	d, err := c.next.Descriptor(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, d)
	return d, nil
}

// InvalidateSchema drops every cached descriptor of the schema. An empty
// schema drops everything.
func (c *Cache) InvalidateSchema(schema string) {
	if schema == "" {
		c.entries.Purge()
		return
	}
	prefix := schema + "."
	dropped := 0
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Remove(key)
			dropped++
		}
	}
	log.Debug().Str("schema", schema).Int("dropped", dropped).Msg("table descriptors invalidated")
}

// Len is the number of cached descriptors.
func (c *Cache) Len() int {
	return c.entries.Len()
}
