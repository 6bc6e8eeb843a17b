package catalog

import (
	"context"
	"fmt"
	"sync"
)

// CategoryCache is a read-only slug-to-category index loaded once per
// process. A live edit to the categories table is not reflected until the
// next restart.
type CategoryCache struct {
	mu     sync.RWMutex
	bySlug map[string]*Category
}

// LoadCategories reads every category row into a cache.
func (s *Store) LoadCategories(ctx context.Context) (*CategoryCache, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, name FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	cache := &CategoryCache{bySlug: make(map[string]*Category)}
	for rows.Next() {
		var category Category
		if err := rows.Scan(&category.ID, &category.Slug, &category.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cache.bySlug[category.Slug] = &category
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cache, nil
}

// BySlug returns the cached category for a slug.
func (c *CategoryCache) BySlug(slug string) (*Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	category, ok := c.bySlug[slug]
	return category, ok
}

// Len reports how many categories the cache holds.
func (c *CategoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySlug)
}
