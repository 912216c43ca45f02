package llm

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SelectModel applies an ordered first-match policy: the first available model
// whose name starts with preferences[0], else preferences[1], and so on; with
// no match the first available model wins. Names are compared without the
// "models/" resource prefix.
func SelectModel(available, preferences []string) (string, error) {
	if len(available) == 0 {
		return "", ErrNoModels
	}
	names := make([]string, len(available))
	for i, m := range available {
		names[i] = trimModelPrefix(m)
	}
	for _, pref := range preferences {
		pref = trimModelPrefix(strings.TrimSpace(pref))
		if pref == "" {
			continue
		}
		for _, name := range names {
			if strings.HasPrefix(name, pref) {
				return name, nil
			}
		}
	}
	return names[0], nil
}

func trimModelPrefix(name string) string {
	return strings.TrimPrefix(name, "models/")
}

const catalogKey = "models"

// Catalog memoizes a provider's model list for a bounded time so model
// selection does not cost a listing call on every request.
type Catalog struct {
	lister      ModelLister
	preferences []string
	cache       *expirable.LRU[string, []string]
}

func NewCatalog(lister ModelLister, preferences []string, ttl time.Duration) *Catalog {
	c := &Catalog{lister: lister, preferences: preferences}
	if ttl > 0 {
		c.cache = expirable.NewLRU[string, []string](1, nil, ttl)
	}
	return c
}

// Models returns the provider catalog, from cache when fresh.
func (c *Catalog) Models(ctx context.Context) ([]string, error) {
	if c.cache != nil {
		if models, ok := c.cache.Get(catalogKey); ok {
			return models, nil
		}
	}
	models, err := c.lister.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if c.cache != nil && len(models) > 0 {
		c.cache.Add(catalogKey, models)
	}
	return models, nil
}

// Select lists models and applies SelectModel with the configured preferences.
func (c *Catalog) Select(ctx context.Context) (string, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return "", err
	}
	return SelectModel(models, c.preferences)
}
