package suggest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"comercio/backend/internal/cache"
	"comercio/backend/internal/domain"
)

// Engine turns a set of cross-sell edges into product suggestions for a
// basket. Results are cached per (company, basket) since catalogs change far
// less often than baskets repeat.
type Engine struct {
	cache    cache.SuggestionCache
	cacheTTL time.Duration
}

func NewEngine(cacheStore cache.SuggestionCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopSuggestionCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

// Suggest walks the matched edges and returns suggested products not already
// in the basket. A forward edge contributes its suggested side; a
// bidirectional edge whose suggested side is in the basket contributes its
// source. Products missing from the catalog map are skipped.
func (e *Engine) Suggest(
	ctx context.Context,
	companyID string,
	basket []string,
	edges []domain.CrossSellRule,
	products map[string]domain.Product,
) domain.SuggestionResponse {
	if len(basket) == 0 {
		return domain.SuggestionResponse{Suggestions: []domain.Suggestion{}}
	}

	cacheKey := buildCacheKey(companyID, basket)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		return *cached
	}

	inBasket := make(map[string]struct{}, len(basket))
	for _, id := range basket {
		inBasket[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(edges))
	suggestions := make([]domain.Suggestion, 0, len(edges))
	for _, edge := range edges {
		candidate := ""
		if _, ok := inBasket[edge.SourceProductID]; ok {
			candidate = edge.SuggestedProductID
		} else if edge.Bidirectional {
			if _, ok := inBasket[edge.SuggestedProductID]; ok {
				candidate = edge.SourceProductID
			}
		}
		if candidate == "" {
			continue
		}
		if _, ok := inBasket[candidate]; ok {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		product, ok := products[candidate]
		if !ok || !product.Active {
			continue
		}

		seen[candidate] = struct{}{}
		suggestions = append(suggestions, domain.Suggestion{
			ProductID:  product.ID,
			Name:       product.Name,
			Category:   product.Category,
			PriceCents: product.PriceCents,
		})
	}

	resp := domain.SuggestionResponse{Suggestions: suggestions}
	_ = e.cache.Set(ctx, cacheKey, &resp, e.cacheTTL)
	return resp
}

func buildCacheKey(companyID string, basket []string) string {
	ids := make([]string, len(basket))
	copy(ids, basket)
	sort.Strings(ids)

	parts := append([]string{companyID}, ids...)
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "xsell:suggestions:" + hex.EncodeToString(hash[:])
}
