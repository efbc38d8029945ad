package pricing

import "context"

// FixedSource serves a static product list. Used by tests and as a fallback
// when no price table is provisioned.
type FixedSource struct {
	products []Product
}

// NewFixedSource constructs a fixed source.
func NewFixedSource(products ...Product) *FixedSource {
	return &FixedSource{products: products}
}

// GetProductPrices returns the static list; the filter and refresh flag are
// ignored.
func (s *FixedSource) GetProductPrices(ctx context.Context, filter Filter, forceRefresh bool) ([]Product, error) {
	_ = ctx
	_ = filter
	_ = forceRefresh
	result := make([]Product, len(s.products))
	copy(result, s.products)
	return result, nil
}
