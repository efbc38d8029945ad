package pricing

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Price status values reported by the resolver.
const (
	PriceStatusOK      = "ok"
	PriceStatusUnknown = "unknown"
)

// SentinelUnitPrice is returned for missing or unknown products so that
// downstream math never fails; callers must surface the unknown status as a
// correctness warning to the operator.
const SentinelUnitPrice = 100.00

// Product is one fuel product with its current price data.
type Product struct {
	ID              string
	Name            string
	FuelCode        string
	BaseCost        float64
	MinSellingPrice float64
	MaxSellingPrice float64
	UnitPrice       float64
	UpdatedAt       time.Time
}

// Filter narrows a product price query.
type Filter struct {
	StationID string
	FuelCodes []string
}

// Source loads product prices from reference data.
type Source interface {
	GetProductPrices(ctx context.Context, filter Filter, forceRefresh bool) ([]Product, error)
}

// Resolved is the outcome of a unit price lookup.
type Resolved struct {
	UnitPrice   float64 `json:"unitPrice"`
	PriceStatus string  `json:"priceStatus"`
	FuelCode    string  `json:"fuelCode,omitempty"`
}

// Resolver is the single source of truth for unit prices. Reading forms may
// display a price but computation must go through ResolveUnitPrice.
type Resolver struct {
	mu       sync.RWMutex
	source   Source
	filter   Filter
	products map[string]Product
	loadedAt time.Time
}

// NewResolver constructs a resolver over a price source.
func NewResolver(source Source, filter Filter) (*Resolver, error) {
	if source == nil {
		return nil, errors.New("pricing: nil source")
	}
	return &Resolver{source: source, filter: filter, products: make(map[string]Product)}, nil
}

// Refresh reloads the price table from the source.
func (r *Resolver) Refresh(ctx context.Context, force bool) error {
	products, err := r.source.GetProductPrices(ctx, r.filter, force)
	if err != nil {
		return err
	}
	table := make(map[string]Product, len(products))
	for _, product := range products {
		table[product.ID] = product
	}

	r.mu.Lock()
	r.products = table
	r.loadedAt = time.Now().UTC()
	r.mu.Unlock()
	return nil
}

// ResolveUnitPrice returns the canonical unit price for a product. A missing
// or unpriced product yields the sentinel price with an unknown status rather
// than an error.
func (r *Resolver) ResolveUnitPrice(productID string) Resolved {
	if productID == "" {
		return Resolved{UnitPrice: SentinelUnitPrice, PriceStatus: PriceStatusUnknown}
	}

	r.mu.RLock()
	product, ok := r.products[productID]
	r.mu.RUnlock()
	if !ok {
		return Resolved{UnitPrice: SentinelUnitPrice, PriceStatus: PriceStatusUnknown}
	}

	price := product.UnitPrice
	if price <= 0 {
		price = product.MaxSellingPrice
	}
	if price <= 0 {
		return Resolved{UnitPrice: SentinelUnitPrice, PriceStatus: PriceStatusUnknown, FuelCode: product.FuelCode}
	}
	return Resolved{UnitPrice: price, PriceStatus: PriceStatusOK, FuelCode: product.FuelCode}
}

// Snapshot returns the loaded products, for display and exports.
func (r *Resolver) Snapshot() []Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	products := make([]Product, 0, len(r.products))
	for _, product := range r.products {
		products = append(products, product)
	}
	return products
}

// LoadedAt reports when the price table was last refreshed.
func (r *Resolver) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}
