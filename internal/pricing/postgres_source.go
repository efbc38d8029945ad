package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultProductsTable = "fuel_products"

// PostgresSource loads product prices from the fuel_products table. Results
// are cached until forceRefresh or the cache TTL expires.
type PostgresSource struct {
	db       *sql.DB
	table    string
	cacheTTL time.Duration

	mu       sync.Mutex
	cached   []Product
	cachedAt time.Time
}

// PostgresOption configures the source.
type PostgresOption func(*PostgresSource)

// WithProductsTable overrides the products table name.
func WithProductsTable(table string) PostgresOption {
	return func(s *PostgresSource) {
		if table != "" {
			s.table = table
		}
	}
}

// WithCacheTTL sets how long a loaded product list stays fresh.
func WithCacheTTL(ttl time.Duration) PostgresOption {
	return func(s *PostgresSource) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// NewPostgresSource constructs a source.
func NewPostgresSource(db *sql.DB, opts ...PostgresOption) *PostgresSource {
	source := &PostgresSource{db: db, table: defaultProductsTable, cacheTTL: 5 * time.Minute}
	for _, opt := range opts {
		opt(source)
	}
	return source
}

// GetProductPrices loads products matching the filter.
func (s *PostgresSource) GetProductPrices(ctx context.Context, filter Filter, forceRefresh bool) ([]Product, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("pricing source: nil db")
	}

	s.mu.Lock()
	if !forceRefresh && s.cached != nil && time.Since(s.cachedAt) < s.cacheTTL {
		cached := s.cached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	query := fmt.Sprintf(`
SELECT id, name, fuel_code, base_cost, min_selling_price, max_selling_price, unit_price, updated_at
FROM %s
WHERE ($1 = '' OR station_id = $1)
ORDER BY fuel_code ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, filter.StationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wanted := make(map[string]struct{}, len(filter.FuelCodes))
	for _, code := range filter.FuelCodes {
		wanted[strings.ToUpper(code)] = struct{}{}
	}

	var products []Product
	for rows.Next() {
		var product Product
		if err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.FuelCode,
			&product.BaseCost,
			&product.MinSellingPrice,
			&product.MaxSellingPrice,
			&product.UnitPrice,
			&product.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(wanted) > 0 {
			if _, ok := wanted[strings.ToUpper(product.FuelCode)]; !ok {
				continue
			}
		}
		product.UpdatedAt = product.UpdatedAt.UTC()
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = products
	s.cachedAt = time.Now().UTC()
	s.mu.Unlock()
	return products, nil
}
