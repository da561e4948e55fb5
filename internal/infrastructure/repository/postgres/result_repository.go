package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

// ResultRepository keeps one row with the last successful search per user.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) SaveLastResults(ctx context.Context, results domain.SearchResults) error {
	products := results.Products
	if products == nil {
		products = []domain.ProductRecord{}
	}
	productsJSON, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshal products: %w", err)
	}
	filtersJSON, err := json.Marshal(results.AppliedFilters)
	if err != nil {
		return fmt.Errorf("marshal applied filters: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO last_search_results (user_id, query, products, applied_filters, result_page_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (user_id) DO UPDATE SET
	query = EXCLUDED.query,
	products = EXCLUDED.products,
	applied_filters = EXCLUDED.applied_filters,
	result_page_url = EXCLUDED.result_page_url,
	created_at = EXCLUDED.created_at
`, results.UserID, results.Query, productsJSON, filtersJSON, results.ResultPageURL, results.CreatedAt)
	if err != nil {
		return fmt.Errorf("save last results: %w", err)
	}
	return nil
}

func (r *ResultRepository) GetLastResults(ctx context.Context, userID string) (*domain.SearchResults, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT user_id, query, products, applied_filters, result_page_url, created_at
FROM last_search_results
WHERE user_id = $1
`, userID)

	var results domain.SearchResults
	var productsRaw, filtersRaw []byte
	err := row.Scan(&results.UserID, &results.Query, &productsRaw, &filtersRaw, &results.ResultPageURL, &results.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get last results", fmt.Errorf("user_id=%s", userID))
		}
		return nil, fmt.Errorf("scan last results: %w", err)
	}

	if err := json.Unmarshal(productsRaw, &results.Products); err != nil {
		return nil, fmt.Errorf("unmarshal products: %w", err)
	}
	if err := json.Unmarshal(filtersRaw, &results.AppliedFilters); err != nil {
		return nil, fmt.Errorf("unmarshal applied filters: %w", err)
	}
	return &results, nil
}
