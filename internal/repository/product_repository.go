package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/qiwen-dev/recycleprice/internal/domain"
)

const uniqueViolationCode = "23505"

const productColumns = `id, product_code, name, category, brand, model, avg_price::text, scrape_date, price_history, created_at`

type productRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository wires a repository backed by pgxpool.
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

func (r *productRepository) GetByCode(ctx context.Context, code string) (domain.Product, bool, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+productColumns+` FROM products WHERE product_code = $1`,
		code,
	)
	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("failed to get product %s: %w", code, err)
	}
	return product, true, nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO products (id, product_code, name, category, brand, model, avg_price, scrape_date, price_history, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		product.ID,
		product.ProductCode,
		product.Name,
		product.Category,
		product.Brand,
		product.Model,
		product.AvgPrice.StringFixed(2),
		product.ScrapeDate,
		product.PriceHistory.JSON(),
		product.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.Product{}, fmt.Errorf("insert %s: %w", product.ProductCode, ErrDuplicateCode)
		}
		return domain.Product{}, fmt.Errorf("failed to insert product %s: %w", product.ProductCode, err)
	}
	return product, nil
}

// Update refreshes the descriptive fields, price and history of an existing
// record. created_at is deliberately not in the column list.
func (r *productRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE products
		 SET name = $1, category = $2, brand = $3, model = $4,
		     avg_price = $5, scrape_date = $6, price_history = $7
		 WHERE product_code = $8`,
		product.Name,
		product.Category,
		product.Brand,
		product.Model,
		product.AvgPrice.StringFixed(2),
		product.ScrapeDate,
		product.PriceHistory.JSON(),
		product.ProductCode,
	)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to update product %s: %w", product.ProductCode, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Product{}, fmt.Errorf("failed to update product %s: no such product", product.ProductCode)
	}
	return product, nil
}

func (r *productRepository) List(ctx context.Context, keyword string) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []any{}
	if keyword != "" {
		query += ` WHERE name ILIKE $1 OR brand ILIKE $1 OR model ILIKE $1 OR category ILIKE $1 OR product_code ILIKE $1`
		args = append(args, "%"+keyword+"%")
	}
	query += ` ORDER BY scrape_date DESC, product_code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		product, scanErr := scanProduct(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan product: %w", scanErr)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}

func (r *productRepository) ListCategories(ctx context.Context) ([]string, error) {
	return r.listDistinct(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
}

func (r *productRepository) ListBrands(ctx context.Context, category string) ([]string, error) {
	return r.listDistinct(ctx, `SELECT DISTINCT brand FROM products WHERE category = $1 ORDER BY brand`, category)
}

func (r *productRepository) ListModels(ctx context.Context, category, brand string) ([]string, error) {
	return r.listDistinct(ctx, `SELECT DISTINCT model FROM products WHERE category = $1 AND brand = $2 ORDER BY model`, category, brand)
}

func (r *productRepository) GetByCatalog(ctx context.Context, category, brand, model string) (domain.Product, bool, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE category = $1 AND brand = $2 AND model = $3
		 ORDER BY scrape_date DESC
		 LIMIT 1`,
		category, brand, model,
	)
	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("failed to get product by catalog: %w", err)
	}
	return product, true, nil
}

func (r *productRepository) listDistinct(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct values: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if scanErr := rows.Scan(&value); scanErr != nil {
			return nil, fmt.Errorf("failed to scan value: %w", scanErr)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read values: %w", err)
	}
	return values, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		product    domain.Product
		id         uuid.UUID
		priceText  string
		scrapeDate pgtype.Date
		historyRaw []byte
		createdAt  time.Time
	)
	if err := row.Scan(
		&id,
		&product.ProductCode,
		&product.Name,
		&product.Category,
		&product.Brand,
		&product.Model,
		&priceText,
		&scrapeDate,
		&historyRaw,
		&createdAt,
	); err != nil {
		return domain.Product{}, err
	}

	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid stored price %q: %w", priceText, err)
	}

	product.ID = id
	product.AvgPrice = price
	if scrapeDate.Valid {
		product.ScrapeDate = scrapeDate.Time.Format(domain.DateLayout)
	}
	product.PriceHistory = domain.ParsePriceHistory(historyRaw)
	product.CreatedAt = createdAt
	return product, nil
}
