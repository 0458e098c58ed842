package repository

import (
	"context"
	"errors"

	"github.com/qiwen-dev/recycleprice/internal/domain"
)

// ErrDuplicateCode reports a unique-constraint violation on product_code.
// Two concurrent first-time observations of the same product race to insert;
// the store resolves the race and the loser surfaces this.
var ErrDuplicateCode = errors.New("product code already exists")

// ProductRepository defines the store operations the ingestion engine and
// the read API need. The backing store must enforce product_code uniqueness.
type ProductRepository interface {
	GetByCode(ctx context.Context, code string) (domain.Product, bool, error)
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
	List(ctx context.Context, keyword string) ([]domain.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListBrands(ctx context.Context, category string) ([]string, error)
	ListModels(ctx context.Context, category, brand string) ([]string, error)
	GetByCatalog(ctx context.Context, category, brand, model string) (domain.Product, bool, error)
}

// ScrapeLogRepository records observations the pipeline dropped.
type ScrapeLogRepository interface {
	Record(ctx context.Context, entry domain.ScrapeLogEntry) error
	List(ctx context.Context, limit, offset int) ([]domain.ScrapeLogEntry, error)
}
