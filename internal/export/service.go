package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/qiwen-dev/recycleprice/internal/repository"
)

const sheetName = "Products"

var headers = []string{
	"product_code", "name", "category", "brand", "model",
	"avg_price", "scrape_date", "price_history",
}

// Service renders the catalog as an xlsx workbook. The catalog is small
// enough to build synchronously per request.
type Service struct {
	products repository.ProductRepository
}

func NewService(products repository.ProductRepository) *Service {
	return &Service{products: products}
}

// WriteCatalog writes all products with their price history to w.
func (s *Service) WriteCatalog(ctx context.Context, w io.Writer) error {
	products, err := s.products.List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, product := range products {
		values := []any{
			product.ProductCode,
			product.Name,
			product.Category,
			product.Brand,
			product.Model,
			product.AvgPrice.StringFixed(2),
			product.ScrapeDate,
			string(product.PriceHistory.JSON()),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
