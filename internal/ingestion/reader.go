package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/qiwen-dev/recycleprice/internal/domain"
)

// ErrUnsupportedFormat is returned when a scraped batch file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// ParseObservations decodes a scraped batch file into raw observations.
// Supported formats: .json (array or one object per line), .csv and .xlsx
// with a header row naming the observation fields.
func ParseObservations(fileName string, payload []byte) ([]domain.RawObservation, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".json", ".jsonl", ".ndjson":
		return parseJSON(payload)
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseJSON(payload []byte) ([]domain.RawObservation, error) {
	trimmed := bytes.TrimPrefix(bytes.TrimSpace(payload), byteOrderMark)
	if len(trimmed) == 0 {
		return nil, errors.New("file is empty")
	}

	if trimmed[0] == '[' {
		var observations []domain.RawObservation
		if err := json.Unmarshal(trimmed, &observations); err != nil {
			return nil, fmt.Errorf("failed to parse json array: %w", err)
		}
		return observations, nil
	}

	var observations []domain.RawObservation
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var obs domain.RawObservation
		if err := json.Unmarshal(text, &obs); err != nil {
			return nil, fmt.Errorf("failed to parse json line %d: %w", line, err)
		}
		observations = append(observations, obs)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read json lines: %w", err)
	}
	return observations, nil
}

func parseCSV(payload []byte) ([]domain.RawObservation, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rowsToObservations(records)
}

func parseExcel(payload []byte) ([]domain.RawObservation, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rowsToObservations(rows)
}

func rowsToObservations(records [][]string) ([]domain.RawObservation, error) {
	var headers []string
	var observations []domain.RawObservation

	for _, row := range records {
		if isBlankRow(row) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(row))
			for i, cell := range row {
				headers[i] = strings.ToLower(strings.TrimSpace(cell))
			}
			continue
		}
		observations = append(observations, rowToObservation(headers, row))
	}

	if headers == nil {
		return nil, errors.New("no header row detected")
	}
	return observations, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func rowToObservation(headers []string, row []string) domain.RawObservation {
	var obs domain.RawObservation
	for i, header := range headers {
		if i >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}
		value := cell
		switch header {
		case "product_code":
			obs.ProductCode = &value
		case "name":
			obs.Name = &value
		case "category":
			obs.Category = &value
		case "brand":
			obs.Brand = &value
		case "model":
			obs.Model = &value
		case "avg_price":
			obs.AvgPrice = domain.StringScalar(value)
		case "price":
			obs.Price = domain.StringScalar(value)
		case "scrape_date":
			obs.ScrapeDate = domain.StringScalar(value)
		case "crawl_time":
			obs.CrawlTime = domain.StringScalar(value)
		case "price_history":
			obs.PriceHistory = json.RawMessage(value)
		case "source_platform":
			obs.SourcePlatform = &value
		case "page":
			if page, err := strconv.Atoi(value); err == nil {
				obs.Page = &page
			}
		}
	}
	return obs
}

// IngestAll fans a batch out over workers goroutines within one run.
// Observations are unordered and independent, so the only per-code ordering
// guarantee needed is the one Run.Ingest already provides.
func IngestAll(ctx context.Context, run *Run, observations []domain.RawObservation, workers int) Summary {
	if workers <= 1 || len(observations) < 2 {
		for _, obs := range observations {
			run.Ingest(ctx, obs)
		}
		return run.Summary()
	}

	jobs := make(chan domain.RawObservation)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for obs := range jobs {
				run.Ingest(ctx, obs)
			}
		}()
	}
	for _, obs := range observations {
		jobs <- obs
	}
	close(jobs)
	wg.Wait()
	return run.Summary()
}
