package domain

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func price(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad test price %q: %v", value, err)
	}
	return d
}

func TestMergeAppendsNewDate(t *testing.T) {
	history := PriceHistory{{Date: "2024-01-01", Price: price(t, "5800")}}
	merged := history.Merge(price(t, "5700"), "2024-01-02")

	if len(merged) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(merged))
	}
	if merged[0].Date != "2024-01-01" || merged[1].Date != "2024-01-02" {
		t.Fatalf("expected ascending dates, got %v", merged)
	}
	if !merged[1].Price.Equal(price(t, "5700")) {
		t.Fatalf("expected appended price 5700, got %s", merged[1].Price)
	}
	if len(history) != 1 {
		t.Fatalf("receiver must not be modified, got %d entries", len(history))
	}
}

func TestMergeSameDateOverwritesPrice(t *testing.T) {
	history := PriceHistory{{Date: "2024-01-01", Price: price(t, "5800")}}

	merged := history.Merge(price(t, "5650.50"), "2024-01-01")
	if len(merged) != 1 {
		t.Fatalf("same-day merge must not grow history, got %d entries", len(merged))
	}
	if !merged[0].Price.Equal(price(t, "5650.50")) {
		t.Fatalf("expected overwritten price 5650.50, got %s", merged[0].Price)
	}

	// Re-merging the identical observation changes nothing.
	again := merged.Merge(price(t, "5650.50"), "2024-01-01")
	if !again.Equal(merged) {
		t.Fatalf("same-day re-merge not idempotent: %v vs %v", again, merged)
	}
}

func TestMergeEvictsOldestBeyondSevenDays(t *testing.T) {
	var history PriceHistory
	for day := 1; day <= 10; day++ {
		date := fmt.Sprintf("2024-01-%02d", day)
		history = history.Merge(price(t, "100"), date)
	}

	if len(history) != MaxHistoryDays {
		t.Fatalf("expected %d entries, got %d", MaxHistoryDays, len(history))
	}
	if history[0].Date != "2024-01-04" || history[len(history)-1].Date != "2024-01-10" {
		t.Fatalf("expected the 7 most recent dates, got %v", history)
	}
}

func TestMergeOrderIndependentForDistinctDates(t *testing.T) {
	dates := []string{
		"2024-01-03", "2024-01-01", "2024-01-07", "2024-01-05",
		"2024-01-02", "2024-01-06", "2024-01-04",
	}

	var shuffled PriceHistory
	for _, date := range dates {
		shuffled = shuffled.Merge(price(t, "100"), date)
	}

	var ordered PriceHistory
	for day := 1; day <= 7; day++ {
		ordered = ordered.Merge(price(t, "100"), fmt.Sprintf("2024-01-%02d", day))
	}

	if !shuffled.Equal(ordered) {
		t.Fatalf("permuted ingestion diverged:\n%v\n%v", shuffled, ordered)
	}
}

func TestParsePriceHistoryToleratesGarbage(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"not json":  "{broken",
		"wrong typ": `{"date":"2024-01-01"}`,
		"null":      "null",
	}
	for name, raw := range cases {
		if got := ParsePriceHistory([]byte(raw)); len(got) != 0 {
			t.Fatalf("%s: expected empty history, got %v", name, got)
		}
	}
}

func TestMergeHistorySerializedRoundTrip(t *testing.T) {
	stored := []byte(`[{"date":"2024-01-01","price":5800.00}]`)
	encoded, merged := MergeHistory(stored, price(t, "5700"), "2024-01-02")

	want := `[{"date":"2024-01-01","price":5800.00},{"date":"2024-01-02","price":5700.00}]`
	if string(encoded) != want {
		t.Fatalf("wire shape mismatch:\n got %s\nwant %s", encoded, want)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(merged))
	}
}

func TestPricePointJSONKeepsTwoDecimals(t *testing.T) {
	point := PricePoint{Date: "2024-01-01", Price: price(t, "5800")}
	encoded, err := point.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(encoded) != `{"date":"2024-01-01","price":5800.00}` {
		t.Fatalf("unexpected encoding: %s", encoded)
	}

	var decoded PricePoint
	if err := decoded.UnmarshalJSON(encoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Date != point.Date || !decoded.Price.Equal(point.Price) {
		t.Fatalf("round trip diverged: %+v vs %+v", decoded, point)
	}
}

func TestPricePointUnmarshalAcceptsStringPrice(t *testing.T) {
	var point PricePoint
	if err := point.UnmarshalJSON([]byte(`{"date":"2024-01-01","price":"5800.00"}`)); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !point.Price.Equal(price(t, "5800")) {
		t.Fatalf("expected 5800, got %s", point.Price)
	}
}
