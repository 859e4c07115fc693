package tickdb

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/flashtick/tickdb/schema"
)

func collectQueryRows(t *testing.T, tbl *Table, symbols []string, from, to int64, cols []string) []QueryRow {
	t.Helper()
	var out []QueryRow
	for row, err := range tbl.Iter(symbols, from, to, cols) {
		if err != nil {
			t.Fatalf("iter: %v", err)
		}
		out = append(out, row)
	}
	return out
}

// TestIterReadsCommittedAndOpenPartitions covers the §4.7 read path
// across a rotated (committed) partition and the still-open current one.
func TestIterReadsCommittedAndOpenPartitions(t *testing.T) {
	dir := withTempTableDir(t)
	tbl, err := Init(dir, tradesSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	defer tbl.Close()

	const day1 = int64(1_700_000_000_000_000_000)
	const day2 = day1 + 86_400_000_000_000

	writeRow(t, tbl, "AAPL", day1, 150.0, 100)
	writeRow(t, tbl, "AAPL", day1+1, 151.0, 200)
	writeRow(t, tbl, "MSFT", day2, 300.0, 50)

	rows := collectQueryRows(t, tbl, nil, 0, math.MaxInt64, []string{"price", "size"})
	if len(rows) != 2 {
		t.Fatalf("expected 2 blocks (one committed, one open), got %d", len(rows))
	}

	aapl := rows[0]
	if aapl.Symbol != 1 || aapl.NumRows != 2 || aapl.TSMin != day1 {
		t.Fatalf("unexpected first block: %+v", aapl)
	}
	prices := aapl.Columns["price"]
	if len(prices) != 8 {
		t.Fatalf("expected 8 bytes of price data, got %d", len(prices))
	}
	p0 := math.Float32frombits(binary.LittleEndian.Uint32(prices[0:4]))
	if p0 != 150.0 {
		t.Fatalf("first row price = %v, want 150.0", p0)
	}

	msft := rows[1]
	if msft.Symbol != 2 || msft.NumRows != 1 || msft.TSMin != day2 {
		t.Fatalf("unexpected second block: %+v", msft)
	}
}

// TestIterFiltersBySymbolAndTimeWindow covers the symbol and
// [ts_from, ts_to) filters independently.
func TestIterFiltersBySymbolAndTimeWindow(t *testing.T) {
	dir := withTempTableDir(t)
	tbl, err := Init(dir, tradesSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	defer tbl.Close()

	const day1 = int64(1_700_000_000_000_000_000)
	const day2 = day1 + 86_400_000_000_000

	writeRow(t, tbl, "AAPL", day1, 150.0, 100)
	writeRow(t, tbl, "MSFT", day2, 300.0, 50)

	onlyAAPL := collectQueryRows(t, tbl, []string{"AAPL"}, 0, math.MaxInt64, nil)
	if len(onlyAAPL) != 1 || onlyAAPL[0].Symbol != 1 {
		t.Fatalf("expected one AAPL block, got %+v", onlyAAPL)
	}

	noMatch := collectQueryRows(t, tbl, []string{"NVDA"}, 0, math.MaxInt64, nil)
	if len(noMatch) != 0 {
		t.Fatalf("expected no blocks for a never-interned symbol, got %+v", noMatch)
	}

	withinDay1 := collectQueryRows(t, tbl, nil, day1, day1+86_400_000_000_000, nil)
	if len(withinDay1) != 1 || withinDay1[0].Symbol != 1 {
		t.Fatalf("expected only day1's block in range, got %+v", withinDay1)
	}
}

// TestIterUnknownColumnErrors covers requesting a column the schema
// never declared.
func TestIterUnknownColumnErrors(t *testing.T) {
	dir := withTempTableDir(t)
	tbl, err := Init(dir, tradesSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	defer tbl.Close()

	writeRow(t, tbl, "AAPL", 1_700_000_000_000_000_000, 150.0, 100)

	sawErr := false
	for _, err := range tbl.Iter(nil, 0, math.MaxInt64, []string{"bogus"}) {
		if err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatal("expected an error iterating over an unknown column")
	}
}

// TestIterStopsEarlyReleasesClosedPartitionMappings covers breaking out
// of the range-over-func loop before it drains: the committed partition's
// column mappings opened for the scan must still be released.
func TestIterStopsEarlyReleasesClosedPartitionMappings(t *testing.T) {
	dir := withTempTableDir(t)
	s, err := schema.Init("trades", "%Y/%m/%d", schema.Symbol16, "us_equities")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Add(schema.Float, "price"); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(schema.Uint32, "size"); err != nil {
		t.Fatal(err)
	}
	tbl, err := Init(dir, s)
	if err != nil {
		t.Fatal(err)
	}

	const day1 = int64(1_700_000_000_000_000_000)
	writeRow(t, tbl, "AAPL", day1, 150.0, 100)
	writeRow(t, tbl, "AAPL", day1+86_400_000_000_000, 151.0, 200)
	if err := tbl.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	count := 0
	for range reopened.Iter(nil, 0, math.MaxInt64, nil) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected to observe exactly one row before breaking, got %d", count)
	}

	partDir := filepath.Join(dir, "2023", "11", "14")
	f, err := os.OpenFile(filepath.Join(partDir, "price.f32"), os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("price.f32 should still be openable after Iter broke early: %v", err)
	}
	f.Close()
}
