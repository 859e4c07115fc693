package tickdb

import (
	"testing"

	"github.com/flashtick/tickdb/schema"
)

// TestIsRecognizesSchemaInvalidArgument covers tickdb.Is classifying a
// failure returned straight from schema.Init/Add, never wrapped by any
// tickdb-package code. The two packages share errkind's Kind/Error
// types precisely so this holds.
func TestIsRecognizesSchemaInvalidArgument(t *testing.T) {
	if _, err := schema.Init("trades", "%Y/%m/%d", schema.Int32, "us_equities"); err == nil || !Is(err, KindInvalidArgument) {
		t.Fatalf("expected schema.Init's bad sym_type error to be KindInvalidArgument, got %v", err)
	}

	s, err := schema.Init("trades", "%Y/%m/%d", schema.Symbol16, "us_equities")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Add(schema.Timestamp, "bad"); err == nil || !Is(err, KindInvalidArgument) {
		t.Fatalf("expected schema.Add's placeholder-type error to be KindInvalidArgument, got %v", err)
	}
	if err := s.Add(schema.Float, "price"); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(schema.Uint32, "price"); err == nil || !Is(err, KindInvalidArgument) {
		t.Fatalf("expected schema.Add's duplicate-name error to be KindInvalidArgument, got %v", err)
	}
}
