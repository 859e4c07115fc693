package calendar

import (
	"testing"
	"time"
)

func TestBoundsContainment(t *testing.T) {
	ts := int64(1_700_000_000_000_000_000) // 2023-11-14T22:13:20Z
	min, max, err := Bounds("%Y/%m/%d", ts)
	if err != nil {
		t.Fatal(err)
	}
	if !(min <= ts && ts < max) {
		t.Fatalf("ts %d not contained in [%d, %d)", ts, min, max)
	}
}

func TestBoundsIdempotentAndIncrementConsistent(t *testing.T) {
	formats := []string{"%Y/%m/%d", "%Y-%m", "%Y", "%H", "%Y/%m/%d/%H"}
	ts := int64(1_700_000_000_123_456_789)

	for _, f := range formats {
		min, max, err := Bounds(f, ts)
		if err != nil {
			t.Fatal(err)
		}
		min2, _, err := Bounds(f, min)
		if err != nil {
			t.Fatal(err)
		}
		if min2 != min {
			t.Errorf("%s: min_partition not idempotent: %d != %d", f, min2, min)
		}

		delta, err := Increment(f, ts)
		if err != nil {
			t.Fatal(err)
		}
		if max-min != int64(delta) {
			t.Errorf("%s: max-min (%d) != Δ (%d)", f, max-min, int64(delta))
		}
	}
}

func TestWeekOnlyFormatRejected(t *testing.T) {
	if err := Validate("%Y-W%V"); err == nil {
		t.Fatal("expected week-of-year-only format to be rejected")
	}
}

func TestNoSpecifierRejected(t *testing.T) {
	if err := Validate("constant"); err == nil {
		t.Fatal("expected format with no recognized specifier to be rejected")
	}
}

func TestMonthBoundarySpansLeapAndNonLeapFebruary(t *testing.T) {
	// 2024 is a leap year: February has 29 days.
	jan2024 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).UnixNano()
	_, maxJan, err := Bounds("%Y-%m", jan2024)
	if err != nil {
		t.Fatal(err)
	}
	minFeb, maxFeb, err := Bounds("%Y-%m", maxJan)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := maxFeb-minFeb, int64(29*24*time.Hour); got != want {
		t.Errorf("Feb 2024 span = %d, want %d (29 days)", got, want)
	}

	// 2025 is not a leap year: February has 28 days.
	feb2025 := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC).UnixNano()
	minFeb25, maxFeb25, err := Bounds("%Y-%m", feb2025)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := maxFeb25-minFeb25, int64(28*24*time.Hour); got != want {
		t.Errorf("Feb 2025 span = %d, want %d (28 days)", got, want)
	}

	// January always has 31 days.
	_, maxJan2, err := Bounds("%Y-%m", jan2024)
	if err != nil {
		t.Fatal(err)
	}
	minJan, _, err := Bounds("%Y-%m", jan2024)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := maxJan2-minJan, int64(31*24*time.Hour); got != want {
		t.Errorf("Jan 2024 span = %d, want %d (31 days)", got, want)
	}
}

func TestRenderName(t *testing.T) {
	ts := int64(1_700_000_000_000_000_000)
	name, err := RenderName("%Y/%m/%d", ts)
	if err != nil {
		t.Fatal(err)
	}
	if name != "2023/11/14" {
		t.Fatalf("expected 2023/11/14, got %s", name)
	}
}
