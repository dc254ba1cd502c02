package bookeo

import (
	"testing"
	"time"
)

func TestSplitRangeCoversRangeContiguously(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 10, 12, 30, 0, 0, time.UTC)

	windows := SplitRange(start, end, MaxWindowDays)
	if len(windows) == 0 {
		t.Fatal("expected windows, got none")
	}
	if !windows[0].Start.Equal(start) {
		t.Fatalf("first window starts at %s, want %s", windows[0].Start, start)
	}
	if !windows[len(windows)-1].End.Equal(end) {
		t.Fatalf("last window ends at %s, want %s", windows[len(windows)-1].End, end)
	}
	for i, w := range windows {
		if !w.Start.Before(w.End) {
			t.Fatalf("window %d is empty or inverted: %+v", i, w)
		}
		if w.End.Sub(w.Start) > time.Duration(MaxWindowDays)*24*time.Hour {
			t.Fatalf("window %d exceeds %d days: %+v", i, MaxWindowDays, w)
		}
		if i > 0 && !windows[i-1].End.Equal(w.Start) {
			t.Fatalf("gap between window %d and %d: %s vs %s", i-1, i, windows[i-1].End, w.Start)
		}
	}
}

func TestSplitRangeShortRangeSingleWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	windows := SplitRange(start, end, MaxWindowDays)
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if !windows[0].Start.Equal(start) || !windows[0].End.Equal(end) {
		t.Fatalf("window %+v does not match [%s, %s)", windows[0], start, end)
	}
}

func TestSplitRangeExactBoundaries(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	windows := SplitRange(start, end, MaxWindowDays)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	boundary := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if !windows[0].End.Equal(boundary) {
		t.Fatalf("first window ends at %s, want %s", windows[0].End, boundary)
	}
	if !windows[1].Start.Equal(boundary) || !windows[1].End.Equal(end) {
		t.Fatalf("second window %+v, want [%s, %s)", windows[1], boundary, end)
	}
}

func TestSplitRangeInvertedRange(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if windows := SplitRange(start, start, MaxWindowDays); windows != nil {
		t.Fatalf("expected nil for empty range, got %d windows", len(windows))
	}
	if windows := SplitRange(start, start.Add(-time.Hour), MaxWindowDays); windows != nil {
		t.Fatalf("expected nil for inverted range, got %d windows", len(windows))
	}
}

func TestSplitRangeDefaultsMaxDays(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 62)
	windows := SplitRange(start, end, 0)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows with defaulted max, got %d", len(windows))
	}
}
