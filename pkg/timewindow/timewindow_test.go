package timewindow

import (
	"testing"
	"time"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestForPickup_FixedOccupancy(t *testing.T) {
	w := ForPickup(base)
	if !w.Start.Equal(base) {
		t.Errorf("Start = %v, want %v", w.Start, base)
	}
	if got := w.End.Sub(w.Start); got != 4*time.Hour {
		t.Errorf("window length = %v, want 4h", got)
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Window
		want bool
	}{
		{"identical", ForPickup(base), ForPickup(base), true},
		{"partial", ForPickup(base), ForPickup(base.Add(3 * time.Hour)), true},
		{"touching", ForPickup(base), ForPickup(base.Add(4 * time.Hour)), false},
		{"disjoint", ForPickup(base), ForPickup(base.Add(10 * time.Hour)), false},
		{"earlier overlapping", ForPickup(base), ForPickup(base.Add(-2 * time.Hour)), true},
		{"contained", Window{Start: base, End: base.Add(5 * time.Hour)}, Window{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.a, tc.b); got != tc.want {
				t.Errorf("Overlaps(a, b) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOverlaps_Symmetric(t *testing.T) {
	offsets := []time.Duration{-5 * time.Hour, -4 * time.Hour, -90 * time.Minute, 0, time.Minute, 4 * time.Hour, 6 * time.Hour}
	for _, oa := range offsets {
		for _, ob := range offsets {
			a := ForPickup(base.Add(oa))
			b := ForPickup(base.Add(ob))
			if Overlaps(a, b) != Overlaps(b, a) {
				t.Fatalf("asymmetric result for offsets %v / %v", oa, ob)
			}
		}
	}
}

func TestCandidateRange_CoversEveryOverlap(t *testing.T) {
	w := ForPickup(base)
	from, to := w.CandidateRange()

	// Any pickup strictly inside (from, to) overlaps; the bounds themselves do not.
	for _, off := range []time.Duration{-4*time.Hour + time.Second, 0, 4*time.Hour - time.Second} {
		p := base.Add(off)
		if !(p.After(from) && p.Before(to)) {
			t.Fatalf("pickup %v outside candidate range", off)
		}
		if !Overlaps(w, ForPickup(p)) {
			t.Errorf("pickup at %v should overlap", off)
		}
	}
	if Overlaps(w, ForPickup(from)) || Overlaps(w, ForPickup(to)) {
		t.Error("range bounds must not overlap")
	}
}

func TestContains(t *testing.T) {
	w := ForPickup(base)
	if !w.Contains(base) || !w.Contains(base.Add(4*time.Hour)) {
		t.Error("Contains should include both ends")
	}
	if w.Contains(base.Add(-time.Second)) {
		t.Error("Contains should exclude instants before Start")
	}
}
