// Package timewindow provides the occupancy-window arithmetic used to detect
// scheduling conflicts between trips sharing a vehicle or driver.
//
// Every trip is assumed to occupy its resources for a fixed duration starting
// at pickup, regardless of the trip's own estimated duration.
package timewindow

import "time"

// OccupancyDuration is the fixed time a trip holds its vehicle and driver.
const OccupancyDuration = 4 * time.Hour

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ForPickup returns the occupancy window of a trip picked up at t.
func ForPickup(t time.Time) Window {
	return Window{Start: t, End: t.Add(OccupancyDuration)}
}

// Overlaps reports whether two windows on the same resource intersect.
// Touching windows (a.End == b.Start) do not overlap.
//
// Complexity: O(1)
func Overlaps(a, b Window) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Contains reports whether instant t falls inside w, inclusive of both ends.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// CandidateRange returns the pickup-time range (exclusive on both ends) in
// which another trip's window can overlap w. Stores use it to narrow the
// set of trips fetched before the pairwise check.
func (w Window) CandidateRange() (from, to time.Time) {
	return w.Start.Add(-OccupancyDuration), w.End
}
