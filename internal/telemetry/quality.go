package telemetry

import (
	"time"

	"github.com/jonquils-io/jonquils/internal/sink"
)

// Quality flags assigned to track events during the reconciliation quality
// pass. Flags are independent; one event can carry several.
const (
	FlagMissingSubject   = "missing_subject"
	FlagNegativeDuration = "negative_duration"
	FlagStaleTimestamp   = "stale_timestamp"
	FlagDuplicate        = "duplicate"
)

// staleAfter is the age beyond which an event timestamp is considered
// implausible for live traffic.
const staleAfter = 365 * 24 * time.Hour

// QualityReport summarizes a quality pass over a batch of track events.
type QualityReport struct {
	Scanned int
	Flagged int
	// Counts holds per-flag totals. An event with two flags contributes
	// to two counters but to Flagged only once.
	Counts map[string]int
}

// QualityFlags returns the flags that apply to one event, given the set of
// event IDs already seen in the batch.
func QualityFlags(e sink.TrackEvent, seen map[string]bool, now time.Time) []string {
	var flags []string

	if e.TrackID == 0 || e.UserID == nil {
		flags = append(flags, FlagMissingSubject)
	}

	if e.DurationMs < 0 {
		flags = append(flags, FlagNegativeDuration)
	}

	if now.Sub(e.Timestamp) > staleAfter {
		flags = append(flags, FlagStaleTimestamp)
	}

	if seen[e.EventID] {
		flags = append(flags, FlagDuplicate)
	}

	return flags
}

// AssessQuality runs the quality pass over a batch. Events are inspected in
// order; the first occurrence of an event ID is authoritative and later
// occurrences are flagged as duplicates.
func AssessQuality(events []sink.TrackEvent, now time.Time) QualityReport {
	report := QualityReport{
		Scanned: len(events),
		Counts:  make(map[string]int),
	}

	seen := make(map[string]bool, len(events))

	for _, e := range events {
		flags := QualityFlags(e, seen, now)
		seen[e.EventID] = true

		if len(flags) == 0 {
			continue
		}

		report.Flagged++

		for _, f := range flags {
			report.Counts[f]++
		}
	}

	return report
}
