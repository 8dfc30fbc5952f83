// Package timewindow classifies a comment's temporal relationship to a
// thread's air_time.
package timewindow

import (
	"time"

	"github.com/therealityreport/socializer/internal/domain"
)

// Classify returns the TimeWindow label for commentCreated relative to
// airTime, evaluated in both primaryZone and a Pacific-shifted proxy zone
// (airTime+3h standing in for the West-coast broadcast). Returns
// domain.WindowNone when airTime is nil.
func Classify(commentCreated time.Time, airTime *time.Time, primaryZone *time.Location) domain.TimeWindow {
	if airTime == nil {
		return domain.WindowNone
	}
	if primaryZone == nil {
		primaryZone = time.UTC
	}

	if isLive(commentCreated, *airTime, primaryZone) {
		return domain.WindowLive
	}
	pacificProxy := airTime.Add(3 * time.Hour)
	if isLive(commentCreated, pacificProxy, primaryZone) {
		return domain.WindowLive
	}

	if isDayOf(commentCreated, *airTime, primaryZone) {
		return domain.WindowDayOf
	}
	if isDayOf(commentCreated, pacificProxy, primaryZone) {
		return domain.WindowDayOf
	}

	return domain.WindowAfter
}

func isLive(commentCreated, airTime time.Time, zone *time.Location) bool {
	lo := airTime.Add(-15 * time.Minute)
	hi := airTime.Add(3 * time.Hour)
	c := commentCreated.In(zone)
	return !c.Before(lo.In(zone)) && !c.After(hi.In(zone))
}

func isDayOf(commentCreated, airTime time.Time, zone *time.Location) bool {
	local := airTime.In(zone)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
	lo := midnight
	hi := midnight.AddDate(0, 0, 2)
	c := commentCreated.In(zone)
	return !c.Before(lo) && c.Before(hi)
}
