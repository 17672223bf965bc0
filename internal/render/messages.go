// Package render builds the user-facing chat texts for coordinator outcomes.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/vogiaan1904/trafficroom/internal/models"
	"github.com/vogiaan1904/trafficroom/pkg/util"
)

const (
	separator = "------------------------------"

	StorageWarning  = "Warning: the change was applied but could not be saved. It may be lost on restart."
	NoActiveSession = "There is no active session."
	NotOwner        = "Only the owner of the active session can end it."
	NoHistory       = "No sessions have been recorded yet."
	NotQueued       = "You are not waiting in the queue."
)

func SessionStarted(ss models.Session) string {
	var b strings.Builder
	b.WriteString("Traffic session started\n")
	b.WriteString(separator + "\n")
	b.WriteString("Statistics have started\n")
	fmt.Fprintf(&b, "Target: %s\n", ss.TargetURL())
	fmt.Fprintf(&b, "Duration: %d seconds\n", int64(ss.Duration/time.Second))
	fmt.Fprintf(&b, "Started by: %s", displayName(ss.DisplayName, ss.OwnerID))

	return b.String()
}

func Queued(position int) string {
	return fmt.Sprintf("Another user is running a session. You have been added to the queue at position %d.", position)
}

func QueuePosition(position int) string {
	if position <= 0 {
		return NotQueued
	}
	return fmt.Sprintf("You are at position %d in the queue.", position)
}

func StatusUpdate(upd models.StatusUpdate) string {
	var b strings.Builder
	b.WriteString("Session update\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Current requests: %d\n", upd.RequestCount)
	fmt.Fprintf(&b, "Remaining time: %d seconds\n", int64(upd.Remaining.Round(time.Second)/time.Second))
	fmt.Fprintf(&b, "Data from: %s", displayName(upd.DisplayName, upd.OwnerID))

	return b.String()
}

// TrafficOverview is the summary sent when a session ends.
func TrafficOverview(rec models.HistoryRecord) string {
	var b strings.Builder
	b.WriteString("Total traffic overview\n")
	b.WriteString(separator + "\n")
	b.WriteString("Metric statistics:\n")
	if rec.TotalRequests > 0 {
		fmt.Fprintf(&b, "- Total requests: %d\n", rec.TotalRequests)
	} else {
		b.WriteString("- No data found\n")
	}
	if !rec.StartTime.IsZero() {
		fmt.Fprintf(&b, "Started: %s\n", util.FormatDateTime(rec.StartTime))
		fmt.Fprintf(&b, "Ended: %s\n", util.FormatDateTime(rec.EndTime))
	}
	if rec.Reason == models.EndReasonExpired {
		b.WriteString("Session time is up.\n")
	}
	fmt.Fprintf(&b, "Data from: %s", displayName(rec.DisplayName, rec.OwnerID))

	return b.String()
}

func Ranking(recs []models.HistoryRecord) string {
	if len(recs) == 0 {
		return NoHistory
	}

	var b strings.Builder
	b.WriteString("Session ranking\n")
	b.WriteString(separator)
	for i, rec := range recs {
		fmt.Fprintf(&b, "\n%d. %s - %d requests", i+1, displayName(rec.DisplayName, rec.OwnerID), rec.TotalRequests)
	}

	return b.String()
}

// WithWarning appends the storage warning when degraded is set.
func WithWarning(msg string, degraded bool) string {
	if !degraded {
		return msg
	}

	return msg + "\n\n" + StorageWarning
}

func displayName(name string, id int64) string {
	if name == "" {
		return fmt.Sprintf("user %d", id)
	}

	return name
}
