package merge

import (
	"sort"
	"time"

	"github.com/hyperengineering/healthsync/internal/types"
)

// Sleep for a date is counted from 18:00 on the prior day through 14:00 on
// the date itself, in the record's local time.
const (
	sleepWindowStartHour = 18
	sleepWindowEndHour   = 14
)

// RestingHeartRate returns the resting heart rate for an observation. A
// dedicated metric wins; otherwise the estimate is the median of the lowest
// quartile of the raw samples.
func RestingHeartRate(obs types.SourceObservation) (float64, bool) {
	if obs.RestingHeartRate != nil {
		return *obs.RestingHeartRate, true
	}
	n := len(obs.HeartRateSamples)
	if n == 0 {
		return 0, false
	}

	sorted := append([]float64(nil), obs.HeartRateSamples...)
	sort.Float64s(sorted)

	k := (n + 3) / 4
	lowest := sorted[:k]
	if k%2 == 1 {
		return lowest[k/2], true
	}
	return (lowest[k/2-1] + lowest[k/2]) / 2, true
}

// SleepWindow returns the window that sleep for date is attributed to.
func SleepWindow(date types.Date, loc *time.Location) (start, end time.Time) {
	day := date.Time(loc)
	y, m, d := day.Date()
	start = time.Date(y, m, d-1, sleepWindowStartHour, 0, 0, 0, loc)
	end = time.Date(y, m, d, sleepWindowEndHour, 0, 0, 0, loc)
	return start, end
}

// SleepHours returns the hours slept for date. Stage segments classified as
// sleep are summed after clipping to the window; overlapping segments count
// once. Session spans are used only when no stage breakdown exists.
func SleepHours(date types.Date, stages []types.SleepStage, sessions []types.SleepSession, loc *time.Location) (float64, bool) {
	start, end := SleepWindow(date, loc)

	var spans []span
	if len(stages) > 0 {
		for _, s := range stages {
			if s.Kind.IsSleep() {
				spans = append(spans, span{s.Start, s.End})
			}
		}
	} else {
		for _, s := range sessions {
			spans = append(spans, span{s.Start, s.End})
		}
	}

	total := unionDuration(clip(spans, start, end))
	if total <= 0 {
		return 0, false
	}
	return total.Hours(), true
}

type span struct {
	start, end time.Time
}

func clip(spans []span, start, end time.Time) []span {
	var out []span
	for _, s := range spans {
		if s.start.Before(start) {
			s.start = start
		}
		if s.end.After(end) {
			s.end = end
		}
		if s.end.After(s.start) {
			out = append(out, s)
		}
	}
	return out
}

func unionDuration(spans []span) time.Duration {
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var total time.Duration
	cur := spans[0]
	for _, s := range spans[1:] {
		if !s.start.After(cur.end) {
			if s.end.After(cur.end) {
				cur.end = s.end
			}
			continue
		}
		total += cur.end.Sub(cur.start)
		cur = s
	}
	return total + cur.end.Sub(cur.start)
}
