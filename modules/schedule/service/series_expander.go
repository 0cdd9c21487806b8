package service

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"tutorbase/core/constants"
	"tutorbase/modules/schedule/entity"
)

// OccurrenceDraft is one materialized occurrence of a series before
// persistence: the concrete date plus the computed time window.
type OccurrenceDraft struct {
	Date      time.Time
	StartTime time.Time
	EndTime   time.Time
}

// SeriesExpander turns a recurrence definition into the ordered sequence of
// occurrence drafts. Pure: the same definition always yields the same
// sequence.
type SeriesExpander struct{}

func NewSeriesExpander() *SeriesExpander {
	return &SeriesExpander{}
}

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Expand produces the occurrence drafts for a series. AD_HOC yields exactly
// one draft; DAILY and WEEKLY expand through an RRULE bounded by
// occurrence_count or end_date (inclusive).
func (se *SeriesExpander) Expand(series *entity.ScheduleSeries) ([]OccurrenceDraft, error) {
	if !series.Pattern.Valid() {
		return nil, fmt.Errorf("unknown pattern %q", series.Pattern)
	}
	if series.DurationMinutes < constants.MinSessionDurationMinutes ||
		series.DurationMinutes > constants.MaxSessionDurationMinutes {
		return nil, fmt.Errorf("duration_minutes must be between %d and %d",
			constants.MinSessionDurationMinutes, constants.MaxSessionDurationMinutes)
	}
	if series.BufferMinutes < 0 {
		return nil, fmt.Errorf("buffer_minutes must not be negative")
	}

	hour, minute, err := parseSessionTime(series.SessionTime)
	if err != nil {
		return nil, err
	}

	dtstart := time.Date(
		series.StartDate.Year(), series.StartDate.Month(), series.StartDate.Day(),
		hour, minute, 0, 0, time.UTC)

	if series.Pattern == entity.PatternAdHoc {
		return []OccurrenceDraft{se.draft(series, dtstart)}, nil
	}

	hasCount := series.OccurrenceCount != nil
	hasEnd := series.EndDate != nil
	if hasCount == hasEnd {
		return nil, fmt.Errorf("exactly one of occurrence_count and end_date is required")
	}
	if hasCount && (*series.OccurrenceCount < 1 || *series.OccurrenceCount > constants.MaxSeriesOccurrences) {
		return nil, fmt.Errorf("occurrence_count must be between 1 and %d", constants.MaxSeriesOccurrences)
	}
	if hasEnd && series.EndDate.Before(series.StartDate) {
		return nil, fmt.Errorf("end_date precedes start_date")
	}

	opt := rrule.ROption{Dtstart: dtstart}
	switch series.Pattern {
	case entity.PatternDaily:
		opt.Freq = rrule.DAILY
	case entity.PatternWeekly:
		if series.DayOfWeek == nil || *series.DayOfWeek < 0 || *series.DayOfWeek > 6 {
			return nil, fmt.Errorf("weekly pattern requires day_of_week between 0 and 6")
		}
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[*series.DayOfWeek]}
	}

	if hasCount {
		opt.Count = *series.OccurrenceCount
	} else {
		// Until is inclusive, so the last occurrence may land on end_date.
		opt.Until = time.Date(
			series.EndDate.Year(), series.EndDate.Month(), series.EndDate.Day(),
			hour, minute, 0, 0, time.UTC)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}

	starts := rule.All()
	if len(starts) == 0 {
		return nil, fmt.Errorf("recurrence definition produces no occurrences")
	}
	if len(starts) > constants.MaxSeriesOccurrences {
		return nil, fmt.Errorf("recurrence definition produces more than %d occurrences", constants.MaxSeriesOccurrences)
	}

	drafts := make([]OccurrenceDraft, 0, len(starts))
	for _, start := range starts {
		drafts = append(drafts, se.draft(series, start))
	}
	return drafts, nil
}

// ApplyOverlay drops regenerated drafts for dates that already carry a
// recorded per-occurrence override (exception or skip), so re-expanding a
// series never clobbers them.
func (se *SeriesExpander) ApplyOverlay(drafts []OccurrenceDraft, existing []entity.ScheduleEntry) []OccurrenceDraft {
	overridden := make(map[string]struct{})
	for i := range existing {
		e := &existing[i]
		if e.IsException || e.IsSkipped {
			overridden[dateKey(e.OccurrenceDate)] = struct{}{}
		}
	}
	if len(overridden) == 0 {
		return drafts
	}

	kept := drafts[:0]
	for _, d := range drafts {
		if _, ok := overridden[dateKey(d.Date)]; ok {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

func (se *SeriesExpander) draft(series *entity.ScheduleSeries, start time.Time) OccurrenceDraft {
	total := time.Duration(series.DurationMinutes+series.BufferMinutes) * time.Minute
	return OccurrenceDraft{
		Date:      time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		StartTime: start,
		EndTime:   start.Add(total),
	}
}

func parseSessionTime(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("session_time must be HH:MM: %w", err)
	}
	return t.Hour(), t.Minute(), nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
