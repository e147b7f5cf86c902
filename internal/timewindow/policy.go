// Package timewindow converts wall-clock business rules in a fixed timezone
// into absolute instant ranges.
package timewindow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"barbershop/backend/internal/domain"
)

const dateLayout = "2006-01-02"

// Band is a half-open wall-clock range [Start, End) measured from local midnight.
type Band struct {
	Start time.Duration
	End   time.Duration
}

func (b Band) String() string {
	return formatClock(b.Start) + "-" + formatClock(b.End)
}

type Policy struct {
	Location *time.Location
	Bands    []Band
}

// NewPolicy builds a policy from an IANA zone name and a band list such as
// "09:00-14:00,17:00-22:00".
func NewPolicy(timezone, bands string) (Policy, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil {
		return Policy{}, domain.InvalidInput("invalid timezone %q", timezone)
	}
	parsed, err := ParseBands(bands)
	if err != nil {
		return Policy{}, err
	}
	return Policy{Location: loc, Bands: parsed}, nil
}

func ParseBands(s string) ([]Band, error) {
	var out []Band
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, "-")
		if !ok {
			return nil, domain.InvalidTimeFormat(part)
		}
		start, err := ParseClock(from)
		if err != nil {
			return nil, err
		}
		end, err := ParseClock(to)
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, domain.InvalidInput("band %q must end after it starts", part)
		}
		out = append(out, Band{Start: start, End: end})
	}
	if len(out) == 0 {
		return nil, domain.InvalidInput("at least one business-hours band is required")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// ParseClock parses "HH:MM" into an offset from midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, domain.InvalidTimeFormat(s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, domain.InvalidTimeFormat(s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, domain.InvalidTimeFormat(s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, domain.InvalidTimeFormat(s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Contains reports whether the instant's local wall-clock time falls inside a band.
func (p Policy) Contains(t time.Time) bool {
	local := t.In(p.location())
	offset := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	for _, b := range p.Bands {
		if offset >= b.Start && offset < b.End {
			return true
		}
	}
	return false
}

// DayRange returns [startOfDay, startOfNextDay) for a "YYYY-MM-DD" date in the policy timezone.
func (p Policy) DayRange(date string) (domain.Span, error) {
	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), p.location())
	if err != nil {
		return domain.Span{}, domain.InvalidTimeFormat(date)
	}
	return domain.Span{Start: start, End: start.AddDate(0, 0, 1)}, nil
}

// DayOf returns the local day containing t.
func (p Policy) DayOf(t time.Time) domain.Span {
	local := t.In(p.location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.location())
	return domain.Span{Start: start, End: start.AddDate(0, 0, 1)}
}

func (p Policy) Describe() string {
	parts := make([]string, 0, len(p.Bands))
	for _, b := range p.Bands {
		parts = append(parts, b.String())
	}
	return strings.Join(parts, ", ") + " (" + p.location().String() + ")"
}

// OccupiedMarks lists the "HH:MM" starts of every step-sized slot of day
// that intersects one of spans. The result is sorted and has no duplicates.
func (p Policy) OccupiedMarks(day domain.Span, spans []domain.Span, step time.Duration) []string {
	if step <= 0 {
		step = 30 * time.Minute
	}
	seen := make(map[string]struct{})
	for _, s := range spans {
		clipped, ok := s.Clip(day)
		if !ok {
			continue
		}
		offset := clipped.Start.Sub(day.Start)
		offset -= offset % step
		for at := day.Start.Add(offset); at.Before(clipped.End); at = at.Add(step) {
			seen[at.In(p.location()).Format("15:04")] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
