package domain

import "time"

// Span is a half-open instant range [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) Valid() bool {
	return s.End.After(s.Start)
}

// Overlaps uses the open-interval test: a.Start < b.End && a.End > b.Start.
// Touching spans do not overlap.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && s.End.After(o.Start)
}

func (s Span) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Clip returns the part of s inside bounds, and false if they don't overlap.
func (s Span) Clip(bounds Span) (Span, bool) {
	if !s.Overlaps(bounds) {
		return Span{}, false
	}
	out := s
	if out.Start.Before(bounds.Start) {
		out.Start = bounds.Start
	}
	if out.End.After(bounds.End) {
		out.End = bounds.End
	}
	return out, true
}

func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
