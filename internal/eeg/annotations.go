package eeg

import (
	"slices"
	"strings"
)

// Annotation marks a span of the recording. Onset and Duration are in
// seconds from the start. Descriptions beginning with "BAD_" mark spans the
// pipeline flagged for exclusion.
type Annotation struct {
	Onset       float64
	Duration    float64
	Description string
}

// End reports the annotation's end time in seconds.
func (a Annotation) End() float64 { return a.Onset + a.Duration }

// Bad reports whether the annotation marks a flagged span.
func (a Annotation) Bad() bool { return strings.HasPrefix(a.Description, "BAD_") }

// Annotations is an onset-ordered list of annotations.
type Annotations []Annotation

// Add inserts an annotation keeping onset order.
func (as Annotations) Add(a Annotation) Annotations {
	i, _ := slices.BinarySearchFunc(as, a, func(x, y Annotation) int {
		switch {
		case x.Onset < y.Onset:
			return -1
		case x.Onset > y.Onset:
			return 1
		default:
			return 0
		}
	})
	return slices.Insert(as, i, a)
}

// Shift moves every onset by delta seconds.
func (as Annotations) Shift(delta float64) Annotations {
	out := make(Annotations, 0, len(as))
	for _, a := range as {
		a.Onset += delta
		out = append(out, a)
	}
	return out
}

// ClipTo drops annotations outside [0, limit) and trims those straddling
// the boundaries.
func (as Annotations) ClipTo(limit float64) Annotations {
	out := make(Annotations, 0, len(as))
	for _, a := range as {
		if a.End() <= 0 || a.Onset >= limit {
			continue
		}
		if a.Onset < 0 {
			a.Duration += a.Onset
			a.Onset = 0
		}
		if a.End() > limit {
			a.Duration = limit - a.Onset
		}
		out = append(out, a)
	}
	return out
}

// Bad returns only the flagged annotations.
func (as Annotations) Bad() Annotations {
	out := make(Annotations, 0)
	for _, a := range as {
		if a.Bad() {
			out = append(out, a)
		}
	}
	return out
}

// Covers reports whether time t falls inside any flagged span.
func (as Annotations) Covers(t float64) bool {
	for _, a := range as {
		if a.Bad() && t >= a.Onset && t < a.End() {
			return true
		}
	}
	return false
}

// TotalBadDuration sums the durations of flagged spans without merging
// overlaps.
func (as Annotations) TotalBadDuration() float64 {
	var total float64
	for _, a := range as {
		if a.Bad() {
			total += a.Duration
		}
	}
	return total
}
