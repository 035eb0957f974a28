package eeg

import (
	"fmt"
	"math"
	"sort"
)

// Event is a discrete stimulus marker at a sample index.
type Event struct {
	Sample int
	Code   int
}

// EventMap names event codes, label to code.
type EventMap map[string]int

// Label finds the label for a code, falling back to the numeric form.
func (m EventMap) Label(code int) string {
	// Deterministic when two labels share a code.
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		if m[l] == code {
			return l
		}
	}
	return fmt.Sprintf("%d", code)
}

// FindEvents scans a stimulus channel for onsets: samples where the value
// rises from zero to a nonzero code. The code is the rounded channel value.
func (r *Raw) FindEvents(stimChannel string) ([]Event, error) {
	i, ok := r.ChannelIndex(stimChannel)
	if !ok {
		return nil, fmt.Errorf("unknown stim channel %q", stimChannel)
	}
	data := r.Data[i]
	var events []Event
	prev := 0
	for s, v := range data {
		code := int(math.Round(v))
		if code != 0 && prev == 0 {
			events = append(events, Event{Sample: s, Code: code})
		}
		prev = code
	}
	return events, nil
}
