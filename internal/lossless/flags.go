package lossless

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Flag reasons recorded by the pipeline steps.
const (
	FlagDead         = "dead"
	FlagSaturated    = "saturated"
	FlagNoisy        = "noisy"
	FlagUncorrelated = "uncorrelated"
	FlagBridged      = "bridged"
	FlagRank         = "rank"
	FlagKurtosis     = "kurtosis"
	FlagLowFrequency = "low_frequency"
)

// Flags accumulates everything a pipeline run marked for exclusion,
// grouped by the reason each step flagged it. It round-trips through JSON
// for storage on queue items and in derivative sidecars.
type Flags struct {
	// Channels maps a reason to the channel names it flagged.
	Channels map[string][]string `json:"channels"`
	// Epochs maps a reason to the window indices it flagged.
	Epochs map[string][]int `json:"epochs"`
	// Components lists flagged independent components with the score that
	// tripped the threshold.
	Components []ComponentFlag `json:"components"`
}

// ComponentFlag records one flagged independent component.
type ComponentFlag struct {
	Index  int     `json:"index"`
	Reason string  `json:"reason"`
	Score  float64 `json:"score"`
}

// NewFlags returns an empty flag set.
func NewFlags() *Flags {
	return &Flags{
		Channels: make(map[string][]string),
		Epochs:   make(map[string][]int),
	}
}

// FlagChannels records channels under a reason, keeping the list sorted
// and free of duplicates.
func (f *Flags) FlagChannels(reason string, names ...string) {
	if len(names) == 0 {
		return
	}
	if f.Channels == nil {
		f.Channels = make(map[string][]string)
	}
	merged := append(f.Channels[reason], names...)
	slices.Sort(merged)
	f.Channels[reason] = slices.Compact(merged)
}

// FlagEpochs records window indices under a reason, keeping the list
// sorted and free of duplicates.
func (f *Flags) FlagEpochs(reason string, indices ...int) {
	if len(indices) == 0 {
		return
	}
	if f.Epochs == nil {
		f.Epochs = make(map[string][]int)
	}
	merged := append(f.Epochs[reason], indices...)
	slices.Sort(merged)
	f.Epochs[reason] = slices.Compact(merged)
}

// FlagComponent records a flagged component.
func (f *Flags) FlagComponent(index int, reason string, score float64) {
	f.Components = append(f.Components, ComponentFlag{Index: index, Reason: reason, Score: score})
}

// AllChannels returns every flagged channel name once, sorted.
func (f *Flags) AllChannels() []string {
	var all []string
	for _, names := range f.Channels {
		all = append(all, names...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// AllEpochs returns every flagged window index once, sorted.
func (f *Flags) AllEpochs() []int {
	var all []int
	for _, indices := range f.Epochs {
		all = append(all, indices...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// ComponentIndices returns the flagged component indices once, sorted.
func (f *Flags) ComponentIndices() []int {
	var all []int
	for _, c := range f.Components {
		all = append(all, c.Index)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// Counts summarizes a flag set for status displays.
type Counts struct {
	Channels   int
	Epochs     int
	Components int
}

// Counts reports how many distinct channels, windows, and components are
// flagged.
func (f *Flags) Counts() Counts {
	return Counts{
		Channels:   len(f.AllChannels()),
		Epochs:     len(f.AllEpochs()),
		Components: len(f.ComponentIndices()),
	}
}

// IsZero reports whether nothing is flagged.
func (f *Flags) IsZero() bool {
	return len(f.Channels) == 0 && len(f.Epochs) == 0 && len(f.Components) == 0
}

// Encode renders the flag set as compact JSON for storage.
func (f *Flags) Encode() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to encode flags: %w", err)
	}
	return string(data), nil
}

// ParseFlags decodes a stored flag set. Empty input yields an empty set so
// callers upstream of the preprocess stage need no special case.
func ParseFlags(raw string) (*Flags, error) {
	if strings.TrimSpace(raw) == "" {
		return NewFlags(), nil
	}
	flags := NewFlags()
	if err := json.Unmarshal([]byte(raw), flags); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	return flags, nil
}
