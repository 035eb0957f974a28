package eeg

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// ChannelType classifies what a channel records.
type ChannelType string

const (
	ChannelEEG  ChannelType = "eeg"
	ChannelEOG  ChannelType = "eog"
	ChannelECG  ChannelType = "ecg"
	ChannelEMG  ChannelType = "emg"
	ChannelStim ChannelType = "stim"
	ChannelMisc ChannelType = "misc"
)

// Channel describes one recorded signal.
type Channel struct {
	Name string
	Type ChannelType
	Unit string
}

// Info carries recording-level metadata.
type Info struct {
	Subject   string
	StartTime time.Time
	Device    string
	PowerLine float64
	Reference string
}

// Raw is a fully loaded continuous recording. Data is indexed
// [channel][sample]; every channel has the same sample count. Bads lists
// channels marked unusable; they stay in Data so nothing is lost.
type Raw struct {
	Channels    []Channel
	SampleRate  float64
	Data        [][]float64
	Annotations Annotations
	Bads        []string
	Info        Info
}

// NewRaw builds a recording and validates its dimensions.
func NewRaw(channels []Channel, sampleRate float64, data [][]float64) (*Raw, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("recording has no channels")
	}
	if len(channels) != len(data) {
		return nil, fmt.Errorf("channel count %d does not match data rows %d", len(channels), len(data))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", sampleRate)
	}
	n := len(data[0])
	for i, row := range data {
		if len(row) != n {
			return nil, fmt.Errorf("channel %s has %d samples, expected %d", channels[i].Name, len(row), n)
		}
	}
	seen := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		if ch.Name == "" {
			return nil, fmt.Errorf("channel with empty name")
		}
		if _, dup := seen[ch.Name]; dup {
			return nil, fmt.Errorf("duplicate channel name %q", ch.Name)
		}
		seen[ch.Name] = struct{}{}
	}
	return &Raw{Channels: slices.Clone(channels), SampleRate: sampleRate, Data: data}, nil
}

// NChannels reports the channel count.
func (r *Raw) NChannels() int { return len(r.Channels) }

// NSamples reports the per-channel sample count.
func (r *Raw) NSamples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// Duration reports the recording length in seconds.
func (r *Raw) Duration() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(r.NSamples()) / r.SampleRate
}

// ChannelIndex finds a channel by name.
func (r *Raw) ChannelIndex(name string) (int, bool) {
	for i, ch := range r.Channels {
		if ch.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ChannelNames returns the channel names in order.
func (r *Raw) ChannelNames() []string {
	names := make([]string, len(r.Channels))
	for i, ch := range r.Channels {
		names[i] = ch.Name
	}
	return names
}

// ChannelsOfType returns the indices of channels with any of the given types.
func (r *Raw) ChannelsOfType(types ...ChannelType) []int {
	var idx []int
	for i, ch := range r.Channels {
		if slices.Contains(types, ch.Type) {
			idx = append(idx, i)
		}
	}
	return idx
}

// PickTypes drops every channel whose type is not listed. At least one
// channel must survive.
func (r *Raw) PickTypes(types ...ChannelType) error {
	return r.pick(r.ChannelsOfType(types...))
}

// PickChannels drops every channel not named. Order follows the recording,
// not the argument list.
func (r *Raw) PickChannels(names []string) error {
	var idx []int
	for i, ch := range r.Channels {
		if slices.Contains(names, ch.Name) {
			idx = append(idx, i)
		}
	}
	if len(idx) != len(names) {
		for _, name := range names {
			if _, ok := r.ChannelIndex(name); !ok {
				return fmt.Errorf("unknown channel %q", name)
			}
		}
	}
	return r.pick(idx)
}

// DropChannels removes the named channels, ignoring names not present.
func (r *Raw) DropChannels(names []string) error {
	var idx []int
	for i, ch := range r.Channels {
		if !slices.Contains(names, ch.Name) {
			idx = append(idx, i)
		}
	}
	return r.pick(idx)
}

func (r *Raw) pick(idx []int) error {
	if len(idx) == 0 {
		return fmt.Errorf("selection leaves no channels")
	}
	channels := make([]Channel, len(idx))
	data := make([][]float64, len(idx))
	for out, in := range idx {
		channels[out] = r.Channels[in]
		data[out] = r.Data[in]
	}
	r.Channels = channels
	r.Data = data
	kept := r.Bads[:0]
	for _, b := range r.Bads {
		if _, ok := r.ChannelIndex(b); ok {
			kept = append(kept, b)
		}
	}
	r.Bads = kept
	return nil
}

// RenameChannel changes a channel's name in place.
func (r *Raw) RenameChannel(from, to string) error {
	if to == "" {
		return fmt.Errorf("new channel name is empty")
	}
	if _, exists := r.ChannelIndex(to); exists && from != to {
		return fmt.Errorf("channel %q already exists", to)
	}
	i, ok := r.ChannelIndex(from)
	if !ok {
		return fmt.Errorf("unknown channel %q", from)
	}
	r.Channels[i].Name = to
	for j, b := range r.Bads {
		if b == from {
			r.Bads[j] = to
		}
	}
	return nil
}

// SetChannelTypes reassigns types for the named channels.
func (r *Raw) SetChannelTypes(types map[string]ChannelType) error {
	for name, typ := range types {
		i, ok := r.ChannelIndex(name)
		if !ok {
			return fmt.Errorf("unknown channel %q", name)
		}
		r.Channels[i].Type = typ
	}
	return nil
}

// Crop trims the recording to [tmin, tmax) seconds and shifts annotations
// accordingly, dropping those that fall entirely outside the window.
func (r *Raw) Crop(tmin, tmax float64) error {
	if tmin < 0 || tmax <= tmin {
		return fmt.Errorf("invalid crop window [%g, %g)", tmin, tmax)
	}
	lo := int(math.Round(tmin * r.SampleRate))
	hi := int(math.Round(tmax * r.SampleRate))
	if hi > r.NSamples() {
		hi = r.NSamples()
	}
	if lo >= hi {
		return fmt.Errorf("crop window [%g, %g) is outside the recording", tmin, tmax)
	}
	for i := range r.Data {
		r.Data[i] = r.Data[i][lo:hi]
	}
	r.Annotations = r.Annotations.Shift(-tmin).ClipTo(float64(hi-lo) / r.SampleRate)
	return nil
}

// Clone returns a deep copy of the recording.
func (r *Raw) Clone() *Raw {
	data := make([][]float64, len(r.Data))
	for i, row := range r.Data {
		data[i] = slices.Clone(row)
	}
	return &Raw{
		Channels:    slices.Clone(r.Channels),
		SampleRate:  r.SampleRate,
		Data:        data,
		Annotations: slices.Clone(r.Annotations),
		Bads:        slices.Clone(r.Bads),
		Info:        r.Info,
	}
}

// MarkBad adds names to the bad-channel list, ignoring duplicates and
// unknown channels.
func (r *Raw) MarkBad(names ...string) {
	for _, name := range names {
		if _, ok := r.ChannelIndex(name); !ok {
			continue
		}
		if !slices.Contains(r.Bads, name) {
			r.Bads = append(r.Bads, name)
		}
	}
	slices.Sort(r.Bads)
}

// GoodChannels returns the indices of channels of the given types that are
// not marked bad.
func (r *Raw) GoodChannels(types ...ChannelType) []int {
	var idx []int
	for _, i := range r.ChannelsOfType(types...) {
		if !slices.Contains(r.Bads, r.Channels[i].Name) {
			idx = append(idx, i)
		}
	}
	return idx
}
