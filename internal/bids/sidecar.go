package bids

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"lossless/internal/eeg"
	"lossless/internal/tabular"
)

// DataExtension is the extension of recording data files in this layout.
const DataExtension = ".edf"

// notAvailable is the BIDS placeholder for a missing tabular value.
const notAvailable = "n/a"

// Sidecar is the *_eeg.json metadata written next to each recording.
type Sidecar struct {
	TaskName            string  `json:"TaskName,omitempty"`
	SamplingFrequency   float64 `json:"SamplingFrequency"`
	EEGReference        string  `json:"EEGReference,omitempty"`
	PowerLineFrequency  float64 `json:"PowerLineFrequency,omitempty"`
	RecordingDuration   float64 `json:"RecordingDuration"`
	EEGChannelCount     int     `json:"EEGChannelCount"`
	EOGChannelCount     int     `json:"EOGChannelCount,omitempty"`
	ECGChannelCount     int     `json:"ECGChannelCount,omitempty"`
	EMGChannelCount     int     `json:"EMGChannelCount,omitempty"`
	MiscChannelCount    int     `json:"MiscChannelCount,omitempty"`
	TriggerChannelCount int     `json:"TriggerChannelCount,omitempty"`
}

func sidecarFor(p Path, raw *eeg.Raw) Sidecar {
	s := Sidecar{
		TaskName:           p.Task,
		SamplingFrequency:  raw.SampleRate,
		EEGReference:       raw.Info.Reference,
		PowerLineFrequency: raw.Info.PowerLine,
		RecordingDuration:  raw.Duration(),
	}
	for _, ch := range raw.Channels {
		switch ch.Type {
		case eeg.ChannelEEG:
			s.EEGChannelCount++
		case eeg.ChannelEOG:
			s.EOGChannelCount++
		case eeg.ChannelECG:
			s.ECGChannelCount++
		case eeg.ChannelEMG:
			s.EMGChannelCount++
		case eeg.ChannelStim:
			s.TriggerChannelCount++
		default:
			s.MiscChannelCount++
		}
	}
	return s
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// channelsTable renders the channels.tsv sidecar. Channels in bads get
// status "bad".
func channelsTable(raw *eeg.Raw) *tabular.Table {
	t := tabular.New("name", "type", "units", "status")
	for _, ch := range raw.Channels {
		unit := ch.Unit
		if unit == "" {
			unit = notAvailable
		}
		status := "good"
		if slices.Contains(raw.Bads, ch.Name) {
			status = "bad"
		}
		t.Append(tabular.Record{
			"name":   ch.Name,
			"type":   strings.ToUpper(string(ch.Type)),
			"units":  unit,
			"status": status,
		})
	}
	return t
}

// applyChannelsTable folds a channels.tsv back onto the recording,
// restoring types, units, and bad marks.
func applyChannelsTable(raw *eeg.Raw, t *tabular.Table) error {
	for i := 0; i < t.Len(); i++ {
		name := t.Get(i, "name")
		idx, ok := raw.ChannelIndex(name)
		if !ok {
			return fmt.Errorf("channels sidecar names unknown channel %q", name)
		}
		if typ := strings.ToLower(t.Get(i, "type")); typ != "" && typ != notAvailable {
			raw.Channels[idx].Type = eeg.ChannelType(typ)
		}
		if unit := t.Get(i, "units"); unit != "" && unit != notAvailable {
			raw.Channels[idx].Unit = unit
		}
		if t.Get(i, "status") == "bad" {
			raw.MarkBad(name)
		}
	}
	return nil
}

// eventsTable renders the events.tsv sidecar from stimulus events.
func eventsTable(events []eeg.Event, names eeg.EventMap, rate float64) *tabular.Table {
	t := tabular.New("onset", "duration", "trial_type", "value", "sample")
	for _, ev := range events {
		t.Append(tabular.Record{
			"onset":      strconv.FormatFloat(float64(ev.Sample)/rate, 'f', -1, 64),
			"duration":   "0",
			"trial_type": names.Label(ev.Code),
			"value":      strconv.Itoa(ev.Code),
			"sample":     strconv.Itoa(ev.Sample),
		})
	}
	return t
}

// annotationsFromEvents converts an events.tsv into annotations on the
// recording, the shape preprocessing consumes.
func annotationsFromEvents(t *tabular.Table) (eeg.Annotations, error) {
	var as eeg.Annotations
	for i := 0; i < t.Len(); i++ {
		onset, err := parseTSVFloat(t.Get(i, "onset"))
		if err != nil {
			return nil, fmt.Errorf("events row %d: onset: %w", i+1, err)
		}
		duration := 0.0
		if v := t.Get(i, "duration"); v != "" && v != notAvailable {
			if duration, err = parseTSVFloat(v); err != nil {
				return nil, fmt.Errorf("events row %d: duration: %w", i+1, err)
			}
		}
		desc := t.Get(i, "trial_type")
		if desc == "" || desc == notAvailable {
			desc = t.Get(i, "value")
		}
		as = as.Add(eeg.Annotation{Onset: onset, Duration: duration, Description: desc})
	}
	return as, nil
}

func parseTSVFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}
