package edf

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"lossless/internal/eeg"
)

const (
	headerSize       = 256
	signalHeaderSize = 256
	digitalMin       = -32768
	digitalMax       = 32767

	version  = "0"
	dateOnly = "02.01.06"
	timeOnly = "15.04.05"
)

// unknownStart is the EDF-recommended placeholder for recordings without a
// known start time.
var unknownStart = time.Date(1985, time.January, 1, 0, 0, 0, 0, time.UTC)

var labelPrefixes = map[string]eeg.ChannelType{
	"EEG":  eeg.ChannelEEG,
	"EOG":  eeg.ChannelEOG,
	"ECG":  eeg.ChannelECG,
	"EMG":  eeg.ChannelEMG,
	"STIM": eeg.ChannelStim,
	"MISC": eeg.ChannelMisc,
}

func channelLabel(ch eeg.Channel) string {
	prefix := strings.ToUpper(string(ch.Type))
	if _, known := labelPrefixes[prefix]; !known {
		prefix = "MISC"
	}
	return prefix + " " + ch.Name
}

func parseLabel(label string) eeg.Channel {
	prefix, rest, found := strings.Cut(label, " ")
	if found {
		if typ, known := labelPrefixes[prefix]; known {
			return eeg.Channel{Name: rest, Type: typ}
		}
	}
	return eeg.Channel{Name: label, Type: eeg.ChannelMisc}
}

// signalRange holds the scaling declared for one signal.
type signalRange struct {
	physMin, physMax float64
	digMin, digMax   int
}

func (s signalRange) gain() float64 {
	return (s.physMax - s.physMin) / float64(s.digMax-s.digMin)
}

func (s signalRange) toPhysical(d int16) float64 {
	return s.physMin + float64(int(d)-s.digMin)*s.gain()
}

func (s signalRange) toDigital(p float64) int16 {
	d := math.Round(float64(s.digMin) + (p-s.physMin)/s.gain())
	if d < digitalMin {
		d = digitalMin
	}
	if d > digitalMax {
		d = digitalMax
	}
	return int16(d)
}

// rangeFor derives the physical range from the data, widening degenerate
// ranges so the gain stays finite.
func rangeFor(data []float64) signalRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if len(data) == 0 || math.IsInf(lo, 1) {
		lo, hi = 0, 0
	}
	if lo == hi {
		hi = lo + 1
	}
	return signalRange{physMin: lo, physMax: hi, digMin: digitalMin, digMax: digitalMax}
}

// formatFloat renders v into at most width ASCII characters, trading
// precision for fit.
func formatFloat(v float64, width int) (string, error) {
	for prec := 8; prec >= 1; prec-- {
		s := fmt.Sprintf("%.*g", prec, v)
		if len(s) <= width {
			return s, nil
		}
	}
	return "", fmt.Errorf("value %g does not fit in %d characters", v, width)
}

// quantizeHeaderRange replaces the physical bounds with the values a reader
// will parse back from the 8-character header fields, so scaling on write
// matches scaling on read exactly.
func quantizeHeaderRange(r signalRange) (signalRange, error) {
	lo, err := formatFloat(r.physMin, 8)
	if err != nil {
		return r, err
	}
	hi, err := formatFloat(r.physMax, 8)
	if err != nil {
		return r, err
	}
	r.physMin, _ = strconv.ParseFloat(lo, 64)
	r.physMax, _ = strconv.ParseFloat(hi, 64)
	if r.physMax <= r.physMin {
		r.physMax = r.physMin + 1
	}
	return r, nil
}
