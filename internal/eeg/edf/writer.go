package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lossless/internal/eeg"
)

// Write stores the recording at path, creating parent directories. The data
// goes through a temporary file renamed into place so a crashed write never
// leaves a partial recording behind.
func Write(path string, raw *eeg.Raw) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create recording directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".edf-*")
	if err != nil {
		return fmt.Errorf("create temporary recording: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary recording: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("place recording: %w", err)
	}
	return nil
}

// Encode writes the recording to w in EDF layout.
func Encode(w io.Writer, raw *eeg.Raw) error {
	if raw.NChannels() == 0 || raw.NSamples() == 0 {
		return fmt.Errorf("refusing to write empty recording")
	}
	rate := raw.SampleRate
	if rate != math.Trunc(rate) || rate <= 0 {
		return fmt.Errorf("edf requires an integer sample rate, got %g", rate)
	}
	spr := int(rate)
	nSamples := raw.NSamples()
	nRecords := (nSamples + spr - 1) / spr

	ranges := make([]signalRange, raw.NChannels())
	for i, data := range raw.Data {
		q, err := quantizeHeaderRange(rangeFor(data))
		if err != nil {
			return fmt.Errorf("signal %s: %w", raw.Channels[i].Name, err)
		}
		ranges[i] = q
	}

	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, raw, ranges, spr, nRecords); err != nil {
		return err
	}

	// Data records: per record, per signal, spr samples. Samples past the
	// end of the recording pad as digital zero.
	buf := make([]byte, 2)
	for rec := 0; rec < nRecords; rec++ {
		for sig := 0; sig < raw.NChannels(); sig++ {
			data := raw.Data[sig]
			for s := 0; s < spr; s++ {
				idx := rec*spr + s
				var d int16
				if idx < nSamples {
					d = ranges[sig].toDigital(data[idx])
				}
				binary.LittleEndian.PutUint16(buf, uint16(d))
				if _, err := bw.Write(buf); err != nil {
					return fmt.Errorf("write data record %d: %w", rec, err)
				}
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush recording: %w", err)
	}
	return nil
}

func writeHeader(w *bufio.Writer, raw *eeg.Raw, ranges []signalRange, spr, nRecords int) error {
	ns := raw.NChannels()
	start := raw.Info.StartTime
	if start.IsZero() {
		start = unknownStart
	}
	reserved := ""
	if nRecords*spr != raw.NSamples() {
		reserved = "NS=" + strconv.Itoa(raw.NSamples())
	}

	writeField(w, version, 8)
	writeField(w, orX(raw.Info.Subject), 80)
	writeField(w, orX(raw.Info.Device), 80)
	writeField(w, start.Format(dateOnly), 8)
	writeField(w, start.Format(timeOnly), 8)
	writeField(w, strconv.Itoa(headerSize+ns*signalHeaderSize), 8)
	writeField(w, reserved, 44)
	writeField(w, strconv.Itoa(nRecords), 8)
	writeField(w, "1", 8)
	writeField(w, strconv.Itoa(ns), 4)

	// Signal headers are stored field by field across all signals.
	for _, ch := range raw.Channels {
		writeField(w, channelLabel(ch), 16)
	}
	for range raw.Channels {
		writeField(w, "", 80)
	}
	for _, ch := range raw.Channels {
		writeField(w, ch.Unit, 8)
	}
	for i := range raw.Channels {
		s, err := formatFloat(ranges[i].physMin, 8)
		if err != nil {
			return fmt.Errorf("signal %s physical minimum: %w", raw.Channels[i].Name, err)
		}
		writeField(w, s, 8)
	}
	for i := range raw.Channels {
		s, err := formatFloat(ranges[i].physMax, 8)
		if err != nil {
			return fmt.Errorf("signal %s physical maximum: %w", raw.Channels[i].Name, err)
		}
		writeField(w, s, 8)
	}
	for range raw.Channels {
		writeField(w, strconv.Itoa(digitalMin), 8)
	}
	for range raw.Channels {
		writeField(w, strconv.Itoa(digitalMax), 8)
	}
	for range raw.Channels {
		writeField(w, "", 80)
	}
	for range raw.Channels {
		writeField(w, strconv.Itoa(spr), 8)
	}
	for range raw.Channels {
		writeField(w, "", 32)
	}
	return nil
}

// writeField emits s space-padded to width, truncating overlong text.
func writeField(w *bufio.Writer, s string, width int) {
	if len(s) > width {
		s = s[:width]
	}
	w.WriteString(s)
	w.WriteString(strings.Repeat(" ", width-len(s)))
}

func orX(s string) string {
	if s == "" {
		return "X"
	}
	return s
}
