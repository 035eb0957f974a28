package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"lossless/internal/eeg"
)

// Read loads the recording stored at path.
func Read(path string) (*eeg.Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	raw, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return raw, nil
}

// Decode parses an EDF stream into a fully loaded recording.
func Decode(r io.Reader) (*eeg.Raw, error) {
	br := bufio.NewReader(r)

	head := make([]byte, headerSize)
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := fieldScanner{buf: head}
	ver := h.next(8)
	if ver != version {
		return nil, fmt.Errorf("unsupported version %q", ver)
	}
	subject := h.next(80)
	device := h.next(80)
	date := h.next(8)
	clock := h.next(8)
	h.next(8) // header byte count, recomputed below
	reserved := h.next(44)
	nRecords, err := strconv.Atoi(h.next(8))
	if err != nil || nRecords < 0 {
		return nil, fmt.Errorf("invalid record count")
	}
	recDuration, err := strconv.ParseFloat(h.next(8), 64)
	if err != nil || recDuration <= 0 {
		return nil, fmt.Errorf("invalid record duration")
	}
	ns, err := strconv.Atoi(h.next(4))
	if err != nil || ns <= 0 {
		return nil, fmt.Errorf("invalid signal count")
	}

	sigs := make([]byte, ns*signalHeaderSize)
	if _, err := io.ReadFull(br, sigs); err != nil {
		return nil, fmt.Errorf("read signal headers: %w", err)
	}
	s := fieldScanner{buf: sigs}
	channels := make([]eeg.Channel, ns)
	ranges := make([]signalRange, ns)
	sprs := make([]int, ns)
	for i := 0; i < ns; i++ {
		channels[i] = parseLabel(s.next(16))
	}
	s.skip(ns * 80) // transducer
	for i := 0; i < ns; i++ {
		channels[i].Unit = s.next(8)
	}
	for i := 0; i < ns; i++ {
		if ranges[i].physMin, err = strconv.ParseFloat(s.next(8), 64); err != nil {
			return nil, fmt.Errorf("signal %d physical minimum: %w", i, err)
		}
	}
	for i := 0; i < ns; i++ {
		if ranges[i].physMax, err = strconv.ParseFloat(s.next(8), 64); err != nil {
			return nil, fmt.Errorf("signal %d physical maximum: %w", i, err)
		}
	}
	for i := 0; i < ns; i++ {
		if ranges[i].digMin, err = strconv.Atoi(s.next(8)); err != nil {
			return nil, fmt.Errorf("signal %d digital minimum: %w", i, err)
		}
	}
	for i := 0; i < ns; i++ {
		if ranges[i].digMax, err = strconv.Atoi(s.next(8)); err != nil {
			return nil, fmt.Errorf("signal %d digital maximum: %w", i, err)
		}
		if ranges[i].digMax == ranges[i].digMin {
			return nil, fmt.Errorf("signal %d has a degenerate digital range", i)
		}
	}
	s.skip(ns * 80) // prefiltering
	for i := 0; i < ns; i++ {
		if sprs[i], err = strconv.Atoi(s.next(8)); err != nil || sprs[i] <= 0 {
			return nil, fmt.Errorf("signal %d samples per record: invalid", i)
		}
		if sprs[i] != sprs[0] {
			return nil, fmt.Errorf("mixed per-signal sample rates are not supported")
		}
	}

	spr := sprs[0]
	rate := float64(spr) / recDuration
	total := nRecords * spr
	nSamples := total
	if v, ok := strings.CutPrefix(reserved, "NS="); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > total {
			return nil, fmt.Errorf("invalid padded sample count %q", reserved)
		}
		nSamples = n
	}

	data := make([][]float64, ns)
	for i := range data {
		data[i] = make([]float64, 0, total)
	}
	record := make([]byte, spr*2)
	for rec := 0; rec < nRecords; rec++ {
		for sig := 0; sig < ns; sig++ {
			if _, err := io.ReadFull(br, record); err != nil {
				return nil, fmt.Errorf("read data record %d: %w", rec, err)
			}
			for k := 0; k < spr; k++ {
				d := int16(binary.LittleEndian.Uint16(record[k*2:]))
				data[sig] = append(data[sig], ranges[sig].toPhysical(d))
			}
		}
	}
	for i := range data {
		data[i] = data[i][:nSamples]
	}

	raw, err := eeg.NewRaw(channels, rate, data)
	if err != nil {
		return nil, err
	}
	raw.Info.Subject = zeroX(subject)
	raw.Info.Device = zeroX(device)
	if t, err := time.Parse(dateOnly+" "+timeOnly, date+" "+clock); err == nil && !t.Equal(unknownStart) {
		raw.Info.StartTime = t
	}
	return raw, nil
}

// fieldScanner walks fixed-width ASCII fields, trimming padding.
type fieldScanner struct {
	buf []byte
	off int
}

func (f *fieldScanner) next(width int) string {
	s := strings.TrimSpace(string(f.buf[f.off : f.off+width]))
	f.off += width
	return s
}

func (f *fieldScanner) skip(n int) { f.off += n }

func zeroX(s string) string {
	if s == "X" {
		return ""
	}
	return s
}
