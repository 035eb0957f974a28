package bids

import (
	"fmt"
	"path/filepath"
	"strings"

	"lossless/internal/textutil"
)

// Path identifies one file inside a BIDS dataset by its entities. The zero
// value is invalid; Subject, Suffix, and Extension are the minimum for a
// concrete file.
type Path struct {
	Root        string
	Subject     string
	Session     string
	Task        string
	Acquisition string
	Run         string
	Suffix      string
	Datatype    string
	Extension   string
}

// entity pairs up the BIDS key order for filenames.
type entity struct {
	key   string
	value string
}

func (p Path) entities() []entity {
	return []entity{
		{"sub", p.Subject},
		{"ses", p.Session},
		{"task", p.Task},
		{"acq", p.Acquisition},
		{"run", p.Run},
	}
}

// Validate checks that the labels are legal: subject present, every label
// strictly alphanumeric.
func (p Path) Validate() error {
	if p.Subject == "" {
		return fmt.Errorf("path needs a subject")
	}
	for _, e := range p.entities() {
		if e.value == "" {
			continue
		}
		if !textutil.IsBIDSLabel(e.value) {
			if folded := textutil.BIDSLabel(e.value); folded != "" {
				return fmt.Errorf("%s label %q is not alphanumeric (did you mean %q?)", e.key, e.value, folded)
			}
			return fmt.Errorf("%s label %q is not alphanumeric", e.key, e.value)
		}
	}
	return nil
}

// Directory renders the directory that holds the file:
// root/sub-X[/ses-Y][/datatype].
func (p Path) Directory() string {
	parts := []string{p.Root, "sub-" + p.Subject}
	if p.Session != "" {
		parts = append(parts, "ses-"+p.Session)
	}
	if p.Datatype != "" {
		parts = append(parts, p.Datatype)
	}
	return filepath.Join(parts...)
}

// Basename renders the filename: entity pairs in BIDS order, then the
// suffix and extension.
func (p Path) Basename() string {
	var b strings.Builder
	for _, e := range p.entities() {
		if e.value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		b.WriteString(e.key)
		b.WriteByte('-')
		b.WriteString(e.value)
	}
	if p.Suffix != "" {
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		b.WriteString(p.Suffix)
	}
	b.WriteString(p.Extension)
	return b.String()
}

// FPath renders the full path to the file.
func (p Path) FPath() string {
	return filepath.Join(p.Directory(), p.Basename())
}

func (p Path) String() string { return p.FPath() }

// WithSuffix returns a copy pointing at a sibling file with another suffix
// and extension, the way sidecars sit next to their data file.
func (p Path) WithSuffix(suffix, extension string) Path {
	p.Suffix = suffix
	p.Extension = extension
	return p
}

// ParseBasename recovers the entities from a BIDS filename. Unknown entity
// keys are rejected; the suffix and extension are split off the final
// underscore segment.
func ParseBasename(name string) (Path, error) {
	ext := ""
	if i := strings.IndexByte(name, '.'); i >= 0 {
		ext = name[i:]
		name = name[:i]
	}
	if name == "" {
		return Path{}, fmt.Errorf("empty filename")
	}

	var p Path
	p.Extension = ext
	segments := strings.Split(name, "_")
	for i, seg := range segments {
		key, value, found := strings.Cut(seg, "-")
		if !found {
			if i != len(segments)-1 {
				return Path{}, fmt.Errorf("entity %q has no value", seg)
			}
			p.Suffix = seg
			return p, nil
		}
		if value == "" {
			return Path{}, fmt.Errorf("entity %q has no value", seg)
		}
		switch key {
		case "sub":
			p.Subject = value
		case "ses":
			p.Session = value
		case "task":
			p.Task = value
		case "acq":
			p.Acquisition = value
		case "run":
			p.Run = value
		default:
			return Path{}, fmt.Errorf("unknown entity %q", key)
		}
	}
	return Path{}, fmt.Errorf("filename %q has no suffix", name)
}

// FromRecord builds a path from a parameter record. Recognized columns are
// the entity names plus task, datatype, suffix; everything else is an error
// so typos in parameter files surface instead of silently dropping.
func FromRecord(rec map[string]string, root string) (Path, error) {
	p := Path{Root: root, Datatype: "eeg", Suffix: "eeg", Extension: DataExtension}
	for key, value := range rec {
		if value == "" {
			continue
		}
		switch key {
		case "subject":
			p.Subject = value
		case "session":
			p.Session = value
		case "task":
			p.Task = value
		case "acquisition":
			p.Acquisition = value
		case "run":
			p.Run = value
		case "datatype":
			p.Datatype = value
		case "suffix":
			p.Suffix = value
		default:
			return Path{}, fmt.Errorf("unknown path parameter %q", key)
		}
	}
	if err := p.Validate(); err != nil {
		return Path{}, err
	}
	return p, nil
}
