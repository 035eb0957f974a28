package textutil_test

import (
	"testing"

	"lossless/internal/textutil"
)

func TestBIDSLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"pd6", "pd6"},
		{"sub-pd6", "subpd6"},
		{"Rest Task", "RestTask"},
		{"café", "cafe"},
		{"Müller01", "Muller01"},
		{"  off  ", "off"},
		{"éàü", "eau"},
		{"___", ""},
	}
	for _, tc := range cases {
		if got := textutil.BIDSLabel(tc.in); got != tc.want {
			t.Errorf("BIDSLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsBIDSLabel(t *testing.T) {
	if !textutil.IsBIDSLabel("pd6") {
		t.Error("IsBIDSLabel(pd6) = false")
	}
	if textutil.IsBIDSLabel("sub-pd6") {
		t.Error("IsBIDSLabel(sub-pd6) = true, hyphen is not allowed")
	}
	if textutil.IsBIDSLabel("") {
		t.Error("IsBIDSLabel(\"\") = true")
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report: run/01", "report- run-01"},
		{"plain.html", "plain.html"},
		{"what?", "what"},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
