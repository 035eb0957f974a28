package queue

import (
	"path/filepath"
	"strings"
)

// Entities identifies a recording within a BIDS dataset. Subject is the only
// entity required for a valid name; the rest refine it when present. Values
// are bare labels without their key prefix (Subject "01", not "sub-01").
type Entities struct {
	Subject string
	Session string
	Task    string
	Run     string
}

// EntitiesFromItem collects the BIDS entities stored on a queue item.
func EntitiesFromItem(item *Item) Entities {
	if item == nil {
		return Entities{}
	}
	return Entities{
		Subject: item.Subject,
		Session: item.Session,
		Task:    item.Task,
		Run:     item.RunLabel,
	}
}

// ApplyTo copies the entities onto a queue item.
func (e Entities) ApplyTo(item *Item) {
	if item == nil {
		return
	}
	item.Subject = e.Subject
	item.Session = e.Session
	item.Task = e.Task
	item.RunLabel = e.Run
}

// IsZero reports whether no entity is set.
func (e Entities) IsZero() bool {
	return e.Subject == "" && e.Session == "" && e.Task == "" && e.Run == ""
}

// Label renders a human-readable identifier such as "sub-01 task-rest run-01".
// Items without entities fall back to their source filename elsewhere.
func (e Entities) Label() string {
	return strings.Join(e.parts(), " ")
}

// BaseName renders the BIDS filename stem such as "sub-01_task-rest_run-01".
func (e Entities) BaseName() string {
	return strings.Join(e.parts(), "_")
}

func (e Entities) parts() []string {
	var parts []string
	if v := strings.TrimSpace(e.Subject); v != "" {
		parts = append(parts, "sub-"+v)
	}
	if v := strings.TrimSpace(e.Session); v != "" {
		parts = append(parts, "ses-"+v)
	}
	if v := strings.TrimSpace(e.Task); v != "" {
		parts = append(parts, "task-"+v)
	}
	if v := strings.TrimSpace(e.Run); v != "" {
		parts = append(parts, "run-"+v)
	}
	return parts
}

// InferEntitiesFromPath extracts BIDS entities from a filename that follows
// the key-value underscore convention, such as sub-01_ses-a_task-rest_eeg.edf.
// Unrecognized tokens are ignored so non-BIDS filenames yield zero entities.
func InferEntitiesFromPath(path string) Entities {
	stem := filepath.Base(path)
	if ext := filepath.Ext(stem); ext != "" {
		stem = strings.TrimSuffix(stem, ext)
	}
	var e Entities
	for _, token := range strings.Split(stem, "_") {
		key, value, ok := strings.Cut(token, "-")
		if !ok || value == "" {
			continue
		}
		switch strings.ToLower(key) {
		case "sub":
			e.Subject = value
		case "ses":
			e.Session = value
		case "task":
			e.Task = value
		case "run":
			e.Run = value
		}
	}
	return e
}
