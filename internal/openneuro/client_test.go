package openneuro_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lossless/internal/openneuro"
)

type fakeEntry struct {
	ID        string   `json:"id"`
	Filename  string   `json:"filename"`
	Size      int64    `json:"size"`
	Directory bool     `json:"directory"`
	URLs      []string `json:"urls"`
}

// newArchiveServer serves a snapshot file tree over the GraphQL shape the
// client queries, plus file bodies under /files/. Tree keys are directory
// ids; "" is the dataset root. Entry URLs are paths resolved against the
// server once it is listening.
func newArchiveServer(t *testing.T, trees map[string][]fakeEntry, contents map[string]string) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode graphql request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(req.Query, "latestSnapshot") {
			fmt.Fprint(w, `{"data":{"dataset":{"latestSnapshot":{"tag":"1.0.0"}}}}`)
			return
		}
		tree, _ := req.Variables["tree"].(string)
		entries := make([]fakeEntry, 0, len(trees[tree]))
		for _, entry := range trees[tree] {
			resolved := make([]string, len(entry.URLs))
			for i, u := range entry.URLs {
				resolved[i] = server.URL + u
			}
			entry.URLs = resolved
			entries = append(entries, entry)
		}
		payload := map[string]any{
			"data": map[string]any{"snapshot": map[string]any{"files": entries}},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode graphql response: %v", err)
		}
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/files/")
		content, ok := contents[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(content))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := openneuro.New("  "); err == nil {
		t.Fatal("expected error when endpoint missing")
	}
}

func TestDownloadDatasetFiltersAndSkips(t *testing.T) {
	description := `{"Name":"Test set","BIDSVersion":"1.8.0"}`
	recording := "edf-bytes-sub-pd6"
	other := "edf-bytes-sub-pd7"
	trees := map[string][]fakeEntry{
		"": {
			{ID: "f1", Filename: "dataset_description.json", Size: int64(len(description)), URLs: []string{"/files/dataset_description.json"}},
			{ID: "d6", Filename: "sub-pd6", Directory: true},
			{ID: "d7", Filename: "sub-pd7", Directory: true},
		},
		"d6": {
			{ID: "d6s", Filename: "ses-off", Directory: true},
		},
		"d6s": {
			{ID: "f2", Filename: "sub-pd6_ses-off_task-rest_eeg.edf", Size: int64(len(recording)), URLs: []string{"/files/rest.edf"}},
		},
		"d7": {
			{ID: "f3", Filename: "sub-pd7_task-rest_eeg.edf", Size: int64(len(other)), URLs: []string{"/files/other.edf"}},
		},
	}
	contents := map[string]string{
		"dataset_description.json": description,
		"rest.edf":                 recording,
		"other.edf":                other,
	}
	server := newArchiveServer(t, trees, contents)

	client, err := openneuro.New(server.URL+"/graphql", openneuro.WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	dest := t.TempDir()
	var updates []openneuro.ProgressUpdate
	summary, err := client.DownloadDataset(context.Background(), "ds002778", dest, openneuro.DownloadOptions{
		IncludePrefixes: []string{"sub-pd6"},
		Progress:        func(u openneuro.ProgressUpdate) { updates = append(updates, u) },
	})
	if err != nil {
		t.Fatalf("DownloadDataset returned error: %v", err)
	}
	if summary.Snapshot != "1.0.0" {
		t.Fatalf("expected latest snapshot tag, got %q", summary.Snapshot)
	}
	if summary.Files != 2 || summary.Downloaded != 2 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 progress updates, got %d", len(updates))
	}

	got, err := os.ReadFile(filepath.Join(dest, "sub-pd6", "ses-off", "sub-pd6_ses-off_task-rest_eeg.edf"))
	if err != nil {
		t.Fatalf("read downloaded recording: %v", err)
	}
	if string(got) != recording {
		t.Fatalf("unexpected recording content: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "dataset_description.json")); err != nil {
		t.Fatalf("expected dataset description alongside subset: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "sub-pd7")); !os.IsNotExist(err) {
		t.Fatal("expected excluded subject to be absent")
	}

	again, err := client.DownloadDataset(context.Background(), "ds002778", dest, openneuro.DownloadOptions{
		IncludePrefixes: []string{"sub-pd6"},
	})
	if err != nil {
		t.Fatalf("second DownloadDataset returned error: %v", err)
	}
	if again.Downloaded != 0 || again.Skipped != 2 {
		t.Fatalf("expected all files skipped on rerun, got %+v", again)
	}
}

func TestDownloadDatasetVerifiesSize(t *testing.T) {
	trees := map[string][]fakeEntry{
		"": {
			{ID: "f1", Filename: "sub-pd6_task-rest_eeg.edf", Size: 9999, URLs: []string{"/files/short.edf"}},
		},
	}
	contents := map[string]string{"short.edf": "too short"}
	server := newArchiveServer(t, trees, contents)

	client, err := openneuro.New(server.URL+"/graphql",
		openneuro.WithMaxRetries(0), openneuro.WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	dest := t.TempDir()
	_, err = client.DownloadDataset(context.Background(), "ds002778", dest, openneuro.DownloadOptions{Snapshot: "1.0.0"})
	if err == nil || !strings.Contains(err.Error(), "size mismatch") {
		t.Fatalf("expected size mismatch error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dest, "sub-pd6_task-rest_eeg.edf")); !os.IsNotExist(statErr) {
		t.Fatal("expected no file left behind after failed verification")
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"dataset":{"latestSnapshot":{"tag":"2.1.0"}}}}`)
	}))
	t.Cleanup(server.Close)

	client, err := openneuro.New(server.URL,
		openneuro.WithMaxRetries(3), openneuro.WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	tag, err := client.LatestSnapshot(context.Background(), "ds002778")
	if err != nil {
		t.Fatalf("LatestSnapshot returned error: %v", err)
	}
	if tag != "2.1.0" {
		t.Fatalf("unexpected tag %q", tag)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 API calls, got %d", calls.Load())
	}
}

func TestLatestSnapshotSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":null,"errors":[{"message":"dataset not found"}]}`)
	}))
	t.Cleanup(server.Close)

	client, err := openneuro.New(server.URL,
		openneuro.WithMaxRetries(0), openneuro.WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := client.LatestSnapshot(context.Background(), "ds999999"); err == nil || !strings.Contains(err.Error(), "dataset not found") {
		t.Fatalf("expected api error to surface, got %v", err)
	}
}
