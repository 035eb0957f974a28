package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"lossless/internal/config"
)

const userAgent = "lossless/0.4.0"

// Event enumerates the workflow milestones that can be pushed to the user.
type Event string

const (
	EventRecordingDetected   Event = "recording_detected"
	EventIngestCompleted     Event = "ingest_completed"
	EventPreprocessCompleted Event = "preprocess_completed"
	EventReportCompleted     Event = "report_completed"
	EventQueueStarted        Event = "queue_started"
	EventQueueCompleted      Event = "queue_completed"
	EventError               Event = "error"
)

// Payload carries event-specific fields used to render the message.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Test(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dedup := time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		prefs:       cfg.Notifications,
		dedupWindow: dedup,
		lastSent:    make(map[string]time.Time),
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	prefs       config.Notifications
	dedupWindow time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// Publish renders the event into an ntfy push. Events disabled by config are
// dropped silently, as are repeats of the same detection or error message
// inside the dedup window.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	if n.suppressed(event, msg) {
		return nil
	}
	return n.send(ctx, msg)
}

// Test sends a fixed message so users can verify their topic wiring.
func (n *ntfyService) Test(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "Lossless - Test",
		body:     "Notification system test",
		tags:     []string{"lossless", "test"},
		priority: "low",
	})
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventRecordingDetected, EventIngestCompleted:
		return n.prefs.Ingest
	case EventPreprocessCompleted:
		return n.prefs.Preprocess
	case EventReportCompleted:
		return n.prefs.Report
	case EventError:
		return n.prefs.Errors
	case EventQueueStarted, EventQueueCompleted:
		return true
	default:
		return false
	}
}

// suppressed drops a push when the identical detection or error fired within
// the dedup window. Retry loops and rescans repeat these events mechanically;
// milestone events stay unthrottled.
func (n *ntfyService) suppressed(event Event, msg message) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	switch event {
	case EventRecordingDetected, EventError:
	default:
		return false
	}

	key := string(event) + "|" + msg.body
	now := time.Now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	for k, v := range n.lastSent {
		if now.Sub(v) >= n.dedupWindow {
			delete(n.lastSent, k)
		}
	}
	n.lastSent[key] = now
	return false
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRecordingDetected:
		msg := message{
			title: "Lossless - Recording Detected",
			body:  fmt.Sprintf("New recording: %s", payloadString(payload, "recording", "path")),
			tags:  []string{"lossless", "intake", "detected"},
		}
		return msg, true
	case EventIngestCompleted:
		msg := message{
			title: "Lossless - Ingested",
			body:  fmt.Sprintf("Ingested: %s", payloadString(payload, "recording")),
			tags:  []string{"lossless", "ingest", "completed"},
		}
		return msg, true
	case EventPreprocessCompleted:
		body := fmt.Sprintf("Preprocessing complete: %s", payloadString(payload, "recording"))
		if flags := payloadString(payload, "flags"); flags != "" {
			body = fmt.Sprintf("%s\nFlags: %s", body, flags)
		}
		msg := message{
			title: "Lossless - Preprocessed",
			body:  body,
			tags:  []string{"lossless", "preprocess", "completed"},
		}
		return msg, true
	case EventReportCompleted:
		body := fmt.Sprintf("QC report ready: %s", payloadString(payload, "recording"))
		if file := payloadString(payload, "report"); file != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, file)
		}
		msg := message{
			title:    "Lossless - Report Ready",
			body:     body,
			tags:     []string{"lossless", "report", "completed"},
			priority: "high",
		}
		return msg, true
	case EventQueueStarted:
		msg := message{
			title: "Lossless - Run Started",
			body:  fmt.Sprintf("Started processing run with %d recordings", payloadInt(payload, "count")),
			tags:  []string{"lossless", "queue", "started"},
		}
		return msg, true
	case EventQueueCompleted:
		return renderQueueCompleted(payload), true
	case EventError:
		return renderError(payload), true
	default:
		return message{}, false
	}
}

func renderQueueCompleted(payload Payload) message {
	processed := payloadInt(payload, "processed")
	failed := payloadInt(payload, "failed")
	duration := payloadDuration(payload, "duration").Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, body string
	if failed == 0 {
		title = "Lossless - Run Complete"
		body = fmt.Sprintf("Run complete: %d recordings processed in %s", processed, durationText)
	} else {
		title = "Lossless - Run Complete (with errors)"
		body = fmt.Sprintf("Run complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}
	return message{
		title: title,
		body:  body,
		tags:  []string{"lossless", "queue", "completed"},
	}
}

func renderError(payload Payload) message {
	var builder strings.Builder
	builder.WriteString("Error")
	if label := payloadString(payload, "context"); label != "" {
		builder.WriteString(" with ")
		builder.WriteString(label)
	}
	builder.WriteString(": ")
	switch v := payload["error"].(type) {
	case error:
		builder.WriteString(strings.TrimSpace(v.Error()))
	case string:
		builder.WriteString(strings.TrimSpace(v))
	default:
		builder.WriteString("unknown")
	}
	return message{
		title:    "Lossless - Error",
		body:     builder.String(),
		tags:     []string{"lossless", "error", "alert"},
		priority: "high",
	}
}

func payloadString(payload Payload, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func payloadInt(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func payloadDuration(payload Payload, key string) time.Duration {
	if v, ok := payload[key].(time.Duration); ok {
		return v
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

func (noopService) Test(context.Context) error { return nil }
