// Package notifications pushes workflow milestones to an ntfy topic.
//
// Event rendering, per-stage enable toggles, and the dedup window for
// mechanically repeating events all live here; stage code only calls
// Publish. When no topic is configured the constructor hands back a
// no-op service, so callers never branch on whether notifications are
// on.
package notifications
