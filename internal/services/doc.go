// Package services carries the plumbing shared by every stage handler:
// context keys for recording, stage, lane, and run identifiers, and the
// sentinel error taxonomy with Wrap and FailureStatus that decide
// whether a failed recording lands in failed or review.
package services
