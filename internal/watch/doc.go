// Package watch coordinates the long-running `lossless watch` process.
//
// It wires configuration, queue storage, the workflow manager, and the intake
// monitor into a single lifecycle with flock-based locking so two processes
// never share one queue database. The monitor scans the intake directory on an
// interval and enqueues settled recordings; the workflow manager processes
// whatever lands in the queue.
//
// Keep orchestration logic here: individual workflow stages live in their own
// packages while this package focuses on startup, shutdown, and intake.
package watch
