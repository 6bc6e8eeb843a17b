// Package daemon coordinates the long-running bandstand process.
//
// It wires configuration, the catalog and queue stores, the workflow
// manager, and the scheduler into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon exposes the queue and
// catalog operations the CLI drives over IPC: status, job listings, manual
// stage triggers, source registration, and notification tests.
//
// Keep orchestration logic here: individual pipeline stages live in their
// own packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
