// Package jobqueue is the persistent queue runtime: three bounded lanes of
// jobs with deterministic keys, claim/complete transitions, retry with
// backoff, and heartbeat-based reclamation.
package jobqueue
