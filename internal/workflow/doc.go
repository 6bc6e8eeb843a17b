// Package workflow drains the job queue through the registered stage
// handlers.
//
// The Manager runs one worker pool per queue lane: discovery (serialized,
// quota-bound provider sync), enrichment (matching, promotion, stats
// refresh), and maintenance (cleanup). Each worker claims the oldest
// runnable job in its lane, feeds it to the handler registered for the job
// type, and settles the outcome: success completes the job, a rate-limit
// error reschedules it at the provider-supplied time without burning an
// attempt, everything else goes through the exponential-backoff retry
// policy. A heartbeat loop keeps claimed jobs visibly alive so a crashed
// worker's jobs are reclaimed.
//
// Add new pipeline stages by extending StageSet and mapping the new job
// type onto a lane in ConfigureStages; this package is the authoritative
// home for that coordination logic.
package workflow
