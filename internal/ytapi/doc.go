// Package ytapi wraps the external video-hosting provider API. The client
// tracks a rolling per-minute call window and a daily quota-unit spend, and
// classifies provider failures into quota exhaustion, rate limiting, and
// generic errors so callers can pick the right recovery behavior.
//
// Quota accounting is process local. The daemon's file lock keeps a single
// instance per data directory, so no shared counter is needed; running
// multiple daemons against one provider key would double-spend the budget.
package ytapi
