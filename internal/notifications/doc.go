// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation posts JSON to the webhook configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The new-video event is the contract with the catalog's follower
// fan-out; run and error events exist for operators.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
