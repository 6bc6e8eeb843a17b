// Package logging builds the shared slog logger and provides typed attribute
// helpers plus the standardized structured field names used across the
// pipeline.
package logging
