// Package discovery enumerates tracked channels through the provider API
// and upserts staged videos. One worker flavor serves both organization and
// independent-creator channels; a run walks its sources strictly one at a
// time so the daily quota check between sources stays meaningful.
package discovery
