// Package classify derives category, event, quality, and tag metadata from
// video text. Every function is pure: identical input always produces
// identical output, and nothing here performs I/O.
package classify
