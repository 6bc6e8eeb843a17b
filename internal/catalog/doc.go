// Package catalog persists the shared relational store: channel owners,
// staged and promoted videos, categories, and the sync-job audit trail.
package catalog
