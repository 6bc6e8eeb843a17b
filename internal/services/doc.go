// Package services holds cross-cutting helpers shared by pipeline workers:
// the error taxonomy used to classify provider and store failures, and the
// context annotations that flow job identity into structured logs.
package services
