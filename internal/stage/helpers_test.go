package stage_test

import (
	"errors"
	"testing"

	"bandstand/internal/jobqueue"
	"bandstand/internal/services"
	"bandstand/internal/stage"
)

func TestDecodePayload(t *testing.T) {
	job := &jobqueue.Job{Payload: []byte(`{"source_kind":"organization","source_id":7}`)}
	var payload struct {
		SourceKind string `json:"source_kind"`
		SourceID   int64  `json:"source_id"`
	}
	if err := stage.DecodePayload(job, &payload); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if payload.SourceKind != "organization" || payload.SourceID != 7 {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestDecodePayloadInvalid(t *testing.T) {
	job := &jobqueue.Job{Payload: []byte(`{broken`)}
	var payload map[string]any
	err := stage.DecodePayload(job, &payload)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthConstructors(t *testing.T) {
	healthy := stage.Healthy("discovery")
	if !healthy.Ready || healthy.Name != "discovery" {
		t.Errorf("unexpected healthy record: %+v", healthy)
	}
	unhealthy := stage.Unhealthy("discovery", "provider unreachable")
	if unhealthy.Ready || unhealthy.Detail != "provider unreachable" {
		t.Errorf("unexpected unhealthy record: %+v", unhealthy)
	}
}
