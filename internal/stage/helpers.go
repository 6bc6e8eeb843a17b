package stage

import (
	"encoding/json"

	"bandstand/internal/jobqueue"
	"bandstand/internal/services"
)

// DecodePayload unmarshals a job's payload into out.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func DecodePayload(job *jobqueue.Job, out any) error {
	if len(job.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(job.Payload, out); err != nil {
		return services.Wrap(
			services.ErrValidation, "stage", "decode payload",
			"Job payload missing or invalid; re-enqueue the job", err)
	}
	return nil
}
