package stage

import (
	"context"

	"bandstand/internal/jobqueue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *jobqueue.Job) error
	Execute(context.Context, *jobqueue.Job) error
	HealthCheck(context.Context) Health
}
