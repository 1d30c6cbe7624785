package jobs

import "context"

// Store persists job states for queue restart recovery.
type Store interface {
	LoadJobs(ctx context.Context) ([]*Job, error)
	UpsertJob(ctx context.Context, job *Job) error
	DeleteJob(ctx context.Context, jobID string) error
	// CompareAndSwapStatus moves a job from one status to another only if it
	// is still in from. It reports whether the swap happened.
	CompareAndSwapStatus(ctx context.Context, jobID string, from, to Status) (bool, error)
}
