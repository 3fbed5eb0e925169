package linking

import "context"

// ReaperJob closes abandoned dialogs. It is scheduled on the worker pool.
type ReaperJob struct {
	svc Service
}

// NewReaperJob creates a reaper for svc
func NewReaperJob(svc Service) *ReaperJob {
	return &ReaperJob{svc: svc}
}

// Process runs one reaper pass
func (j *ReaperJob) Process(ctx context.Context) error {
	j.svc.ReapDialogs(ctx)
	return nil
}
