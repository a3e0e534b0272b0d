package workers

import (
	"context"
	"time"
)

// JobWorker adapts a Start/Stop job to the Worker interface.
type JobWorker struct {
	job      Job
	interval time.Duration
}

// NewJobWorker returns a worker running job every interval.
func NewJobWorker(job Job, interval time.Duration) *JobWorker {
	return &JobWorker{job: job, interval: interval}
}

func (w *JobWorker) Run(ctx context.Context) error {
	w.job.Start(ctx, w.interval)
	<-ctx.Done()
	w.job.Stop()
	return nil
}
