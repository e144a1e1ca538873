package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Job is a single camera handled by RunAll
type Job struct {
	Source  Source
	Session *Session
	Sink    Sink
	Options RunOptions
}

// RunAll runs every job with Run in its own goroutine and waits for all of them.
// The first failing camera cancels the others and its error is returned.
// A camera which ends or is stopped by its sink does not affect the rest.
func RunAll(ctx context.Context, jobs []Job) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		group.Go(func() error {
			if err := Run(ctx, job.Source, job.Session, job.Sink, job.Options); err != nil {
				return errors.Wrapf(err, "camera '%s'", job.Session.Name())
			}
			return nil
		})
	}
	return group.Wait()
}
