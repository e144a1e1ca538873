package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// RunOptions tunes Run
type RunOptions struct {
	// QueueSize is capacity of frame channel between capture and processing
	QueueSize int
	// DropWhenFull drops frames instead of slowing capture. Use for live cameras.
	DropWhenFull bool
}

// Run captures frames from src in a separate goroutine and processes them with session in order.
// Every processed frame is annotated and handed to sink. Run returns nil when the source ends,
// ctx is cancelled or sink returns ErrStop.
func Run(ctx context.Context, src Source, session *Session, sink Sink, options RunOptions) error {
	if options.QueueSize < 1 {
		options.QueueSize = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan gocv.Mat, options.QueueSize)
	captureDone := make(chan error, 1)
	go func() {
		captureDone <- Capture(ctx, src, frames, options.DropWhenFull)
	}()

	var runErr error
	for frame := range frames {
		runErr = processOne(session, sink, frame)
		if runErr != nil {
			break
		}
	}
	cancel()
	for frame := range frames {
		frame.Close()
	}
	captureErr := <-captureDone

	if errors.Is(runErr, ErrStop) {
		return nil
	}
	if runErr != nil {
		return runErr
	}
	if captureErr != nil && !errors.Is(captureErr, context.Canceled) && !errors.Is(captureErr, context.DeadlineExceeded) {
		return errors.Wrap(captureErr, "capture failed")
	}
	return nil
}

func processOne(session *Session, sink Sink, frame gocv.Mat) error {
	defer frame.Close()
	result, err := session.ProcessFrame(frame)
	if err != nil {
		return errors.Wrapf(err, "frame %d", result.Frame)
	}
	session.Annotate(&frame, result)
	return sink.Consume(frame, result)
}
