package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Capture reads frames from src into frames until the source ends or ctx is done.
// The receiver owns every frame it gets and must close it.
// With dropWhenFull a frame which does not fit into the channel is released at once, so a slow
// consumer never delays a live camera. Otherwise capture waits for room.
// frames is closed on return. Returns ctx error on cancellation, nil on end of stream.
func Capture(ctx context.Context, src Source, frames chan<- gocv.Mat, dropWhenFull bool) error {
	defer close(frames)
	read, dropped := 0, 0
	defer func() {
		logrus.WithFields(logrus.Fields{"read": read, "dropped": dropped}).Debug("Capture finished")
	}()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame := gocv.NewMat()
		if !src.Read(&frame) || frame.Empty() {
			frame.Close()
			return nil
		}
		read++
		if dropWhenFull {
			select {
			case frames <- frame:
			case <-ctx.Done():
				frame.Close()
				return ctx.Err()
			default:
				frame.Close()
				dropped++
			}
			continue
		}
		select {
		case frames <- frame:
		case <-ctx.Done():
			frame.Close()
			return ctx.Err()
		}
	}
}
