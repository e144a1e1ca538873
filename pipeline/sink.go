package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/hybridgroup/mjpeg"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrStop is returned by a sink to end the run without error
var ErrStop = errors.New("stop requested")

// Sink consumes annotated frames
type Sink interface {
	Consume(frame gocv.Mat, result FrameResult) error
	Close() error
}

// DiscardSink drops frames
type DiscardSink struct{}

// Consume implements Sink
func (DiscardSink) Consume(gocv.Mat, FrameResult) error { return nil }

// Close implements Sink
func (DiscardSink) Close() error { return nil }

// MultiSink fans frames out to several sinks in order
type MultiSink []Sink

// Consume implements Sink. First error (ErrStop included) wins, remaining sinks still get the frame.
func (sinks MultiSink) Consume(frame gocv.Mat, result FrameResult) error {
	var first error
	for _, sink := range sinks {
		if err := sink.Consume(frame, result); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close implements Sink
func (sinks MultiSink) Close() error {
	var first error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WindowSink shows frames in OpenCV window. Keys 'q' and ESC stop the run, 'a' acknowledges camera alert.
type WindowSink struct {
	window *gocv.Window
	// Delay is WaitKey delay, ms. Zero waits for a key press.
	Delay int
	// OnAcknowledge is called on 'a' key press
	OnAcknowledge func()
}

// NewWindowSink opens window
func NewWindowSink(title string) *WindowSink {
	return &WindowSink{
		window: gocv.NewWindow(title),
		Delay:  1,
	}
}

// Consume implements Sink
func (w *WindowSink) Consume(frame gocv.Mat, _ FrameResult) error {
	w.window.IMShow(frame)
	return w.handleKey(w.window.WaitKey(w.Delay))
}

func (w *WindowSink) handleKey(key int) error {
	switch key {
	case 'q', 27:
		return ErrStop
	case 'a':
		if w.OnAcknowledge != nil {
			w.OnAcknowledge()
		}
	}
	return nil
}

// Close implements Sink
func (w *WindowSink) Close() error {
	return w.window.Close()
}

// MJPEGSink serves annotated frames as multipart JPEG stream over HTTP
type MJPEGSink struct {
	stream *mjpeg.Stream
	server *http.Server
}

// NewMJPEGSink starts HTTP server on addr. Stream is served at "/".
func NewMJPEGSink(addr string) *MJPEGSink {
	stream := mjpeg.NewStream()
	mux := http.NewServeMux()
	mux.Handle("/", stream)
	sink := &MJPEGSink{
		stream: stream,
		server: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 60 * time.Second,
		},
	}
	go func() {
		logrus.WithField("addr", addr).Info("MJPEG stream started")
		if err := sink.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("MJPEG server failed")
		}
	}()
	return sink
}

// Consume implements Sink
func (m *MJPEGSink) Consume(frame gocv.Mat, _ FrameResult) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return errors.Wrap(err, "Can't encode frame")
	}
	defer buf.Close()
	m.stream.UpdateJPEG(buf.GetBytes())
	return nil
}

// Close implements Sink
func (m *MJPEGSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}

// ImageSink writes the latest frame to a file
type ImageSink struct {
	Path string
}

// Consume implements Sink
func (s ImageSink) Consume(frame gocv.Mat, _ FrameResult) error {
	if ok := gocv.IMWrite(s.Path, frame); !ok {
		return errors.Errorf("Can't write image '%s'", s.Path)
	}
	return nil
}

// Close implements Sink
func (s ImageSink) Close() error { return nil }
