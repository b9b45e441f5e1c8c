package ingest

import (
	"context"
	"errors"
	"fmt"

	"body-measure/models"
)

// ErrFrameRead marks a frame source that ran dry or failed. Capture treats
// it as the end of the session, never as a crash.
var ErrFrameRead = errors.New("frame read failure")

// ErrEndOfStream is the ErrFrameRead a source reports when it simply ran out
// of frames.
var ErrEndOfStream = fmt.Errorf("%w: end of stream", ErrFrameRead)

// FrameSource produces frames in capture order on a channel that is closed
// when the source ends. Err reports why it ended; it wraps ErrFrameRead for
// end-of-stream and read errors and is nil after a cancelled context.
type FrameSource interface {
	Start(ctx context.Context)
	Frames() <-chan *models.Frame
	Err() error
	Stats() (produced, dropped uint64)
}

// errHolder is embedded by sources to publish their terminal error once.
type errHolder struct {
	done chan struct{}
	err  error
}

func newErrHolder() errHolder { return errHolder{done: make(chan struct{})} }

func (h *errHolder) finish(err error) {
	h.err = err
	close(h.done)
}

// Err returns the terminal error. It is only meaningful after the frames
// channel has been closed.
func (h *errHolder) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}
