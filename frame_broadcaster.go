package gnuplotter

import (
	"context"
	"runtime/trace"
	"sync"

	"github.com/sirupsen/logrus"
)

// Frame is one rendered state of the live preview.
type Frame struct {
	Seq    uint32
	SVG    []byte
	Script string

	streamEnded bool
	streamErr   error
}

// FrameBroadcaster fans rendered frames out to the preview clients. It
// keeps the latest frame so that a client connecting late starts with the
// current picture.
type FrameBroadcaster struct {
	mutex sync.Mutex

	// Channels should be buffered; a full channel blocks every client.
	channelsForLiveUpdate []chan<- Frame

	latest *ThreadUnsafeRing[Frame]
	end    *Frame

	numFramesEmitted int

	logger logrus.FieldLogger
}

func NewFrameBroadcaster() *FrameBroadcaster {
	return &FrameBroadcaster{
		channelsForLiveUpdate: make([]chan<- Frame, 0),
		latest:                NewRing[Frame](1),
		logger:                logrus.WithField("tag", "FrameBroadcaster"),
	}
}

// RegisterChannel sends the latest frame (and the end marker, if the
// stream is over) to c, then adds c to the live update list. Both happen
// under the lock so no frame published in between is lost.
func (b *FrameBroadcaster) RegisterChannel(ctx context.Context, c chan<- Frame) {
	traceCtx, task := trace.NewTask(ctx, "RegisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	for _, f := range b.latest.ReadAllOrdered() {
		c <- f
	}
	if b.end != nil {
		c <- *b.end
	}

	b.channelsForLiveUpdate = append(b.channelsForLiveUpdate, c)

	b.logger.WithField("channels", len(b.channelsForLiveUpdate)).Info("registered channel")
}

// DeregisterChannel stops updates to c. c must not be closed before this
// returns.
func (b *FrameBroadcaster) DeregisterChannel(ctx context.Context, c chan<- Frame) {
	traceCtx, task := trace.NewTask(ctx, "DeregisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	b.channelsForLiveUpdate = Filter(b.channelsForLiveUpdate, func(channel chan<- Frame) bool {
		return channel != c
	})
	b.logger.WithField("channels", len(b.channelsForLiveUpdate)).Info("deregistered channel")
}

// Publish caches f as the latest frame and sends it to every client.
func (b *FrameBroadcaster) Publish(ctx context.Context, f Frame) {
	traceCtx, task := trace.NewTask(ctx, "Publish")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	b.numFramesEmitted++
	b.latest.Push(f)

	b.logger.WithFields(logrus.Fields{
		"seq":   f.Seq,
		"bytes": len(f.SVG),
	}).Debug("new frame")

	trace.WithRegion(traceCtx, "Broadcast", func() {
		for _, c := range b.channelsForLiveUpdate {
			c <- f
		}
	})
}

// End marks the stream as finished. Registered and future clients receive
// an end frame carrying err.
func (b *FrameBroadcaster) End(ctx context.Context, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	end := Frame{streamEnded: true, streamErr: err}
	b.end = &end
	for _, c := range b.channelsForLiveUpdate {
		c <- end
	}

	logger := b.logger.WithField("numFramesEmitted", b.numFramesEmitted)
	if err != nil {
		logger = logger.WithError(err)
	}
	logger.Info("frame stream ended")
}

// Latest returns the most recent frame, if any was published.
func (b *FrameBroadcaster) Latest() (Frame, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frames := b.latest.ReadAllOrdered()
	if len(frames) == 0 {
		return Frame{}, false
	}
	return frames[len(frames)-1], true
}
