package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Swind/go-frame-executor/core"
)

// Submitter queues a task on the worker. *core.TaskExecutor satisfies it.
type Submitter interface {
	Submit(task core.Task)
}

// Loop moves samples from a source through a pipeline into a muxer, one
// sample per worker turn. Every step resubmits the next one, so other tasks
// (high-priority ones included) interleave with the stream.
type Loop struct {
	submitter Submitter
	source    SampleSource
	pipeline  *EncodedSamplePipeline
	muxer     Muxer

	inputEnded bool
	written    int
	done       chan struct{}
}

func NewLoop(submitter Submitter, source SampleSource, pipeline *EncodedSamplePipeline, muxer Muxer) *Loop {
	return &Loop{
		submitter: submitter,
		source:    source,
		pipeline:  pipeline,
		muxer:     muxer,
		done:      make(chan struct{}),
	}
}

// Start submits the first step.
func (l *Loop) Start() {
	l.submitter.Submit(l.step)
}

// Done is closed once the end of stream reached the muxer. It stays open if
// a step fails; the failure goes to the executor's error listener.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Written returns the number of samples handed to the muxer. Only read it
// from the worker or after Done.
func (l *Loop) Written() int {
	return l.written
}

func (l *Loop) step(ctx context.Context) error {
	if buf := l.pipeline.DequeueInputBuffer(); buf != nil && !l.inputEnded {
		if err := l.source.ReadSample(buf); err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("read sample %d: %w", l.written, err)
			}
			buf.SetEndOfStream()
			l.inputEnded = true
		}
		l.pipeline.QueueInputBuffer()
	}

	wrote, err := l.pipeline.DrainToMuxer(l.muxer)
	if err != nil {
		return fmt.Errorf("mux sample %d: %w", l.written, err)
	}
	if wrote {
		l.written++
	}

	if l.pipeline.IsEnded() {
		close(l.done)
		return nil
	}
	l.submitter.Submit(l.step)
	return nil
}
