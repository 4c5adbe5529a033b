package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Swind/go-frame-executor/pipeline"
)

var errInjected = errors.New("injected source failure")

// syntheticSource generates fixed-size samples with increasing timestamps.
type syntheticSource struct {
	count      int
	frameUs    int64
	failAt     int
	next       int
	keyFrameAt int
}

func newSyntheticSource(count int, frameDuration time.Duration, failAt int) *syntheticSource {
	return &syntheticSource{
		count:      count,
		frameUs:    frameDuration.Microseconds(),
		failAt:     failAt,
		keyFrameAt: 30,
	}
}

func (s *syntheticSource) ReadSample(buf *pipeline.Buffer) error {
	if s.next == s.failAt {
		return fmt.Errorf("sample %d: %w", s.next, errInjected)
	}
	if s.next >= s.count {
		return io.EOF
	}

	buf.Data = binary.BigEndian.AppendUint64(buf.Data[:0], uint64(s.next))
	buf.TimeUs = int64(s.next) * s.frameUs
	buf.Flags = 0
	if s.next%s.keyFrameAt == 0 {
		buf.Flags |= pipeline.FlagKeyFrame
	}
	s.next++
	return nil
}
