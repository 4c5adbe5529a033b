package pipeline

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrTrackEnded is returned when writing to a track that was ended.
	ErrTrackEnded = errors.New("track already ended")
	// ErrTimestampOrder is returned for a sample older than the previous one.
	ErrTimestampOrder = errors.New("sample timestamp went backwards")
)

// Muxer receives encoded samples per track.
type Muxer interface {
	// WriteSample writes data. The muxer must copy data if it keeps it.
	WriteSample(track int, data []byte, timeUs int64) error
	EndTrack(track int) error
}

// Sample is one sample written to a MemoryMuxer.
type Sample struct {
	Track  int
	Data   []byte
	TimeUs int64
}

// MemoryMuxer keeps written samples in memory.
type MemoryMuxer struct {
	samples []Sample
	lastUs  map[int]int64
	ended   map[int]bool
}

var _ Muxer = (*MemoryMuxer)(nil)

func NewMemoryMuxer() *MemoryMuxer {
	return &MemoryMuxer{
		lastUs: make(map[int]int64),
		ended:  make(map[int]bool),
	}
}

func (m *MemoryMuxer) WriteSample(track int, data []byte, timeUs int64) error {
	if m.ended[track] {
		return fmt.Errorf("write track %d: %w", track, ErrTrackEnded)
	}
	if last, ok := m.lastUs[track]; ok && timeUs < last {
		return fmt.Errorf("write track %d at %dus after %dus: %w", track, timeUs, last, ErrTimestampOrder)
	}
	m.lastUs[track] = timeUs
	m.samples = append(m.samples, Sample{
		Track:  track,
		Data:   append([]byte(nil), data...),
		TimeUs: timeUs,
	})
	return nil
}

func (m *MemoryMuxer) EndTrack(track int) error {
	if m.ended[track] {
		return fmt.Errorf("end track %d: %w", track, ErrTrackEnded)
	}
	m.ended[track] = true
	return nil
}

// Samples returns everything written so far.
func (m *MemoryMuxer) Samples() []Sample {
	return m.samples
}

// Ended reports whether track was ended.
func (m *MemoryMuxer) Ended(track int) bool {
	return m.ended[track]
}

// SampleSource produces encoded samples.
type SampleSource interface {
	// ReadSample fills buf with the next sample. It returns io.EOF once the
	// stream is exhausted.
	ReadSample(buf *Buffer) error
}

// SliceSource replays a fixed list of samples.
type SliceSource struct {
	samples []Sample
	next    int
}

var _ SampleSource = (*SliceSource)(nil)

func NewSliceSource(samples []Sample) *SliceSource {
	return &SliceSource{samples: samples}
}

func (s *SliceSource) ReadSample(buf *Buffer) error {
	if s.next >= len(s.samples) {
		return io.EOF
	}
	sample := s.samples[s.next]
	s.next++

	buf.Data = append(buf.Data[:0], sample.Data...)
	buf.TimeUs = sample.TimeUs
	buf.Flags = 0
	if s.next == 1 {
		buf.Flags |= FlagKeyFrame
	}
	return nil
}
