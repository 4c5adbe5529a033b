package pipeline

// EncodedSamplePipeline passes encoded samples to a muxer without transcoding.
// It owns one Buffer: the producer fills it between DequeueInputBuffer and
// QueueInputBuffer, the muxer side reads it with MuxerInputBuffer and hands
// it back with ReleaseMuxerInputBuffer.
type EncodedSamplePipeline struct {
	track      int
	buffer     Buffer
	hasPending bool
	ended      bool
}

// NewEncodedSamplePipeline creates a pipeline writing to the given muxer track.
func NewEncodedSamplePipeline(track int) *EncodedSamplePipeline {
	return &EncodedSamplePipeline{track: track}
}

// Track returns the muxer track index.
func (p *EncodedSamplePipeline) Track() int {
	return p.track
}

// DequeueInputBuffer returns the buffer to fill, or nil while the previous
// sample has not been released by the muxer side.
func (p *EncodedSamplePipeline) DequeueInputBuffer() *Buffer {
	if p.hasPending {
		return nil
	}
	return &p.buffer
}

// QueueInputBuffer marks the buffer as ready for the muxer. An empty buffer
// that is not end of stream is ignored and can be dequeued again.
func (p *EncodedSamplePipeline) QueueInputBuffer() {
	if len(p.buffer.Data) > 0 || p.buffer.IsEndOfStream() {
		p.hasPending = true
	}
}

// MuxerInputBuffer returns the queued buffer, or nil if none is pending.
func (p *EncodedSamplePipeline) MuxerInputBuffer() *Buffer {
	if !p.hasPending {
		return nil
	}
	return &p.buffer
}

// ReleaseMuxerInputBuffer clears the buffer so it can be dequeued again.
func (p *EncodedSamplePipeline) ReleaseMuxerInputBuffer() {
	if p.hasPending && p.buffer.IsEndOfStream() {
		p.ended = true
	}
	p.buffer.Clear()
	p.hasPending = false
}

// IsEnded reports whether the end of stream has been handed to the muxer.
func (p *EncodedSamplePipeline) IsEnded() bool {
	return p.ended
}

// DrainToMuxer forwards the pending buffer, if any, to m. It returns true
// when a sample was written; the end of stream ends the track and returns
// false.
func (p *EncodedSamplePipeline) DrainToMuxer(m Muxer) (bool, error) {
	buf := p.MuxerInputBuffer()
	if buf == nil {
		return false, nil
	}
	if buf.IsEndOfStream() {
		if err := m.EndTrack(p.track); err != nil {
			return false, err
		}
		p.ReleaseMuxerInputBuffer()
		return false, nil
	}
	if err := m.WriteSample(p.track, buf.Data, buf.TimeUs); err != nil {
		return false, err
	}
	p.ReleaseMuxerInputBuffer()
	return true, nil
}
