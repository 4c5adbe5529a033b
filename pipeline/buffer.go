// Package pipeline holds the encoded-sample handshake that feeds a muxer from
// the executor's worker. None of its types are safe for concurrent use; they
// are always driven from the worker goroutine.
package pipeline

// BufferFlag describes a sample held in a Buffer.
type BufferFlag uint32

const (
	FlagKeyFrame BufferFlag = 1 << iota
	FlagEndOfStream
)

// Buffer is the single reusable sample slot of a pipeline.
type Buffer struct {
	Data   []byte
	TimeUs int64
	Flags  BufferFlag
}

// IsEndOfStream reports whether the buffer marks the end of the stream.
func (b *Buffer) IsEndOfStream() bool {
	return b.Flags&FlagEndOfStream != 0
}

// IsKeyFrame reports whether the sample is a sync sample.
func (b *Buffer) IsKeyFrame() bool {
	return b.Flags&FlagKeyFrame != 0
}

// SetEndOfStream clears the sample and marks the buffer as end of stream.
func (b *Buffer) SetEndOfStream() {
	b.Clear()
	b.Flags = FlagEndOfStream
}

// Clear empties the buffer, keeping the Data capacity for reuse.
func (b *Buffer) Clear() {
	b.Data = b.Data[:0]
	b.TimeUs = 0
	b.Flags = 0
}
