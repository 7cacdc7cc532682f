// Package capture writes rendered frames to disk off the render goroutine.
// Frames pass through a fixed ring so a slow disk drops frames instead of
// stalling the capture loop.
package capture

import (
	"image"
	"sync/atomic"
)

// BufferSize is the number of frame slots in the ring buffer.
// At one frame per second this is 16s of slack for the disk.
const BufferSize = 16

// FrameRingBuffer is a single-producer single-consumer ring of RGBA frames.
// Slots are pre-allocated; if the ring is full the new frame is dropped.
type FrameRingBuffer struct {
	frames   [BufferSize]*image.RGBA
	seqs     [BufferSize]uint64
	readIdx  uint32 // atomic - consumer index
	writeIdx uint32 // atomic - producer index
	bounds   image.Rectangle

	// Stats
	framesWritten uint64
	framesDropped uint64
	framesRead    uint64
}

// NewFrameRingBuffer creates a ring for frames of the given size.
func NewFrameRingBuffer(width, height int) *FrameRingBuffer {
	rb := &FrameRingBuffer{bounds: image.Rect(0, 0, width, height)}
	for i := 0; i < BufferSize; i++ {
		rb.frames[i] = image.NewRGBA(rb.bounds)
	}
	return rb
}

// TryWrite copies img into the next slot. It returns false if the ring is
// full or img has the wrong size.
func (rb *FrameRingBuffer) TryWrite(img *image.RGBA, seq uint64) bool {
	if img == nil || img.Bounds() != rb.bounds {
		atomic.AddUint64(&rb.framesDropped, 1)
		return false
	}

	currentWrite := atomic.LoadUint32(&rb.writeIdx)
	nextWrite := (currentWrite + 1) % BufferSize

	if nextWrite == atomic.LoadUint32(&rb.readIdx) {
		atomic.AddUint64(&rb.framesDropped, 1)
		return false
	}

	copy(rb.frames[currentWrite].Pix, img.Pix)
	rb.seqs[currentWrite] = seq

	atomic.StoreUint32(&rb.writeIdx, nextWrite)
	atomic.AddUint64(&rb.framesWritten, 1)
	return true
}

// TryRead copies the oldest frame into dst and frees its slot. It returns
// false if the ring is empty.
func (rb *FrameRingBuffer) TryRead(dst *image.RGBA) (uint64, bool) {
	readIdx := atomic.LoadUint32(&rb.readIdx)
	if readIdx == atomic.LoadUint32(&rb.writeIdx) {
		return 0, false
	}

	copy(dst.Pix, rb.frames[readIdx].Pix)
	seq := rb.seqs[readIdx]

	atomic.StoreUint32(&rb.readIdx, (readIdx+1)%BufferSize)
	atomic.AddUint64(&rb.framesRead, 1)
	return seq, true
}

// Available returns the number of frames waiting to be read.
func (rb *FrameRingBuffer) Available() int {
	readIdx := atomic.LoadUint32(&rb.readIdx)
	writeIdx := atomic.LoadUint32(&rb.writeIdx)

	if writeIdx >= readIdx {
		return int(writeIdx - readIdx)
	}
	return int(BufferSize - readIdx + writeIdx)
}

// Bounds returns the frame size the ring accepts.
func (rb *FrameRingBuffer) Bounds() image.Rectangle {
	return rb.bounds
}

// GetStats returns buffer statistics.
func (rb *FrameRingBuffer) GetStats() (written, dropped, read uint64) {
	return atomic.LoadUint64(&rb.framesWritten),
		atomic.LoadUint64(&rb.framesDropped),
		atomic.LoadUint64(&rb.framesRead)
}
