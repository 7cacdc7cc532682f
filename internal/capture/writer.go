package capture

import (
	"fmt"
	"image"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fogleman/gg"
)

// slowWriteThreshold triggers a backpressure warning for a single frame.
const slowWriteThreshold = 500 * time.Millisecond

// backpressureLogInterval is the minimum time between backpressure warnings.
const backpressureLogInterval = 5 * time.Second

// Writer saves frames as numbered PNG files from a background goroutine.
// Submit never blocks; frames submitted while the ring is full are dropped.
type Writer struct {
	dir        string
	ringBuffer *FrameRingBuffer
	scratch    *image.RGBA
	save       func(path string, im image.Image) error

	notify   chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  int32 // atomic
	nextSeq  uint64

	// Stats
	submitted      uint64
	framesWritten  uint64
	writeErrors    uint64
	avgWriteTimeNs int64
	maxWriteTimeNs int64
	slowWrites     uint64

	lastSlowLog time.Time
}

// NewWriter creates a writer for frames of the given size under dir.
func NewWriter(dir string, width, height int) *Writer {
	rb := NewFrameRingBuffer(width, height)
	return &Writer{
		dir:        dir,
		ringBuffer: rb,
		scratch:    image.NewRGBA(rb.Bounds()),
		save:       gg.SavePNG,
		notify:     make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}
}

// Path returns the file name used for frame seq.
func (w *Writer) Path(seq uint64) string {
	return filepath.Join(w.dir, fmt.Sprintf("frame_%05d.png", seq))
}

// Submit queues a copy of img. It returns false if the frame was dropped.
func (w *Writer) Submit(img *image.RGBA) bool {
	atomic.AddUint64(&w.submitted, 1)
	if !w.ringBuffer.TryWrite(img, w.nextSeq) {
		return false
	}
	w.nextSeq++

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return true
}

// Start begins the writer goroutine.
func (w *Writer) Start() {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		log.Printf("📡 Frame writer started (%s)", w.dir)

		for {
			select {
			case <-w.stopChan:
				// Flush whatever is still queued.
				w.drain()
				return
			case <-w.notify:
				w.drain()
			}
		}
	}()
}

// Stop flushes queued frames and waits for the writer to finish.
func (w *Writer) Stop() {
	if !atomic.CompareAndSwapInt32(&w.running, 1, 0) {
		return
	}
	close(w.stopChan)
	w.wg.Wait()
	log.Printf("📡 Frame writer stopped (%d frames)", atomic.LoadUint64(&w.framesWritten))
}

func (w *Writer) drain() {
	for {
		seq, ok := w.ringBuffer.TryRead(w.scratch)
		if !ok {
			return
		}
		w.write(seq)
	}
}

func (w *Writer) write(seq uint64) {
	start := time.Now()
	err := w.save(w.Path(seq), w.scratch)
	elapsed := time.Since(start)

	if err != nil {
		if atomic.AddUint64(&w.writeErrors, 1) <= 5 {
			log.Printf("❌ Frame write error: %v", err)
		}
		return
	}
	atomic.AddUint64(&w.framesWritten, 1)

	// Exponential moving average
	avg := atomic.LoadInt64(&w.avgWriteTimeNs)
	atomic.StoreInt64(&w.avgWriteTimeNs, (avg*9+elapsed.Nanoseconds())/10)
	if elapsed.Nanoseconds() > atomic.LoadInt64(&w.maxWriteTimeNs) {
		atomic.StoreInt64(&w.maxWriteTimeNs, elapsed.Nanoseconds())
	}

	if elapsed >= slowWriteThreshold {
		atomic.AddUint64(&w.slowWrites, 1)
		if time.Since(w.lastSlowLog) > backpressureLogInterval {
			w.lastSlowLog = time.Now()
			log.Printf("⚠️ Backpressure detected: frame write took %.0fms", elapsed.Seconds()*1000)
		}
	}
}

// GetStats returns writer statistics.
func (w *Writer) GetStats() map[string]uint64 {
	bufWritten, bufDropped, bufRead := w.ringBuffer.GetStats()

	return map[string]uint64{
		"submitted":       atomic.LoadUint64(&w.submitted),
		"framesWritten":   atomic.LoadUint64(&w.framesWritten),
		"writeErrors":     atomic.LoadUint64(&w.writeErrors),
		"slowWrites":      atomic.LoadUint64(&w.slowWrites),
		"avgWriteTimeUs":  uint64(atomic.LoadInt64(&w.avgWriteTimeNs) / 1e3),
		"maxWriteTimeUs":  uint64(atomic.LoadInt64(&w.maxWriteTimeNs) / 1e3),
		"bufferAvailable": uint64(w.ringBuffer.Available()),
		"bufferWritten":   bufWritten,
		"bufferDropped":   bufDropped,
		"bufferRead":      bufRead,
	}
}
