package input

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"rey-arena/internal/metrics"
	"rey-arena/internal/protocol"
)

// DefaultPeriod is the outbound input interval (30 Hz).
const DefaultPeriod = time.Second / 30

// Transmitter delivers an outbound message. Implementations must not block
// on the network.
type Transmitter interface {
	Send(kind string, payload interface{}) error
}

// Sender transmits the sampler's latest payload at a fixed interval. It
// never queues: each tick reads whatever is staged now, and a failed send is
// simply superseded by the next tick. The limiter alone sets the pace.
type Sender struct {
	sampler *Sampler
	out     Transmitter
	period  time.Duration
	limiter *rate.Limiter

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	// Stats
	sent      uint64
	throttled uint64
	failed    uint64
}

// NewSender creates a sender. A non-positive period uses DefaultPeriod.
func NewSender(sampler *Sampler, out Transmitter, period time.Duration) *Sender {
	if period <= 0 {
		period = DefaultPeriod
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sender{
		sampler: sampler,
		out:     out,
		period:  period,
		limiter: rate.NewLimiter(rate.Every(period), 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Period returns the send interval.
func (s *Sender) Period() time.Duration {
	return s.period
}

// Tick sends the staged payload if the throttle allows it at now. It reports
// whether a send was attempted.
func (s *Sender) Tick(now time.Time) bool {
	if !s.limiter.AllowN(now, 1) {
		atomic.AddUint64(&s.throttled, 1)
		metrics.RecordInputDropped("throttled")
		return false
	}
	s.send()
	return true
}

func (s *Sender) send() {
	payload := s.sampler.Take()
	if err := s.out.Send(protocol.KindInput, payload); err != nil {
		if atomic.AddUint64(&s.failed, 1) == 1 {
			log.Printf("⚠️ Input send failed: %v", err)
		}
		metrics.RecordInputDropped("send_failed")
		return
	}
	atomic.AddUint64(&s.sent, 1)
	metrics.RecordInputSent()
}

// Start runs the send loop in a goroutine until Stop.
func (s *Sender) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.loop()
}

// Stop halts the send loop and waits for it to exit. Safe to call more
// than once.
func (s *Sender) Stop() {
	s.cancel()
	s.wg.Wait()
}

// loop waits on the limiter for each send. Reservations are spaced from
// the previous one, not from the wakeup, so scheduling jitter does not
// stretch the interval.
func (s *Sender) loop() {
	defer s.wg.Done()

	for {
		if err := s.limiter.Wait(s.ctx); err != nil {
			return
		}
		s.send()
	}
}

// GetStats returns sender statistics
func (s *Sender) GetStats() map[string]uint64 {
	return map[string]uint64{
		"sent":      atomic.LoadUint64(&s.sent),
		"throttled": atomic.LoadUint64(&s.throttled),
		"failed":    atomic.LoadUint64(&s.failed),
	}
}
