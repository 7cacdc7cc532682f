package game

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	JournalSize      = 256 // Circular buffer size
	MaxJournalPerSec = 200 // Global rate limit
	journalBurst     = 50
)

// JournalEntry is one notable scene event, kept for the debug API.
type JournalEntry struct {
	Sequence uint64    `json:"seq"`
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"`
	Subject  string    `json:"subject,omitempty"` // Player id or role
	Detail   string    `json:"detail,omitempty"`
}

// Journal is a bounded, rate-limited ring of recent scene events.
// The oldest entries are overwritten once the ring is full.
type Journal struct {
	mu      sync.Mutex
	buffer  [JournalSize]JournalEntry
	head    uint64 // Next sequence number
	limiter *rate.Limiter

	// Stats
	dropped uint64 // atomic
	total   uint64 // atomic
}

// NewJournal creates an empty journal
func NewJournal() *Journal {
	return &Journal{
		limiter: rate.NewLimiter(MaxJournalPerSec, journalBurst),
	}
}

// Record appends an entry. Returns false when rate limited.
func (j *Journal) Record(now time.Time, kind, subject, detail string) bool {
	if !j.limiter.AllowN(now, 1) {
		atomic.AddUint64(&j.dropped, 1)
		return false
	}

	j.mu.Lock()
	j.head++
	j.buffer[j.head%JournalSize] = JournalEntry{
		Sequence: j.head,
		Time:     now,
		Kind:     kind,
		Subject:  subject,
		Detail:   detail,
	}
	j.mu.Unlock()

	atomic.AddUint64(&j.total, 1)
	return true
}

// Recent returns up to n entries, oldest first.
func (j *Journal) Recent(n int) []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()

	avail := j.head
	if avail > JournalSize {
		avail = JournalSize
	}
	if n <= 0 || uint64(n) > avail {
		n = int(avail)
	}

	out := make([]JournalEntry, 0, n)
	for seq := j.head - uint64(n) + 1; seq <= j.head; seq++ {
		out = append(out, j.buffer[seq%JournalSize])
	}
	return out
}

// GetStats returns journal statistics
func (j *Journal) GetStats() map[string]uint64 {
	return map[string]uint64{
		"total":   atomic.LoadUint64(&j.total),
		"dropped": atomic.LoadUint64(&j.dropped),
	}
}
