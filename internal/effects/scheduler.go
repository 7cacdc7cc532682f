// Package effects runs transient, self-terminating visual effects on the
// frame clock.
package effects

import "time"

// Effect is a time-bounded embellishment. Tick advances it to now and
// reports whether it has finished; once it has, further ticks are no-ops
// that keep returning true. Dispose releases whatever the effect allocated
// and puts its target back; it runs at most once.
type Effect interface {
	Tick(now time.Time) bool
	Dispose()
}

type entry struct {
	key    string
	effect Effect
}

// Scheduler owns the set of running effects. It is not safe for concurrent
// use; the owner serializes access.
type Scheduler struct {
	entries []*entry
	keyed   map[string]*entry

	// Stats
	started   uint64
	completed uint64
	replaced  uint64
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{keyed: make(map[string]*entry)}
}

// Add registers e. A non-empty key makes the effect exclusive: an effect
// already running under the same key is disposed and dropped first.
func (s *Scheduler) Add(key string, e Effect) {
	if key != "" {
		if prev, ok := s.keyed[key]; ok {
			s.remove(prev)
			prev.effect.Dispose()
			s.replaced++
		}
	}

	en := &entry{key: key, effect: e}
	s.entries = append(s.entries, en)
	if key != "" {
		s.keyed[key] = en
	}
	s.started++
}

// Tick advances every effect. Effects that finish are disposed on this tick
// and removed. Returns the number of effects that finished.
func (s *Scheduler) Tick(now time.Time) int {
	if len(s.entries) == 0 {
		return 0
	}

	finished := 0
	kept := s.entries[:0]
	for _, en := range s.entries {
		if en.effect.Tick(now) {
			en.effect.Dispose()
			if en.key != "" && s.keyed[en.key] == en {
				delete(s.keyed, en.key)
			}
			finished++
			continue
		}
		kept = append(kept, en)
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
	s.completed += uint64(finished)
	return finished
}

// Running reports whether an effect is registered under key.
func (s *Scheduler) Running(key string) bool {
	_, ok := s.keyed[key]
	return ok
}

// Len returns the number of running effects.
func (s *Scheduler) Len() int {
	return len(s.entries)
}

// Clear disposes every running effect without ticking it.
func (s *Scheduler) Clear() {
	for _, en := range s.entries {
		en.effect.Dispose()
	}
	s.entries = nil
	s.keyed = make(map[string]*entry)
}

// Stats returns lifetime counters: started, completed and replaced effects.
func (s *Scheduler) Stats() (started, completed, replaced uint64) {
	return s.started, s.completed, s.replaced
}

func (s *Scheduler) remove(target *entry) {
	for i, en := range s.entries {
		if en == target {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	delete(s.keyed, target.key)
}
