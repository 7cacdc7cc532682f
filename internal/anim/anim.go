// Package anim drives per-character pose animations (kick, head) that are
// layered over authoritative positions.
package anim

import (
	"math"
	"time"

	"rey-arena/internal/scene"
	"rey-arena/internal/visual"
)

// Kind is an action that plays a pose animation.
type Kind string

const (
	Kick Kind = "kick"
	Head Kind = "head"
)

// ParseKind maps a wire action name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case Kick, Head:
		return Kind(s), true
	}
	return "", false
}

// Config holds the fixed duration of each animation.
type Config struct {
	KickDuration time.Duration
	HeadDuration time.Duration
}

// DefaultConfig returns the tuned durations.
func DefaultConfig() Config {
	return Config{
		KickDuration: 450 * time.Millisecond,
		HeadDuration: 400 * time.Millisecond,
	}
}

func (c Config) duration(k Kind) time.Duration {
	if k == Head {
		return c.HeadDuration
	}
	return c.KickDuration
}

// Record is the single in-flight animation of one character.
type Record struct {
	EntityID string
	Kind     Kind
	Start    time.Time
}

// Offsets are per-part deltas added to the rest pose.
type Offsets map[visual.Part]visual.Pose

// Pose returns the part offsets of kind at progress in [0,1]. Every offset
// is scaled by sin(progress·π), so the motion eases in and out and is zero at
// both ends.
func Pose(kind Kind, progress float64) Offsets {
	progress = clamp01(progress)
	k := math.Sin(progress * math.Pi)
	if progress >= 1 {
		k = 0
	}

	switch kind {
	case Kick:
		return Offsets{
			visual.PartRightLeg:  {Rotation: rotX(-1.1 * k)},
			visual.PartRightFoot: {Rotation: rotX(-0.5 * k)},
			visual.PartLeftLeg:   {Rotation: rotX(0.25 * k)},
			visual.PartBody:      {Rotation: rotX(0.1 * k)},
		}
	case Head:
		lift := 0.35 * k
		return Offsets{
			visual.PartBody:     {Position: up(lift), Rotation: rotX(-0.35 * k)},
			visual.PartBackpack: {Position: up(lift)},
			visual.PartLeftLeg:  {Rotation: rotX(0.3 * k)},
			visual.PartRightLeg: {Rotation: rotX(0.3 * k)},
		}
	}
	return Offsets{}
}

// Lookup resolves an entity id to its character.
type Lookup func(id string) (*visual.Character, bool)

// Machine holds at most one record per character.
// Not safe for concurrent use; the owner serializes access.
type Machine struct {
	cfg     Config
	records map[string]*Record

	// Stats
	started    uint64
	superseded uint64
	finished   uint64
	orphaned   uint64
}

// NewMachine creates an empty machine.
func NewMachine(cfg Config) *Machine {
	if cfg.KickDuration <= 0 || cfg.HeadDuration <= 0 {
		def := DefaultConfig()
		if cfg.KickDuration <= 0 {
			cfg.KickDuration = def.KickDuration
		}
		if cfg.HeadDuration <= 0 {
			cfg.HeadDuration = def.HeadDuration
		}
	}
	return &Machine{
		cfg:     cfg,
		records: make(map[string]*Record),
	}
}

// Trigger starts kind on c. The same kind already in flight is left alone
// and false is returned. A different kind supersedes it at once: the pose
// goes back to rest and the new animation starts from now.
func (m *Machine) Trigger(c *visual.Character, kind Kind, now time.Time) bool {
	if !c.Alive() {
		return false
	}
	if rec, ok := m.records[c.ID]; ok {
		if rec.Kind == kind {
			return false
		}
		c.ResetPose()
		m.superseded++
	}

	m.records[c.ID] = &Record{EntityID: c.ID, Kind: kind, Start: now}
	m.started++
	return true
}

// Tick poses every animated character for now. Finished animations leave
// their character exactly at rest; records whose character is gone are
// dropped.
func (m *Machine) Tick(now time.Time, lookup Lookup) {
	for id, rec := range m.records {
		c, ok := lookup(id)
		if !ok || !c.Alive() {
			delete(m.records, id)
			m.orphaned++
			continue
		}

		d := m.cfg.duration(rec.Kind)
		p := clamp01(float64(now.Sub(rec.Start)) / float64(d))
		if p >= 1 {
			c.ResetPose()
			delete(m.records, id)
			m.finished++
			continue
		}

		apply(c, Pose(rec.Kind, p))
	}
}

// Active returns the kind in flight for id, if any.
func (m *Machine) Active(id string) (Kind, bool) {
	rec, ok := m.records[id]
	if !ok {
		return "", false
	}
	return rec.Kind, true
}

// Len returns the number of in-flight records.
func (m *Machine) Len() int {
	return len(m.records)
}

// Clear drops every record without touching poses.
func (m *Machine) Clear() {
	m.records = make(map[string]*Record)
}

// Stats returns lifetime counters.
func (m *Machine) Stats() map[string]uint64 {
	return map[string]uint64{
		"started":    m.started,
		"superseded": m.superseded,
		"finished":   m.finished,
		"orphaned":   m.orphaned,
	}
}

// apply writes rest+offset to every part, so all parts follow one record.
func apply(c *visual.Character, off Offsets) {
	for _, p := range visual.Parts {
		rest := c.Rest(p)
		d := off[p]
		c.SetPose(p, visual.Pose{
			Position: rest.Position.Add(d.Position),
			Rotation: rest.Rotation.Add(d.Rotation),
		})
	}
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func rotX(a float64) scene.Vec3 {
	return scene.V(a, 0, 0)
}

func up(y float64) scene.Vec3 {
	return scene.V(0, y, 0)
}
