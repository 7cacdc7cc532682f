// Package input merges local input sources into the payload that is sent
// upstream at a fixed rate.
package input

import (
	"math"
	"sync"

	"rey-arena/internal/protocol"
	"rey-arena/internal/roles"
)

// DefaultDeadZone is the magnitude below which a source counts as idle.
const DefaultDeadZone = 0.1

// Vector is a 2D joystick vector. Y is positive "up" on screen.
type Vector struct {
	X, Y float64
}

// Len returns the magnitude.
func (v Vector) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Clamp limits the magnitude to 1. NaN components become zero.
func (v Vector) Clamp() Vector {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
		return Vector{}
	}
	l := v.Len()
	if l > 1 {
		return Vector{X: v.X / l, Y: v.Y / l}
	}
	return v
}

// KeyState is the set of held directional keys (WASD or arrows).
type KeyState struct {
	Up, Down, Left, Right bool
}

// Vector converts held keys to a discrete vector. Diagonals are normalized.
func (k KeyState) Vector() Vector {
	var v Vector
	if k.Right {
		v.X++
	}
	if k.Left {
		v.X--
	}
	if k.Up {
		v.Y++
	}
	if k.Down {
		v.Y--
	}
	return v.Clamp()
}

// Source identifies which input produced the merged vector.
type Source int

const (
	SourceNone Source = iota
	SourceContinuous
	SourceDiscrete
)

func (s Source) String() string {
	switch s {
	case SourceContinuous:
		return "continuous"
	case SourceDiscrete:
		return "discrete"
	}
	return "none"
}

// Arbiter merges the continuous and discrete vectors. A continuous vector
// above the dead zone wins; otherwise a discrete one above it; otherwise zero.
// While the continuous source is active, discrete updates are stored but do
// not change the merged vector.
type Arbiter struct {
	DeadZone float64

	continuous Vector
	discrete   Vector
	merged     Vector
	active     Source
}

// NewArbiter creates an arbiter with the default dead zone.
func NewArbiter() *Arbiter {
	return &Arbiter{DeadZone: DefaultDeadZone}
}

// UpdateContinuous sets the pointer vector and recomputes.
func (a *Arbiter) UpdateContinuous(v Vector) {
	a.continuous = v.Clamp()
	a.recompute()
}

// UpdateDiscrete sets the key vector. It only recomputes when the
// continuous source is not active.
func (a *Arbiter) UpdateDiscrete(v Vector) {
	a.discrete = v.Clamp()
	if a.active == SourceContinuous {
		return
	}
	a.recompute()
}

// Merged returns the merged vector and its source.
func (a *Arbiter) Merged() (Vector, Source) {
	return a.merged, a.active
}

func (a *Arbiter) recompute() {
	switch {
	case a.continuous.Len() > a.DeadZone:
		a.merged, a.active = a.continuous, SourceContinuous
	case a.discrete.Len() > a.DeadZone:
		a.merged, a.active = a.discrete, SourceDiscrete
	default:
		a.merged, a.active = Vector{}, SourceNone
	}
}

// Sampler owns the arbiter, the pointer acquisition strategy and the staged
// payload. It is safe for concurrent use: the frontend writes while the
// sender reads.
type Sampler struct {
	mu       sync.Mutex
	arbiter  *Arbiter
	acquirer Acquirer
	role     string
	axes     roles.AxisCorrection

	staged protocol.InputPayload
	action string
	jump   bool
}

// NewSampler creates a sampler using acq for pointer events. A nil acq
// defaults to a DragAcquirer.
func NewSampler(acq Acquirer) *Sampler {
	if acq == nil {
		acq = NewDragAcquirer(DefaultDragRadius)
	}
	return &Sampler{
		arbiter:  NewArbiter(),
		acquirer: acq,
		axes:     roles.Neutral.Axes,
	}
}

// SetRole switches the axis correction. Roles come from snapshots only.
func (s *Sampler) SetRole(role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role == s.role {
		return
	}
	s.role = role
	s.axes = roles.Lookup(role).Axes
	s.stage()
}

// Role returns the role currently used for axis correction.
func (s *Sampler) Role() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Pointer feeds a pointer event through the acquisition strategy.
func (s *Sampler) Pointer(ev PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, active := s.acquirer.Pointer(ev)
	if !active {
		v = Vector{}
	}
	s.arbiter.UpdateContinuous(v)
	s.stage()
}

// Continuous sets the continuous vector directly.
func (s *Sampler) Continuous(v Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arbiter.UpdateContinuous(v)
	s.stage()
}

// Keys sets the discrete vector from held keys.
func (s *Sampler) Keys(k KeyState) {
	s.Discrete(k.Vector())
}

// Discrete sets the discrete vector directly.
func (s *Sampler) Discrete(v Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arbiter.UpdateDiscrete(v)
	s.stage()
}

// Press latches a one-shot action until the next Take.
func (s *Sampler) Press(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.action = action
}

// Jump latches a one-shot jump until the next Take.
func (s *Sampler) Jump() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jump = true
}

// Merged returns the uncorrected merged vector and its source.
func (s *Sampler) Merged() (Vector, Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arbiter.Merged()
}

// Staged returns the payload that would be sent now, without consuming
// latches.
func (s *Sampler) Staged() protocol.InputPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.staged
	p.Jump, p.Action = s.jump, s.action
	return p
}

// Take returns the payload to send and clears the one-shot latches.
func (s *Sampler) Take() protocol.InputPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.staged
	p.Jump, p.Action = s.jump, s.action
	s.jump, s.action = false, ""
	return p
}

// Reset clears all sources and latches.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquirer.Reset()
	s.arbiter = &Arbiter{DeadZone: s.arbiter.DeadZone}
	s.jump, s.action = false, ""
	s.stage()
}

func (s *Sampler) stage() {
	m, _ := s.arbiter.Merged()
	x, y := s.axes.Apply(m.X, m.Y)
	s.staged.Move = [2]float64{x, y}
}
