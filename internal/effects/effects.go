package effects

import (
	"math"
	"time"

	"rey-arena/internal/scene"
	"rey-arena/internal/visual"
)

// timer is the shared clock part of every effect.
type timer struct {
	start    time.Time
	duration time.Duration
	begun    bool
	done     bool
	disposed bool
}

func (t *timer) progress(now time.Time) float64 {
	if t.duration <= 0 {
		return 1
	}
	p := float64(now.Sub(t.start)) / float64(t.duration)
	return math.Max(0, math.Min(1, p))
}

// =============================================================================
// GLOW PULSE
// =============================================================================

// GlowPulse makes a character glow in a color for a while and rings it with
// a halo. The halo is allocated up front and released on completion.
type GlowPulse struct {
	timer
	target       *visual.Character
	halo         *scene.Node
	color        scene.Color
	baseEmissive scene.Color
}

// NewGlowPulse attaches a halo to c and returns the effect driving it.
func NewGlowPulse(f *visual.Factory, c *visual.Character, col scene.Color, start time.Time, d time.Duration) *GlowPulse {
	g := &GlowPulse{
		timer:  timer{start: start, duration: d},
		target: c,
		color:  col,
		halo:   f.NewHalo(col),
	}
	c.Root.Add(g.halo)
	return g
}

// Halo returns the ring node the effect owns.
func (g *GlowPulse) Halo() *scene.Node {
	return g.halo
}

func (g *GlowPulse) Tick(now time.Time) bool {
	if g.done || g.disposed {
		return true
	}
	if !g.target.Alive() {
		g.done = true
		return true
	}
	if !g.begun {
		// Captured on the first tick so a replaced glow has already restored it.
		g.baseEmissive = g.target.Body.Material.Emissive
		g.begun = true
	}

	p := g.progress(now)
	k := math.Sin(p * math.Pi)
	g.target.Body.Material.Emissive = g.baseEmissive.Lerp(g.color, k)
	g.halo.Material.Opacity = 0.8 * k
	s := 1 + 0.6*p
	g.halo.Scale = scene.V(s, 1, s)

	if p >= 1 {
		g.target.Body.Material.Emissive = g.baseEmissive
		g.done = true
	}
	return g.done
}

func (g *GlowPulse) Dispose() {
	if g.disposed {
		return
	}
	g.disposed = true
	if g.begun && g.target.Alive() {
		g.target.Body.Material.Emissive = g.baseEmissive
	}
	g.halo.Dispose()
}

// =============================================================================
// QUADRANT FLASH
// =============================================================================

// QuadrantFlash tints a quadrant overlay and fades it back to its base color
// and opacity.
type QuadrantFlash struct {
	timer
	overlay *visual.Overlay
	color   scene.Color
	peak    float64
}

// FlashPeakOpacity is the overlay opacity at the start of a flash.
const FlashPeakOpacity = 0.65

// NewQuadrantFlash creates a flash on o.
func NewQuadrantFlash(o *visual.Overlay, col scene.Color, start time.Time, d time.Duration) *QuadrantFlash {
	return &QuadrantFlash{
		timer:   timer{start: start, duration: d},
		overlay: o,
		color:   col,
		peak:    FlashPeakOpacity,
	}
}

func (q *QuadrantFlash) Tick(now time.Time) bool {
	if q.done || q.disposed {
		return true
	}
	if !q.overlay.Node.Alive() {
		q.done = true
		return true
	}
	q.begun = true

	p := q.progress(now)
	if p >= 1 {
		q.overlay.Restore()
		q.done = true
		return true
	}

	// Two blinks fading out.
	k := (1 - p) * (0.5 + 0.5*math.Cos(p*4*math.Pi))
	mat := q.overlay.Node.Material
	mat.Color = q.overlay.BaseColor.Lerp(q.color, k)
	mat.Opacity = q.overlay.BaseOpacity + (q.peak-q.overlay.BaseOpacity)*k
	return false
}

func (q *QuadrantFlash) Dispose() {
	if q.disposed {
		return
	}
	q.disposed = true
	if q.begun && q.overlay.Node.Alive() {
		q.overlay.Restore()
	}
}

// =============================================================================
// SCALE PULSE
// =============================================================================

// ScalePulse swells a node and returns it to its base scale.
type ScalePulse struct {
	timer
	node      *scene.Node
	amplitude float64
	base      scene.Vec3
}

// NewScalePulse creates a pulse growing node by amplitude at its peak.
func NewScalePulse(node *scene.Node, amplitude float64, start time.Time, d time.Duration) *ScalePulse {
	return &ScalePulse{
		timer:     timer{start: start, duration: d},
		node:      node,
		amplitude: amplitude,
	}
}

func (s *ScalePulse) Tick(now time.Time) bool {
	if s.done || s.disposed {
		return true
	}
	if !s.node.Alive() {
		s.done = true
		return true
	}
	if !s.begun {
		s.base = s.node.Scale
		s.begun = true
	}

	p := s.progress(now)
	if p >= 1 {
		s.node.Scale = s.base
		s.done = true
		return true
	}
	s.node.Scale = s.base.Scale(1 + s.amplitude*math.Sin(p*math.Pi))
	return false
}

func (s *ScalePulse) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	if s.begun && s.node.Alive() {
		s.node.Scale = s.base
	}
}
