// Package camera places the view from the local player's role rather than by
// chasing the player. Position and look-at are smoothed every tick.
package camera

import (
	"math"

	"rey-arena/internal/roles"
	"rey-arena/internal/scene"
)

// Config tunes the framing. All distances are world units.
type Config struct {
	Standoff   float64 // Distance behind the court edge on the player's side
	Height     float64 // Camera height
	BiasFactor float64 // Fraction of the player offset the camera follows
	MaxBias    float64 // Clamp on that follow, keeps the whole court framed
	LookBias   float64 // Fraction of the player offset the look-at follows
	MaxLook    float64 // Clamp on the look-at follow
	Alpha      float64 // Exponential smoothing factor per tick, in (0,1)

	DefaultPosition scene.Vec3 // Framing before a local player exists
	DefaultLookAt   scene.Vec3
}

// DefaultConfig returns the tuned framing.
func DefaultConfig() Config {
	return Config{
		Standoff:        17,
		Height:          13,
		BiasFactor:      0.25,
		MaxBias:         2.5,
		LookBias:        0.15,
		MaxLook:         1.5,
		Alpha:           0.08,
		DefaultPosition: scene.V(0, 22, 18),
		DefaultLookAt:   scene.V(0, 0, 0),
	}
}

// Pose is a camera placement.
type Pose struct {
	Position scene.Vec3
	LookAt   scene.Vec3
}

// Target is the local player's last authoritative ground position and role.
type Target struct {
	Position scene.Vec3
	Role     string
}

// Controller owns the smoothed camera pose.
type Controller struct {
	cfg     Config
	current Pose
	desired Pose
}

// NewController creates a controller holding the default framing.
func NewController(cfg Config) *Controller {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = DefaultConfig().Alpha
	}
	start := Pose{Position: cfg.DefaultPosition, LookAt: cfg.DefaultLookAt}
	return &Controller{cfg: cfg, current: start, desired: start}
}

// Desired computes where the camera wants to be for target. A nil target
// yields the default framing.
func (c *Controller) Desired(target *Target) Pose {
	if target == nil {
		return Pose{Position: c.cfg.DefaultPosition, LookAt: c.cfg.DefaultLookAt}
	}

	geo := roles.Lookup(target.Role)
	ground := scene.V(target.Position.X, 0, target.Position.Z)

	bx, bz := clampXZ(ground.X*c.cfg.BiasFactor, ground.Z*c.cfg.BiasFactor, c.cfg.MaxBias)
	lx, lz := clampXZ(ground.X*c.cfg.LookBias, ground.Z*c.cfg.LookBias, c.cfg.MaxLook)

	return Pose{
		Position: scene.V(bx, c.cfg.Height, geo.CameraSide*c.cfg.Standoff+bz),
		LookAt:   scene.V(lx, 0, lz),
	}
}

// Update moves the camera one smoothing step toward the desired pose.
func (c *Controller) Update(target *Target) Pose {
	c.desired = c.Desired(target)
	a := c.cfg.Alpha
	c.current = Pose{
		Position: c.current.Position.Lerp(c.desired.Position, a),
		LookAt:   c.current.LookAt.Lerp(c.desired.LookAt, a),
	}
	return c.current
}

// Pose returns the current smoothed pose.
func (c *Controller) Pose() Pose {
	return c.current
}

// Snap places the camera directly. Only used for initialization.
func (c *Controller) Snap(p Pose) {
	c.current = p
	c.desired = p
}

// Reset returns to the default framing.
func (c *Controller) Reset() {
	c.Snap(Pose{Position: c.cfg.DefaultPosition, LookAt: c.cfg.DefaultLookAt})
}

// clampXZ limits the planar length of (x,z) to max.
func clampXZ(x, z, max float64) (float64, float64) {
	l := math.Hypot(x, z)
	if l <= max || l == 0 {
		return x, z
	}
	s := max / l
	return x * s, z * s
}
