// Package scene holds the renderable scene graph and the GPU resource model.
//
// A Node owns at most one Mesh, Material and Texture. Those are handles issued
// by an Allocator, which stands in for the GPU backend and keeps live counts so
// leaks and double frees are observable.
package scene

import (
	"image/color"
	"math"
)

// Vec3 is a point or direction in world space (Y up).
type Vec3 struct {
	X, Y, Z float64
}

// V returns a Vec3.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Mul multiplies component-wise.
func (v Vec3) Mul(o Vec3) Vec3 {
	return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns the unit vector, or zero for a zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Lerp interpolates from v toward o by t.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// rotate applies roll (Z), pitch (X) then yaw (Y).
func (v Vec3) rotate(r Vec3) Vec3 {
	out := v
	if r.Z != 0 {
		s, c := math.Sincos(r.Z)
		out = Vec3{out.X*c - out.Y*s, out.X*s + out.Y*c, out.Z}
	}
	if r.X != 0 {
		s, c := math.Sincos(r.X)
		out = Vec3{out.X, out.Y*c - out.Z*s, out.Y*s + out.Z*c}
	}
	if r.Y != 0 {
		s, c := math.Sincos(r.Y)
		out = Vec3{out.X*c + out.Z*s, out.Y, -out.X*s + out.Z*c}
	}
	return out
}

// Color is a linear RGB color with components in [0,1].
type Color struct {
	R, G, B float64
}

// RGB builds a Color from 8-bit channels.
func RGB(r, g, b uint8) Color {
	return Color{float64(r) / 255, float64(g) / 255, float64(b) / 255}
}

// Black is the zero emissive color.
var Black = Color{}

// Lerp interpolates from c toward o by t.
func (c Color) Lerp(o Color, t float64) Color {
	return Color{
		c.R + (o.R-c.R)*t,
		c.G + (o.G-c.G)*t,
		c.B + (o.B-c.B)*t,
	}
}

// Add brightens c by o, saturating at 1.
func (c Color) Add(o Color) Color {
	return Color{
		math.Min(1, c.R+o.R),
		math.Min(1, c.G+o.G),
		math.Min(1, c.B+o.B),
	}
}

// RGBA converts to an 8-bit color with the given opacity.
func (c Color) RGBA(opacity float64) color.RGBA {
	return color.RGBA{
		R: channel(c.R),
		G: channel(c.G),
		B: channel(c.B),
		A: channel(opacity),
	}
}

func channel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
