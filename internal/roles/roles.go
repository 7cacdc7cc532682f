// Package roles maps a role identifier to its quadrant geometry: color,
// court position, camera side and joystick axis correction.
package roles

import (
	"strconv"
	"strings"

	"rey-arena/internal/scene"
)

// Role names as sent by the server.
const (
	Rey      = "rey"
	Reina    = "reina"
	Principe = "principe"
	Mato     = "mato"
)

// Court dimensions in world units. The court is centered on the origin.
const (
	CourtHalfSize  = 8.0
	QuadrantOffset = CourtHalfSize / 2
)

// AxisCorrection is applied to the merged input vector before sending.
type AxisCorrection struct {
	SignX float64
	SignY float64
}

// Apply returns the corrected vector.
func (a AxisCorrection) Apply(x, y float64) (float64, float64) {
	return x * a.SignX, y * a.SignY
}

// Geometry is the static description of one role.
type Geometry struct {
	Role     string
	Color    scene.Color
	Quadrant scene.Vec3 // Quadrant center on the ground plane

	// CameraSide is the sign of Z on which the camera stands: -1 for the
	// far half of the court, +1 for the near half.
	CameraSide float64
	Axes       AxisCorrection
}

var (
	farHalfAxes  = AxisCorrection{SignX: -1, SignY: 1}
	nearHalfAxes = AxisCorrection{SignX: 1, SignY: -1}
)

// Neutral is used for missing or unknown roles.
var Neutral = Geometry{
	Role:       "",
	Color:      scene.RGB(0x9e, 0x9e, 0x9e),
	Quadrant:   scene.Vec3{},
	CameraSide: 1,
	Axes:       AxisCorrection{SignX: 1, SignY: 1},
}

var table = map[string]Geometry{
	Rey: {
		Role:       Rey,
		Color:      scene.RGB(0xff, 0xd7, 0x00),
		Quadrant:   scene.V(-QuadrantOffset, 0, -QuadrantOffset),
		CameraSide: -1,
		Axes:       farHalfAxes,
	},
	Reina: {
		Role:       Reina,
		Color:      scene.RGB(0xff, 0x4f, 0xa3),
		Quadrant:   scene.V(QuadrantOffset, 0, -QuadrantOffset),
		CameraSide: -1,
		Axes:       farHalfAxes,
	},
	Principe: {
		Role:       Principe,
		Color:      scene.RGB(0x3f, 0xa9, 0xf5),
		Quadrant:   scene.V(QuadrantOffset, 0, QuadrantOffset),
		CameraSide: 1,
		Axes:       nearHalfAxes,
	},
	Mato: {
		Role:       Mato,
		Color:      scene.RGB(0x4c, 0xaf, 0x50),
		Quadrant:   scene.V(-QuadrantOffset, 0, QuadrantOffset),
		CameraSide: 1,
		Axes:       nearHalfAxes,
	},
}

// All returns the four playable roles in quadrant order.
func All() []string {
	return []string{Rey, Reina, Principe, Mato}
}

// Lookup returns the geometry for role, falling back to Neutral.
func Lookup(role string) Geometry {
	if g, ok := table[Normalize(role)]; ok {
		return g
	}
	return Neutral
}

// Known reports whether role is one of the playable roles.
func Known(role string) bool {
	_, ok := table[Normalize(role)]
	return ok
}

// Normalize lower-cases and trims a role string.
func Normalize(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// DisplayName is the label text for a role.
func DisplayName(role string) string {
	role = Normalize(role)
	if !Known(role) {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

// ParseColor decodes "#rrggbb" or "#rgb". Anything else yields fallback.
func ParseColor(hex string, fallback scene.Color) scene.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return scene.RGB(uint8(v>>16), uint8(v>>8), uint8(v))
}
