// Package visual builds the renderable representation of players, the ball
// and the court. Every GPU resource comes from the factory's allocator.
package visual

import (
	"rey-arena/internal/roles"
	"rey-arena/internal/scene"
)

// Part names an animatable sub-part of a character.
type Part int

const (
	PartBody Part = iota
	PartBackpack
	PartLeftLeg
	PartRightLeg
	PartLeftFoot
	PartRightFoot
	partCount
)

// Parts lists every animatable part.
var Parts = [...]Part{PartBody, PartBackpack, PartLeftLeg, PartRightLeg, PartLeftFoot, PartRightFoot}

func (p Part) String() string {
	switch p {
	case PartBody:
		return "body"
	case PartBackpack:
		return "backpack"
	case PartLeftLeg:
		return "leftLeg"
	case PartRightLeg:
		return "rightLeg"
	case PartLeftFoot:
		return "leftFoot"
	case PartRightFoot:
		return "rightFoot"
	default:
		return "unknown"
	}
}

// Pose is the local transform an animation drives.
type Pose struct {
	Position scene.Vec3
	Rotation scene.Vec3
}

// Character is a player's renderable: named handles to every sub-part,
// captured at creation so nothing is looked up by name later.
type Character struct {
	ID       string
	Nickname string
	Role     string // last role applied, used to detect role changes
	Color    scene.Color

	Root      *scene.Node
	Body      *scene.Node
	Backpack  *scene.Node
	LeftLeg   *scene.Node
	RightLeg  *scene.Node
	LeftFoot  *scene.Node
	RightFoot *scene.Node
	Label     *scene.Node

	rest [partCount]Pose
}

// Part returns the node for p.
func (c *Character) Part(p Part) *scene.Node {
	switch p {
	case PartBody:
		return c.Body
	case PartBackpack:
		return c.Backpack
	case PartLeftLeg:
		return c.LeftLeg
	case PartRightLeg:
		return c.RightLeg
	case PartLeftFoot:
		return c.LeftFoot
	case PartRightFoot:
		return c.RightFoot
	}
	return nil
}

// Rest returns the neutral pose of p.
func (c *Character) Rest(p Part) Pose {
	return c.rest[p]
}

// SetPose writes an absolute local pose to p.
func (c *Character) SetPose(p Part, pose Pose) {
	n := c.Part(p)
	n.Position = pose.Position
	n.Rotation = pose.Rotation
}

// ResetPose puts every animated part back to its exact rest pose.
func (c *Character) ResetPose() {
	for _, p := range Parts {
		c.SetPose(p, c.rest[p])
	}
}

// AtRest reports whether every animated part equals its rest pose.
func (c *Character) AtRest() bool {
	for _, p := range Parts {
		n := c.Part(p)
		if n.Position != c.rest[p].Position || n.Rotation != c.rest[p].Rotation {
			return false
		}
	}
	return true
}

// Alive reports whether the character has not been destroyed.
func (c *Character) Alive() bool {
	return c != nil && c.Root.Alive()
}

// Dispose releases every resource of the character.
func (c *Character) Dispose() {
	c.Root.Dispose()
}

// RoleColor is the color of the character's current role.
func (c *Character) RoleColor() scene.Color {
	return roles.Lookup(c.Role).Color
}

// Character dimensions in world units.
const (
	hipHeight  = 0.7
	legLength  = 0.7
	bodyHeight = 1.0
	labelLift  = 2.3
)

// NewCharacter builds a character for a player.
func (f *Factory) NewCharacter(id, nickname, role string, body scene.Color) *Character {
	role = roles.Normalize(role)
	geo := roles.Lookup(role)

	c := &Character{
		ID:       id,
		Nickname: nickname,
		Role:     role,
		Color:    body,
		Root:     scene.NewNode("player:" + id),
	}

	c.Body = f.part("body", scene.ShapeCapsule, scene.V(0.6, bodyHeight, 0.4), body)
	c.Body.Position = scene.V(0, hipHeight+bodyHeight/2, 0)
	c.Root.Add(c.Body)

	c.Backpack = f.part("backpack", scene.ShapeBox, scene.V(0.45, 0.55, 0.2), geo.Color)
	c.Backpack.Position = scene.V(0, hipHeight+0.55, -0.3)
	c.Root.Add(c.Backpack)

	c.LeftLeg = f.part("leftLeg", scene.ShapeBox, scene.V(0.18, legLength, 0.18), body)
	c.LeftLeg.Position = scene.V(-0.15, hipHeight, 0)
	c.Root.Add(c.LeftLeg)

	c.RightLeg = f.part("rightLeg", scene.ShapeBox, scene.V(0.18, legLength, 0.18), body)
	c.RightLeg.Position = scene.V(0.15, hipHeight, 0)
	c.Root.Add(c.RightLeg)

	// Feet hang off the legs so a leg swing carries its foot.
	c.LeftFoot = f.part("leftFoot", scene.ShapeBox, scene.V(0.2, 0.1, 0.32), scene.RGB(0x33, 0x33, 0x33))
	c.LeftFoot.Position = scene.V(0, -legLength, 0.08)
	c.LeftLeg.Add(c.LeftFoot)

	c.RightFoot = f.part("rightFoot", scene.ShapeBox, scene.V(0.2, 0.1, 0.32), scene.RGB(0x33, 0x33, 0x33))
	c.RightFoot.Position = scene.V(0, -legLength, 0.08)
	c.RightLeg.Add(c.RightFoot)

	for _, p := range Parts {
		n := c.Part(p)
		c.rest[p] = Pose{Position: n.Position, Rotation: n.Rotation}
	}

	c.Label = f.NewLabel(nickname, role)
	c.Label.Position = scene.V(0, labelLift, 0)
	c.Root.Add(c.Label)

	return c
}

// RebuildLabel replaces the label with one for the character's current
// nickname and role. The old label's texture is released first.
func (f *Factory) RebuildLabel(c *Character) {
	if c.Label != nil {
		c.Label.Dispose()
	}
	c.Label = f.NewLabel(c.Nickname, c.Role)
	c.Label.Position = scene.V(0, labelLift, 0)
	c.Root.Add(c.Label)
}

func (f *Factory) part(name string, shape scene.Shape, size scene.Vec3, c scene.Color) *scene.Node {
	n := scene.NewNode(name)
	n.Mesh = f.alloc.NewMesh(shape, size)
	n.Material = f.alloc.NewMaterial(c)
	return n
}
