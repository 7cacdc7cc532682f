// Package render rasterizes the scene graph in software with fogleman/gg.
// The scene is first flattened into world-space items so drawing never
// touches live nodes.
package render

import (
	"image"

	"rey-arena/internal/camera"
	"rey-arena/internal/scene"
)

// Item is one drawable primitive in world space.
type Item struct {
	Name     string
	Shape    scene.Shape
	Center   scene.Vec3
	Size     scene.Vec3    // Mesh size times world scale
	Corners  [4]scene.Vec3 // Planes, lines and rings: footprint corners
	Color    scene.Color
	Emissive scene.Color
	Opacity  float64
	Image    *image.RGBA // Billboards only; never mutated after creation
}

// Frame is everything needed to draw one image.
type Frame struct {
	Camera camera.Pose
	Items  []Item
	HUD    []string
}

// Collect flattens every visible node under root that has a live mesh and
// material. Order follows the scene graph.
func Collect(root *scene.Node) []Item {
	var items []Item
	if root == nil {
		return items
	}
	root.Walk(func(n *scene.Node) bool {
		if !n.Visible || !n.Alive() {
			return false
		}
		if n.Mesh == nil || n.Material == nil || n.Mesh.Disposed() || n.Material.Disposed() {
			return true
		}

		ws := n.WorldScale()
		it := Item{
			Name:     n.Name,
			Shape:    n.Mesh.Shape,
			Center:   n.WorldPosition(),
			Size:     n.Mesh.Size.Mul(ws),
			Color:    n.Material.Color,
			Emissive: n.Material.Emissive,
			Opacity:  n.Material.Opacity,
		}

		switch n.Mesh.Shape {
		case scene.ShapePlane, scene.ShapeLine, scene.ShapeRing:
			hx, hz := n.Mesh.Size.X/2, n.Mesh.Size.Z/2
			it.Corners = [4]scene.Vec3{
				n.LocalToWorld(scene.V(-hx, 0, -hz)),
				n.LocalToWorld(scene.V(hx, 0, -hz)),
				n.LocalToWorld(scene.V(hx, 0, hz)),
				n.LocalToWorld(scene.V(-hx, 0, hz)),
			}
		case scene.ShapeBillboard:
			if n.Texture != nil && !n.Texture.Disposed() {
				it.Image = n.Texture.Image
			}
		}

		items = append(items, it)
		return true
	})
	return items
}
