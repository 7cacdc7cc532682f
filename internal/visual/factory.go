package visual

import (
	"image"
	"image/draw"
	"strings"

	"rey-arena/internal/roles"
	"rey-arena/internal/scene"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Factory creates renderables. It holds no state besides the allocator, so
// the same inputs always produce the same shapes.
type Factory struct {
	alloc *scene.Allocator
}

// NewFactory creates a factory backed by alloc.
func NewFactory(alloc *scene.Allocator) *Factory {
	return &Factory{alloc: alloc}
}

// Allocator returns the allocator the factory draws from.
func (f *Factory) Allocator() *scene.Allocator {
	return f.alloc
}

// Label texture size in pixels.
const (
	labelWidth  = 160
	labelHeight = 40
	maxNickLen  = 18
)

// truncateNick trims nickname to maxNickLen runes.
func truncateNick(nickname string) string {
	nickname = strings.TrimSpace(nickname)
	if r := []rune(nickname); len(r) > maxNickLen {
		return string(r[:maxNickLen])
	}
	return nickname
}

// NewLabel builds a billboard showing nickname and role.
func (f *Factory) NewLabel(nickname, role string) *scene.Node {
	n := scene.NewNode("label")
	n.Mesh = f.alloc.NewMesh(scene.ShapeBillboard, scene.V(1.6, 0.4, 0))
	n.Material = f.alloc.NewMaterial(scene.RGB(255, 255, 255))
	n.Texture = f.alloc.NewTexture(RenderLabel(nickname, role))
	return n
}

// RenderLabel draws the label image: nickname on top, role underneath on a
// strip of the role color.
func RenderLabel(nickname, role string) *image.RGBA {
	nickname = truncateNick(nickname)
	geo := roles.Lookup(role)

	dc := gg.NewContext(labelWidth, labelHeight)
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(scene.RGB(0x14, 0x19, 0x23).RGBA(0.75))
	dc.DrawRoundedRectangle(0, 0, labelWidth, labelHeight, 8)
	dc.Fill()

	dc.SetColor(scene.RGB(255, 255, 255).RGBA(1))
	dc.DrawStringAnchored(nickname, labelWidth/2, labelHeight*0.3, 0.5, 0.5)

	if name := roles.DisplayName(role); name != "" {
		dc.SetColor(geo.Color.RGBA(1))
		dc.DrawRectangle(8, labelHeight*0.55, labelWidth-16, labelHeight*0.38)
		dc.Fill()
		dc.SetColor(scene.RGB(0x14, 0x19, 0x23).RGBA(1))
		dc.DrawStringAnchored(name, labelWidth/2, labelHeight*0.74, 0.5, 0.5)
	}

	if img, ok := dc.Image().(*image.RGBA); ok {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, labelWidth, labelHeight))
	draw.Draw(out, out.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return out
}

// Ball radius in world units.
const BallRadius = 0.25

// NewBall builds the ball.
func (f *Factory) NewBall() *scene.Node {
	n := scene.NewNode("ball")
	n.Mesh = f.alloc.NewMesh(scene.ShapeSphere, scene.V(BallRadius, BallRadius, BallRadius))
	n.Material = f.alloc.NewMaterial(scene.RGB(0xf5, 0xf5, 0xf5))
	n.Position = scene.V(0, BallRadius, 0)
	return n
}

// Overlay is a quadrant's tinted floor panel. Base values are what a
// highlight flash restores.
type Overlay struct {
	Role        string
	Node        *scene.Node
	BaseColor   scene.Color
	BaseOpacity float64
}

// Restore writes the base color and opacity back to the material.
func (o *Overlay) Restore() {
	o.Node.Material.Color = o.BaseColor
	o.Node.Material.Opacity = o.BaseOpacity
}

// Court is the static playfield.
type Court struct {
	Root     *scene.Node
	Ground   *scene.Node
	Lines    *scene.Node
	Overlays map[string]*Overlay
}

// Overlay returns the overlay for role, or nil.
func (c *Court) Overlay(role string) *Overlay {
	return c.Overlays[roles.Normalize(role)]
}

// Dispose releases every court resource.
func (c *Court) Dispose() {
	c.Root.Dispose()
}

const overlayOpacity = 0.18

// NewCourt builds the ground, the four quadrant overlays and center lines.
func (f *Factory) NewCourt() *Court {
	size := roles.CourtHalfSize * 2
	c := &Court{
		Root:     scene.NewNode("court"),
		Overlays: make(map[string]*Overlay, 4),
	}

	c.Ground = scene.NewNode("ground")
	c.Ground.Mesh = f.alloc.NewMesh(scene.ShapePlane, scene.V(size, 0, size))
	c.Ground.Material = f.alloc.NewMaterial(scene.RGB(0x2e, 0x3b, 0x4e))
	c.Root.Add(c.Ground)

	for _, role := range roles.All() {
		geo := roles.Lookup(role)
		n := scene.NewNode("overlay:" + role)
		n.Mesh = f.alloc.NewMesh(scene.ShapePlane, scene.V(roles.CourtHalfSize, 0, roles.CourtHalfSize))
		n.Material = f.alloc.NewMaterial(geo.Color)
		n.Material.Opacity = overlayOpacity
		n.Position = geo.Quadrant.Add(scene.V(0, 0.01, 0))
		c.Root.Add(n)

		c.Overlays[role] = &Overlay{
			Role:        role,
			Node:        n,
			BaseColor:   geo.Color,
			BaseOpacity: overlayOpacity,
		}
	}

	c.Lines = scene.NewNode("lines")
	c.Lines.Mesh = f.alloc.NewMesh(scene.ShapeLine, scene.V(size, 0, size))
	c.Lines.Material = f.alloc.NewMaterial(scene.RGB(255, 255, 255))
	c.Lines.Position = scene.V(0, 0.02, 0)
	c.Root.Add(c.Lines)

	return c
}

// NewHalo builds a glow ring sized to surround a character.
func (f *Factory) NewHalo(c scene.Color) *scene.Node {
	n := scene.NewNode("halo")
	n.Mesh = f.alloc.NewMesh(scene.ShapeRing, scene.V(0.9, 0, 0.9))
	n.Material = f.alloc.NewMaterial(c)
	n.Material.Emissive = c
	n.Material.Opacity = 0
	n.Position = scene.V(0, 0.05, 0)
	return n
}
