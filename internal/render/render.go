package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"rey-arena/internal/metrics"
	"rey-arena/internal/scene"
)

// Config holds output size and lens.
type Config struct {
	Width  int
	Height int
	FOV    float64 // Vertical field of view in degrees
}

// DefaultConfig returns a 720p frame.
func DefaultConfig() Config {
	return Config{Width: 1280, Height: 720, FOV: 50}
}

const nearPlane = 0.1

var (
	skyColor    = color.RGBA{12, 12, 28, 255}
	shadowColor = color.RGBA{0, 0, 0, 90}
	hudColor    = color.RGBA{235, 235, 245, 255}
)

// Renderer draws frames into a reused gg context.
// Not safe for concurrent use.
type Renderer struct {
	cfg Config
	dc  *gg.Context

	// Stats
	frames uint64
}

// NewRenderer creates a renderer.
func NewRenderer(cfg Config) *Renderer {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		def := DefaultConfig()
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.FOV <= 0 || cfg.FOV >= 180 {
		cfg.FOV = DefaultConfig().FOV
	}
	return &Renderer{
		cfg: cfg,
		dc:  gg.NewContext(cfg.Width, cfg.Height),
	}
}

// Size returns the output dimensions.
func (r *Renderer) Size() (int, int) {
	return r.cfg.Width, r.cfg.Height
}

// Render draws f and returns the context's image. The image is reused by the
// next call.
func (r *Renderer) Render(f Frame) *image.RGBA {
	start := time.Now()
	dc := r.dc
	p := newProjector(f.Camera.Position, f.Camera.LookAt, r.cfg)

	dc.SetColor(skyColor)
	dc.DrawRectangle(0, 0, float64(r.cfg.Width), float64(r.cfg.Height))
	dc.Fill()

	// Ground-level primitives keep scene order; solids are painted far to near.
	var solids []Item
	for _, it := range f.Items {
		switch it.Shape {
		case scene.ShapePlane:
			r.drawPlane(p, it)
		case scene.ShapeLine:
			r.drawLines(p, it)
		case scene.ShapeRing:
			r.drawRing(p, it)
		default:
			solids = append(solids, it)
		}
	}

	for _, it := range solids {
		if it.Shape == scene.ShapeSphere || it.Shape == scene.ShapeCapsule {
			r.drawShadow(p, it)
		}
	}

	sort.SliceStable(solids, func(i, j int) bool {
		return p.depth(solids[i].Center) > p.depth(solids[j].Center)
	})
	for _, it := range solids {
		r.drawSolid(p, it)
	}

	r.drawHUD(f.HUD)

	r.frames++
	metrics.RecordRender(time.Since(start))
	return dc.Image().(*image.RGBA)
}

// SavePNG writes the last rendered image.
func (r *Renderer) SavePNG(path string) error {
	if err := r.dc.SavePNG(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Frames returns the number of rendered frames.
func (r *Renderer) Frames() uint64 {
	return r.frames
}

func (r *Renderer) drawPlane(p projector, it Item) {
	pts, ok := p.projectAll(it.Corners[:])
	if !ok {
		return
	}
	dc := r.dc
	dc.NewSubPath()
	for _, pt := range pts {
		dc.LineTo(pt.X, pt.Y)
	}
	dc.ClosePath()
	dc.SetColor(shade(it))
	dc.Fill()
}

// drawLines draws the court border and both center lines.
func (r *Renderer) drawLines(p projector, it Item) {
	c := it.Corners
	mid := func(a, b scene.Vec3) scene.Vec3 { return a.Lerp(b, 0.5) }
	segments := [][2]scene.Vec3{
		{c[0], c[1]}, {c[1], c[2]}, {c[2], c[3]}, {c[3], c[0]},
		{mid(c[0], c[1]), mid(c[3], c[2])},
		{mid(c[0], c[3]), mid(c[1], c[2])},
	}

	dc := r.dc
	dc.SetColor(shade(it))
	dc.SetLineWidth(2)
	for _, s := range segments {
		a, okA := p.project(s[0])
		b, okB := p.project(s[1])
		if !okA || !okB {
			continue
		}
		dc.DrawLine(a.X, a.Y, b.X, b.Y)
		dc.Stroke()
	}
}

func (r *Renderer) drawRing(p projector, it Item) {
	if it.Opacity <= 0 {
		return
	}
	pts, ok := p.projectAll(it.Corners[:])
	if !ok {
		return
	}
	cx, cy, rx, ry := ellipse(pts)
	dc := r.dc
	dc.SetColor(shade(it))
	dc.SetLineWidth(3)
	dc.DrawEllipse(cx, cy, rx, ry)
	dc.Stroke()
}

func (r *Renderer) drawShadow(p projector, it Item) {
	ground := scene.V(it.Center.X, 0, it.Center.Z)
	c, ok := p.project(ground)
	if !ok {
		return
	}
	radius := p.scale(ground, math.Max(it.Size.X, it.Size.Z)*0.6)
	r.dc.SetColor(shadowColor)
	r.dc.DrawEllipse(c.X, c.Y, radius, radius*0.4)
	r.dc.Fill()
}

func (r *Renderer) drawSolid(p projector, it Item) {
	c, ok := p.project(it.Center)
	if !ok {
		return
	}
	dc := r.dc
	w := p.scale(it.Center, it.Size.X)
	h := p.scale(it.Center, it.Size.Y)

	switch it.Shape {
	case scene.ShapeSphere:
		dc.SetColor(shade(it))
		dc.DrawCircle(c.X, c.Y, w)
		dc.Fill()
	case scene.ShapeCapsule:
		dc.SetColor(shade(it))
		dc.DrawRoundedRectangle(c.X-w/2, c.Y-h/2, w, h, w/2)
		dc.Fill()
	case scene.ShapeBox:
		dc.SetColor(shade(it))
		dc.DrawRectangle(c.X-w/2, c.Y-h/2, w, h)
		dc.Fill()
	case scene.ShapeBillboard:
		if it.Image == nil {
			return
		}
		b := it.Image.Bounds()
		s := w / float64(b.Dx())
		if s <= 0 {
			return
		}
		dc.Push()
		dc.ScaleAbout(s, s, c.X, c.Y)
		dc.DrawImageAnchored(it.Image, int(c.X), int(c.Y), 0.5, 0.5)
		dc.Pop()
	}
}

func (r *Renderer) drawHUD(lines []string) {
	if len(lines) == 0 {
		return
	}
	dc := r.dc
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(color.RGBA{0, 0, 0, 140})
	dc.DrawRoundedRectangle(8, 8, 260, float64(len(lines))*16+10, 6)
	dc.Fill()
	dc.SetColor(hudColor)
	for i, line := range lines {
		dc.DrawString(line, 16, 24+float64(i)*16)
	}
}

// shade combines base color, emission and opacity.
func shade(it Item) color.RGBA {
	return it.Color.Add(it.Emissive).RGBA(it.Opacity)
}

// ellipse fits an axis-aligned ellipse to four projected corners.
func ellipse(pts []gg.Point) (cx, cy, rx, ry float64) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return (minX + maxX) / 2, (minY + maxY) / 2, (maxX - minX) / 2, (maxY - minY) / 2
}

// projector is a pinhole camera.
type projector struct {
	eye            scene.Vec3
	right, up, fwd scene.Vec3
	focal          float64
	cx, cy         float64
}

func newProjector(eye, target scene.Vec3, cfg Config) projector {
	fwd := target.Sub(eye).Normalize()
	if fwd == (scene.Vec3{}) {
		fwd = scene.V(0, 0, -1)
	}
	worldUp := scene.V(0, 1, 0)
	right := fwd.Cross(worldUp).Normalize()
	if right == (scene.Vec3{}) {
		right = scene.V(1, 0, 0)
	}
	up := right.Cross(fwd)

	half := cfg.FOV * math.Pi / 360
	return projector{
		eye:   eye,
		right: right,
		up:    up,
		fwd:   fwd,
		focal: float64(cfg.Height) / 2 / math.Tan(half),
		cx:    float64(cfg.Width) / 2,
		cy:    float64(cfg.Height) / 2,
	}
}

func (p projector) depth(v scene.Vec3) float64 {
	return v.Sub(p.eye).Dot(p.fwd)
}

// project maps a world point to screen pixels. Points behind the near plane
// are rejected.
func (p projector) project(v scene.Vec3) (gg.Point, bool) {
	d := v.Sub(p.eye)
	z := d.Dot(p.fwd)
	if z < nearPlane {
		return gg.Point{}, false
	}
	return gg.Point{
		X: p.cx + p.focal*d.Dot(p.right)/z,
		Y: p.cy - p.focal*d.Dot(p.up)/z,
	}, true
}

func (p projector) projectAll(vs []scene.Vec3) ([]gg.Point, bool) {
	out := make([]gg.Point, 0, len(vs))
	for _, v := range vs {
		pt, ok := p.project(v)
		if !ok {
			return nil, false
		}
		out = append(out, pt)
	}
	return out, true
}

// scale converts a world length at v to pixels.
func (p projector) scale(v scene.Vec3, length float64) float64 {
	z := p.depth(v)
	if z < nearPlane {
		return 0
	}
	return p.focal * length / z
}
