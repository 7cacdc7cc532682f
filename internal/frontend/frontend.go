// Package frontend runs the scene in an ebiten window: pointer, touch and
// keyboard feed the input sampler, and each draw renders one scene frame.
package frontend

import (
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"rey-arena/internal/input"
	"rey-arena/internal/protocol"
	"rey-arena/internal/render"
)

// mousePointerID keeps the mouse apart from touch ids, which start at 0.
const mousePointerID = -1

// FrameSource produces the frame to draw at a given time and poses the
// local player for actions pressed in this window.
type FrameSource interface {
	Frame(now time.Time) render.Frame
	TriggerLocal(action string) bool
}

// Options configures the window.
type Options struct {
	Title   string
	TPS     int
	ShowTPS bool
	// Done ends the run loop when closed, e.g. on disconnect or signal.
	Done <-chan struct{}
}

// Game implements ebiten.Game.
type Game struct {
	scene    FrameSource
	sampler  *input.Sampler
	renderer *render.Renderer
	opts     Options
	clock    func() time.Time

	touches []ebiten.TouchID
	keys    input.KeyState

	// Stats
	updates uint64
	draws   uint64
}

// New creates the window game. The window size follows the renderer.
func New(scene FrameSource, sampler *input.Sampler, renderer *render.Renderer, opts Options) *Game {
	if opts.Title == "" {
		opts.Title = "Rey Arena"
	}
	if opts.TPS <= 0 {
		opts.TPS = 60
	}
	return &Game{
		scene:    scene,
		sampler:  sampler,
		renderer: renderer,
		opts:     opts,
		clock:    time.Now,
	}
}

// Run opens the window and blocks until it closes.
func Run(g *Game) error {
	w, h := g.renderer.Size()
	ebiten.SetWindowTitle(g.opts.Title)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(g.opts.TPS)
	return ebiten.RunGame(g)
}

// Update samples input once per tick.
func (g *Game) Update() error {
	g.updates++

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if g.opts.Done != nil {
		select {
		case <-g.opts.Done:
			return ebiten.Termination
		default:
		}
	}

	g.updatePointers()

	if keys := ReadKeys(ebiten.IsKeyPressed); keys != g.keys {
		g.keys = keys
		g.sampler.Keys(keys)
	}
	if action := ReadAction(inpututil.IsKeyJustPressed); action != "" {
		g.press(action)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.sampler.Jump()
	}
	return nil
}

// updatePointers forwards the mouse and every touch as pointer events.
func (g *Game) updatePointers() {
	mx, my := ebiten.CursorPosition()
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		g.pointer(mousePointerID, input.PointerDown, mx, my)
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		g.pointer(mousePointerID, input.PointerUp, mx, my)
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		g.pointer(mousePointerID, input.PointerMove, mx, my)
	}

	g.touches = inpututil.AppendJustPressedTouchIDs(g.touches[:0])
	for _, id := range g.touches {
		x, y := ebiten.TouchPosition(id)
		g.pointer(int(id), input.PointerDown, x, y)
	}
	g.touches = ebiten.AppendTouchIDs(g.touches[:0])
	for _, id := range g.touches {
		if inpututil.TouchPressDuration(id) <= 1 {
			continue
		}
		x, y := ebiten.TouchPosition(id)
		g.pointer(int(id), input.PointerMove, x, y)
	}
	g.touches = inpututil.AppendJustReleasedTouchIDs(g.touches[:0])
	for _, id := range g.touches {
		x, y := inpututil.TouchPositionInPreviousTick(id)
		g.pointer(int(id), input.PointerUp, x, y)
	}
}

// press latches action for the server and poses the local player now.
func (g *Game) press(action string) {
	g.sampler.Press(action)
	g.scene.TriggerLocal(action)
}

func (g *Game) pointer(id int, phase input.PointerPhase, x, y int) {
	g.sampler.Pointer(input.PointerEvent{ID: id, Phase: phase, X: float64(x), Y: float64(y)})
}

// Draw renders the current scene frame into the screen.
func (g *Game) Draw(screen *ebiten.Image) {
	g.draws++
	img := g.renderer.Render(g.scene.Frame(g.clock()))
	screen.WritePixels(img.Pix)
	if g.opts.ShowTPS {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("TPS %.0f  FPS %.0f", ebiten.ActualTPS(), ebiten.ActualFPS()), 8, 8)
	}
}

// Layout fixes the logical screen to the renderer size; ebiten scales it
// to the window.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.renderer.Size()
}

// GetStats returns loop counters.
func (g *Game) GetStats() map[string]uint64 {
	return map[string]uint64{
		"updates": g.updates,
		"draws":   g.draws,
	}
}

// ReadKeys maps WASD and the arrow keys to held directions.
func ReadKeys(pressed func(ebiten.Key) bool) input.KeyState {
	return input.KeyState{
		Up:    pressed(ebiten.KeyW) || pressed(ebiten.KeyArrowUp),
		Down:  pressed(ebiten.KeyS) || pressed(ebiten.KeyArrowDown),
		Left:  pressed(ebiten.KeyA) || pressed(ebiten.KeyArrowLeft),
		Right: pressed(ebiten.KeyD) || pressed(ebiten.KeyArrowRight),
	}
}

// actionKeys lists one-shot actions in priority order.
var actionKeys = []struct {
	key    ebiten.Key
	action string
}{
	{ebiten.KeyK, protocol.ActionKick},
	{ebiten.KeyJ, protocol.ActionKick},
	{ebiten.KeyH, protocol.ActionHead},
	{ebiten.KeyL, protocol.ActionHead},
	{ebiten.KeyE, protocol.ActionServe},
	{ebiten.KeyEnter, protocol.ActionServe},
}

// ReadAction returns the first action whose key was just pressed.
func ReadAction(justPressed func(ebiten.Key) bool) string {
	for _, ak := range actionKeys {
		if justPressed(ak.key) {
			return ak.action
		}
	}
	return ""
}
