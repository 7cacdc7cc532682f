package frontend

import (
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"rey-arena/internal/input"
	"rey-arena/internal/protocol"
	"rey-arena/internal/render"
)

func keySet(keys ...ebiten.Key) func(ebiten.Key) bool {
	held := make(map[ebiten.Key]bool, len(keys))
	for _, k := range keys {
		held[k] = true
	}
	return func(k ebiten.Key) bool { return held[k] }
}

func TestReadKeys(t *testing.T) {
	tests := []struct {
		name string
		keys []ebiten.Key
		want input.KeyState
	}{
		{"none", nil, input.KeyState{}},
		{"wasd", []ebiten.Key{ebiten.KeyW, ebiten.KeyD}, input.KeyState{Up: true, Right: true}},
		{"arrows", []ebiten.Key{ebiten.KeyArrowDown, ebiten.KeyArrowLeft}, input.KeyState{Down: true, Left: true}},
		{"mixed", []ebiten.Key{ebiten.KeyA, ebiten.KeyArrowRight}, input.KeyState{Left: true, Right: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReadKeys(keySet(tt.keys...)); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestReadAction(t *testing.T) {
	tests := []struct {
		keys []ebiten.Key
		want string
	}{
		{nil, ""},
		{[]ebiten.Key{ebiten.KeyK}, "kick"},
		{[]ebiten.Key{ebiten.KeyH}, "head"},
		{[]ebiten.Key{ebiten.KeyEnter}, "serve"},
		{[]ebiten.Key{ebiten.KeyE, ebiten.KeyJ}, "kick"},
	}
	for _, tt := range tests {
		if got := ReadAction(keySet(tt.keys...)); got != tt.want {
			t.Errorf("ReadAction(%v): expected %q, got %q", tt.keys, tt.want, got)
		}
	}
}

type staticFrames struct {
	calls     int
	triggered []string
}

func (s *staticFrames) TriggerLocal(action string) bool {
	s.triggered = append(s.triggered, action)
	return true
}

func (s *staticFrames) Frame(now time.Time) render.Frame {
	s.calls++
	return render.Frame{}
}

func TestNewDefaultsAndLayout(t *testing.T) {
	r := render.NewRenderer(render.Config{Width: 320, Height: 180, FOV: 60})
	g := New(&staticFrames{}, input.NewSampler(nil), r, Options{})

	if g.opts.Title == "" || g.opts.TPS != 60 {
		t.Errorf("Expected defaults, got %+v", g.opts)
	}
	w, h := g.Layout(1920, 1080)
	if w != 320 || h != 180 {
		t.Errorf("Expected 320x180, got %dx%d", w, h)
	}
}

func TestPressPosesLocalPlayer(t *testing.T) {
	frames := &staticFrames{}
	sampler := input.NewSampler(nil)
	r := render.NewRenderer(render.Config{Width: 320, Height: 180, FOV: 60})
	g := New(frames, sampler, r, Options{})

	g.press(protocol.ActionKick)

	if got := sampler.Staged().Action; got != protocol.ActionKick {
		t.Errorf("Expected staged action %q, got %q", protocol.ActionKick, got)
	}
	if len(frames.triggered) != 1 || frames.triggered[0] != protocol.ActionKick {
		t.Errorf("Expected one local kick, got %v", frames.triggered)
	}
}
