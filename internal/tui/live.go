package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/viz"
)

const (
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer is a sim.Observer that redraws the world to out at most
// frameRate times per second. It is the non-interactive counterpart of the
// viewer, used while a batch run is in progress.
type LiveRenderer struct {
	world     *sim.World
	out       io.Writer
	frameRate int
	lastFrame time.Time
	canvas    *viz.Canvas
	scene     viz.Scene
	recent    []events.Event
}

func NewLiveRenderer(w *sim.World, out io.Writer, frameRate, width, height int) *LiveRenderer {
	return &LiveRenderer{
		world:     w,
		out:       out,
		frameRate: max(frameRate, 1),
		canvas:    viz.NewCanvas(width, height),
		scene:     viz.Scene{Theme: viz.ThemeMinimal},
	}
}

func (r *LiveRenderer) OnStep(s sim.Stats, evs []events.Event) {
	r.recent = append(r.recent, evs...)
	if over := len(r.recent) - maxFeed; over > 0 {
		r.recent = r.recent[over:]
	}
	if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()

	snaps := r.world.Bodies()
	r.scene.Camera = viz.Fit(snaps, r.canvas)
	r.scene.Draw(r.canvas, snaps, r.recent, s.Time)
	r.render(s)
}

func (r *LiveRenderer) render(s sim.Stats) {
	var b strings.Builder
	b.WriteString(clearScreen)
	fmt.Fprintf(&b, "  t=%.2f  bodies=%d  disk=%d  mass=%.2f\n", s.Time, s.Bodies, s.DiskParticles, s.Mass)
	b.WriteString("  " + strings.Repeat("-", r.canvas.Width) + "\n")
	for _, line := range strings.Split(strings.TrimRight(r.canvas.String(), "\n"), "\n") {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString("  " + strings.Repeat("-", r.canvas.Width) + "\n")
	for _, e := range r.recent {
		b.WriteString("  " + e.String() + "\n")
	}
	fmt.Fprint(r.out, b.String())
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Fprint(r.out, showCursor) }
