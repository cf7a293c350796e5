package lights

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/lumenwall/lumenwall/internal/errors"
	"github.com/lumenwall/lumenwall/internal/trace"
)

// Palette cycles by character index across the whole message, so the
// same letter shows in different colors as the reply plays out.
var Palette = []Color{Red, Green, Blue, Gray}

// flashPalette is the color pool for the dramatic all-strip effect.
var flashPalette = []Color{
	Red, Green, Blue,
	{255, 255, 0}, {255, 0, 255}, {0, 255, 255},
	{255, 128, 0}, White,
}

// Dramatic flash bounds and cadence.
const (
	flashMin    = 2 * time.Second
	flashMax    = 4 * time.Second
	flashStep   = 80 * time.Millisecond
	flashSettle = 300 * time.Millisecond
)

// StepKind discriminates Sequence steps.
type StepKind int

const (
	StepLight StepKind = iota
	StepPause
	StepFlash
)

// Step is one renderable unit of a message. Sequence is pure so tests
// can assert the plan without real timing.
type Step struct {
	Kind  StepKind
	Char  rune
	Pos   int
	Color Color
}

// Options carries the render timing knobs.
type Options struct {
	Hold time.Duration // how long each letter stays lit
	Gap  time.Duration // dark interval before each letter
}

// Renderer plays messages on a strip. Rendering is strictly
// sequential; concurrency control lives in the orchestrator.
type Renderer struct {
	strip   Strip
	mapping Mapping
	opt     Options
}

func NewRenderer(strip Strip, mapping Mapping, opt Options) *Renderer {
	if opt.Hold <= 0 {
		opt.Hold = 900 * time.Millisecond
	}
	if opt.Gap <= 0 {
		opt.Gap = 200 * time.Millisecond
	}
	return &Renderer{strip: strip, mapping: mapping, opt: opt}
}

// Sequence derives the render plan for a message. Spaces become
// pauses, '!' becomes a flash, unmapped characters vanish. The palette
// index follows the character's position in the message, spaces and
// skipped characters included.
func (r *Renderer) Sequence(text string) []Step {
	var steps []Step
	idx := 0
	for _, ch := range strings.ToUpper(text) {
		switch {
		case ch == ' ':
			steps = append(steps, Step{Kind: StepPause, Char: ch})
		case ch == '!':
			steps = append(steps, Step{Kind: StepFlash, Char: ch})
		default:
			if pos, ok := r.mapping.Lookup(ch); ok {
				steps = append(steps, Step{
					Kind:  StepLight,
					Char:  ch,
					Pos:   pos,
					Color: Palette[idx%len(Palette)],
				})
			}
		}
		idx++
	}
	return steps
}

// Render plays the message to completion or until ctx is canceled.
// Cancellation clears the strip and reports RenderInterrupted.
func (r *Renderer) Render(ctx context.Context, text string) error {
	log := trace.Logger(ctx)
	r.AllOff()

	for _, step := range r.Sequence(text) {
		var err error
		switch step.Kind {
		case StepPause:
			err = r.sleep(ctx, 3*r.opt.Gap)
		case StepFlash:
			err = r.flashAll(ctx)
		case StepLight:
			err = r.playLight(ctx, step)
		}
		if err != nil {
			r.AllOff()
			log.Info("render interrupted", "char", string(step.Char))
			return errors.Wrap(err, errors.RenderInterrupted, "render aborted")
		}
	}

	r.AllOff()
	return nil
}

func (r *Renderer) playLight(ctx context.Context, step Step) error {
	if err := r.sleep(ctx, r.opt.Gap); err != nil {
		return err
	}
	r.strip.Set(step.Pos, step.Color)
	if err := r.strip.Show(); err != nil {
		return err
	}
	if err := r.sleep(ctx, r.opt.Hold); err != nil {
		return err
	}
	r.strip.Set(step.Pos, off)
	return r.strip.Show()
}

// flashAll lights random subsets of the strip in random colors for a
// random 2 to 4 second burst, then settles dark.
func (r *Renderer) flashAll(ctx context.Context) error {
	total := flashMin + rand.N(flashMax-flashMin)
	deadline := time.Now().Add(total)
	n := r.strip.Size()
	if n == 0 {
		return r.sleep(ctx, total)
	}

	for time.Now().Before(deadline) {
		count := n/5 + rand.IntN(n/2-n/5+1)
		for i := 0; i < count; i++ {
			r.strip.Set(rand.IntN(n), flashPalette[rand.IntN(len(flashPalette))])
		}
		if err := r.strip.Show(); err != nil {
			return err
		}
		if err := r.sleep(ctx, flashStep); err != nil {
			return err
		}
	}

	r.strip.Fill(off)
	if err := r.strip.Show(); err != nil {
		return err
	}
	return r.sleep(ctx, flashSettle)
}

// Acknowledge double-flashes the whole strip white to confirm the wake
// word landed before recording starts.
func (r *Renderer) Acknowledge() error {
	for i := 0; i < 2; i++ {
		r.strip.Fill(White)
		if err := r.strip.Show(); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
		r.strip.Fill(off)
		if err := r.strip.Show(); err != nil {
			return err
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// FailureCue briefly pulses the strip red so a failed turn is visible
// without text.
func (r *Renderer) FailureCue() error {
	r.strip.Fill(Red)
	if err := r.strip.Show(); err != nil {
		return err
	}
	time.Sleep(200 * time.Millisecond)
	r.strip.Fill(off)
	return r.strip.Show()
}

// AllOff blanks the strip. Safe to call repeatedly.
func (r *Renderer) AllOff() {
	r.strip.Fill(off)
	r.strip.Show()
}

func (r *Renderer) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
