// Package lights renders reply text on an addressable LED strip, one
// character at a time.
package lights

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Color is an RGB triple at full scale; strip brightness is applied by
// the hardware adapter.
type Color struct {
	R, G, B uint8
}

var (
	White = Color{255, 255, 255}
	Red   = Color{255, 0, 0}
	Green = Color{0, 255, 0}
	Blue  = Color{0, 0, 255}
	Gray  = Color{128, 128, 128}
	off   = Color{}
)

// Strip is the output device. WS281x drives real hardware; Console
// echoes to a writer with identical timing so the pipeline behaves the
// same without a strip attached.
type Strip interface {
	Set(pos int, c Color)
	Fill(c Color)
	Show() error
	Size() int
	Close() error
}

// Console is the hardware-absent strip. It tracks pixel state and
// writes a line per Show describing what is lit.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	pixels []Color
}

func NewConsole(w io.Writer, size int) *Console {
	return &Console{w: w, pixels: make([]Color, size)}
}

func (c *Console) Size() int { return len(c.pixels) }

func (c *Console) Set(pos int, col Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pos >= 0 && pos < len(c.pixels) {
		c.pixels[pos] = col
	}
}

func (c *Console) Fill(col Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.pixels {
		c.pixels[i] = col
	}
}

func (c *Console) Show() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lit []string
	for i, p := range c.pixels {
		if p != off {
			lit = append(lit, fmt.Sprintf("%d:#%02x%02x%02x", i, p.R, p.G, p.B))
		}
	}
	if len(lit) == 0 {
		_, err := fmt.Fprintln(c.w, "lights: off")
		return err
	}
	if len(lit) > 8 {
		_, err := fmt.Fprintf(c.w, "lights: %d lit\n", len(lit))
		return err
	}
	_, err := fmt.Fprintf(c.w, "lights: %s\n", strings.Join(lit, " "))
	return err
}

func (c *Console) Close() error {
	c.Fill(off)
	return nil
}
