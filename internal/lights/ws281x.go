package lights

import (
	ws2811 "github.com/rpi-ws281x/rpi-ws281x-go"

	"github.com/lumenwall/lumenwall/internal/errors"
)

// WS281x drives a physical strip over the Pi's PWM channel.
type WS281x struct {
	dev  *ws2811.WS2811
	size int
}

// NewWS281x initializes the strip. A HardwareAbsent error means the
// caller should fall back to the Console strip.
func NewWS281x(count, brightness int) (*WS281x, error) {
	opt := ws2811.DefaultOptions
	opt.Channels[0].LedCount = count
	opt.Channels[0].Brightness = brightness

	dev, err := ws2811.MakeWS2811(&opt)
	if err != nil {
		return nil, errors.Wrap(err, errors.HardwareAbsent, "creating ws281x device")
	}
	if err := dev.Init(); err != nil {
		return nil, errors.Wrap(err, errors.HardwareAbsent, "initializing ws281x device")
	}
	return &WS281x{dev: dev, size: count}, nil
}

func (w *WS281x) Size() int { return w.size }

func (w *WS281x) Set(pos int, c Color) {
	if pos < 0 || pos >= w.size {
		return
	}
	w.dev.Leds(0)[pos] = packRGB(c)
}

func (w *WS281x) Fill(c Color) {
	leds := w.dev.Leds(0)
	v := packRGB(c)
	for i := range leds {
		leds[i] = v
	}
}

func (w *WS281x) Show() error {
	return w.dev.Render()
}

// Close blanks the strip before releasing the device so the last
// frame does not stay lit.
func (w *WS281x) Close() error {
	w.Fill(off)
	err := w.dev.Render()
	w.dev.Fini()
	return err
}

func packRGB(c Color) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}
