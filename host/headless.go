// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package host

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"log"
	"os"

	"golang.org/x/image/colornames"

	"github.com/ezrec/supermips/bridge"
)

const (
	WIDTH  = 640 // Default surface width, in pixels.
	HEIGHT = 480 // Default surface height, in pixels.
)

// Headless is a bridge.Host that renders into memory.
type Headless struct {
	Verbose bool // If set, logs every presented frame.

	Output    io.Writer       // Console text destination.
	Surface   *image.NRGBA    // Back buffer the guest draws on.
	Presented *image.NRGBA    // Copy of Surface at the last Present.
	Titles    []string        // Every title set, oldest first.
	Frames    int             // Number of Present calls.
	Quit      bool            // Set by PushQuit.
	Keys      bridge.KeyState // Held keys, changed by Press and Release.
}

var _ bridge.Host = (*Headless)(nil)

// NewHeadless creates a headless host of the given size, cleared to cyan.
// Text output goes to os.Stdout.
func NewHeadless(width, height int) (h *Headless) {
	if width <= 0 {
		width = WIDTH
	}
	if height <= 0 {
		height = HEIGHT
	}

	bounds := image.Rect(0, 0, width, height)
	h = &Headless{
		Output:    os.Stdout,
		Surface:   image.NewNRGBA(bounds),
		Presented: image.NewNRGBA(bounds),
	}

	draw.Draw(h.Surface, bounds, image.NewUniform(colornames.Cyan), image.Point{}, draw.Src)
	draw.Draw(h.Presented, bounds, h.Surface, image.Point{}, draw.Src)

	return
}

// Present copies the back buffer to Presented.
func (h *Headless) Present() (err error) {
	draw.Draw(h.Presented, h.Presented.Bounds(), h.Surface, image.Point{}, draw.Src)
	h.Frames++

	if h.Verbose {
		log.Printf("headless: frame %d", h.Frames)
	}

	return
}

// Clear fills the whole back buffer.
func (h *Headless) Clear(c color.NRGBA) (err error) {
	draw.Draw(h.Surface, h.Surface.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return
}

// FillRect fills a rectangle of the back buffer, clipped to the surface.
func (h *Headless) FillRect(c color.NRGBA, r image.Rectangle) (err error) {
	draw.Draw(h.Surface, r.Intersect(h.Surface.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
	return
}

func (h *Headless) SetTitle(title string) (err error) {
	h.Titles = append(h.Titles, title)
	return
}

// Title is the most recent title, or empty if none was set.
func (h *Headless) Title() string {
	if len(h.Titles) == 0 {
		return ""
	}
	return h.Titles[len(h.Titles)-1]
}

func (h *Headless) PollKeys() bridge.KeyState {
	return h.Keys
}

func (h *Headless) PushQuit() {
	h.Quit = true
}

func (h *Headless) TextOutput(text string) (err error) {
	if h.Output == nil {
		return
	}

	_, err = io.WriteString(h.Output, text)
	if err != nil {
		return
	}

	if flusher, ok := h.Output.(interface{ Flush() error }); ok {
		err = flusher.Flush()
	}

	return
}

// Press holds down a key.
func (h *Headless) Press(key bridge.Key) {
	h.Keys[key] = true
}

// Release lets go of a key.
func (h *Headless) Release(key bridge.Key) {
	h.Keys[key] = false
}

// At returns the presented colour of a pixel.
func (h *Headless) At(x, y int) color.NRGBA {
	return h.Presented.NRGBAAt(x, y)
}
