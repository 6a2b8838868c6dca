// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package ebitenhost implements bridge.Host with an ebiten window.
package ebitenhost

import (
	"errors"
	"image"
	"image/color"
	"io"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/colornames"

	"github.com/ezrec/supermips/bridge"
	"github.com/ezrec/supermips/translate"
)

var f = translate.From

var ErrNoRunner = errors.New(f("no frame runner"))

// keyMap binds the guest keys to ebiten keys.
var keyMap = [bridge.KEY_COUNT]ebiten.Key{
	bridge.KEY_ESCAPE:   ebiten.KeyEscape,
	bridge.KEY_W:        ebiten.KeyW,
	bridge.KEY_A:        ebiten.KeyA,
	bridge.KEY_S:        ebiten.KeyS,
	bridge.KEY_D:        ebiten.KeyD,
	bridge.KEY_UP:       ebiten.KeyArrowUp,
	bridge.KEY_LEFT:     ebiten.KeyArrowLeft,
	bridge.KEY_DOWN:     ebiten.KeyArrowDown,
	bridge.KEY_RIGHT:    ebiten.KeyArrowRight,
	bridge.KEY_SPACE:    ebiten.KeySpace,
	bridge.KEY_RETURN:   ebiten.KeyEnter,
	bridge.KEY_KP_ENTER: ebiten.KeyNumpadEnter,
	bridge.KEY_LSHIFT:   ebiten.KeyShiftLeft,
	bridge.KEY_RSHIFT:   ebiten.KeyShiftRight,
}

// Runner advances the guest by one frame, reporting when it is done.
type Runner func() (done bool, err error)

// Host is an ebiten game that the guest draws into.
//
// The guest draws on a back image. Present copies it to the front image,
// which is the only thing Draw shows. Runner is called from Update, so
// every Host method runs on ebiten's update goroutine.
type Host struct {
	Verbose bool
	Output  io.Writer // Console text destination.

	width, height int
	scale         int
	back          *ebiten.Image
	front         *ebiten.Image
	quit          bool
	runner        Runner
	err           error
}

var _ bridge.Host = (*Host)(nil)

// tps is the ebiten update rate for a guest frame rate. The guest paces
// itself inside Update, so ebiten must not schedule more updates than that.
func tps(frameRate int) int {
	if frameRate <= 0 {
		return bridge.FRAME_RATE
	}
	return frameRate
}

// NewHost creates a window sized width x height, magnified by scale,
// updated frameRate times per second.
func NewHost(title string, width, height, scale, frameRate int) (h *Host) {
	if scale <= 0 {
		scale = 1
	}

	h = &Host{
		Output: os.Stdout,
		width:  width,
		height: height,
		scale:  scale,
		back:   ebiten.NewImage(width, height),
		front:  ebiten.NewImage(width, height),
	}

	h.back.Fill(colornames.Cyan)
	h.front.Fill(colornames.Cyan)

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width*scale, height*scale)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(tps(frameRate))

	return
}

// Run opens the window and calls runner once per ebiten update until the
// guest exits, the window is closed, or runner fails.
func (h *Host) Run(runner Runner) (err error) {
	if runner == nil {
		err = ErrNoRunner
		return
	}

	h.runner = runner

	err = ebiten.RunGame(h)
	if err != nil {
		return
	}

	err = h.err
	return
}

// Update implements ebiten.Game.
func (h *Host) Update() error {
	if ebiten.IsWindowBeingClosed() {
		if h.Verbose {
			log.Printf("ebitenhost: window closed")
		}
		return ebiten.Termination
	}

	if h.quit {
		return ebiten.Termination
	}

	done, err := h.runner()
	if err != nil {
		h.err = err
		return ebiten.Termination
	}
	if done || h.quit {
		return ebiten.Termination
	}

	return nil
}

// Draw implements ebiten.Game.
func (h *Host) Draw(screen *ebiten.Image) {
	screen.DrawImage(h.front, nil)
}

// Layout implements ebiten.Game.
func (h *Host) Layout(_, _ int) (int, int) {
	return h.width, h.height
}

func (h *Host) Present() (err error) {
	h.front.Clear()
	h.front.DrawImage(h.back, nil)
	return
}

func (h *Host) Clear(c color.NRGBA) (err error) {
	h.back.Fill(c)
	return
}

func (h *Host) FillRect(c color.NRGBA, r image.Rectangle) (err error) {
	r = r.Intersect(h.back.Bounds())
	if r.Empty() {
		return
	}

	h.back.SubImage(r).(*ebiten.Image).Fill(c)
	return
}

func (h *Host) SetTitle(title string) (err error) {
	ebiten.SetWindowTitle(title)
	return
}

func (h *Host) PollKeys() (keys bridge.KeyState) {
	for key, ekey := range keyMap {
		keys[key] = ebiten.IsKeyPressed(ekey)
	}
	return
}

func (h *Host) PushQuit() {
	h.quit = true
}

func (h *Host) TextOutput(text string) (err error) {
	_, err = io.WriteString(h.Output, text)
	return
}
