// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package config loads the emulator settings file.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/ezrec/supermips/bridge"
	"github.com/ezrec/supermips/emulator"
	"github.com/ezrec/supermips/host"
	"github.com/ezrec/supermips/memory"
)

const (
	TITLE     = "SuperMIPS" // Default window title.
	MAX_SCALE = 8           // Largest window scale factor.
)

// Window is the [window] table.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Scale  int    `toml:"scale"`
}

// Timing is the [timing] table.
type Timing struct {
	FrameRate     int `toml:"frame_rate"`
	TicksPerFrame int `toml:"ticks_per_frame"`
}

// Memory is the [memory] table.
type Memory struct {
	BlockSize int `toml:"block_size"`
}

// Config is the complete settings file.
type Config struct {
	Window Window `toml:"window"`
	Timing Timing `toml:"timing"`
	Memory Memory `toml:"memory"`
}

// Default returns the settings used when no file is given.
func Default() (cfg *Config) {
	cfg = &Config{
		Window: Window{
			Title:  TITLE,
			Width:  host.WIDTH,
			Height: host.HEIGHT,
			Scale:  1,
		},
		Timing: Timing{
			FrameRate:     bridge.FRAME_RATE,
			TicksPerFrame: emulator.TICKS_PER_FRAME,
		},
		Memory: Memory{
			BlockSize: memory.BLOCK_SIZE,
		},
	}

	return
}

// Decode reads settings from r over the defaults. Keys missing from the
// input keep their default value; unknown keys are an error.
func Decode(r io.Reader) (cfg *Config, err error) {
	cfg = Default()

	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		cfg = nil
		err = fmt.Errorf("%w: %w", ErrSyntax, err)
		return
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		cfg = nil
		err = fmt.Errorf("%w: %v", ErrUnknownKey, undecoded)
		return
	}

	err = cfg.Validate()
	if err != nil {
		cfg = nil
		return
	}

	return
}

// Load reads and validates a settings file.
func Load(path string) (cfg *Config, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	cfg, err = Decode(inf)
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
		return
	}

	return
}

// Validate checks that every setting is usable.
func (cfg *Config) Validate() (err error) {
	switch {
	case cfg.Window.Width <= 0 || cfg.Window.Height <= 0:
		err = fmt.Errorf("%w: %dx%d", ErrWindowSize, cfg.Window.Width, cfg.Window.Height)
	case cfg.Window.Width > 0xffff || cfg.Window.Height > 0xffff:
		err = fmt.Errorf("%w: %dx%d", ErrWindowSize, cfg.Window.Width, cfg.Window.Height)
	case cfg.Window.Scale < 1 || cfg.Window.Scale > MAX_SCALE:
		err = fmt.Errorf("%w: %d", ErrWindowScale, cfg.Window.Scale)
	case cfg.Timing.FrameRate <= 0:
		err = fmt.Errorf("%w: %d", bridge.ErrFrameRate, cfg.Timing.FrameRate)
	case cfg.Timing.TicksPerFrame <= 0:
		err = fmt.Errorf("%w: %d", emulator.ErrTickCount, cfg.Timing.TicksPerFrame)
	case cfg.Memory.BlockSize <= 0:
		err = fmt.Errorf("%w: %d", memory.ErrBlockSize, cfg.Memory.BlockSize)
	}

	return
}

// Options returns the emulator options for these settings.
func (cfg *Config) Options() []emulator.Option {
	return []emulator.Option{
		emulator.WithBlockSize(cfg.Memory.BlockSize),
		emulator.WithBridge(bridge.WithFrameRate(cfg.Timing.FrameRate)),
	}
}
