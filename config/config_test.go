package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/supermips/bridge"
	"github.com/ezrec/supermips/emulator"
	"github.com/ezrec/supermips/host"
	"github.com/ezrec/supermips/memory"
)

func TestDefault(t *testing.T) {
	assert := assert.New(t)

	cfg := Default()
	assert.Equal("SuperMIPS", cfg.Window.Title)
	assert.Equal(640, cfg.Window.Width)
	assert.Equal(480, cfg.Window.Height)
	assert.Equal(1, cfg.Window.Scale)
	assert.Equal(30, cfg.Timing.FrameRate)
	assert.Equal(200000, cfg.Timing.TicksPerFrame)
	assert.Equal(1024, cfg.Memory.BlockSize)
	assert.NoError(cfg.Validate())
}

func TestDecode(t *testing.T) {
	assert := assert.New(t)

	input := strings.Join([]string{
		"[window]",
		"title = \"Bouncy\"",
		"scale = 2",
		"",
		"[timing]",
		"frame_rate = 60",
		"",
		"[memory]",
		"block_size = 256",
	}, "\n")

	cfg, err := Decode(strings.NewReader(input))
	assert.NoError(err)
	assert.Equal("Bouncy", cfg.Window.Title)
	assert.Equal(640, cfg.Window.Width)
	assert.Equal(2, cfg.Window.Scale)
	assert.Equal(60, cfg.Timing.FrameRate)
	assert.Equal(200000, cfg.Timing.TicksPerFrame)
	assert.Equal(256, cfg.Memory.BlockSize)

	cfg, err = Decode(strings.NewReader(""))
	assert.NoError(err)
	assert.Equal(Default(), cfg)
}

func TestDecodeErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		input string
		err   error
	}){
		{"syntax", "[window\n", ErrSyntax},
		{"type", "[window]\nwidth = \"wide\"\n", ErrSyntax},
		{"unknown", "[window]\ncolour = 3\n", ErrUnknownKey},
		{"unknown_table", "[audio]\nvolume = 3\n", ErrUnknownKey},
		{"width", "[window]\nwidth = 0\n", ErrWindowSize},
		{"height", "[window]\nheight = 70000\n", ErrWindowSize},
		{"scale", "[window]\nscale = 9\n", ErrWindowScale},
		{"frame_rate", "[timing]\nframe_rate = -1\n", bridge.ErrFrameRate},
		{"ticks", "[timing]\nticks_per_frame = 0\n", emulator.ErrTickCount},
		{"block_size", "[memory]\nblock_size = 0\n", memory.ErrBlockSize},
	}

	for _, entry := range table {
		cfg, err := Decode(strings.NewReader(entry.input))
		assert.ErrorIs(err, entry.err, entry.name)
		assert.Nil(cfg, entry.name)
	}
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "supermips.toml")
	err := os.WriteFile(path, []byte("[timing]\nticks_per_frame = 1000\n"), 0o644)
	assert.NoError(err)

	cfg, err := Load(path)
	assert.NoError(err)
	assert.Equal(1000, cfg.Timing.TicksPerFrame)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(err, os.ErrNotExist)

	err = os.WriteFile(path, []byte("[memory]\nblock_size = -4\n"), 0o644)
	assert.NoError(err)
	_, err = Load(path)
	assert.ErrorIs(err, memory.ErrBlockSize)
	assert.Contains(err.Error(), path)
}

func TestOptions(t *testing.T) {
	assert := assert.New(t)

	cfg := Default()
	cfg.Memory.BlockSize = 32

	emu, err := emulator.NewEmulator(host.NewHeadless(0, 0), cfg.Options()...)
	assert.NoError(err)
	assert.Equal(32, emu.Memory.Data.Len())

	cfg.Timing.FrameRate = 0
	_, err = emulator.NewEmulator(host.NewHeadless(0, 0), cfg.Options()...)
	assert.ErrorIs(err, bridge.ErrFrameRate)
}
