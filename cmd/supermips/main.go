// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ezrec/supermips/bridge"
	"github.com/ezrec/supermips/config"
	"github.com/ezrec/supermips/emulator"
	"github.com/ezrec/supermips/host"
	"github.com/ezrec/supermips/host/ebitenhost"
	"github.com/ezrec/supermips/internal"
	"github.com/ezrec/supermips/mips"
)

func main() {
	var compile string
	var text string
	var data string
	var settings string
	var headless bool
	var frames int
	var defines bool
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to assemble and run")
	flag.StringVar(&text, "t", "", "Raw text segment binary")
	flag.StringVar(&data, "d", "", "Raw data segment binary")
	flag.StringVar(&settings, "config", "", ".toml settings file")
	flag.BoolVar(&headless, "headless", false, "Run without a window")
	flag.IntVar(&frames, "frames", 0, "Headless frame limit, 0 for no limit")
	flag.BoolVar(&defines, "defines", false, "List assembler equates and exit")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(compile) != 0 && (len(text) != 0 || len(data) != 0) {
		log.Fatalf("%v: -c can not be combined with -t or -d", os.Args[0])
	}

	if !defines && len(compile) == 0 && len(text) == 0 {
		log.Fatalf("%v: one of -c or -t is required", os.Args[0])
	}

	cfg := config.Default()
	if len(settings) != 0 {
		var err error
		cfg, err = config.Load(settings)
		if err != nil {
			log.Fatal(err)
		}
	}

	var hl *host.Headless
	var window *ebitenhost.Host
	var adapter bridge.Host
	if headless || defines {
		hl = host.NewHeadless(cfg.Window.Width, cfg.Window.Height)
		hl.Verbose = verbose
		adapter = hl
	} else {
		window = ebitenhost.NewHost(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height, cfg.Window.Scale, cfg.Timing.FrameRate)
		window.Verbose = verbose
		adapter = window
	}

	opts := append(cfg.Options(), emulator.WithVerbose(verbose))
	emu, err := emulator.NewEmulator(adapter, opts...)
	if err != nil {
		log.Fatal(err)
	}

	if defines {
		for key, value := range internal.IterSeq2Sorted(emu.Defines()) {
			fmt.Printf(".equ %v %v\n", key, value)
		}
		return
	}

	// Assemble a new instruction stream.
	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := mips.NewAssembler()
		asm.Verbose = verbose
		prog, err := asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		err = emu.Load(prog)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	} else {
		textBytes, err := os.ReadFile(text)
		if err != nil {
			log.Fatal(err)
		}

		var dataBytes []byte
		if len(data) != 0 {
			dataBytes, err = os.ReadFile(data)
			if err != nil {
				log.Fatal(err)
			}
		}

		err = emu.LoadBytes(textBytes, dataBytes)
		if err != nil {
			log.Fatal(err)
		}
	}

	ticks := cfg.Timing.TicksPerFrame

	if window != nil {
		err = window.Run(func() (bool, error) {
			return emu.RunFrame(ticks)
		})
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	for frame := 0; frames == 0 || frame < frames; frame++ {
		done, err := emu.RunFrame(ticks)
		if err != nil {
			log.Fatal(err)
		}
		if done {
			break
		}
	}

	if verbose {
		log.Printf("%v: %d frames presented, title %q", os.Args[0], hl.Frames, hl.Title())
	}
}
