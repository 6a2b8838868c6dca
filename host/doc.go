// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package host provides a headless implementation of bridge.Host.
//
// The headless host draws into an in-memory image so that guest programs
// can be run, and their output checked, without a display.
package host
