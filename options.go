package mcbackend

import "github.com/microlower/mcbackend/internal/abi"

// OptLevel selects how aggressively Lower runs the optimization
// fixed-point loop. O0 disables it outright; every other
// level enables the full pass list with no intermediate tiers — this
// backend has exactly one optimization pipeline, not one per level.
type OptLevel byte

const (
	O0 OptLevel = iota
	O1
	O2
	O3
	Os
	Oz
)

// Options is the backend's only configuration surface: constructed by
// the caller, never parsed from a file or environment by
// this package. Module identifies the compilation unit for diagnostics;
// it does not affect code generation.
type Options struct {
	Module   string
	OptLevel OptLevel
}

// CallConvKind re-exports package abi's calling-convention tag so
// callers of this root package never need to import internal/abi
// themselves.
type CallConvKind = abi.CallConvKind

const (
	CallConvHost    = abi.CallConvHost
	CallConvSystemV = abi.CallConvSystemV
	CallConvWindows = abi.CallConvWindows
)
