package mcir

import "fmt"

// RegClass partitions the register file. It is immutable across register
// allocation; only the index component of a MicroReg is rewritten when a
// virtual register is assigned a physical slot.
type RegClass byte

const (
	RegClassInvalid RegClass = iota
	RegClassInt
	RegClassFloat
	RegClassFlags
	RegClassIP
	NumRegClass
)

func (c RegClass) String() string {
	switch c {
	case RegClassInt:
		return "int"
	case RegClassFloat:
		return "float"
	case RegClassFlags:
		return "flags"
	case RegClassIP:
		return "ip"
	default:
		return "invalid"
	}
}

// MicroReg is a packed 32-bit register reference: bit 31 marks whether it
// is pre-colored to a physical register, separating a pure virtual
// identifier from a physical-register-backed one; bits 24-30 hold the
// RegClass, and the low 24 bits hold the index — a dense, per-function
// virtual register number before allocation, or a physical register
// index into the target's register file when the physical bit is set or
// once allocation has run. Indices are never renumbered in place by
// anything but regalloc.
type MicroReg uint32

const (
	regIndexMask  = 0x00FFFFFF
	regClassShift = 24
	regClassMask  = 0x7F
	regPhysFlag   = 1 << 31
)

// NewVirtualReg constructs a virtual MicroReg of the given class and dense
// per-function index.
func NewVirtualReg(class RegClass, index uint32) MicroReg {
	if index > regIndexMask {
		panic(fmt.Sprintf("BUG: virtual register index %d overflows MicroReg", index))
	}
	return MicroReg(uint32(class)<<regClassShift | index)
}

// NewPhysicalReg constructs a MicroReg that names a physical, pre-colored
// register of the target's register file — e.g. an ABI-fixed argument
// register. Register allocation tracks these only for interference; it
// never reassigns their index. physIndex is uint8 deliberately: a
// physical register file's indices are small (0-31 for every target
// contemplated here), and the narrow parameter keeps a virtual index
// from being passed by accident without a visible truncating
// conversion at the call site.
func NewPhysicalReg(class RegClass, physIndex uint8) MicroReg {
	return MicroReg(regPhysFlag | uint32(class)<<regClassShift | uint32(physIndex))
}

// Class returns the register class. Class is invariant across allocation.
func (r MicroReg) Class() RegClass { return RegClass((r >> regClassShift) & regClassMask) }

// Index returns the packed index, virtual before regalloc, physical after.
func (r MicroReg) Index() uint32 { return uint32(r) & regIndexMask }

// IsPhysical reports whether r is pre-colored to a physical register
// rather than awaiting assignment from the linear-scan allocator.
func (r MicroReg) IsPhysical() bool { return r&regPhysFlag != 0 }

// WithIndex returns a copy of r with a new physical index, the same
// class, marked physical. This is how the linear-scan allocator rewrites a virtual register once it assigns it a physical slot.
func (r MicroReg) WithIndex(index uint32) MicroReg {
	if index > regIndexMask {
		panic(fmt.Sprintf("BUG: register index %d overflows MicroReg", index))
	}
	return NewPhysicalReg(r.Class(), uint8(index))
}

// Valid reports whether r names a real class.
func (r MicroReg) Valid() bool { return r.Class() != RegClassInvalid }

func (r MicroReg) String() string {
	return fmt.Sprintf("%%%s%d", r.Class(), r.Index())
}

// OpBits is the operand width in bits of a value or register access.
type OpBits byte

const (
	OpBitsInvalid OpBits = 0
	OpBits8       OpBits = 8
	OpBits16      OpBits = 16
	OpBits32      OpBits = 32
	OpBits64      OpBits = 64
	OpBits128     OpBits = 128
)

func (b OpBits) Bytes() int { return int(b) / 8 }

func (b OpBits) String() string {
	switch b {
	case OpBits8, OpBits16, OpBits32, OpBits64, OpBits128:
		return fmt.Sprintf("b%d", int(b))
	default:
		return "b?"
	}
}
