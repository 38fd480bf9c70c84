//go:build unix

// Package jit implements the JIT memory manager: a thread-safe,
// block-allocated pool of executable pages (mmap an RW-then-RX region,
// copy code in, hand back a slice), keeping pages alive across many
// functions instead of one mmap per function, since this backend's JIT
// path compiles many functions into the same process image.
package jit

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// minBlockSize is the smallest region ever mmap'd: most functions are a
// few hundred bytes of machine code, so mmap'ing per-function would
// dominate JIT time with syscall overhead.
const minBlockSize = 64 * 1024

// Mem describes one allocation handed back to a caller: Bytes is the
// writable (pre-MakeExecutable) view of exactly Size bytes; AllocSize is
// the full block-relative allocation, including any rounding, kept only
// for accounting. block names which of the manager's mmap'd regions
// backs Bytes, so MakeExecutable can mprotect the right one without
// scanning for pointer identity.
type Mem struct {
	Bytes     []byte
	Size      int
	AllocSize int

	block int
}

// block is one mmap'd region, bump-allocated from the front; Manager
// never reuses a freed sub-range within a block (functions are not
// individually freed, only the whole manager is torn down), which keeps
// allocation O(1) amortized rather than needing a free list.
type block struct {
	mem        []byte
	used       int
	executable bool
}

func (b *block) remaining() int { return len(b.mem) - b.used }

// Manager is the sole owner of every block it allocates; Close (or
// process exit) is the only way pages are reclaimed. A single mutex
// guards the block list and every block's bump pointer; lock hold time
// is O(blocks), since blocks are few and bump allocation itself is O(1).
type Manager struct {
	mu     sync.Mutex
	blocks []*block
}

// NewManager returns an empty JIT memory manager.
func NewManager() *Manager { return &Manager{} }

// Allocate reserves size bytes of RW memory, either from an existing
// block with enough remaining room or a freshly mmap'd block of
// max(size, minBlockSize), and returns the exact sub-slice. Returns a
// structured error on mmap failure: allocation failure is an external,
// caller-surfaced error rather than an internal panic, unlike nearly
// everything else in this backend.
func (m *Manager) Allocate(size int) (Mem, error) {
	if size <= 0 {
		panic("BUG: jit.Allocate with non-positive size")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, b := range m.blocks {
		if !b.executable && b.remaining() >= size {
			return m.bumpAllocate(i, size), nil
		}
	}

	blockSize := size
	if blockSize < minBlockSize {
		blockSize = minBlockSize
	}
	mem, err := unix.Mmap(-1, 0, blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return Mem{}, fmt.Errorf("jit: mmap %d bytes: %w", blockSize, err)
	}
	m.blocks = append(m.blocks, &block{mem: mem})
	return m.bumpAllocate(len(m.blocks)-1, size), nil
}

func (m *Manager) bumpAllocate(blockIdx, size int) Mem {
	b := m.blocks[blockIdx]
	start := b.used
	b.used += size
	return Mem{
		Bytes:     b.mem[start : start+size : start+size],
		Size:      size,
		AllocSize: len(b.mem),
		block:     blockIdx,
	}
}

// AllocateAndCopy allocates len(code) bytes and copies code into it.
func (m *Manager) AllocateAndCopy(code []byte) (Mem, error) {
	mem, err := m.Allocate(len(code))
	if err != nil {
		return Mem{}, err
	}
	copy(mem.Bytes, code)
	return mem, nil
}

// MakeExecutable mprotects mem's owning block PROT_READ|PROT_EXEC. Any
// write to mem.Bytes after this call is undefined: the whole block
// becomes read-only-executable, not just the one allocation, because
// x86-64 page protection is block-granular and a block is never
// partially executable.
func (m *Manager) MakeExecutable(mem Mem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mem.block < 0 || mem.block >= len(m.blocks) {
		return fmt.Errorf("jit: memory not owned by this manager")
	}
	b := m.blocks[mem.block]
	if b.executable {
		return nil
	}
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("jit: mprotect RX: %w", err)
	}
	b.executable = true
	return nil
}

// Close munmaps every block this manager owns. The manager must not be
// used afterward.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, b := range m.blocks {
		if err := unix.Munmap(b.mem); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("jit: munmap: %w", err)
		}
	}
	m.blocks = nil
	return firstErr
}
