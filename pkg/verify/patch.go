package verify

import (
	"sync"
	"sync/atomic"
)

// Patch is one scoped replacement the Patch Manager can install: Enabled
// gates whether it actually intercepts (spec.md §4.6's "enabled predicate"),
// Install performs the replacement and returns a restore function, and Name
// identifies it for diagnostics and the "curse" fallback.
type Patch struct {
	Name    string
	Enabled func() bool
	Install func() (restore func())
}

// PatchManager installs a set of Patches for the duration of a scope,
// guaranteeing every installed Patch is restored exactly once even if the
// scope panics. A type that refuses the patched attribute assignment
// outright (the "curse" case) is recorded rather than retried.
type PatchManager struct {
	mu      sync.Mutex
	patches []Patch
	cursed  map[string]bool
}

// NewPatchManager returns an empty manager.
func NewPatchManager() *PatchManager {
	return &PatchManager{cursed: make(map[string]bool)}
}

// Register adds p to the set this manager installs on Apply.
func (m *PatchManager) Register(p Patch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patches = append(m.patches, p)
}

// Cursed reports whether name was previously marked uninstallable.
func (m *PatchManager) Cursed(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursed[name]
}

// Curse marks name as permanently uninstallable: future Apply calls skip it
// rather than re-attempt an installation known to fail.
func (m *PatchManager) Curse(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursed[name] = true
}

// Apply installs every enabled, non-cursed patch, runs fn, and restores
// every installed patch afterward regardless of how fn returns — via defer,
// so a panic inside fn still unwinds the patch stack before propagating.
func (m *PatchManager) Apply(fn func() error) (err error) {
	var restores []func()
	defer func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}()

	m.mu.Lock()
	patches := append([]Patch(nil), m.patches...)
	m.mu.Unlock()

	for _, p := range patches {
		if m.Cursed(p.Name) {
			continue
		}
		if p.Enabled != nil && !p.Enabled() {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.Curse(p.Name)
				}
			}()
			restores = append(restores, p.Install())
		}()
	}
	return fn()
}

// symbolicMode is the flag the Call Driver's "in symbolic mode" Patch keys
// its scope on (spec.md §4.8 step 3): set for the duration of one per-call
// protocol iteration so any code consulting InSymbolicMode (a builtin
// stand-in installed as its own Patch, for instance) behaves differently
// while a function under test is being symbolically executed.
var symbolicMode int32

// InSymbolicMode reports whether any goroutine in the process is currently
// inside a Call Driver iteration's Patch Manager scope (the flag is a single
// process-wide counter, not per goroutine).
func InSymbolicMode() bool { return atomic.LoadInt32(&symbolicMode) != 0 }

// inSymbolicModePatch is the always-enabled Patch every Call Driver iteration
// installs: it carries no behavior of its own beyond flipping symbolicMode,
// giving an embedder's own registered Patches (via Options.Patches) an
// InSymbolicMode() check to gate on.
var inSymbolicModePatch = Patch{
	Name:    "in symbolic mode",
	Enabled: func() bool { return true },
	Install: func() func() {
		atomic.AddInt32(&symbolicMode, 1)
		return func() { atomic.AddInt32(&symbolicMode, -1) }
	},
}

// defaultPatchManager is the package-wide Patch Manager used by RunPostcondition
// when Options.Patches is nil: it carries just the "in symbolic mode" patch.
var defaultPatchManager = func() *PatchManager {
	m := NewPatchManager()
	m.Register(inSymbolicModePatch)
	return m
}()

// patchManagerFor returns opts.Patches if the embedder supplied one (with the
// built-in "in symbolic mode" patch registered onto it, once), or the package
// default otherwise.
func patchManagerFor(opts Options) *PatchManager {
	if opts.Patches == nil {
		return defaultPatchManager
	}
	opts.Patches.ensureSymbolicModePatch()
	return opts.Patches
}

// ensureSymbolicModePatch registers the built-in "in symbolic mode" patch on
// m exactly once, so an embedder-supplied Options.Patches still flips
// InSymbolicMode during a Call Driver iteration without having to know the
// engine's internal flag.
func (m *PatchManager) ensureSymbolicModePatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patches {
		if p.Name == inSymbolicModePatch.Name {
			return
		}
	}
	m.patches = append(m.patches, inSymbolicModePatch)
}
