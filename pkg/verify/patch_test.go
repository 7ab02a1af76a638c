package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchManager_ScopeIntegrity(t *testing.T) {
	target := "original"

	pm := NewPatchManager()
	pm.Register(Patch{
		Name:    "rewrite-target",
		Enabled: func() bool { return true },
		Install: func() func() {
			prev := target
			target = "patched"
			return func() { target = prev }
		},
	})

	err := pm.Apply(func() error {
		assert.Equal(t, "patched", target)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "original", target, "target must be restored to its pre-scope value on exit")
}

func TestPatchManager_RestoresOnPanic(t *testing.T) {
	target := "original"
	pm := NewPatchManager()
	pm.Register(Patch{
		Enabled: func() bool { return true },
		Install: func() func() {
			target = "patched"
			return func() { target = "original" }
		},
	})

	func() {
		defer func() { _ = recover() }()
		_ = pm.Apply(func() error {
			panic("boom")
		})
	}()

	assert.Equal(t, "original", target)
}

func TestPatchManager_DisabledPatchNotInstalled(t *testing.T) {
	installed := false
	pm := NewPatchManager()
	pm.Register(Patch{
		Name:    "disabled",
		Enabled: func() bool { return false },
		Install: func() func() {
			installed = true
			return func() {}
		},
	})
	err := pm.Apply(func() error { return nil })
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestPatchManager_CurseSkipsFailingPatch(t *testing.T) {
	attempts := 0
	pm := NewPatchManager()
	pm.Register(Patch{
		Name:    "cursed",
		Enabled: func() bool { return true },
		Install: func() func() {
			attempts++
			panic("refuses installation")
		},
	})

	for i := 0; i < 3; i++ {
		_ = pm.Apply(func() error { return nil })
	}
	assert.Equal(t, 1, attempts, "a patch that panics on install is cursed and never retried")
	assert.True(t, pm.Cursed("cursed"))
}

func TestInSymbolicMode_FlippedOnlyDuringCallDriverIteration(t *testing.T) {
	assert.False(t, InSymbolicMode(), "no iteration in flight outside a Call Driver run")

	cond := &Conditions{
		Sig: Signature{},
		Post: []Condition{{
			ExprText: "true",
			Eval: func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error) {
				assert.True(t, InSymbolicMode(), "Impl/Eval callbacks run inside the Call Driver's Patch Manager scope")
				return ss.ConstBool(true)
			},
		}},
		Impl: func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error) {
			assert.True(t, InSymbolicMode())
			return ss.ConstBool(true)
		},
	}

	result := RunPostcondition(cond, 0, DefaultOptions(), nil, nil)
	assert.Equal(t, KindConfirmed, result.Status)
	assert.False(t, InSymbolicMode(), "the scope must be torn down once the Call Driver loop returns")
}

func TestPatchManagerFor_EmbedderSuppliedManagerStillFlipsSymbolicMode(t *testing.T) {
	custom := NewPatchManager()
	installed := false
	custom.Register(Patch{
		Name:    "custom-redirect",
		Enabled: func() bool { return true },
		Install: func() func() {
			installed = true
			return func() {}
		},
	})

	opts := DefaultOptions()
	opts.Patches = custom

	cond := &Conditions{
		Sig: Signature{},
		Post: []Condition{{
			ExprText: "true",
			Eval: func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error) {
				return ss.ConstBool(true)
			},
		}},
		Impl: func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error) {
			assert.True(t, InSymbolicMode(), "an embedder-supplied Patch Manager still gets the built-in flag patch")
			return ss.ConstBool(true)
		},
	}

	result := RunPostcondition(cond, 0, opts, nil, nil)
	assert.Equal(t, KindConfirmed, result.Status)
	assert.True(t, installed, "the embedder's own patch must also be applied")
}
