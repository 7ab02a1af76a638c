package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSpace_FrameworkScopeForbidsFork(t *testing.T) {
	tree := NewSearchTree()
	ss := tree.FreshPath(NewRefSolver(), DefaultOptions())

	err := ss.FrameworkScope(func() error {
		_, forkErr := ss.Fork(ss.Fresh("p", SortBool))
		return forkErr
	})
	assert.ErrorIs(t, err, ErrForkInFrameworkScope)
}

func TestStateSpace_FrameworkScopeRestoresFlagOnExit(t *testing.T) {
	tree := NewSearchTree()
	ss := tree.FreshPath(NewRefSolver(), DefaultOptions())

	assert.False(t, ss.RunningFrameworkCode())
	_ = ss.FrameworkScope(func() error {
		assert.True(t, ss.RunningFrameworkCode())
		return nil
	})
	assert.False(t, ss.RunningFrameworkCode())

	_, err := ss.Fork(ss.Fresh("p", SortBool))
	assert.NoError(t, err, "forking is allowed again once the scope has exited")
}

func TestStateSpace_FreshNameUniquifies(t *testing.T) {
	tree := NewSearchTree()
	ss := tree.FreshPath(NewRefSolver(), DefaultOptions())

	a := ss.FreshName("x")
	b := ss.FreshName("x")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "x", a)
}

func TestStateSpace_ConstIntRoundTrips(t *testing.T) {
	tree := NewSearchTree()
	ss := tree.FreshPath(NewRefSolver(), DefaultOptions())

	five, err := ss.ConstInt(5)
	require.NoError(t, err)
	sat, err := ss.Check()
	require.NoError(t, err)
	require.Equal(t, Sat, sat)
	v, err := ss.ModelValue(five.T)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}
