package verify

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type customRaised struct{}

func (customRaised) Error() string { return "custom raised" }

func TestFilter_IgnoreAttemptIsSkipped(t *testing.T) {
	out := Filter(&IgnoreAttempt{Cause: errors.New("nested postcondition failure")}, nil)
	assert.True(t, out.Skip)
}

func TestFilter_DeclaredRaiseConfirms(t *testing.T) {
	declared := []reflect.Type{reflect.TypeOf(customRaised{})}
	out := Filter(customRaised{}, declared)
	assert.False(t, out.Skip)
	assert.False(t, out.Propagate)
	assert.Equal(t, KindConfirmed, out.Status)
}

func TestFilter_NotImplementedConfirms(t *testing.T) {
	out := Filter(&NotImplementedSignal{Reason: "no symbolic model for this builtin"}, nil)
	assert.Equal(t, KindConfirmed, out.Status)
}

func TestFilter_ProxyIncompatibilityIsUnknown(t *testing.T) {
	out := Filter(&UnsupportedOperationError{Op: "add", Left: KindString, Right: KindList}, nil)
	assert.Equal(t, KindCannotConfirm, out.Status)
	assert.False(t, out.Propagate)
}

func TestFilter_InternalSignalPropagates(t *testing.T) {
	out := Filter(ErrForkInFrameworkScope, nil)
	assert.True(t, out.Propagate)
}

func TestFilter_UnexploredPathIsUnknownNotPropagated(t *testing.T) {
	out := Filter(&UnexploredPathSignal{Reason: "deadline exceeded mid-call"}, nil)
	assert.False(t, out.Propagate)
	assert.Equal(t, KindCannotConfirm, out.Status)
}

func TestFilter_UndeclaredErrorIsExecutionError(t *testing.T) {
	out := Filter(errors.New("boom"), nil)
	assert.Equal(t, KindExecutionError, out.Status)
}
