package verify

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshOfType_ScalarKinds(t *testing.T) {
	ss := newTestSpace(t)
	f := ss.Factory()

	b, err := f.FreshOfType(reflect.TypeOf(false), "b")
	require.NoError(t, err)
	assert.Equal(t, KindBool, b.Kind)

	i, err := f.FreshOfType(reflect.TypeOf(0), "i")
	require.NoError(t, err)
	assert.Equal(t, KindInt, i.Kind)

	s, err := f.FreshOfType(reflect.TypeOf(""), "s")
	require.NoError(t, err)
	assert.Equal(t, KindString, s.Kind)
}

func TestFreshOfType_UnregisteredTypeFallsBackToOpaque(t *testing.T) {
	ss := newTestSpace(t)
	v, err := ss.Factory().FreshOfType(reflect.TypeOf(complex(0, 0)), "c")
	require.NoError(t, err)
	assert.Equal(t, KindOpaque, v.Kind)
}

func TestNewBoundedList_FirstIterationIsEmpty(t *testing.T) {
	ss := newTestSpace(t)
	list, err := NewBoundedList(ss, reflect.TypeOf(0), 3, "xs")
	require.NoError(t, err)
	assert.Equal(t, KindList, list.Kind)
	assert.Empty(t, list.Elems, "false-first bias means a fresh tree node's length decision takes the empty branch first")
}

func TestNewBoundedList_RespectsMaxLen(t *testing.T) {
	ss := newTestSpace(t)
	list, err := NewBoundedList(ss, reflect.TypeOf(0), 3, "xs")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(list.Elems), 3)
}

func TestNewBoundedSet_IsSetKindOverList(t *testing.T) {
	ss := newTestSpace(t)
	set, err := NewBoundedSet(ss, reflect.TypeOf(""), 2, "ys")
	require.NoError(t, err)
	assert.Equal(t, KindSet, set.Kind)
}

func TestRegisterProxyBuilder_PerTypeOverrideTakesPrecedence(t *testing.T) {
	ss := newTestSpace(t)
	type Meters int
	overrideCalled := false
	ss.Factory().RegisterType(reflect.TypeOf(Meters(0)), func(ss *StateSpace, ty reflect.Type, name string) (SymbolicValue, error) {
		overrideCalled = true
		return NewInt(ss, name), nil
	})
	v, err := ss.Factory().FreshOfType(reflect.TypeOf(Meters(0)), "m")
	require.NoError(t, err)
	assert.True(t, overrideCalled)
	assert.Equal(t, KindInt, v.Kind)
}

func TestFreshOfType_StructBuildsFieldProxies(t *testing.T) {
	ss := newTestSpace(t)
	type Point struct {
		X, Y int
	}
	v, err := ss.Factory().FreshOfType(reflect.TypeOf(Point{}), "p")
	require.NoError(t, err)
	require.Equal(t, KindStruct, v.Kind)
	require.Contains(t, v.Fields, "X")
	require.Contains(t, v.Fields, "Y")
	assert.Equal(t, KindInt, v.Fields["X"].Kind)
}

func TestFreshOfType_FloatBuildsFloatProxy(t *testing.T) {
	ss := newTestSpace(t)
	v, err := ss.Factory().FreshOfType(reflect.TypeOf(0.0), "f")
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind)
	require.NotNil(t, v.T)
	assert.Equal(t, SortFloat, v.T.Sort())

	v32, err := ss.Factory().FreshOfType(reflect.TypeOf(float32(0)), "g")
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v32.Kind)
	assert.Equal(t, reflect.TypeOf(float32(0)), v32.GoType)
}

func TestFreshOfType_FuncBuildsCallableProxy(t *testing.T) {
	ss := newTestSpace(t)
	v, err := ss.Factory().FreshOfType(reflect.TypeOf(func(int) int { return 0 }), "cb")
	require.NoError(t, err)
	require.Equal(t, KindCallable, v.Kind)
	require.NotNil(t, v.Call)

	first, err := v.Call(ss, nil)
	require.NoError(t, err)
	assert.Equal(t, KindInt, first.Kind, "a callable proxy returns a symbolic value of its declared return type")

	second, err := v.Call(ss, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.T, second.T, "each invocation yields a fresh symbolic result")
}

type proxySpeaker interface{ Speak() string }

func TestFreshOfType_InterfaceForksRegisteredImplementations(t *testing.T) {
	ss := newTestSpace(t)
	ifaceType := reflect.TypeOf((*proxySpeaker)(nil)).Elem()
	catType := reflect.TypeOf(ctCat{})
	RegisterSubtype(ifaceType, catType)
	defer delete(classes.subtypes, ifaceType)

	v, err := ss.Factory().FreshOfType(ifaceType, "spk")
	require.NoError(t, err)
	assert.Equal(t, KindStruct, v.Kind)
	assert.Equal(t, ifaceType, v.GoType, "the reported type stays the declared interface")
	assert.Contains(t, v.Fields, "Lives")
}

func TestFreshOfType_UnregisteredInterfaceFallsBackToOpaque(t *testing.T) {
	ss := newTestSpace(t)
	ifaceType := reflect.TypeOf((*proxySpeaker)(nil)).Elem()
	v, err := ss.Factory().FreshOfType(ifaceType, "spk")
	require.NoError(t, err)
	assert.Equal(t, KindOpaque, v.Kind)
}

func TestNewTypeProxy_VisitsBoundBeforeSubtypes(t *testing.T) {
	ss := newTestSpace(t)
	base := reflect.TypeOf(ctCat{})
	sub := reflect.TypeOf(ctDog{})
	RegisterSubtype(base, sub)
	defer delete(classes.subtypes, base)

	v, err := NewTypeProxy(ss, base, "ty")
	require.NoError(t, err)
	require.Equal(t, KindType, v.Kind)
	chosen, err := v.Realize(ss)
	require.NoError(t, err)
	assert.Equal(t, base, chosen, "a fresh tree's false-first bias settles on the bound itself before any subtype")
}
