package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westhood/pylisp/lang/resolver"
)

func newTable() (*resolver.Table, *[]string) {
	var globals []string
	add := func(name string) int {
		for i, n := range globals {
			if n == name {
				return i
			}
		}
		globals = append(globals, name)
		return len(globals) - 1
	}
	return resolver.NewTable(add), &globals
}

func TestGlobalDefineAndResolve(t *testing.T) {
	tbl, globals := newTable()
	tbl.PushFunction(true)

	b, err := tbl.Add("x")
	require.NoError(t, err)
	assert.Equal(t, resolver.Global, b.Kind)
	assert.Equal(t, []string{"x"}, *globals)

	use := tbl.Resolve("x")
	assert.Equal(t, resolver.Global, use.Kind)
	assert.Equal(t, b.Index, use.Index)

	// Redefining at the root scope is allowed (rebinds, no error).
	_, err = tbl.Add("x")
	assert.NoError(t, err)
}

func TestUnresolvedNameIsGlobal(t *testing.T) {
	tbl, _ := newTable()
	tbl.PushFunction(true)

	b := tbl.Resolve("never-declared")
	assert.Equal(t, resolver.Global, b.Kind)
}

func TestLocalShadowingAndDuplicate(t *testing.T) {
	tbl, _ := newTable()
	tbl.PushFunction(true)
	_, err := tbl.Add("x") // global x, shadowed by the parameter below
	require.NoError(t, err)
	tbl.PushFunction(false) // lambda (x) ...

	b, err := tbl.Add("x")
	require.NoError(t, err)
	assert.Equal(t, resolver.Local, b.Kind)
	assert.Equal(t, 0, b.Index)

	_, err = tbl.Add("x")
	assert.Error(t, err)
	var dup *resolver.DuplicateBindingError
	assert.ErrorAs(t, err, &dup)

	use := tbl.Resolve("x")
	assert.Equal(t, resolver.Local, use.Kind)
	assert.Equal(t, 0, use.Index)
}

func TestLetReleasesSlotsButNotHighWaterMark(t *testing.T) {
	tbl, _ := newTable()
	tbl.PushFunction(true)
	tbl.PushFunction(false) // lambda () ...

	tbl.PushScope()
	_, err := tbl.Add("a")
	require.NoError(t, err)
	_, err = tbl.Add("b")
	require.NoError(t, err)
	tbl.PopScope()

	tbl.PushScope()
	b, err := tbl.Add("c")
	require.NoError(t, err)
	tbl.PopScope()
	// c reuses the slot freed by a, since popping the scope released it.
	assert.Equal(t, 0, b.Index)

	// The high-water mark still records the two slots a and b needed.
	maxLocals, upvalues := tbl.PopFunction()
	assert.Equal(t, 2, maxLocals)
	assert.Empty(t, upvalues)
}

func TestSingleLevelUpvalue(t *testing.T) {
	tbl, _ := newTable()
	tbl.PushFunction(true) // program

	tbl.PushFunction(false) // outer lambda (n) -> lambda (x) (* x n)
	outerN, err := tbl.Add("n")
	require.NoError(t, err)
	assert.Equal(t, 0, outerN.Index)

	tbl.PushFunction(false) // inner lambda (x)
	_, err = tbl.Add("x")
	require.NoError(t, err)

	use := tbl.Resolve("n")
	require.Equal(t, resolver.Upvalue, use.Kind)
	assert.Equal(t, 0, use.Index)

	// A second reference in the same inner function hits the cache and
	// yields the same upvalue index without growing the descriptor list.
	use2 := tbl.Resolve("n")
	assert.Equal(t, use.Index, use2.Index)

	innerMax, innerUpvals := tbl.PopFunction()
	assert.Equal(t, 1, innerMax)
	require.Len(t, innerUpvals, 1)
	assert.Equal(t, resolver.FromLocal, innerUpvals[0].Kind)
	assert.Equal(t, 0, innerUpvals[0].Slot)

	outerMax, outerUpvals := tbl.PopFunction()
	assert.Equal(t, 1, outerMax)
	assert.Empty(t, outerUpvals)
}

func TestChainedUpvalueThroughIntermediateFunction(t *testing.T) {
	tbl, _ := newTable()
	tbl.PushFunction(true) // program

	tbl.PushFunction(false) // f0, defines n
	_, err := tbl.Add("n")
	require.NoError(t, err)

	tbl.PushFunction(false) // f1, does not reference n itself
	tbl.PushFunction(false) // f2, references n

	use := tbl.Resolve("n")
	assert.Equal(t, resolver.Upvalue, use.Kind)

	_, f2Upvals := tbl.PopFunction()
	require.Len(t, f2Upvals, 1)
	assert.Equal(t, resolver.FromOuter, f2Upvals[0].Kind)
	assert.Equal(t, 0, f2Upvals[0].Parent)

	_, f1Upvals := tbl.PopFunction()
	require.Len(t, f1Upvals, 1)
	assert.Equal(t, resolver.FromLocal, f1Upvals[0].Kind)

	_, f0Upvals := tbl.PopFunction()
	assert.Empty(t, f0Upvals)
}

func TestRestParameterCaptureAsUpvalue(t *testing.T) {
	tbl, _ := newTable()
	tbl.PushFunction(true) // program

	tbl.PushFunction(false) // (lambda (x . a) (lambda (b) (cons b a)))
	_, err := tbl.Add("x")
	require.NoError(t, err)
	_, err = tbl.AddRest("a")
	require.NoError(t, err)

	tbl.PushFunction(false)
	use := tbl.Resolve("a")
	assert.Equal(t, resolver.Upvalue, use.Kind)

	_, inner := tbl.PopFunction()
	require.Len(t, inner, 1)
	assert.Equal(t, resolver.FromRest, inner[0].Kind)
}
