package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westhood/pylisp/lang/ast"
	"github.com/westhood/pylisp/lang/compiler"
	"github.com/westhood/pylisp/lang/resolver"
	"github.com/westhood/pylisp/lang/value"
)

const sampleProgram = `
pool:
	constants:
		int 1
		symbol fact

function: fact 1
	code:
		load_local 0
		load_const 1
		binop =
		test 4
		load_const 1
		ret 1
		load_local 0
		ret 1

function: main 0
	code:
		load_const 1
		set_global 1
		load_const 0
		pop 1
		halt
`

func TestAsmParsesFunctionsAndConstants(t *testing.T) {
	pool, err := compiler.Asm([]byte(sampleProgram))
	require.NoError(t, err)

	require.Len(t, pool.Prototypes(), 2)
	fact := pool.Prototype(0)
	assert.Equal(t, "fact", fact.Name)
	assert.Equal(t, 1, fact.Argc)
	require.Len(t, fact.Instructions, 8)
	assert.Equal(t, compiler.LOAD_LOCAL, fact.Instructions[0].Op)
	assert.Equal(t, compiler.BinEq, compiler.BinOpID(fact.Instructions[2].Arg))

	entry := pool.Prototype(1)
	require.Len(t, entry.Instructions, 5)
	assert.Equal(t, compiler.HALT, entry.Instructions[4].Op)
}

func TestAsmRejectsUnknownOpcode(t *testing.T) {
	_, err := compiler.Asm([]byte(`
pool:
	constants:
function: f 0
	code:
		frobnicate
`))
	assert.Error(t, err)
}

func TestAsmParsesUpvalueDescriptors(t *testing.T) {
	src := `
pool:
	constants:
function: inner 1
	upvalues:
		local 0 1
		rest
		outer 0
	code:
		load_upvar 0
		ret 1
`
	pool, err := compiler.Asm([]byte(src))
	require.NoError(t, err)
	proto := pool.Prototype(0)
	require.Len(t, proto.UpvalueDescriptors, 3)
	assert.Equal(t, resolver.FromLocal, proto.UpvalueDescriptors[0].Kind)
	assert.Equal(t, 0, proto.UpvalueDescriptors[0].Slot)
	assert.Equal(t, 1, proto.UpvalueDescriptors[0].Depth)
	assert.Equal(t, resolver.FromRest, proto.UpvalueDescriptors[1].Kind)
	assert.Equal(t, resolver.FromOuter, proto.UpvalueDescriptors[2].Kind)
	assert.Equal(t, 0, proto.UpvalueDescriptors[2].Parent)
}

func TestDisasmRoundTripsThroughAsm(t *testing.T) {
	// (define double (lambda (x) (* x 2)))
	lam := ast.L(ast.Kw("lambda"), ast.L(ast.Sym("x")), ast.L(ast.Sym("*"), ast.Sym("x"), ast.Int(2)))
	forms := []ast.Node{
		ast.L(ast.Kw("define"), ast.Sym("double"), lam),
		ast.L(ast.Sym("double"), ast.Int(21)),
	}

	pool := compiler.NewPool()
	g := compiler.NewGenerator(pool)
	_, err := g.Compile(forms)
	require.NoError(t, err)

	out, err := compiler.Disasm(pool)
	require.NoError(t, err)

	reparsed, err := compiler.Asm(out)
	require.NoError(t, err)

	require.Equal(t, len(pool.Prototypes()), len(reparsed.Prototypes()))
	for i, proto := range pool.Prototypes() {
		other := reparsed.Prototype(i)
		require.Len(t, other.Instructions, len(proto.Instructions))
		for j, ins := range proto.Instructions {
			assert.Equal(t, ins.Op, other.Instructions[j].Op, "proto %d instr %d", i, j)
		}
	}
}

func TestDisasmAnnotatesLoadConstWithLiteral(t *testing.T) {
	pool := compiler.NewPool()
	idx := pool.AddLiteral(value.String("hello"))
	proto := &compiler.Prototype{
		Instructions: []compiler.Instruction{
			{Op: compiler.LOAD_CONST, Arg: int32(idx)},
			{Op: compiler.RET, Arg: 1},
		},
	}
	pool.AddPrototype(proto)

	out, err := compiler.Disasm(pool)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"hello"`)
}
