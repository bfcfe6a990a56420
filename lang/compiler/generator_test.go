package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westhood/pylisp/lang/ast"
	"github.com/westhood/pylisp/lang/compiler"
	"github.com/westhood/pylisp/lang/value"
)

func compileOne(t *testing.T, form ast.Node) *compiler.Pool {
	t.Helper()
	pool := compiler.NewPool()
	g := compiler.NewGenerator(pool)
	_, err := g.Compile([]ast.Node{form})
	require.NoError(t, err)
	return pool
}

func entry(pool *compiler.Pool) *compiler.Prototype {
	protos := pool.Prototypes()
	return protos[len(protos)-1]
}

func TestCompileLiteralEmitsLoadConstPopHalt(t *testing.T) {
	pool := compileOne(t, ast.Int(42))
	proto := entry(pool)

	require.Len(t, proto.Instructions, 3)
	assert.Equal(t, compiler.LOAD_CONST, proto.Instructions[0].Op)
	assert.Equal(t, value.Integer(42), pool.Literal(int(proto.Instructions[0].Arg)))
	assert.Equal(t, compiler.POP, proto.Instructions[1].Op)
	assert.Equal(t, compiler.HALT, proto.Instructions[2].Op)
}

func TestCompileBinOpApplication(t *testing.T) {
	// (+ 1 2)
	pool := compileOne(t, ast.L(ast.Sym("+"), ast.Int(1), ast.Int(2)))
	proto := entry(pool)

	var ops []compiler.Opcode
	for _, ins := range proto.Instructions {
		ops = append(ops, ins.Op)
	}
	assert.Equal(t, []compiler.Opcode{
		compiler.LOAD_CONST, compiler.LOAD_CONST, compiler.BINOP, compiler.POP, compiler.HALT,
	}, ops)
	assert.Equal(t, compiler.BinAdd, compiler.BinOpID(proto.Instructions[2].Arg))
}

func TestCompileIfPatchesBothBranches(t *testing.T) {
	// (if x 1 2)
	pool := compileOne(t, ast.L(ast.Kw("if"), ast.Sym("x"), ast.Int(1), ast.Int(2)))
	proto := entry(pool)

	// load_global x; test ->; load_const 1; jump ->; load_const 2; pop; halt
	require.Len(t, proto.Instructions, 7)
	assert.Equal(t, compiler.LOAD_GLOBAL, proto.Instructions[0].Op)
	testIns := proto.Instructions[1]
	require.Equal(t, compiler.TEST, testIns.Op)
	// test jumps to the else branch, which starts right after the then-jump.
	assert.Equal(t, int32(3), testIns.Arg)
	jumpIns := proto.Instructions[3]
	require.Equal(t, compiler.JUMP, jumpIns.Op)
	// jump skips over the else branch to the pop.
	assert.Equal(t, int32(2), jumpIns.Arg)
}

func TestCompileLambdaBuildsClosureAndReturnsOne(t *testing.T) {
	// (lambda (x) x)
	pool := compileOne(t, ast.L(ast.Kw("lambda"), ast.L(ast.Sym("x")), ast.Sym("x")))
	topProto := entry(pool)

	require.Len(t, topProto.Instructions, 3)
	assert.Equal(t, compiler.BUILD_CLOSURE, topProto.Instructions[0].Op)

	lambdaProto := pool.Prototype(int(topProto.Instructions[0].Arg))
	assert.Equal(t, 1, lambdaProto.Argc)
	assert.False(t, lambdaProto.IsVariadic)
	require.Len(t, lambdaProto.Instructions, 2)
	assert.Equal(t, compiler.LOAD_LOCAL, lambdaProto.Instructions[0].Op)
	assert.Equal(t, compiler.RET, lambdaProto.Instructions[1].Op)
	assert.Equal(t, int32(1), lambdaProto.Instructions[1].Arg)
}

func TestCompileTailCallOnlyInTailPosition(t *testing.T) {
	// (lambda () (f 1))  -- the call to f is in tail position
	pool := compileOne(t, ast.L(ast.Kw("lambda"), ast.L(), ast.L(ast.Sym("f"), ast.Int(1))))
	topProto := entry(pool)
	lambdaProto := pool.Prototype(int(topProto.Instructions[0].Arg))

	var foundTailCall bool
	for _, ins := range lambdaProto.Instructions {
		if ins.Op == compiler.TAIL_CALL {
			foundTailCall = true
		}
		assert.NotEqual(t, compiler.CALL, ins.Op, "non-tail CALL must not appear here")
	}
	assert.True(t, foundTailCall)
}

func TestCompileDefineAtTopLevelEmitsSetGlobal(t *testing.T) {
	// (define x 5)
	pool := compileOne(t, ast.L(ast.Kw("define"), ast.Sym("x"), ast.Int(5)))
	proto := entry(pool)

	var foundSetGlobal bool
	for _, ins := range proto.Instructions {
		if ins.Op == compiler.SET_GLOBAL {
			foundSetGlobal = true
			assert.Equal(t, value.Symbol("x"), pool.Literal(int(ins.Arg)))
		}
	}
	assert.True(t, foundSetGlobal)
}

func TestCompileLetReleasesSlotAfterScope(t *testing.T) {
	// (lambda () (begin (let ((a 1)) a) (let ((b 2)) b)))
	letA := ast.L(ast.Kw("let"), ast.L(ast.L(ast.Sym("a"), ast.Int(1))), ast.Sym("a"))
	letB := ast.L(ast.Kw("let"), ast.L(ast.L(ast.Sym("b"), ast.Int(2))), ast.Sym("b"))
	body := ast.L(ast.Kw("begin"), letA, letB)
	pool := compileOne(t, ast.L(ast.Kw("lambda"), ast.L(), body))
	topProto := entry(pool)
	lambdaProto := pool.Prototype(int(topProto.Instructions[0].Arg))

	// Both lets allocate the same slot 0, since the second reuses the first's
	// freed slot: max_locals stays 1.
	assert.Equal(t, 1, lambdaProto.MaxLocals)

	var closeUpvarCount int
	for _, ins := range lambdaProto.Instructions {
		if ins.Op == compiler.CLOSE_UPVAR {
			closeUpvarCount++
		}
	}
	assert.Equal(t, 2, closeUpvarCount)
}

func TestCompileUpvalueCapture(t *testing.T) {
	// (lambda (n) (lambda (x) (* x n)))
	inner := ast.L(ast.Kw("lambda"), ast.L(ast.Sym("x")), ast.L(ast.Sym("*"), ast.Sym("x"), ast.Sym("n")))
	outer := ast.L(ast.Kw("lambda"), ast.L(ast.Sym("n")), inner)
	pool := compileOne(t, outer)
	topProto := entry(pool)

	outerProto := pool.Prototype(int(topProto.Instructions[0].Arg))
	var innerIdx int32 = -1
	for _, ins := range outerProto.Instructions {
		if ins.Op == compiler.BUILD_CLOSURE {
			innerIdx = ins.Arg
		}
	}
	require.NotEqual(t, int32(-1), innerIdx)

	innerProto := pool.Prototype(int(innerIdx))
	require.Len(t, innerProto.UpvalueDescriptors, 1)
	assert.Equal(t, 0, innerProto.UpvalueDescriptors[0].Slot)

	var foundLoadUpvar bool
	for _, ins := range innerProto.Instructions {
		if ins.Op == compiler.LOAD_UPVAR {
			foundLoadUpvar = true
		}
	}
	assert.True(t, foundLoadUpvar)
}

func TestCompileCallCCEmitsBuildContinuationThenCall(t *testing.T) {
	// (call/cc (lambda (k) 1))
	lam := ast.L(ast.Kw("lambda"), ast.L(ast.Sym("k")), ast.Int(1))
	pool := compileOne(t, ast.L(ast.Kw("call/cc"), lam))
	proto := entry(pool)

	var ops []compiler.Opcode
	for _, ins := range proto.Instructions {
		ops = append(ops, ins.Op)
	}
	// build_closure; build_continuation; call; pop; halt
	require.Len(t, ops, 5)
	assert.Equal(t, compiler.BUILD_CLOSURE, ops[0])
	assert.Equal(t, compiler.BUILD_CONTINUATION, ops[1])
	assert.Equal(t, compiler.CALL, ops[2])
}

func TestCompileQuoteBuildsPairStructure(t *testing.T) {
	// (quote (1 2))
	pool := compileOne(t, ast.L(ast.Kw("quote"), ast.L(ast.Int(1), ast.Int(2))))
	proto := entry(pool)

	require.Equal(t, compiler.LOAD_CONST, proto.Instructions[0].Op)
	lit := pool.Literal(int(proto.Instructions[0].Arg))
	pair, ok := lit.(*value.Pair)
	require.True(t, ok)
	assert.Equal(t, value.Integer(1), pair.Head)
}

func TestCompileDuplicateGlobalDefineIsAllowed(t *testing.T) {
	pool := compiler.NewPool()
	g := compiler.NewGenerator(pool)
	_, err := g.Compile([]ast.Node{
		ast.L(ast.Kw("define"), ast.Sym("x"), ast.Int(1)),
		ast.L(ast.Kw("define"), ast.Sym("x"), ast.Int(2)),
	})
	require.NoError(t, err)
}
