package compiler

import (
	"github.com/westhood/pylisp/lang/ast"
	"github.com/westhood/pylisp/lang/resolver"
	"github.com/westhood/pylisp/lang/value"
)

// protoBuilder accumulates one prototype's instructions while its body is
// being walked; it is discarded once the prototype is sealed into a
// *Prototype and appended to the pool.
type protoBuilder struct {
	name       string
	argc       int
	isVariadic bool
	instrs     []Instruction
}

// Generator walks an ast.Node tree and emits bytecode into a Pool, driving
// a resolver.Table inline rather than running resolution as a separate
// pass first — see the package doc of lang/resolver for why.
type Generator struct {
	pool  *Pool
	table *resolver.Table
	stack []*protoBuilder
}

// NewGenerator creates a Generator that will append literals and
// prototypes to pool.
func NewGenerator(pool *Pool) *Generator {
	g := &Generator{pool: pool}
	g.table = resolver.NewTable(func(name string) int {
		return pool.AddLiteral(value.Symbol(name))
	})
	return g
}

func (g *Generator) cur() *protoBuilder { return g.stack[len(g.stack)-1] }

func (g *Generator) emit(op Opcode, arg int) int {
	pb := g.cur()
	idx := len(pb.instrs)
	pb.instrs = append(pb.instrs, Instruction{Op: op, Arg: int32(arg)})
	return idx
}

// emitJump appends a jump-family instruction with a placeholder operand and
// returns its index, for later patchToHere.
func (g *Generator) emitJump(op Opcode) int { return g.emit(op, 0) }

// patchToHere rewrites the instruction at jumpPC to jump to the current end
// of the instruction stream, per spec.md §4.2's relative-offset convention:
// operand = current_pc - jump_pc.
func (g *Generator) patchToHere(jumpPC int) {
	pb := g.cur()
	pb.instrs[jumpPC].Arg = int32(len(pb.instrs) - jumpPC)
}

// Compile compiles a top-level program (a sequence of forms, as produced by
// reading successive S-expressions) into the pool's entry prototype and
// returns its const_index.
func (g *Generator) Compile(forms []ast.Node) (int, error) {
	g.table.PushFunction(true)
	g.stack = append(g.stack, &protoBuilder{})

	for _, f := range forms {
		if err := g.genExp(f, false); err != nil {
			return 0, err
		}
		g.emit(POP, 1)
	}
	g.emit(HALT, 0)

	pb := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	maxLocals, upvalues := g.table.PopFunction()

	proto := &Prototype{
		Instructions:       pb.instrs,
		UpvalueDescriptors: upvalues,
		MaxLocals:          maxLocals,
	}
	return g.pool.AddPrototype(proto), nil
}

// genExp compiles one expression. tail reports whether node occupies a
// syntactic tail position eligible for TAIL_CALL, per spec.md §4.2's
// tail-context propagation rule.
func (g *Generator) genExp(node ast.Node, tail bool) error {
	switch n := node.(type) {
	case *ast.Atom:
		return g.genAtom(n)
	case *ast.List:
		if len(n.Children) == 0 {
			return &SyntaxStructureError{Form: "()", Detail: "empty list has no form"}
		}
		return g.genList(n, tail)
	default:
		return &SyntaxStructureError{Form: "expression", Detail: "unrecognized node type"}
	}
}

func (g *Generator) genAtom(a *ast.Atom) error {
	switch a.Kind {
	case ast.Number:
		var lit value.Value
		if a.IsFloat {
			lit = value.Float(a.Float)
		} else {
			lit = value.Integer(a.Int)
		}
		g.emit(LOAD_CONST, g.pool.AddLiteral(lit))
		return nil
	case ast.Str:
		g.emit(LOAD_CONST, g.pool.AddLiteral(value.String(a.Str)))
		return nil
	case ast.Ident:
		return g.genLoad(a.Lit)
	default:
		return &SyntaxStructureError{Form: "atom", Detail: "keyword used outside a list head: " + a.Lit}
	}
}

// genLoad emits the correct LOAD_* instruction for a symbol reference,
// implementing spec.md §4.3's resolve classification.
func (g *Generator) genLoad(name string) error {
	b := g.table.Resolve(name)
	switch b.Kind {
	case resolver.Global:
		g.emit(LOAD_GLOBAL, b.Index)
	case resolver.Local:
		g.emit(LOAD_LOCAL, b.Index)
	case resolver.Rest:
		g.emit(LOAD_VARG, 0)
	case resolver.Upvalue:
		g.emit(LOAD_UPVAR, b.Index)
	}
	return nil
}

func (g *Generator) genList(list *ast.List, tail bool) error {
	head := list.Children[0]

	if kw, ok := head.(*ast.Atom); ok && kw.Kind == ast.Keyword {
		switch kw.Lit {
		case "begin":
			return g.genBegin(list, tail)
		case "if":
			return g.genIf(list, tail)
		case "let":
			return g.genLet(list, tail)
		case "lambda":
			return g.genLambda(list, false)
		case "lambda_v":
			return g.genLambda(list, true)
		case "define":
			return g.genDefine(list)
		case "call/cc":
			return g.genCallCC(list)
		case "quote":
			return g.genQuote(list)
		default:
			return &SyntaxStructureError{Form: "list", Detail: "unknown keyword: " + kw.Lit}
		}
	}

	args := list.Children[1:]
	if headSym, ok := head.(*ast.Atom); ok && headSym.Kind == ast.Ident {
		if id, ok := BinOpByName(headSym.Lit); ok && len(args) == 2 {
			if err := g.genExp(args[0], false); err != nil {
				return err
			}
			if err := g.genExp(args[1], false); err != nil {
				return err
			}
			g.emit(BINOP, int(id))
			return nil
		}
		if id, ok := UnOpByName(headSym.Lit); ok && len(args) == 1 {
			if err := g.genExp(args[0], false); err != nil {
				return err
			}
			g.emit(UNOP, int(id))
			return nil
		}
	}

	return g.genApply(head, args, tail)
}

func (g *Generator) genApply(callee ast.Node, args []ast.Node, tail bool) error {
	if err := g.genExp(callee, false); err != nil {
		return err
	}
	for _, a := range args {
		if err := g.genExp(a, false); err != nil {
			return err
		}
	}
	if tail {
		g.emit(TAIL_CALL, len(args))
	} else {
		g.emit(CALL, len(args))
	}
	return nil
}

func (g *Generator) genBegin(list *ast.List, tail bool) error {
	exprs := list.Children[1:]
	if len(exprs) == 0 {
		return &SyntaxStructureError{Form: "begin", Detail: "requires at least one expression"}
	}
	return g.genSequence(exprs, tail)
}

// genSequence compiles a list of expressions where only the last is in
// tail context and every earlier one is followed by POP 1, the shared shape
// of `begin` bodies, `let` bodies, and `lambda` bodies.
func (g *Generator) genSequence(exprs []ast.Node, tail bool) error {
	for i, e := range exprs {
		isLast := i == len(exprs)-1
		if err := g.genExp(e, isLast && tail); err != nil {
			return err
		}
		if !isLast {
			g.emit(POP, 1)
		}
	}
	return nil
}

func (g *Generator) genIf(list *ast.List, tail bool) error {
	if len(list.Children) != 4 {
		return &SyntaxStructureError{Form: "if", Detail: "requires exactly 3 operands (predicate, then, else)"}
	}
	if err := g.genExp(list.Children[1], false); err != nil {
		return err
	}
	testPC := g.emitJump(TEST)
	if err := g.genExp(list.Children[2], tail); err != nil {
		return err
	}
	jumpPC := g.emitJump(JUMP)
	g.patchToHere(testPC)
	if err := g.genExp(list.Children[3], tail); err != nil {
		return err
	}
	g.patchToHere(jumpPC)
	return nil
}

func (g *Generator) genLet(list *ast.List, tail bool) error {
	if len(list.Children) < 3 {
		return &SyntaxStructureError{Form: "let", Detail: "requires a binding list and at least one body expression"}
	}
	bindings, ok := list.Children[1].(*ast.List)
	if !ok {
		return &SyntaxStructureError{Form: "let", Detail: "second element must be a binding list"}
	}

	depth := g.table.PushScope()
	for _, b := range bindings.Children {
		pair, ok := b.(*ast.List)
		if !ok || len(pair.Children) != 2 {
			return &SyntaxStructureError{Form: "let", Detail: "each binding must be (name expr)"}
		}
		nameAtom, ok := pair.Children[0].(*ast.Atom)
		if !ok || nameAtom.Kind != ast.Ident {
			return &SyntaxStructureError{Form: "let", Detail: "binding name must be a symbol"}
		}
		if err := g.genExp(pair.Children[1], false); err != nil {
			return err
		}
		lb, err := g.table.Add(nameAtom.Lit)
		if err != nil {
			return err
		}
		g.emit(SET_LOCAL, lb.Index)
	}

	if err := g.genSequence(list.Children[2:], tail); err != nil {
		return err
	}
	g.emit(CLOSE_UPVAR, depth)
	g.table.PopScope()
	return nil
}

func (g *Generator) genLambda(list *ast.List, variadic bool) error {
	if len(list.Children) < 3 {
		return &SyntaxStructureError{Form: "lambda", Detail: "requires a parameter list and at least one body expression"}
	}
	params, ok := list.Children[1].(*ast.List)
	if !ok {
		return &SyntaxStructureError{Form: "lambda", Detail: "second element must be a parameter list"}
	}
	if variadic && len(params.Children) == 0 {
		return &SyntaxStructureError{Form: "lambda_v", Detail: "variadic form requires at least a rest parameter"}
	}

	g.table.PushFunction(false)
	g.stack = append(g.stack, &protoBuilder{})

	argc := 0
	for i, p := range params.Children {
		nameAtom, ok := p.(*ast.Atom)
		if !ok || nameAtom.Kind != ast.Ident {
			return &SyntaxStructureError{Form: "lambda", Detail: "parameter must be a symbol"}
		}
		isRest := variadic && i == len(params.Children)-1
		var err error
		if isRest {
			_, err = g.table.AddRest(nameAtom.Lit)
		} else {
			_, err = g.table.Add(nameAtom.Lit)
			argc++
		}
		if err != nil {
			return err
		}
	}

	if err := g.genSequence(list.Children[2:], true); err != nil {
		return err
	}
	g.emit(RET, 1)

	pb := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	maxLocals, upvalues := g.table.PopFunction()

	proto := &Prototype{
		Argc:               argc,
		IsVariadic:         variadic,
		Instructions:       pb.instrs,
		UpvalueDescriptors: upvalues,
		MaxLocals:          maxLocals,
	}
	idx := g.pool.AddPrototype(proto)
	g.emit(BUILD_CLOSURE, idx)
	return nil
}

func (g *Generator) genDefine(list *ast.List) error {
	if len(list.Children) != 3 {
		return &SyntaxStructureError{Form: "define", Detail: "requires exactly a name and an expression"}
	}
	nameAtom, ok := list.Children[1].(*ast.Atom)
	if !ok || nameAtom.Kind != ast.Ident {
		return &SyntaxStructureError{Form: "define", Detail: "first operand must be a symbol"}
	}
	b, err := g.table.Add(nameAtom.Lit)
	if err != nil {
		return err
	}
	if err := g.genExp(list.Children[2], false); err != nil {
		return err
	}
	if lam, ok := list.Children[2].(*ast.List); ok && len(lam.Children) > 0 {
		if kw, ok := lam.Children[0].(*ast.Atom); ok && kw.Kind == ast.Keyword && (kw.Lit == "lambda" || kw.Lit == "lambda_v") {
			pb := g.cur()
			g.pool.Prototype(int(pb.instrs[len(pb.instrs)-1].Arg)).Name = nameAtom.Lit
		}
	}

	switch b.Kind {
	case resolver.Global:
		g.emit(SET_GLOBAL, b.Index)
	case resolver.Local:
		g.emit(SET_LOCAL, b.Index)
	}
	g.emit(LOAD_CONST, 0)
	return nil
}

func (g *Generator) genCallCC(list *ast.List) error {
	if len(list.Children) != 2 {
		return &SyntaxStructureError{Form: "call/cc", Detail: "requires exactly one operand"}
	}
	if err := g.genExp(list.Children[1], false); err != nil {
		return err
	}
	g.emit(BUILD_CONTINUATION, 0)
	g.emit(CALL, 1)
	return nil
}

func (g *Generator) genQuote(list *ast.List) error {
	if len(list.Children) != 2 {
		return &SyntaxStructureError{Form: "quote", Detail: "requires exactly one operand"}
	}
	lit, err := astToValue(list.Children[1])
	if err != nil {
		return err
	}
	g.emit(LOAD_CONST, g.pool.AddLiteral(lit))
	return nil
}

// astToValue converts quoted syntax into runtime data, without evaluating
// it: atoms become scalars, lists become proper lists of Pairs.
func astToValue(node ast.Node) (value.Value, error) {
	switch n := node.(type) {
	case *ast.Atom:
		switch n.Kind {
		case ast.Number:
			if n.IsFloat {
				return value.Float(n.Float), nil
			}
			return value.Integer(n.Int), nil
		case ast.Str:
			return value.String(n.Str), nil
		case ast.Ident, ast.Keyword:
			return value.Symbol(n.Lit), nil
		}
		return nil, &SyntaxStructureError{Form: "quote", Detail: "unrecognized atom kind"}
	case *ast.List:
		elems := make([]value.Value, len(n.Children))
		for i, c := range n.Children {
			v, err := astToValue(c)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.NewList(elems...), nil
	default:
		return nil, &SyntaxStructureError{Form: "quote", Detail: "unrecognized node type"}
	}
}
