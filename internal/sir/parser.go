package sir

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"

	"safegate/internal/ir"
)

var parser = participle.MustBuild[File](
	participle.Lexer(SIRLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(3),
)

// ParseFile reads and converts one textual IR file.
func ParseFile(path string) (*ir.Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(path, string(source))
}

// Parse converts textual IR into the abstract module.
func Parse(name, source string) (*ir.Module, error) {
	file, err := parser.ParseString(name, source)
	if err != nil {
		return nil, err
	}
	return convert(file)
}

// converter tracks per-function state while lowering the parse tree.
type converter struct {
	b      *ir.Builder
	values map[string]*ir.Value
}

func convert(file *File) (*ir.Module, error) {
	c := &converter{b: ir.NewBuilder(file.Name)}

	for _, g := range file.Globals {
		t, err := c.typeOf(g.Type)
		if err != nil {
			return nil, err
		}
		c.b.NewGlobal(g.Name, t, g.Init)
	}

	// Function shells first so calls can resolve return types in any
	// declaration order.
	type shell struct {
		decl   *FuncDecl
		fn     *ir.Function
		blocks map[string]*ir.BasicBlock
	}
	var shells []*shell
	for _, fd := range file.Funcs {
		var params []*ir.Param
		for _, pd := range fd.Params {
			t, err := c.typeOf(pd.Type)
			if err != nil {
				return nil, err
			}
			params = append(params, ir.NewParam(pd.Name, t))
		}
		var ret ir.Type
		if fd.Return != nil {
			t, err := c.typeOf(fd.Return)
			if err != nil {
				return nil, err
			}
			ret = t
		}
		fn := c.b.NewFunction(fd.Name, ret, params...)
		for _, sd := range fd.Slots {
			t, err := c.typeOf(sd.Type)
			if err != nil {
				return nil, err
			}
			c.b.NewSlot(sd.Name, t, sd.Count)
		}
		blocks := make(map[string]*ir.BasicBlock)
		for _, bd := range fd.Blocks {
			if _, dup := blocks[bd.Label]; dup {
				return nil, fmt.Errorf("%s: duplicate block label %q", fd.Name, bd.Label)
			}
			blocks[bd.Label] = c.b.NewBlock(bd.Label)
		}
		shells = append(shells, &shell{decl: fd, fn: fn, blocks: blocks})
	}

	for _, sh := range shells {
		c.values = make(map[string]*ir.Value)
		for _, p := range sh.fn.Params {
			c.values[p.Name] = p.Value
		}
		for _, s := range sh.fn.Slots {
			c.values[s.Name] = s.Addr
		}
		for _, g := range c.b.Module().Globals {
			c.values[g.Name] = g.Addr
		}
		for _, bd := range sh.decl.Blocks {
			c.b.SetBlock(sh.blocks[bd.Label])
			for _, id := range bd.Instrs {
				if err := c.instr(sh.blocks, id); err != nil {
					return nil, fmt.Errorf("%s/%s: %w", sh.decl.Name, bd.Label, err)
				}
			}
		}
	}
	return c.b.Module(), nil
}

func (c *converter) typeOf(t *TypeRef) (ir.Type, error) {
	if t.Ptr != nil {
		elem, err := c.typeOf(t.Ptr)
		if err != nil {
			return nil, err
		}
		return ir.Ptr(elem), nil
	}
	switch t.Name {
	case "i1":
		return ir.I1, nil
	case "i8":
		return ir.I8, nil
	case "i32":
		return ir.I32, nil
	case "i64":
		return ir.I64, nil
	case "f32":
		return ir.F32, nil
	case "f64":
		return ir.F64, nil
	}
	return nil, fmt.Errorf("unknown type %q", t.Name)
}

// operand resolves a named value or materializes an integer literal.
func (c *converter) operand(o *Operand) (*ir.Value, error) {
	if o.Int != nil {
		return c.b.Const(*o.Int, ir.I64), nil
	}
	v, ok := c.values[o.Var]
	if !ok {
		return nil, fmt.Errorf("undefined value %%%s", o.Var)
	}
	return v, nil
}

func (c *converter) operands(decls []*Operand) ([]*ir.Value, error) {
	out := make([]*ir.Value, 0, len(decls))
	for _, d := range decls {
		v, err := c.operand(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *converter) instr(blocks map[string]*ir.BasicBlock, d *InstrDecl) error {
	if d.Op == "const" {
		if len(d.Operands) != 1 || d.Operands[0].Int == nil || d.Type == nil {
			return fmt.Errorf("const needs one integer literal and a type annotation")
		}
		t, err := c.typeOf(d.Type)
		if err != nil {
			return err
		}
		return c.bind(d, c.b.Const(*d.Operands[0].Int, t))
	}

	args, err := c.operands(d.Operands)
	if err != nil {
		return err
	}
	targets := make([]*ir.BasicBlock, 0, len(d.Targets))
	for _, label := range d.Targets {
		blk, ok := blocks[label]
		if !ok {
			return fmt.Errorf("undefined block label %q", label)
		}
		targets = append(targets, blk)
	}

	var result *ir.Value
	switch {
	case isBinary(d.Op):
		if len(args) != 2 {
			return fmt.Errorf("%s needs two operands", d.Op)
		}
		result = c.b.Bin(ir.Opcode(d.Op), args[0], args[1])

	case strings.HasPrefix(d.Op, "guard."):
		if len(args) != 2 {
			return fmt.Errorf("%s needs two operands", d.Op)
		}
		in := &ir.Instr{Op: ir.OpGuard, GuardOp: ir.Opcode(strings.TrimPrefix(d.Op, "guard.")), Args: args}
		result = c.b.Emit(in, args[0].Type)

	case strings.HasPrefix(d.Op, "check."):
		in := &ir.Instr{Op: ir.OpCheck, Kind: ir.CheckKind(strings.TrimPrefix(d.Op, "check.")), Args: args}
		if d.To != nil {
			t, terr := c.typeOf(d.To)
			if terr != nil {
				return terr
			}
			in.CastTo = t
		}
		if d.Sig != nil {
			sig, serr := c.sigOf(d.Sig)
			if serr != nil {
				return serr
			}
			in.Sig = sig
		}
		c.b.Emit(in, nil)

	case d.Op == "load":
		if len(args) != 1 {
			return fmt.Errorf("load needs one address operand")
		}
		result = c.b.Load(args[0], d.Align)

	case d.Op == "store":
		if len(args) != 2 {
			return fmt.Errorf("store needs address and value operands")
		}
		c.b.Store(args[0], args[1], d.Align)

	case d.Op == "memset":
		if len(args) != 3 {
			return fmt.Errorf("memset needs address, value, and count operands")
		}
		c.b.MemSet(args[0], args[1], args[2])

	case d.Op == "index":
		if len(args) != 2 {
			return fmt.Errorf("index needs base and index operands")
		}
		result = c.b.Index(args[0], args[1])

	case d.Op == "call":
		if d.Callee == "" {
			return fmt.Errorf("call needs a callee symbol")
		}
		var ret ir.Type
		if target := c.b.Module().Function(d.Callee); target != nil {
			ret = target.Return
		}
		result = c.b.Call(d.Callee, ret, args...)

	case d.Op == "icall":
		if len(args) < 1 || d.Sig == nil {
			return fmt.Errorf("icall needs a function pointer and a sig clause")
		}
		sig, serr := c.sigOf(d.Sig)
		if serr != nil {
			return serr
		}
		result = c.b.ICall(args[0], sig, args[1:]...)

	case d.Op == "funcaddr":
		if d.Callee == "" {
			return fmt.Errorf("funcaddr needs a callee symbol")
		}
		result = c.b.FuncAddr(d.Callee)

	case d.Op == "fptrunc":
		if len(args) != 1 || d.To == nil {
			return fmt.Errorf("fptrunc needs one operand and a to clause")
		}
		t, terr := c.typeOf(d.To)
		if terr != nil {
			return terr
		}
		ft, ok := t.(*ir.FloatType)
		if !ok {
			return fmt.Errorf("fptrunc destination must be a float type")
		}
		result = c.b.FPTrunc(args[0], ft)

	case d.Op == "setjmp":
		result = c.b.Setjmp()

	case d.Op == "longjmp":
		c.b.Emit(&ir.Instr{Op: ir.OpLongjmp, Args: args}, nil)

	case d.Op == "ret":
		var v *ir.Value
		if len(args) > 0 {
			v = args[0]
		}
		c.b.Ret(v)

	case d.Op == "br":
		if len(args) != 1 || len(targets) != 2 {
			return fmt.Errorf("br needs a condition and two targets")
		}
		c.b.Br(args[0], targets[0], targets[1])

	case d.Op == "jmp":
		if len(targets) != 1 {
			return fmt.Errorf("jmp needs one target")
		}
		c.b.Jmp(targets[0])

	case d.Op == "trap":
		c.b.Emit(&ir.Instr{Op: ir.OpTrap}, nil)

	default:
		return fmt.Errorf("unknown opcode %q", d.Op)
	}

	return c.bind(d, result)
}

// bind names an instruction result and registers it in scope.
func (c *converter) bind(d *InstrDecl, result *ir.Value) error {
	if d.Result == "" {
		return nil
	}
	if result == nil {
		return fmt.Errorf("%s produces no result to bind to %%%s", d.Op, d.Result)
	}
	result.Name = d.Result
	if _, dup := c.values[d.Result]; dup {
		return fmt.Errorf("value %%%s is defined twice", d.Result)
	}
	c.values[d.Result] = result
	return nil
}

func (c *converter) sigOf(d *SigDecl) (*ir.Signature, error) {
	sig := &ir.Signature{}
	for _, p := range d.Params {
		t, err := c.typeOf(p)
		if err != nil {
			return nil, err
		}
		sig.Params = append(sig.Params, t)
	}
	if d.Return != nil {
		t, err := c.typeOf(d.Return)
		if err != nil {
			return nil, err
		}
		sig.Return = t
	}
	return sig, nil
}

func isBinary(op string) bool {
	switch ir.Opcode(op) {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor,
		ir.OpShl, ir.OpLshr, ir.OpAshr, ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem,
		ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		return true
	}
	return false
}
