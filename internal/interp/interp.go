// Package interp executes the abstract IR directly. It exists so the
// runtime trap protocol is observable: every inserted check and every
// trap terminator funnels into a single abort entry point that ends the
// run immediately with a RuntimeTrap.
//
// Platform-defined choices made here, mirroring common hardware: shift
// amounts are taken modulo the operand width, and integer division by
// zero traps.
package interp

import (
	"fmt"
	"math"

	"safegate/internal/ir"
)

// RuntimeTrap reports a failed runtime check in the executed program. It
// is always fatal to that program and never silently ignored; the
// message formatting of a real runtime library is out of scope here.
type RuntimeTrap struct {
	Check    string
	Function string
}

func (t *RuntimeTrap) Error() string {
	return fmt.Sprintf("runtime trap: %s in %s", t.Check, t.Function)
}

// object is one memory object: a stack slot or a global.
type object struct {
	name  string
	words []int64
}

// ref is a pointer value: an object plus an element offset.
type ref struct {
	obj *object
	off int64
}

// rval is a runtime value. Exactly one interpretation is meaningful,
// selected by the producing instruction's type.
type rval struct {
	i  int64
	f  float64
	p  *ref
	fn *ir.Function
}

// Interp executes functions of one module. Globals are instantiated per
// interpreter, so independent runs never share state.
type Interp struct {
	module  *ir.Module
	globals map[*ir.Global]*object
}

// New creates an interpreter for m with freshly initialized globals.
func New(m *ir.Module) *Interp {
	ev := &Interp{module: m, globals: make(map[*ir.Global]*object)}
	for _, g := range m.Globals {
		ev.globals[g] = &object{name: g.Name, words: []int64{g.Init}}
	}
	return ev
}

// Run executes the named function with integer arguments and returns
// its result. A failed check surfaces as a *RuntimeTrap error.
func (ev *Interp) Run(name string, args ...int64) (int64, error) {
	fn := ev.module.Function(name)
	if fn == nil {
		return 0, fmt.Errorf("unknown function %q", name)
	}
	rvals := make([]rval, len(args))
	for i, a := range args {
		rvals[i] = rval{i: a}
	}
	res, err := ev.call(fn, rvals)
	return res.i, err
}

func (ev *Interp) abort(kind ir.CheckKind, fn *ir.Function) error {
	return &RuntimeTrap{Check: string(kind), Function: fn.Name}
}

func (ev *Interp) call(fn *ir.Function, args []rval) (rval, error) {
	if len(args) != len(fn.Params) {
		return rval{}, fmt.Errorf("function %q expects %d argument(s), got %d", fn.Name, len(fn.Params), len(args))
	}
	frame := make(map[*ir.Value]rval)
	for i, p := range fn.Params {
		frame[p.Value] = args[i]
	}
	for _, s := range fn.Slots {
		obj := &object{name: s.Name, words: make([]int64, s.Count)}
		frame[s.Addr] = rval{p: &ref{obj: obj}}
	}
	for _, g := range ev.module.Globals {
		frame[g.Addr] = rval{p: &ref{obj: ev.globals[g]}}
	}

	blk := fn.Entry()
	if blk == nil {
		return rval{}, fmt.Errorf("function %q has no body", fn.Name)
	}
	for {
		for _, in := range blk.Instructions {
			if err := ev.exec(fn, in, frame); err != nil {
				return rval{}, err
			}
		}
		term := blk.Terminator
		if term == nil {
			// Fall off the end: without the return sanitizer the
			// produced value is whatever the platform leaves behind;
			// zero stands in for it here.
			return rval{}, nil
		}
		switch term.Op {
		case ir.OpRet:
			if len(term.Args) > 0 {
				return frame[term.Args[0]], nil
			}
			return rval{}, nil
		case ir.OpTrap:
			kind := term.Kind
			if kind == "" {
				kind = "trap"
			}
			return rval{}, ev.abort(kind, fn)
		case ir.OpJmp:
			blk = term.Targets[0]
		case ir.OpBr:
			if frame[term.Args[0]].i != 0 {
				blk = term.Targets[0]
			} else {
				blk = term.Targets[1]
			}
		default:
			return rval{}, fmt.Errorf("bad terminator %s in %q", term.Op, fn.Name)
		}
	}
}

func (ev *Interp) exec(fn *ir.Function, in *ir.Instr, frame map[*ir.Value]rval) error {
	arg := func(i int) rval { return frame[in.Args[i]] }

	switch in.Op {
	case ir.OpConst:
		if _, ok := in.Result.Type.(*ir.FloatType); ok {
			frame[in.Result] = rval{f: in.ConstFloat}
		} else {
			frame[in.Result] = rval{i: in.ConstVal}
		}

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor,
		ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		frame[in.Result] = rval{i: evalArith(in.Op, arg(0).i, arg(1).i)}

	case ir.OpShl, ir.OpLshr, ir.OpAshr, ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem:
		v, err := ev.evalNative(fn, in.Op, arg(0), arg(1), ir.BitWidth(in.Args[0].Type))
		if err != nil {
			return err
		}
		frame[in.Result] = v

	case ir.OpGuard:
		// An unexpanded guard executes with the native instruction's
		// platform semantics; it is only a deferral, never a behavior
		// change.
		v, err := ev.evalNative(fn, in.GuardOp, arg(0), arg(1), ir.BitWidth(in.Args[0].Type))
		if err != nil {
			return err
		}
		frame[in.Result] = v

	case ir.OpLoad:
		p := arg(0).p
		if p == nil || p.off < 0 || p.off >= int64(len(p.obj.words)) {
			return ev.abort("wild-load", fn)
		}
		frame[in.Result] = rval{i: p.obj.words[p.off]}

	case ir.OpStore:
		p := arg(0).p
		if p == nil || p.off < 0 || p.off >= int64(len(p.obj.words)) {
			return ev.abort("wild-store", fn)
		}
		p.obj.words[p.off] = arg(1).i

	case ir.OpMemSet:
		p := arg(0).p
		if p == nil {
			return ev.abort("wild-store", fn)
		}
		val, count := arg(1).i, arg(2).i
		for k := int64(0); k < count; k++ {
			off := p.off + k
			if off < 0 || off >= int64(len(p.obj.words)) {
				return ev.abort("wild-store", fn)
			}
			p.obj.words[off] = val
		}

	case ir.OpIndex:
		base := arg(0).p
		if base == nil {
			return ev.abort("wild-index", fn)
		}
		frame[in.Result] = rval{p: &ref{obj: base.obj, off: base.off + arg(1).i}}

	case ir.OpFuncAddr:
		target := ev.module.Function(in.Callee)
		if target == nil {
			return fmt.Errorf("unknown function %q", in.Callee)
		}
		frame[in.Result] = rval{fn: target, i: 1}

	case ir.OpCall:
		target := ev.module.Function(in.Callee)
		if target == nil {
			return fmt.Errorf("unknown function %q", in.Callee)
		}
		args := make([]rval, len(in.Args))
		for i := range in.Args {
			args[i] = arg(i)
		}
		res, err := ev.call(target, args)
		if err != nil {
			return err
		}
		if in.Result != nil {
			frame[in.Result] = res
		}

	case ir.OpICall:
		target := arg(0).fn
		if target == nil {
			return ev.abort("null-call", fn)
		}
		args := make([]rval, len(in.Args)-1)
		for i := 1; i < len(in.Args); i++ {
			args[i-1] = arg(i)
		}
		res, err := ev.call(target, args)
		if err != nil {
			return err
		}
		if in.Result != nil {
			frame[in.Result] = res
		}

	case ir.OpFPTrunc:
		frame[in.Result] = rval{f: float64(float32(arg(0).f))}

	case ir.OpSetjmp:
		// Non-local jumps are modeled structurally, not executed; the
		// direct path always sees zero.
		frame[in.Result] = rval{i: 0}

	case ir.OpLongjmp:
		return fmt.Errorf("longjmp outside a setjmp context in %q", fn.Name)

	case ir.OpCheck:
		return ev.check(fn, in, frame)

	default:
		return fmt.Errorf("cannot execute %s in %q", in.Op, fn.Name)
	}
	return nil
}

// check evaluates one inserted runtime verification and routes a failed
// predicate into the abort entry point.
func (ev *Interp) check(fn *ir.Function, in *ir.Instr, frame map[*ir.Value]rval) error {
	switch in.Kind {
	case ir.CheckFloatOverflow:
		src := frame[in.Args[0]].f
		if ft, ok := in.CastTo.(*ir.FloatType); ok && ft.Bits == 32 {
			if !math.IsInf(src, 0) && math.IsInf(float64(float32(src)), 0) {
				return ev.abort(in.Kind, fn)
			}
		}

	case ir.CheckNonNull:
		if frame[in.Args[0]].fn == nil && frame[in.Args[0]].p == nil && frame[in.Args[0]].i == 0 {
			return ev.abort(in.Kind, fn)
		}

	case ir.CheckSigHash:
		if len(in.Args) == 0 {
			// Definition-side embed; nothing to verify here.
			return nil
		}
		target := frame[in.Args[0]].fn
		if target == nil {
			// The null-call check owns null pointers; a missing one
			// means the signature check has nothing to compare.
			return nil
		}
		embedded, ok := embeddedHash(target)
		if !ok || in.Sig == nil || embedded != in.Sig.Hash() {
			return ev.abort(in.Kind, fn)
		}

	case ir.CheckReturn:
		return ev.abort(in.Kind, fn)
	}
	return nil
}

// embeddedHash reads the signature hash the sanitizer embedded at the
// target function's entry.
func embeddedHash(fn *ir.Function) (uint32, bool) {
	entry := fn.Entry()
	if entry == nil {
		return 0, false
	}
	for _, in := range entry.Instructions {
		if in.Op == ir.OpCheck && in.Kind == ir.CheckSigHash && len(in.Args) == 0 && in.Sig != nil {
			return in.Sig.Hash(), true
		}
	}
	return 0, false
}

func evalArith(op ir.Opcode, a, b int64) int64 {
	switch op {
	case ir.OpAdd:
		return a + b
	case ir.OpSub:
		return a - b
	case ir.OpMul:
		return a * b
	case ir.OpAnd:
		return a & b
	case ir.OpOr:
		return a | b
	case ir.OpXor:
		return a ^ b
	case ir.OpEq:
		return b2i(a == b)
	case ir.OpNe:
		return b2i(a != b)
	case ir.OpLt:
		return b2i(a < b)
	case ir.OpLe:
		return b2i(a <= b)
	case ir.OpGt:
		return b2i(a > b)
	case ir.OpGe:
		return b2i(a >= b)
	}
	return 0
}

// evalNative gives shifts and divides their platform semantics: shift
// amounts wrap modulo the width, division by zero traps.
func (ev *Interp) evalNative(fn *ir.Function, op ir.Opcode, a, b rval, width int) (rval, error) {
	if width <= 0 {
		width = 64
	}
	mask := uint64(width - 1)
	switch op {
	case ir.OpShl:
		return rval{i: a.i << (uint64(b.i) & mask)}, nil
	case ir.OpLshr:
		return rval{i: int64(uint64(a.i) >> (uint64(b.i) & mask))}, nil
	case ir.OpAshr:
		return rval{i: a.i >> (uint64(b.i) & mask)}, nil
	case ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem:
		if b.i == 0 {
			return rval{}, ev.abort("divide-by-zero", fn)
		}
		switch op {
		case ir.OpSDiv:
			return rval{i: a.i / b.i}, nil
		case ir.OpUDiv:
			return rval{i: int64(uint64(a.i) / uint64(b.i))}, nil
		case ir.OpSRem:
			return rval{i: a.i % b.i}, nil
		default:
			return rval{i: int64(uint64(a.i) % uint64(b.i))}, nil
		}
	}
	return rval{}, fmt.Errorf("not a native guardable op: %s", op)
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
