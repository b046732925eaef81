package ir

import "fmt"

// Builder constructs modules programmatically. It maintains the value,
// instruction, and block counters and keeps use lists consistent, so
// passes and tests never wire operands by hand.
type Builder struct {
	module       *Module
	currentFunc  *Function
	currentBlock *BasicBlock
	valueCounter int
	instCounter  int
}

// NewBuilder creates a builder for a fresh module.
func NewBuilder(name string) *Builder {
	return &Builder{module: &Module{Name: name}}
}

// Module returns the module under construction.
func (b *Builder) Module() *Module { return b.module }

// NewGlobal adds a module-level variable and returns it. The returned
// global's Addr value is usable as a pointer operand.
func (b *Builder) NewGlobal(name string, elem Type, init int64) *Global {
	g := &Global{Name: name, Type: elem, Init: init}
	g.Addr = b.newValue(name, Ptr(elem), nil)
	b.module.Globals = append(b.module.Globals, g)
	return g
}

// NewFunction starts a new function and makes it current.
func (b *Builder) NewFunction(name string, ret Type, params ...*Param) *Function {
	fn := &Function{Name: name, Return: ret}
	for _, p := range params {
		p.Value = b.newValue(p.Name, p.Type, nil)
		fn.Params = append(fn.Params, p)
	}
	b.module.Functions = append(b.module.Functions, fn)
	b.currentFunc = fn
	b.currentBlock = nil
	return fn
}

// NewParam builds a parameter for NewFunction.
func NewParam(name string, t Type) *Param { return &Param{Name: name, Type: t} }

// NewSlot adds a fixed-size stack allocation to the current function.
func (b *Builder) NewSlot(name string, elem Type, count int) *Slot {
	s := &Slot{Name: name, Elem: elem, Count: count}
	s.Addr = b.newValue(name, Ptr(elem), nil)
	b.currentFunc.Slots = append(b.currentFunc.Slots, s)
	return s
}

// NewBlock appends a block to the current function and makes it current.
func (b *Builder) NewBlock(label string) *BasicBlock {
	blk := &BasicBlock{Label: label}
	b.currentFunc.Blocks = append(b.currentFunc.Blocks, blk)
	b.currentBlock = blk
	return blk
}

// SetBlock switches the insertion point.
func (b *Builder) SetBlock(blk *BasicBlock) { b.currentBlock = blk }

func (b *Builder) newValue(name string, t Type, def *Instr) *Value {
	b.valueCounter++
	return &Value{ID: b.valueCounter, Name: name, Type: t, Def: def}
}

// Emit appends an instruction to the current block, assigning its ID and
// registering operand uses. If resType is non-nil a result value is
// created and returned.
func (b *Builder) Emit(in *Instr, resType Type) *Value {
	b.instCounter++
	in.ID = b.instCounter
	if resType != nil {
		in.Result = b.newValue(fmt.Sprintf("v%d", b.valueCounter+1), resType, in)
	}
	for _, a := range in.Args {
		a.AddUse(in)
	}
	if in.IsTerminator() {
		b.currentBlock.SetTerminator(in)
	} else {
		b.currentBlock.Append(in)
	}
	return in.Result
}

// Const emits an integer constant of the given type.
func (b *Builder) Const(v int64, t Type) *Value {
	return b.Emit(&Instr{Op: OpConst, ConstVal: v}, t)
}

// ConstFloat emits a floating-point constant.
func (b *Builder) ConstFloat(v float64, t Type) *Value {
	return b.Emit(&Instr{Op: OpConst, ConstFloat: v}, t)
}

// Bin emits a binary operation; the result type follows the left operand.
func (b *Builder) Bin(op Opcode, x, y *Value) *Value {
	t := x.Type
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		t = I1
	}
	return b.Emit(&Instr{Op: op, Args: []*Value{x, y}}, t)
}

// Load emits a load through addr with an optional alignment hint.
func (b *Builder) Load(addr *Value, align int) *Value {
	elem := Type(I64)
	if pt, ok := addr.Type.(*PtrType); ok {
		elem = pt.Elem
	}
	return b.Emit(&Instr{Op: OpLoad, Args: []*Value{addr}, Attrs: Attrs{Align: align}}, elem)
}

// Store emits a store of val through addr with an optional alignment hint.
func (b *Builder) Store(addr, val *Value, align int) *Instr {
	in := &Instr{Op: OpStore, Args: []*Value{addr, val}, Attrs: Attrs{Align: align}}
	b.Emit(in, nil)
	return in
}

// MemSet emits a bulk fill of count elements starting at addr.
func (b *Builder) MemSet(addr, val, count *Value) *Instr {
	in := &Instr{Op: OpMemSet, Args: []*Value{addr, val, count}}
	b.Emit(in, nil)
	return in
}

// Index emits an indexed-address computation from base.
func (b *Builder) Index(base, idx *Value) *Value {
	return b.Emit(&Instr{Op: OpIndex, Args: []*Value{base, idx}}, base.Type)
}

// Call emits a direct call to a named symbol.
func (b *Builder) Call(callee string, ret Type, args ...*Value) *Value {
	return b.Emit(&Instr{Op: OpCall, Callee: callee, Args: args}, ret)
}

// ICall emits an indirect call through fnptr with the assumed signature.
func (b *Builder) ICall(fnptr *Value, sig *Signature, args ...*Value) *Value {
	all := append([]*Value{fnptr}, args...)
	return b.Emit(&Instr{Op: OpICall, Sig: sig, Args: all}, sig.Return)
}

// FuncAddr emits the address of a named function as an i64 pointer.
func (b *Builder) FuncAddr(callee string) *Value {
	return b.Emit(&Instr{Op: OpFuncAddr, Callee: callee}, Ptr(I8))
}

// FPTrunc emits a floating-point narrowing conversion.
func (b *Builder) FPTrunc(v *Value, to *FloatType) *Value {
	return b.Emit(&Instr{Op: OpFPTrunc, Args: []*Value{v}, CastTo: to}, to)
}

// Setjmp emits a non-local save point; the result is 0 on the direct
// path and nonzero on a longjmp return.
func (b *Builder) Setjmp() *Value {
	return b.Emit(&Instr{Op: OpSetjmp}, I32)
}

// Ret emits a return terminator; v may be nil for void functions.
func (b *Builder) Ret(v *Value) *Instr {
	in := &Instr{Op: OpRet}
	if v != nil {
		in.Args = []*Value{v}
	}
	b.Emit(in, nil)
	return in
}

// Br emits a conditional branch terminator.
func (b *Builder) Br(cond *Value, ifTrue, ifFalse *BasicBlock) *Instr {
	in := &Instr{Op: OpBr, Args: []*Value{cond}, Targets: []*BasicBlock{ifTrue, ifFalse}}
	b.Emit(in, nil)
	return in
}

// Jmp emits an unconditional jump terminator.
func (b *Builder) Jmp(target *BasicBlock) *Instr {
	in := &Instr{Op: OpJmp, Targets: []*BasicBlock{target}}
	b.Emit(in, nil)
	return in
}
