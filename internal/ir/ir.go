package ir

// Minimal abstract IR shared by every transformation pass.
// Ownership is strictly hierarchical: a Module owns its Globals and
// Functions, a Function owns its Slots and BasicBlocks, and a BasicBlock
// owns its Instructions. The only back-links are value uses, which are
// non-owning and exist for the store-survival and volatile-taint analyses.

// Module represents one translation unit in IR form.
type Module struct {
	Name      string
	Globals   []*Global
	Functions []*Function
}

// Function looks up a function by name, or nil.
func (m *Module) Function(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Global looks up a global by name, or nil.
func (m *Module) Global(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Global represents a module-level variable.
type Global struct {
	Name  string
	Type  Type
	Init  int64 // constant initializer, zero when absent
	Attrs Attrs
	Addr  *Value // address value usable as an instruction operand
}

// Function represents a single function in IR form.
type Function struct {
	Name   string
	Params []*Param
	Return Type // nil for void functions
	Slots  []*Slot
	Blocks []*BasicBlock
}

// Entry returns the entry block, or nil for a declaration-only function.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Block looks up a block by label, or nil.
func (f *Function) Block(label string) *BasicBlock {
	for _, b := range f.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// Slot looks up a stack slot by name, or nil.
func (f *Function) Slot(name string) *Slot {
	for _, s := range f.Slots {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Signature returns the function's structural signature.
func (f *Function) Signature() *Signature {
	sig := &Signature{Return: f.Return}
	for _, p := range f.Params {
		sig.Params = append(sig.Params, p.Type)
	}
	return sig
}

// Param represents a function parameter.
type Param struct {
	Name  string
	Type  Type
	Value *Value
}

// Slot represents a fixed-size stack allocation within a function.
// Count is the number of elements of Elem the slot holds.
type Slot struct {
	Name  string
	Elem  Type
	Count int
	Attrs Attrs
	Dummy bool   // inserted by the layout randomizer, never referenced
	Addr  *Value // address value usable as an instruction operand
}

// BasicBlock is an ordered instruction sequence with a single terminator.
// A nil Terminator on a value-returning function means control falls off
// the end of the path, which the return-check sanitizer turns into a trap.
type BasicBlock struct {
	Label        string
	Instructions []*Instr
	Terminator   *Instr
}

// Append adds an instruction to the end of the block body.
func (b *BasicBlock) Append(in *Instr) {
	in.Block = b
	b.Instructions = append(b.Instructions, in)
}

// SetTerminator installs the block terminator.
func (b *BasicBlock) SetTerminator(in *Instr) {
	in.Block = b
	b.Terminator = in
}
