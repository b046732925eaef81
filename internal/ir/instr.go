package ir

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Opcode identifies the operation an instruction performs.
type Opcode string

const (
	// Pure arithmetic and bitwise operations.
	OpConst Opcode = "const"
	OpAdd   Opcode = "add"
	OpSub   Opcode = "sub"
	OpMul   Opcode = "mul"
	OpAnd   Opcode = "and"
	OpOr    Opcode = "or"
	OpXor   Opcode = "xor"

	// Shift and divide operations with platform-defined behavior for
	// out-of-range operands. These are the targets of guard deferral.
	OpShl  Opcode = "shl"
	OpLshr Opcode = "lshr"
	OpAshr Opcode = "ashr"
	OpSDiv Opcode = "sdiv"
	OpUDiv Opcode = "udiv"
	OpSRem Opcode = "srem"
	OpURem Opcode = "urem"

	// Comparisons yield i1.
	OpEq  Opcode = "eq"
	OpNe  Opcode = "ne"
	OpLt  Opcode = "lt"
	OpLe  Opcode = "le"
	OpGt  Opcode = "gt"
	OpGe  Opcode = "ge"

	// Memory operations. Load/Store carry alignment hints in Attrs.
	OpLoad   Opcode = "load"
	OpStore  Opcode = "store"
	OpMemSet Opcode = "memset"
	OpIndex  Opcode = "index" // indexed-address computation from a base pointer

	// Calls. OpCall names a symbol; OpICall goes through a computed
	// function pointer and carries the assumed signature.
	OpCall  Opcode = "call"
	OpICall Opcode = "icall"

	// FuncAddr materializes the address of a named function, the only
	// way a computed function pointer comes into being here.
	OpFuncAddr Opcode = "funcaddr"

	// Floating-point narrowing conversion.
	OpFPTrunc Opcode = "fptrunc"

	// Non-local control transfer points for the volatile-taint pass.
	OpSetjmp  Opcode = "setjmp"
	OpLongjmp Opcode = "longjmp"

	// Guard is the deferral intrinsic standing in for a shift or divide
	// the optimizer must not prove facts about. GuardOp holds the native
	// opcode the guard expands back into after all optimizations.
	OpGuard Opcode = "guard"

	// Check is an inserted runtime verification; failing the check calls
	// the single abort entry point. Kind selects the predicate.
	OpCheck Opcode = "check"

	// Terminators.
	OpRet  Opcode = "ret"
	OpBr   Opcode = "br"
	OpJmp  Opcode = "jmp"
	OpTrap Opcode = "trap"
)

// CheckKind selects the predicate of an OpCheck instruction.
type CheckKind string

const (
	CheckFloatOverflow CheckKind = "float_overflow" // Args[0] out of range of Sub type
	CheckNonNull       CheckKind = "nonnull"        // Args[0] must not be null
	CheckSigHash       CheckKind = "sighash"        // Args[0] target hash must equal SigID
	CheckReturn        CheckKind = "missing_return" // unconditional at fall-off points
)

// Attrs is the per-instruction attribute bag. It carries the markers the
// class-gated passes communicate through: volatile survival, alignment
// hints, and provenance facts.
type Attrs struct {
	Volatile bool // store must survive every elimination stage
	Align    int  // alignment hint in bytes, 0 when unspecified
	InBounds bool // index result proven inside its base object
}

// Instr is a single IR instruction: an opcode, an operand list, and the
// attribute bag. Auxiliary fields are meaningful only for specific
// opcodes and are documented on the opcode constants.
type Instr struct {
	ID     int
	Op     Opcode
	Result *Value
	Args   []*Value
	Attrs  Attrs
	Block  *BasicBlock

	ConstVal   int64      // OpConst: integer value
	ConstFloat float64    // OpConst: float value when Result type is float
	GuardOp    Opcode     // OpGuard: deferred native opcode
	Callee     string     // OpCall: target symbol
	Sig        *Signature // OpICall: assumed signature at the call site
	Kind       CheckKind  // OpCheck: predicate
	CastTo     Type       // OpFPTrunc, OpCheck float_overflow: destination type
	Targets    []*BasicBlock
}

// IsTerminator reports whether the instruction ends a block.
func (in *Instr) IsTerminator() bool {
	switch in.Op {
	case OpRet, OpBr, OpJmp, OpTrap:
		return true
	}
	return false
}

// HasSideEffects reports whether the instruction may be observed beyond
// its result value. Guards count: the whole point of the deferral is that
// no stage may treat them as foldable.
func (in *Instr) HasSideEffects() bool {
	switch in.Op {
	case OpStore, OpMemSet, OpCall, OpICall, OpCheck, OpSetjmp, OpLongjmp, OpGuard:
		return true
	}
	return in.Attrs.Volatile
}

func (in *Instr) String() string {
	var b strings.Builder
	if in.Result != nil {
		fmt.Fprintf(&b, "%%%s = ", in.Result.Name)
	}
	op := string(in.Op)
	if in.Op == OpGuard {
		op = "guard." + string(in.GuardOp)
	}
	b.WriteString(op)
	if in.Op == OpCheck {
		fmt.Fprintf(&b, ".%s", in.Kind)
	}
	if in.Op == OpConst {
		if _, ok := in.Result.Type.(*FloatType); ok {
			fmt.Fprintf(&b, " %g", in.ConstFloat)
		} else {
			fmt.Fprintf(&b, " %d", in.ConstVal)
		}
	}
	if in.Callee != "" {
		fmt.Fprintf(&b, " @%s", in.Callee)
	}
	for i, a := range in.Args {
		if i == 0 {
			b.WriteString(" ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%%%s", a.Name)
	}
	if in.CastTo != nil {
		fmt.Fprintf(&b, " to %s", in.CastTo)
	}
	for _, t := range in.Targets {
		fmt.Fprintf(&b, " ->%s", t.Label)
	}
	if in.Sig != nil {
		fmt.Fprintf(&b, " sig(%s)", in.Sig)
	}
	if in.Attrs.Volatile {
		b.WriteString(" !volatile")
	}
	if in.Attrs.Align > 0 {
		fmt.Fprintf(&b, " !align(%d)", in.Attrs.Align)
	}
	if in.Attrs.InBounds {
		b.WriteString(" !inbounds")
	}
	return b.String()
}

// Value is an instruction result, parameter, or address usable as an
// operand. Uses are non-owning back-links maintained by the builder.
type Value struct {
	ID   int
	Name string
	Type Type
	Def  *Instr // nil for parameters, slot and global addresses
	Uses []*Use
}

// Use records one operand position referencing a value.
type Use struct {
	Value *Value
	User  *Instr
}

// AddUse links user as a consumer of v.
func (v *Value) AddUse(user *Instr) {
	v.Uses = append(v.Uses, &Use{Value: v, User: user})
}

// RemoveUse unlinks one use of v by user.
func (v *Value) RemoveUse(user *Instr) {
	for i, u := range v.Uses {
		if u.User == user {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
			return
		}
	}
}

// ConstOf returns the defining integer constant and true when v is the
// result of an OpConst instruction.
func ConstOf(v *Value) (int64, bool) {
	if v != nil && v.Def != nil && v.Def.Op == OpConst {
		if _, ok := v.Type.(*FloatType); ok {
			return 0, false
		}
		return v.Def.ConstVal, true
	}
	return 0, false
}

// Signature is the structural shape of a function: parameter types and
// return type. Its hash is what the signature sanitizer embeds and
// compares; it deliberately uses no type-identity metadata so it works
// for source models without reflection.
type Signature struct {
	Params []Type
	Return Type
}

func (s *Signature) String() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
	}
	ret := "void"
	if s.Return != nil {
		ret = s.Return.String()
	}
	return fmt.Sprintf("(%s)->%s", strings.Join(parts, ","), ret)
}

// Hash returns the structural signature hash.
func (s *Signature) Hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(s.String()))
	return h.Sum32()
}
