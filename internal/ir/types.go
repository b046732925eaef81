package ir

import "fmt"

// Type is the minimal type model the passes need: fixed-width integers,
// floating-point widths, and typed pointers.
type Type interface {
	String() string
}

type IntType struct {
	Bits int
}

type FloatType struct {
	Bits int
}

type PtrType struct {
	Elem Type
}

func (t *IntType) String() string   { return fmt.Sprintf("i%d", t.Bits) }
func (t *FloatType) String() string { return fmt.Sprintf("f%d", t.Bits) }
func (t *PtrType) String() string   { return fmt.Sprintf("ptr<%s>", t.Elem) }

// Canonical widths used throughout the passes and tests.
var (
	I1  = &IntType{Bits: 1}
	I8  = &IntType{Bits: 8}
	I32 = &IntType{Bits: 32}
	I64 = &IntType{Bits: 64}
	F32 = &FloatType{Bits: 32}
	F64 = &FloatType{Bits: 64}
)

// Ptr returns a pointer type to elem.
func Ptr(elem Type) *PtrType { return &PtrType{Elem: elem} }

// SameType reports structural type equality.
func SameType(a, b Type) bool {
	switch at := a.(type) {
	case *IntType:
		bt, ok := b.(*IntType)
		return ok && at.Bits == bt.Bits
	case *FloatType:
		bt, ok := b.(*FloatType)
		return ok && at.Bits == bt.Bits
	case *PtrType:
		bt, ok := b.(*PtrType)
		return ok && SameType(at.Elem, bt.Elem)
	case nil:
		return b == nil
	}
	return false
}

// BitWidth returns the width of an integer type, or 0 for anything else.
func BitWidth(t Type) int {
	if it, ok := t.(*IntType); ok {
		return it.Bits
	}
	return 0
}
