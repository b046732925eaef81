package sir

// Grammar of the textual IR. One file describes one module:
//
//	module demo
//
//	global @g: i64 = 0
//
//	func main(%x: i64): i64 {
//	  slot %buf: i64 x 4
//	entry:
//	  %c = const 3 : i64
//	  %v = shl %x, %c
//	  store %buf, %v align 8
//	  %r = load %buf align 8
//	  ret %r
//	}

type File struct {
	Name    string        `"module" @Ident`
	Globals []*GlobalDecl `@@*`
	Funcs   []*FuncDecl   `@@*`
}

type GlobalDecl struct {
	Name string   `"global" "@" @Ident ":"`
	Type *TypeRef `@@`
	Init int64    `"=" @Integer`
}

type TypeRef struct {
	Ptr  *TypeRef `  "ptr" "<" @@ ">"`
	Name string   `| @Ident`
}

type FuncDecl struct {
	Name   string       `"func" @Ident "("`
	Params []*ParamDecl `[ @@ { "," @@ } ] ")"`
	Return *TypeRef     `[ ":" @@ ] "{"`
	Slots  []*SlotDecl  `@@*`
	Blocks []*BlockDecl `@@* "}"`
}

type ParamDecl struct {
	Name string   `"%" @Ident ":"`
	Type *TypeRef `@@`
}

type SlotDecl struct {
	Name  string   `"slot" "%" @Ident ":"`
	Type  *TypeRef `@@`
	Count int      `"x" @Integer`
}

type BlockDecl struct {
	Label  string       `@Ident ":"`
	Instrs []*InstrDecl `@@*`
}

// InstrDecl covers every opcode with one positional shape: optional
// result, opcode, optional callee, operands, then trailing clauses.
type InstrDecl struct {
	Result string `[ "%" @Ident "=" ]`
	Op     string `@("const"|"add"|"sub"|"mul"|"and"|"or"|"xor"|"shl"|"lshr"|"ashr"|"sdiv"|"udiv"|"srem"|"urem"|"eq"|"ne"|"lt"|"le"|"gt"|"ge"|"load"|"store"|"memset"|"index"|"call"|"icall"|"funcaddr"|"fptrunc"|"setjmp"|"longjmp"|"ret"|"br"|"jmp"|"trap"|"guard.shl"|"guard.lshr"|"guard.ashr"|"guard.sdiv"|"guard.udiv"|"guard.srem"|"guard.urem"|"check.float_overflow"|"check.nonnull"|"check.sighash"|"check.missing_return")`

	Callee   string     `[ "@" @Ident ]`
	Operands []*Operand `[ @@ { "," @@ } ]`
	Type     *TypeRef   `[ ":" @@ ]`
	To       *TypeRef   `[ "to" @@ ]`
	Align    int        `[ "align" @Integer ]`
	Targets  []string   `{ Arrow @Ident }`
	Sig      *SigDecl   `[ "sig" @@ ]`
}

type Operand struct {
	Var string `  "%" @Ident`
	Int *int64 `| @Integer`
}

type SigDecl struct {
	Params []*TypeRef `"(" [ @@ { "," @@ } ] ")"`
	Return *TypeRef   `[ Arrow @@ ]`
}
