package sir

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// SIRLexer tokenizes the textual IR. Dotted identifiers are single
// tokens so guard and check opcodes (guard.shl, check.nonnull) need no
// special grammar handling.
var SIRLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"Comment", `;[^\n]*`, nil},

		// Arrow must win over a negative integer's minus sign
		{"Arrow", `->`, nil},

		// Identifiers, including dotted opcode names
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_.]*`, nil},

		// Integer literals
		{"Integer", `-?[0-9]+`, nil},

		// Punctuation
		{"Punctuation", `[%@:,=(){}<>]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
